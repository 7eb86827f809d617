package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v2"

	"telegram-group-moderation-bot/internal/ledger"
)

var ledgerCmd = &cli.Command{
	Name:  "ledger",
	Usage: "inspect or move moderation state",
	Subcommands: []*cli.Command{
		{
			Name:   "export",
			Usage:  "print warnings, mutes and rules as one JSON document",
			Action: runLedgerExport,
		},
		{
			Name:      "import",
			Usage:     "replace stored state with an exported JSON document (- for stdin)",
			ArgsUsage: "<file>",
			Action:    runLedgerImport,
		},
	},
}

func runLedgerExport(cctx *cli.Context) error {
	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	snap, err := ledger.New(st, nil).LoadStrict(cctx.Context)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	enc := json.NewEncoder(cctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runLedgerImport(cctx *cli.Context) error {
	if cctx.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}

	var r io.Reader = cctx.App.Reader
	if p := cctx.Args().First(); p != "-" {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var snap ledger.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to parse ledger export: %w", err)
	}

	st, err := openStore(cctx)
	if err != nil {
		return err
	}
	if err := ledger.New(st, nil).SaveStrict(cctx.Context, &snap); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	fmt.Fprintf(cctx.App.Writer, "imported %d chats with warnings, %d with mutes, %d with rules\n",
		len(snap.Warnings), len(snap.Mutes), len(snap.Rules))
	return nil
}
