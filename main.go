package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	tb "gopkg.in/telebot.v3"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/bot"
	"telegram-group-moderation-bot/internal/command"
	"telegram-group-moderation-bot/internal/ledger"
	"telegram-group-moderation-bot/internal/moderation"
	"telegram-group-moderation-bot/internal/platform"
	"telegram-group-moderation-bot/internal/ratelimit"
	"telegram-group-moderation-bot/internal/store"
	"telegram-group-moderation-bot/internal/timeparse"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "modbot",
		Usage:   "Telegram group moderation bot",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "directory holding the warnings, mutes and rules documents",
			Value:   "data",
			EnvVars: []string{"DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "keep moderation state in redis instead of data-dir, eg redis://localhost:6379/0",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		ledgerCmd,
	}

	return app
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "connect to Telegram and moderate groups",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "token",
			Usage:    "bot token from @BotFather",
			Required: true,
			EnvVars:  []string{"TELEGRAM_BOT_TOKEN"},
		},
		&cli.Int64Flag{
			Name:    "admin-id",
			Usage:   "Telegram user id that receives warning and error logs; 0 disables",
			EnvVars: []string{"ADMIN_ID"},
		},
		&cli.StringFlag{
			Name:    "admin-log-level",
			Usage:   "lowest level forwarded to admin-id",
			Value:   "warn",
			EnvVars: []string{"ADMIN_LOG_LEVEL"},
		},
		&cli.IntFlag{
			Name:    "max-warnings",
			Usage:   "warnings after which a member is banned",
			Value:   moderation.DefaultMaxWarnings,
			EnvVars: []string{"MAX_WARNINGS"},
		},
		&cli.StringFlag{
			Name:    "default-mute",
			Usage:   "mute length when none is given, eg 30m, 1h, 2d",
			Value:   "1h",
			EnvVars: []string{"DEFAULT_MUTE"},
		},
		&cli.DurationFlag{
			Name:    "role-retry-delay",
			Usage:   "pause before retrying a role lookup that failed transiently",
			Value:   authz.DefaultRetryDelay,
			EnvVars: []string{"ROLE_RETRY_DELAY"},
		},
		&cli.IntFlag{
			Name:    "command-rate-limit",
			Usage:   "commands each user may issue per window; 0 disables",
			Value:   20,
			EnvVars: []string{"COMMAND_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "command-rate-window",
			Value:   time.Minute,
			EnvVars: []string{"COMMAND_RATE_WINDOW"},
		},
		&cli.DurationFlag{
			Name:    "command-timeout",
			Value:   bot.DefaultCommandTimeout,
			EnvVars: []string{"COMMAND_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics; empty disables",
			Value:   ":3998",
			EnvVars: []string{"METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		level, err := parseLevel(cctx.String("log-level"))
		if err != nil {
			return err
		}
		adminLevel, err := parseLevel(cctx.String("admin-log-level"))
		if err != nil {
			return err
		}
		defaultMute, err := timeparse.Parse(cctx.String("default-mute"))
		if err != nil {
			return fmt.Errorf("invalid default-mute %q: %w", cctx.String("default-mute"), err)
		}
		if cctx.Int("max-warnings") < 1 {
			return fmt.Errorf("max-warnings must be at least 1")
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		onError := func(err error, c tb.Context) {
			slog.Error("telebot error", "err", err)
		}
		b, err := tb.NewBot(tb.Settings{
			Token:   cctx.String("token"),
			Poller:  &tb.LongPoller{Timeout: 10 * time.Second},
			OnError: onError,
		})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		tg := platform.NewTelegram(b)

		if adminID := cctx.Int64("admin-id"); adminID != 0 {
			logger = slog.New(bot.NewAdminLogHandler(logger.Handler(), adminLevel, func(ctx context.Context, text string) error {
				return tg.Send(ctx, adminID, text)
			}))
			slog.SetDefault(logger)
		}

		st, err := openStore(cctx)
		if err != nil {
			return err
		}

		l := ledger.New(st, logger)
		gate := authz.NewGate(tg, logger)
		gate.RetryDelay = cctx.Duration("role-retry-delay")
		eng := moderation.NewEngine(tg, l, gate, logger)
		eng.MaxWarnings = cctx.Int("max-warnings")
		eng.DefaultMute = defaultMute

		router := command.NewRouter(tg, logger)
		router.Use(command.Logged(logger))
		if n := cctx.Int("command-rate-limit"); n > 0 {
			router.Use(command.RateLimit(ratelimit.New(n, cctx.Duration("command-rate-window"), 10_000)))
		}
		command.Register(router, command.NewHandlers(eng), gate)

		if listen := cctx.String("metrics-listen"); listen != "" {
			go func() {
				if err := runMetrics(listen); err != nil {
					slog.Error("failed to start metrics endpoint", "err", err)
					panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
				}
			}()
		}

		mb := bot.New(b, router, logger)
		mb.CommandTimeout = cctx.Duration("command-timeout")
		mb.Register()
		mb.Run(ctx)
		return nil
	},
}

func runMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func openStore(cctx *cli.Context) (store.Store, error) {
	if u := cctx.String("redis-url"); u != "" {
		rs, err := store.NewRedisStore(u)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rs, nil
	}
	return store.NewFileStore(cctx.String("data-dir")), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
