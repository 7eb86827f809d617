// Package ledger keeps the per-chat moderation state: warning lists, mute
// records and rule text.
//
// Each concern is one whole JSON document in a store.Store, keyed by the
// stringified chat id and then by the stringified user id. Every operation
// loads the full document, mutates it in memory and writes it back in full.
// Persistence is best-effort: a missing or corrupt document reads as empty,
// and write failures are logged rather than returned, because the
// moderation action they record has already happened in the chat. When the
// store itself cannot be read, the change is kept in memory for the caller
// but not written, so a transient read error never overwrites other chats.
//
// Within one process the load-mutate-save cycle of a document is serialized
// by a mutex. Separate processes sharing a file store still race, and the
// last full write wins.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"telegram-group-moderation-bot/internal/store"
)

const (
	DocWarnings = "warnings"
	DocMutes    = "mutes"
	DocRules    = "rules"

	DefaultReason = "No reason provided"
	maxReasonLen  = 200
)

type Warning struct {
	Reason   string    `json:"reason"`
	WarnedBy int64     `json:"warned_by"`
	Date     time.Time `json:"date"`
}

type Mute struct {
	Until   time.Time `json:"until"`
	MutedBy int64     `json:"muted_by"`
	Reason  string    `json:"reason"`
}

// Snapshot is the whole ledger held in memory.
type Snapshot struct {
	Warnings map[string]map[string][]Warning `json:"warnings"`
	Mutes    map[string]map[string]Mute      `json:"mutes"`
	Rules    map[string]string               `json:"rules"`
}

type Ledger struct {
	Store  store.Store
	Logger *slog.Logger
	// Clock is used for warning timestamps; defaults to time.Now.
	Clock func() time.Time

	warnMu  sync.Mutex
	muteMu  sync.Mutex
	rulesMu sync.Mutex
}

func New(s store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		Store:  s,
		Logger: logger.With("component", "ledger"),
		Clock:  time.Now,
	}
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NormalizeReason trims the reason, substitutes DefaultReason when empty and
// truncates overly long text.
func NormalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return DefaultReason
	}
	r := []rune(reason)
	if len(r) > maxReasonLen {
		return string(r[:maxReasonLen-3]) + "..."
	}
	return reason
}

// ErrCorrupt marks a stored document that is not valid JSON.
var ErrCorrupt = errors.New("corrupt ledger document")

// readDoc decodes one document. A missing document is the zero value.
func readDoc[T any](ctx context.Context, l *Ledger, name string) (T, error) {
	var v T
	raw, err := l.Store.Load(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return v, nil
	} else if err != nil {
		return v, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var empty T
		return empty, fmt.Errorf("%w %s: %v", ErrCorrupt, name, err)
	}
	return v, nil
}

// loadDoc is readDoc for the best-effort path. The bool is false when the
// store could not be read, and the document must then not be written back.
// A corrupt document stays writable so the next change replaces it.
func loadDoc[T any](ctx context.Context, l *Ledger, name string) (T, bool) {
	v, err := readDoc[T](ctx, l, name)
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, ErrCorrupt):
		l.Logger.Warn("corrupt ledger document, treating as empty", "doc", name, "err", err)
		return v, true
	default:
		l.Logger.Warn("failed to load ledger document, treating as empty", "doc", name, "err", err)
		return v, false
	}
}

func (l *Ledger) saveDoc(ctx context.Context, name string, v any, writable bool) {
	if !writable {
		ledgerSaveFailures.WithLabelValues(name).Inc()
		l.Logger.Error("skipping ledger write after failed load", "doc", name)
		return
	}
	if err := l.writeDoc(ctx, name, v); err != nil {
		ledgerSaveFailures.WithLabelValues(name).Inc()
		l.Logger.Error("failed to save ledger document", "doc", name, "err", err)
	}
}

func (l *Ledger) writeDoc(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := l.Store.Save(ctx, name, raw); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (l *Ledger) loadWarnings(ctx context.Context) (map[string]map[string][]Warning, bool) {
	w, ok := loadDoc[map[string]map[string][]Warning](ctx, l, DocWarnings)
	return nonNil(w), ok
}

func (l *Ledger) loadMutes(ctx context.Context) (map[string]map[string]Mute, bool) {
	m, ok := loadDoc[map[string]map[string]Mute](ctx, l, DocMutes)
	return nonNil(m), ok
}

func (l *Ledger) loadRules(ctx context.Context) (map[string]string, bool) {
	r, ok := loadDoc[map[string]string](ctx, l, DocRules)
	return nonNil(r), ok
}

// Load returns the full ledger. It never fails; unreadable documents come
// back empty.
func (l *Ledger) Load(ctx context.Context) *Snapshot {
	l.warnMu.Lock()
	w, _ := l.loadWarnings(ctx)
	l.warnMu.Unlock()

	l.muteMu.Lock()
	m, _ := l.loadMutes(ctx)
	l.muteMu.Unlock()

	l.rulesMu.Lock()
	r, _ := l.loadRules(ctx)
	l.rulesMu.Unlock()

	return &Snapshot{Warnings: w, Mutes: m, Rules: r}
}

// LoadStrict is Load for callers that must not mistake an unreadable store
// for an empty one. Missing documents still read as empty.
func (l *Ledger) LoadStrict(ctx context.Context) (*Snapshot, error) {
	l.warnMu.Lock()
	w, err := readDoc[map[string]map[string][]Warning](ctx, l, DocWarnings)
	l.warnMu.Unlock()
	if err != nil {
		return nil, err
	}

	l.muteMu.Lock()
	m, err := readDoc[map[string]map[string]Mute](ctx, l, DocMutes)
	l.muteMu.Unlock()
	if err != nil {
		return nil, err
	}

	l.rulesMu.Lock()
	r, err := readDoc[map[string]string](ctx, l, DocRules)
	l.rulesMu.Unlock()
	if err != nil {
		return nil, err
	}

	return &Snapshot{Warnings: nonNil(w), Mutes: nonNil(m), Rules: nonNil(r)}, nil
}

// Save overwrites every document with the contents of snap. Failures are
// logged.
func (l *Ledger) Save(ctx context.Context, snap *Snapshot) {
	l.warnMu.Lock()
	l.saveDoc(ctx, DocWarnings, nonNil(snap.Warnings), true)
	l.warnMu.Unlock()

	l.muteMu.Lock()
	l.saveDoc(ctx, DocMutes, nonNil(snap.Mutes), true)
	l.muteMu.Unlock()

	l.rulesMu.Lock()
	l.saveDoc(ctx, DocRules, nonNil(snap.Rules), true)
	l.rulesMu.Unlock()
}

// SaveStrict is Save that stops at and returns the first failed write.
// Documents written before the failure are not rolled back.
func (l *Ledger) SaveStrict(ctx context.Context, snap *Snapshot) error {
	l.warnMu.Lock()
	err := l.writeDoc(ctx, DocWarnings, nonNil(snap.Warnings))
	l.warnMu.Unlock()
	if err != nil {
		return err
	}

	l.muteMu.Lock()
	err = l.writeDoc(ctx, DocMutes, nonNil(snap.Mutes))
	l.muteMu.Unlock()
	if err != nil {
		return err
	}

	l.rulesMu.Lock()
	err = l.writeDoc(ctx, DocRules, nonNil(snap.Rules))
	l.rulesMu.Unlock()
	return err
}

func nonNil[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return m
}
