// Package moderation applies moderation actions to chat members and keeps
// the ledger in step with them.
//
// Platform mutations are never retried, and the ledger is only written once
// the platform call has succeeded. The one sequenced pair is the automatic
// ban on reaching MaxWarnings: the ban is issued first and the warning list
// is reset only if the ban went through. A failed ban leaves the warnings in
// place, so the next warning triggers the ban again; a crash between the two
// steps leaves a stale list that the next warning clears with a repeat ban.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/ledger"
	"telegram-group-moderation-bot/internal/platform"
	"telegram-group-moderation-bot/internal/timeparse"
)

const (
	DefaultMaxWarnings = 3
	DefaultMuteTime    = time.Hour
)

// ActionError is a failed platform call. It is shown to the caller and
// nothing was recorded locally.
type ActionError struct {
	Action authz.Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

type Engine struct {
	Platform    platform.Platform
	Ledger      *ledger.Ledger
	Gate        *authz.Gate
	Logger      *slog.Logger
	Clock       func() time.Time
	MaxWarnings int
	DefaultMute time.Duration
}

func NewEngine(p platform.Platform, l *ledger.Ledger, g *authz.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Platform:    p,
		Ledger:      l,
		Gate:        g,
		Logger:      logger.With("component", "moderation"),
		Clock:       time.Now,
		MaxWarnings: DefaultMaxWarnings,
		DefaultMute: DefaultMuteTime,
	}
}

func (e *Engine) failed(action authz.Action, chat, target int64, err error) error {
	actionCount.WithLabelValues(string(action), "failed").Inc()
	e.Logger.Error("moderation action failed", "action", action, "chat", chat, "user", target, "err", err)
	return &ActionError{Action: action, Err: err}
}

func (e *Engine) done(action authz.Action, chat, actor, target int64) {
	actionCount.WithLabelValues(string(action), "ok").Inc()
	e.Logger.Info("moderation action", "action", action, "chat", chat, "actor", actor, "user", target)
}

type WarnResult struct {
	Count  int
	Max    int
	Reason string
	// AutoBanned is set when this warning reached Max and the ban succeeded.
	AutoBanned bool
	// AutoBanErr is set when the ban was due but failed; warnings are kept.
	AutoBanErr error
}

// Warn adds a warning and bans the member once they reach MaxWarnings.
func (e *Engine) Warn(ctx context.Context, chat, actor int64, target platform.User, reason string) (*WarnResult, error) {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionWarn); err != nil {
		return nil, err
	}

	reason = ledger.NormalizeReason(reason)
	count := e.Ledger.AppendWarning(ctx, chat, target.ID, reason, actor)
	e.done(authz.ActionWarn, chat, actor, target.ID)

	res := &WarnResult{Count: count, Max: e.MaxWarnings, Reason: reason}
	if count < e.MaxWarnings {
		return res, nil
	}

	if err := e.Platform.Ban(ctx, chat, target.ID); err != nil {
		res.AutoBanErr = e.failed(authz.ActionBan, chat, target.ID, err)
		return res, nil
	}
	e.Ledger.ResetWarnings(ctx, chat, target.ID)
	autoBanCount.Inc()
	e.Logger.Info("auto-ban after max warnings", "chat", chat, "user", target.ID, "warnings", count)
	res.AutoBanned = true
	return res, nil
}

type UnwarnResult struct {
	Removed bool
	Count   int
	Max     int
}

// Unwarn removes the most recent warning.
func (e *Engine) Unwarn(ctx context.Context, chat, actor int64, target platform.User) (*UnwarnResult, error) {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionUnwarn); err != nil {
		return nil, err
	}
	if len(e.Ledger.ListWarnings(ctx, chat, target.ID)) == 0 {
		return &UnwarnResult{Max: e.MaxWarnings}, nil
	}
	count := e.Ledger.PopLastWarning(ctx, chat, target.ID)
	e.done(authz.ActionUnwarn, chat, actor, target.ID)
	return &UnwarnResult{Removed: true, Count: count, Max: e.MaxWarnings}, nil
}

// Warnings lists the member's current warnings, oldest first.
func (e *Engine) Warnings(ctx context.Context, chat int64, target platform.User) []ledger.Warning {
	return e.Ledger.ListWarnings(ctx, chat, target.ID)
}

type MuteResult struct {
	Duration time.Duration
	Until    time.Time
	Reason   string
}

// MuteDuration parses token, falling back to DefaultMute when it is missing
// or unparseable. The second return reports whether token was used.
func (e *Engine) MuteDuration(token string) (time.Duration, bool) {
	d, err := timeparse.Parse(token)
	if err != nil {
		return e.DefaultMute, false
	}
	return d, true
}

// Mute silences the member for d, which must be positive.
func (e *Engine) Mute(ctx context.Context, chat, actor int64, target platform.User, d time.Duration, reason string) (*MuteResult, error) {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionMute); err != nil {
		return nil, err
	}
	if d <= 0 {
		d = e.DefaultMute
	}

	until := e.Clock().Add(d)
	if err := e.Platform.Restrict(ctx, chat, target.ID, platform.Silenced(), until); err != nil {
		return nil, e.failed(authz.ActionMute, chat, target.ID, err)
	}
	reason = ledger.NormalizeReason(reason)
	e.Ledger.SetMute(ctx, chat, target.ID, until, actor, reason)
	e.done(authz.ActionMute, chat, actor, target.ID)
	return &MuteResult{Duration: d, Until: until, Reason: reason}, nil
}

// Unmute restores the member's send rights and drops the mute record.
func (e *Engine) Unmute(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionUnmute); err != nil {
		return err
	}
	if err := e.Platform.Restrict(ctx, chat, target.ID, platform.Open(), time.Time{}); err != nil {
		return e.failed(authz.ActionUnmute, chat, target.ID, err)
	}
	e.Ledger.ClearMute(ctx, chat, target.ID)
	e.done(authz.ActionUnmute, chat, actor, target.ID)
	return nil
}

// MuteRecord returns the advisory mute record for the member, if any.
func (e *Engine) MuteRecord(ctx context.Context, chat int64, target platform.User) (ledger.Mute, bool) {
	return e.Ledger.GetMute(ctx, chat, target.ID)
}
