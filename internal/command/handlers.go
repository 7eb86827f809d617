package command

import (
	"context"
	"fmt"
	"strings"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/ledger"
	"telegram-group-moderation-bot/internal/moderation"
	"telegram-group-moderation-bot/internal/platform"
	"telegram-group-moderation-bot/internal/timeparse"
)

const timeLayout = "2006-01-02 15:04:05"

// how many warnings the warnings command lists
const warningsShown = 5

// Handlers turns command events into moderation engine calls.
type Handlers struct {
	Engine   *moderation.Engine
	Platform platform.Platform
}

func NewHandlers(eng *moderation.Engine) *Handlers {
	return &Handlers{Engine: eng, Platform: eng.Platform}
}

// Register adds every command to the router with its guards. Commands that
// touch members or chat settings need both an admin caller and an admin bot.
// Commands that only change local records need an admin caller. Read-only
// commands are open to everyone.
func Register(r *Router, h *Handlers, g *authz.Gate) {
	admin := AdminOnly(g)
	botAdmin := BotAdmin(g)

	r.Handle("ban", h.Ban, admin, botAdmin)
	r.Handle("unban", h.Unban, admin, botAdmin)
	r.Handle("kick", h.Kick, admin, botAdmin)
	r.Handle("promote", h.Promote, admin, botAdmin)
	r.Handle("demote", h.Demote, admin, botAdmin)
	r.Handle("mute", h.Mute, admin, botAdmin)
	r.Handle("unmute", h.Unmute, admin, botAdmin)
	r.Handle("lock", h.Lock, admin, botAdmin)
	r.Handle("unlock", h.Unlock, admin, botAdmin)
	r.Handle("del", h.Delete, admin, botAdmin)

	r.Handle("warn", h.Warn, admin)
	r.Handle("unwarn", h.Unwarn, admin)
	r.Handle("setrules", h.SetRules, admin)

	r.Handle("warnings", h.Warnings)
	r.Handle("rules", h.Rules)
}

func reasonOf(args []string) string {
	return strings.Join(args, " ")
}

func (h *Handlers) target(ctx context.Context, cmd *Command) (*Target, error) {
	return ResolveTarget(ctx, h.Platform, cmd)
}

func (h *Handlers) Ban(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Ban(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Banned!\n\nUser: %s\nBanned by: %s\nReason: %s\nTime: %s",
		t.User.Mention(), cmd.Caller.Mention(), reasonText(t.Rest), h.now()), nil
}

func (h *Handlers) Unban(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Unban(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Unbanned!\n\nUser: %s\nUnbanned by: %s\nTime: %s",
		t.User.Mention(), cmd.Caller.Mention(), h.now()), nil
}

func (h *Handlers) Kick(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Kick(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Kicked!\n\nUser: %s\nKicked by: %s\nReason: %s\nTime: %s",
		t.User.Mention(), cmd.Caller.Mention(), reasonText(t.Rest), h.now()), nil
}

func (h *Handlers) Promote(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Promote(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Promoted!\n\nUser: %s\nPromoted by: %s\nPermissions: Delete, Restrict, Pin messages",
		t.User.Mention(), cmd.Caller.Mention()), nil
}

func (h *Handlers) Demote(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Demote(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Demoted!\n\nUser: %s\nDemoted by: %s",
		t.User.Mention(), cmd.Caller.Mention()), nil
}

// Mute takes an optional duration as the first argument after the target.
// Anything that does not parse as a duration is part of the reason and the
// default mute time applies.
func (h *Handlers) Mute(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}

	d := h.Engine.DefaultMute
	reason := t.Rest
	if len(reason) > 0 {
		if parsed, ok := h.Engine.MuteDuration(reason[0]); ok {
			d = parsed
			reason = reason[1:]
		}
	}

	res, err := h.Engine.Mute(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User, d, reasonOf(reason))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User Muted!\n\nUser: %s\nMuted by: %s\nDuration: %s\nUntil: %s\nReason: %s",
		t.User.Mention(), cmd.Caller.Mention(), timeparse.Format(res.Duration),
		res.Until.UTC().Format(timeLayout)+" UTC", res.Reason), nil
}

func (h *Handlers) Unmute(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := h.Engine.Unmute(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User); err != nil {
		return "", err
	}
	return fmt.Sprintf("User Unmuted!\n\nUser: %s\nUnmuted by: %s",
		t.User.Mention(), cmd.Caller.Mention()), nil
}

func (h *Handlers) Warn(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	res, err := h.Engine.Warn(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User, reasonOf(t.Rest))
	if err != nil {
		return "", err
	}

	switch {
	case res.AutoBanned:
		return fmt.Sprintf("User Auto-Banned!\n\nUser: %s\nReached %d/%d warnings and has been banned.\nLast reason: %s",
			t.User.Mention(), res.Count, res.Max, res.Reason), nil
	case res.AutoBanErr != nil:
		return fmt.Sprintf("User Warned!\n\nUser: %s\nWarnings: %d/%d\nReason: %s\n\nThe automatic ban failed; the next warning will try again.",
			t.User.Mention(), res.Count, res.Max, res.Reason), nil
	}
	return fmt.Sprintf("User Warned!\n\nUser: %s\nWarned by: %s\nWarnings: %d/%d\nReason: %s",
		t.User.Mention(), cmd.Caller.Mention(), res.Count, res.Max, res.Reason), nil
}

func (h *Handlers) Unwarn(ctx context.Context, cmd *Command) (string, error) {
	t, err := h.target(ctx, cmd)
	if err != nil {
		return "", err
	}
	res, err := h.Engine.Unwarn(ctx, cmd.Chat.ID, cmd.Caller.ID, t.User)
	if err != nil {
		return "", err
	}
	if !res.Removed {
		return fmt.Sprintf("%s has no warnings to remove.", t.User.Mention()), nil
	}
	return fmt.Sprintf("Warning Removed!\n\nUser: %s\nWarnings: %d/%d",
		t.User.Mention(), res.Count, res.Max), nil
}

// Warnings shows the target's warnings, or the caller's own when no target
// is given.
func (h *Handlers) Warnings(ctx context.Context, cmd *Command) (string, error) {
	u := cmd.Caller
	if cmd.ReplyTo != nil || len(cmd.Args) > 0 {
		t, err := h.target(ctx, cmd)
		if err != nil {
			return "", err
		}
		u = t.User
	}

	list := h.Engine.Warnings(ctx, cmd.Chat.ID, u)
	if len(list) == 0 {
		return fmt.Sprintf("No Warnings\n\nUser: %s\nWarnings: 0/%d\nStatus: Clean record",
			u.Mention(), h.Engine.MaxWarnings), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Warning History\n\nUser: %s\nWarnings: %d/%d\n\n", u.Mention(), len(list), h.Engine.MaxWarnings)
	// numbered by position in the full history
	start := 0
	if len(list) > warningsShown {
		start = len(list) - warningsShown
	}
	for i, w := range list[start:] {
		fmt.Fprintf(&b, "%d. %s (%s)\n", start+i+1, w.Reason, w.Date.UTC().Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handlers) Lock(ctx context.Context, cmd *Command) (string, error) {
	if err := h.Engine.Lock(ctx, cmd.Chat.ID, cmd.Caller.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Chat Locked!\n\nLocked by: %s\nOnly admins can send messages now.", cmd.Caller.Mention()), nil
}

func (h *Handlers) Unlock(ctx context.Context, cmd *Command) (string, error) {
	if err := h.Engine.Unlock(ctx, cmd.Chat.ID, cmd.Caller.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Chat Unlocked!\n\nUnlocked by: %s\nEveryone can send messages again.", cmd.Caller.Mention()), nil
}

// Delete removes the replied-to message and then the command itself. It
// sends no reply on success.
func (h *Handlers) Delete(ctx context.Context, cmd *Command) (string, error) {
	if cmd.ReplyToMessageID == 0 {
		return "Please reply to a message to delete it!", nil
	}
	if err := h.Engine.DeleteMessage(ctx, cmd.Chat.ID, cmd.Caller.ID, cmd.ReplyToMessageID); err != nil {
		return "", err
	}
	if cmd.MessageID != 0 {
		if err := h.Engine.DeleteMessage(ctx, cmd.Chat.ID, cmd.Caller.ID, cmd.MessageID); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (h *Handlers) SetRules(ctx context.Context, cmd *Command) (string, error) {
	text := strings.TrimSpace(strings.Join(cmd.Args, " "))
	if text == "" {
		return "Please provide the rules text!\nUsage: /setrules <rules>", nil
	}
	h.Engine.SetRules(ctx, cmd.Chat.ID, text)
	return fmt.Sprintf("Rules Updated!\n\nSet by: %s", cmd.Caller.Mention()), nil
}

func (h *Handlers) Rules(ctx context.Context, cmd *Command) (string, error) {
	text, ok := h.Engine.Rules(ctx, cmd.Chat.ID)
	if !ok {
		return "No rules have been set for this chat yet.\nAdmins can set them with /setrules <rules>", nil
	}
	return "Group Rules\n\n" + text, nil
}

func reasonText(args []string) string {
	return ledger.NormalizeReason(reasonOf(args))
}

func (h *Handlers) now() string {
	return h.Engine.Clock().UTC().Format(timeLayout) + " UTC"
}
