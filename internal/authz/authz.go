// Package authz decides whether a moderation command may run.
//
// Every check asks the platform for the live role of the member involved.
// Roles are never cached. A lookup that fails transiently is retried once after RetryDelay.
// If it still fails the check fails closed.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"telegram-group-moderation-bot/internal/platform"
)

const DefaultRetryDelay = 500 * time.Millisecond

// ErrCheckFailed is wrapped by the Rejection returned when a role lookup
// could not be completed.
var ErrCheckFailed = errors.New("permission check failed")

type Code string

const (
	CodeAdminOnly    Code = "admin_only"
	CodeGroupsOnly   Code = "groups_only"
	CodeBotNotAdmin  Code = "bot_not_admin"
	CodeCheckFailed  Code = "check_failed"
	CodeSelfTarget   Code = "self_target"
	CodeBotTarget    Code = "bot_target"
	CodeAdminTarget  Code = "admin_target"
	CodeNotFound     Code = "user_not_found"
	CodeAlreadyAdmin Code = "already_admin"
	CodeNotAdmin     Code = "not_admin"
)

// Rejection is a user-visible refusal. Nothing has been changed when one is
// returned.
type Rejection struct {
	Code    Code
	Message string
	err     error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected (%s): %s", r.Code, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.err
}

func reject(code Code, msg string) *Rejection {
	return &Rejection{Code: code, Message: msg}
}

// IsRejection reports whether err is a Rejection and returns it.
func IsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

const botAdminMessage = "Bot admin required! I need admin permissions to execute this command.\n" +
	"Please promote me to admin with:\n" +
	"- Delete messages\n" +
	"- Restrict members\n" +
	"- Pin messages\n" +
	"- Manage chat"

// Action is a moderation operation applied to a target member.
type Action string

const (
	ActionBan     Action = "ban"
	ActionUnban   Action = "unban"
	ActionKick    Action = "kick"
	ActionMute    Action = "mute"
	ActionUnmute  Action = "unmute"
	ActionWarn    Action = "warn"
	ActionUnwarn  Action = "unwarn"
	ActionPromote Action = "promote"
	ActionDemote  Action = "demote"
	ActionLock    Action = "lock"
	ActionUnlock  Action = "unlock"
	ActionDelete  Action = "delete"
)

// ProtectsAdmins is true for actions that must never hit an administrator
// or the creator; those have to be demoted first.
func (a Action) ProtectsAdmins() bool {
	switch a {
	case ActionBan, ActionKick, ActionMute, ActionWarn:
		return true
	}
	return false
}

type Gate struct {
	Platform   platform.Platform
	Logger     *slog.Logger
	RetryDelay time.Duration
}

func NewGate(p platform.Platform, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		Platform:   p,
		Logger:     logger.With("component", "authz"),
		RetryDelay: DefaultRetryDelay,
	}
}

// Role looks up the member's current role, retrying a transient failure once.
func (g *Gate) Role(ctx context.Context, chat, user int64) (platform.Role, error) {
	m, err := g.Platform.Member(ctx, chat, user)
	if err != nil && platform.IsTransient(err) {
		roleLookupRetries.Inc()
		g.Logger.Warn("role lookup failed, retrying", "chat", chat, "user", user, "err", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.RetryDelay):
		}
		m, err = g.Platform.Member(ctx, chat, user)
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

func checkFailed(msg string, err error) *Rejection {
	return &Rejection{
		Code:    CodeCheckFailed,
		Message: msg,
		err:     fmt.Errorf("%w: %w", ErrCheckFailed, err),
	}
}

// AuthorizeCaller lets administrators and the creator through. Private
// chats have no admins and pass unchecked.
func (g *Gate) AuthorizeCaller(ctx context.Context, chat platform.Chat, caller int64) error {
	if chat.IsPrivate() {
		return nil
	}
	role, err := g.Role(ctx, chat.ID, caller)
	if err != nil {
		g.Logger.Error("could not verify caller admin status", "chat", chat.ID, "user", caller, "err", err)
		return checkFailed("Could not verify admin status!", err)
	}
	if !role.IsAdmin() {
		return reject(CodeAdminOnly, "This command is for admins only!")
	}
	return nil
}

// AuthorizeBot requires the bot itself to be an administrator of a group.
func (g *Gate) AuthorizeBot(ctx context.Context, chat platform.Chat) error {
	if chat.IsPrivate() {
		return reject(CodeGroupsOnly, "This command only works in groups!")
	}
	role, err := g.Role(ctx, chat.ID, g.Platform.Self().ID)
	if err != nil {
		g.Logger.Error("could not verify bot admin status", "chat", chat.ID, "err", err)
		return checkFailed("Could not verify bot admin status!", err)
	}
	if role != platform.RoleAdministrator {
		return reject(CodeBotNotAdmin, botAdminMessage)
	}
	return nil
}

// CheckTarget refuses self-targeting, targeting the bot, and applying an
// admin-protected action to an administrator or the creator.
func (g *Gate) CheckTarget(ctx context.Context, chat, actor, target int64, action Action) error {
	if target == actor {
		return reject(CodeSelfTarget, fmt.Sprintf("You cannot %s yourself! Ask another admin if needed.", action))
	}
	if target == g.Platform.Self().ID {
		return reject(CodeBotTarget, fmt.Sprintf("I cannot %s myself!", action))
	}
	if !action.ProtectsAdmins() {
		return nil
	}
	role, err := g.Role(ctx, chat, target)
	if errors.Is(err, platform.ErrNotFound) {
		return reject(CodeNotFound, "User not found!")
	} else if err != nil {
		g.Logger.Error("could not verify target role", "chat", chat, "user", target, "err", err)
		return checkFailed("Could not verify the user's status!", err)
	}
	if role.IsAdmin() {
		return reject(CodeAdminTarget, "Cannot perform this action on an admin! Demote them first if necessary.")
	}
	return nil
}
