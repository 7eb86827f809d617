package moderation

import (
	"context"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/platform"
)

// Lock stops non-admin members from sending anything. It holds no local
// state and repeating it is harmless.
func (e *Engine) Lock(ctx context.Context, chat, actor int64) error {
	if err := e.Platform.SetChatPermissions(ctx, chat, platform.Silenced()); err != nil {
		return e.failed(authz.ActionLock, chat, 0, err)
	}
	e.done(authz.ActionLock, chat, actor, 0)
	return nil
}

func (e *Engine) Unlock(ctx context.Context, chat, actor int64) error {
	if err := e.Platform.SetChatPermissions(ctx, chat, platform.Open()); err != nil {
		return e.failed(authz.ActionUnlock, chat, 0, err)
	}
	e.done(authz.ActionUnlock, chat, actor, 0)
	return nil
}

// DeleteMessage removes a single message.
func (e *Engine) DeleteMessage(ctx context.Context, chat, actor int64, messageID int) error {
	if err := e.Platform.DeleteMessage(ctx, chat, messageID); err != nil {
		return e.failed(authz.ActionDelete, chat, 0, err)
	}
	e.done(authz.ActionDelete, chat, actor, 0)
	return nil
}

func (e *Engine) SetRules(ctx context.Context, chat int64, text string) {
	e.Ledger.SetRules(ctx, chat, text)
}

func (e *Engine) Rules(ctx context.Context, chat int64) (string, bool) {
	return e.Ledger.GetRules(ctx, chat)
}
