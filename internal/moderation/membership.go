package moderation

import (
	"context"
	"errors"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/platform"
)

func (e *Engine) Ban(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionBan); err != nil {
		return err
	}
	if err := e.Platform.Ban(ctx, chat, target.ID); err != nil {
		return e.failed(authz.ActionBan, chat, target.ID, err)
	}
	e.done(authz.ActionBan, chat, actor, target.ID)
	return nil
}

func (e *Engine) Unban(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionUnban); err != nil {
		return err
	}
	if err := e.Platform.Unban(ctx, chat, target.ID); err != nil {
		return e.failed(authz.ActionUnban, chat, target.ID, err)
	}
	e.done(authz.ActionUnban, chat, actor, target.ID)
	return nil
}

// Kick removes the member without a lasting ban: ban, then unban.
func (e *Engine) Kick(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionKick); err != nil {
		return err
	}
	if err := e.Platform.Ban(ctx, chat, target.ID); err != nil {
		return e.failed(authz.ActionKick, chat, target.ID, err)
	}
	if err := e.Platform.Unban(ctx, chat, target.ID); err != nil {
		// the member is out, but still banned
		return e.failed(authz.ActionKick, chat, target.ID, errors.Join(errors.New("user was banned but could not be unbanned"), err))
	}
	e.done(authz.ActionKick, chat, actor, target.ID)
	return nil
}

// Promote grants moderator rights to a regular member.
func (e *Engine) Promote(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionPromote); err != nil {
		return err
	}
	role, err := e.Gate.Role(ctx, chat, target.ID)
	if err != nil {
		return e.failed(authz.ActionPromote, chat, target.ID, err)
	}
	if role.IsAdmin() {
		return &authz.Rejection{Code: authz.CodeAlreadyAdmin, Message: "User is already an admin!"}
	}
	if err := e.Platform.Promote(ctx, chat, target.ID, platform.ModeratorRights()); err != nil {
		return e.failed(authz.ActionPromote, chat, target.ID, err)
	}
	e.done(authz.ActionPromote, chat, actor, target.ID)
	return nil
}

// Demote strips admin rights. The creator cannot be demoted.
func (e *Engine) Demote(ctx context.Context, chat, actor int64, target platform.User) error {
	if err := e.Gate.CheckTarget(ctx, chat, actor, target.ID, authz.ActionDemote); err != nil {
		return err
	}
	role, err := e.Gate.Role(ctx, chat, target.ID)
	if err != nil {
		return e.failed(authz.ActionDemote, chat, target.ID, err)
	}
	if role != platform.RoleAdministrator {
		return &authz.Rejection{Code: authz.CodeNotAdmin, Message: "User is not an admin!"}
	}
	if err := e.Platform.Promote(ctx, chat, target.ID, platform.AdminRights{}); err != nil {
		return e.failed(authz.ActionDemote, chat, target.ID, err)
	}
	e.done(authz.ActionDemote, chat, actor, target.ID)
	return nil
}
