package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/ratelimit"
)

// AdminOnly lets the command through only when the caller is currently a
// chat admin.
func AdminOnly(g *authz.Gate) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) (string, error) {
			if err := g.AuthorizeCaller(ctx, cmd.Chat, cmd.Caller.ID); err != nil {
				return "", err
			}
			return next(ctx, cmd)
		}
	}
}

// BotAdmin lets the command through only when the bot is an administrator
// of the group it is used in.
func BotAdmin(g *authz.Gate) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) (string, error) {
			if err := g.AuthorizeBot(ctx, cmd.Chat); err != nil {
				return "", err
			}
			return next(ctx, cmd)
		}
	}
}

// RateLimit throttles each caller across all commands.
func RateLimit(lim *ratelimit.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) (string, error) {
			if !lim.Allow(strconv.FormatInt(cmd.Caller.ID, 10)) {
				commandCount.WithLabelValues(cmd.Name, "rate_limited").Inc()
				return fmt.Sprintf("Rate limit exceeded! Limit: %d commands per %s. Please wait before trying again.",
					lim.Limit, lim.Window), nil
			}
			return next(ctx, cmd)
		}
	}
}

// Logged records who used which command where.
func Logged(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd *Command) (string, error) {
			logger.Info("command used",
				"command", cmd.Name,
				"user", cmd.Caller.ID,
				"username", cmd.Caller.Username,
				"chat", cmd.Chat.ID,
			)
			return next(ctx, cmd)
		}
	}
}
