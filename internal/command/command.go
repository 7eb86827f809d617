// Package command routes inbound chat commands through guard middleware to
// their handlers and sends the resulting reply back to the chat.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/moderation"
	"telegram-group-moderation-bot/internal/platform"
)

// Command is one inbound command event.
type Command struct {
	Name   string
	Args   []string
	Caller platform.User
	Chat   platform.Chat
	// author of the message the command replied to, if any
	ReplyTo          *platform.User
	ReplyToMessageID int
	MessageID        int
}

// Handler runs a command and returns the text to reply with. An empty
// reply sends nothing.
type Handler func(ctx context.Context, cmd *Command) (string, error)

// Middleware wraps a handler with a pre-check or other cross-cutting step.
type Middleware func(Handler) Handler

// Chain wraps h so that the first middleware listed runs first.
func Chain(h Handler, m ...Middleware) Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

const actionFailedMessage = "Action failed! Please try again."

type Router struct {
	Platform platform.Platform
	Logger   *slog.Logger

	middleware []Middleware
	handlers   map[string]Handler
}

func NewRouter(p platform.Platform, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Platform: p,
		Logger:   logger.With("component", "router"),
		handlers: make(map[string]Handler),
	}
}

// Use adds middleware applied to every command, outside any per-command
// middleware.
func (r *Router) Use(m ...Middleware) {
	r.middleware = append(r.middleware, m...)
}

// Handle registers a command. Middleware given here runs after the
// router-wide middleware, in the order listed.
func (r *Router) Handle(name string, h Handler, m ...Middleware) {
	r.handlers[strings.ToLower(name)] = Chain(h, m...)
}

// Commands lists the registered command names.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the command and sends its reply. Rejections and failed
// platform actions become user-visible replies; any other error is logged
// and answered with a generic failure message.
func (r *Router) Dispatch(ctx context.Context, cmd *Command) error {
	h, ok := r.handlers[strings.ToLower(cmd.Name)]
	if !ok {
		return nil
	}

	start := time.Now()
	reply, err := Chain(h, r.middleware...)(ctx, cmd)
	commandDuration.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())

	var actErr *moderation.ActionError
	if rej, isRej := authz.IsRejection(err); isRej {
		commandCount.WithLabelValues(cmd.Name, "rejected").Inc()
		reply = rej.Message
	} else if errors.As(err, &actErr) {
		commandCount.WithLabelValues(cmd.Name, "failed").Inc()
		reply = fmt.Sprintf("Failed to %s: %s", actErr.Action, describe(actErr.Err))
	} else if err != nil {
		commandCount.WithLabelValues(cmd.Name, "error").Inc()
		r.Logger.Error("command failed", "command", cmd.Name, "chat", cmd.Chat.ID, "user", cmd.Caller.ID, "err", err)
		reply = actionFailedMessage
	} else {
		commandCount.WithLabelValues(cmd.Name, "ok").Inc()
	}

	if reply == "" {
		return nil
	}
	if err := r.Platform.Send(ctx, cmd.Chat.ID, reply); err != nil {
		r.Logger.Error("failed to send reply", "command", cmd.Name, "chat", cmd.Chat.ID, "err", err)
		return err
	}
	return nil
}

// describe gives a short user-facing reason for a platform failure.
func describe(err error) string {
	switch {
	case errors.Is(err, platform.ErrForbidden):
		return "I am not allowed to do that here"
	case errors.Is(err, platform.ErrNotFound):
		return "user or chat not found"
	case errors.Is(err, platform.ErrBadRequest):
		return "the request was refused, check my admin rights"
	default:
		return "temporary error, try again later"
	}
}
