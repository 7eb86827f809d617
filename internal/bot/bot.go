// Package bot connects telebot's update loop to the command router.
package bot

import (
	"context"
	"log/slog"
	"time"

	tb "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"telegram-group-moderation-bot/internal/command"
	"telegram-group-moderation-bot/internal/platform"
)

const DefaultCommandTimeout = 30 * time.Second

type Bot struct {
	TB     *tb.Bot
	Router *command.Router
	Logger *slog.Logger
	// upper bound on handling one command, platform calls included
	CommandTimeout time.Duration

	// parent of every command context; set by Run
	ctx context.Context
}

func New(b *tb.Bot, r *command.Router, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		TB:             b,
		Router:         r,
		Logger:         logger.With("component", "bot"),
		CommandTimeout: DefaultCommandTimeout,
		ctx:            context.Background(),
	}
}

// Register installs panic recovery and a telebot handler for every command
// known to the router.
func (b *Bot) Register() {
	b.TB.Use(middleware.Recover(func(err error, c tb.Context) {
		var chat int64
		if c != nil && c.Chat() != nil {
			chat = c.Chat().ID
		}
		b.Logger.Error("recovered from panic in handler", "chat", chat, "err", err)
	}))
	for _, name := range b.Router.Commands() {
		b.TB.Handle("/"+name, b.handler(name))
	}
}

func (b *Bot) handler(name string) tb.HandlerFunc {
	return func(c tb.Context) error {
		cmd := CommandFromContext(name, c)
		if cmd == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(b.ctx, b.CommandTimeout)
		defer cancel()
		return b.Router.Dispatch(ctx, cmd)
	}
}

// CommandFromContext builds the command event for a telebot update. It
// returns nil for updates that carry no message or sender, such as
// anonymous channel posts.
func CommandFromContext(name string, c tb.Context) *command.Command {
	msg := c.Message()
	if msg == nil || c.Sender() == nil || c.Chat() == nil {
		return nil
	}
	cmd := &command.Command{
		Name:      name,
		Args:      c.Args(),
		Caller:    platform.UserFromTelebot(c.Sender()),
		Chat:      platform.ChatFromTelebot(c.Chat()),
		MessageID: msg.ID,
	}
	if msg.ReplyTo != nil {
		cmd.ReplyToMessageID = msg.ReplyTo.ID
		if msg.ReplyTo.Sender != nil {
			u := platform.UserFromTelebot(msg.ReplyTo.Sender)
			cmd.ReplyTo = &u
		}
	}
	return cmd
}

// Run polls for updates until ctx is cancelled. Commands still in flight
// see the cancellation through their own context.
func (b *Bot) Run(ctx context.Context) {
	b.ctx = ctx
	go func() {
		<-ctx.Done()
		b.Logger.Info("stopping bot")
		b.TB.Stop()
	}()
	b.Logger.Info("bot started", "username", b.TB.Me.Username, "commands", b.Router.Commands())
	b.TB.Start()
}
