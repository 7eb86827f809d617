package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/telebot.v3"

	"telegram-group-moderation-bot/internal/command"
	"telegram-group-moderation-bot/internal/platform"
)

func offlineBot(t *testing.T) *tb.Bot {
	b, err := tb.NewBot(tb.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func groupMessage(text string) tb.Update {
	return tb.Update{Message: &tb.Message{
		ID:     1,
		Text:   text,
		Sender: &tb.User{ID: 1, Username: "admin"},
		Chat:   &tb.Chat{ID: -100, Type: tb.ChatSuperGroup},
	}}
}

func TestRegisterDispatchesUpdates(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, err := tb.NewBot(tb.Settings{Offline: true, Synchronous: true})
	require.NoError(err)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	fake := platform.NewFake(platform.User{ID: 99, IsBot: true})
	router := command.NewRouter(fake, logger)
	var gotArgs []string
	router.Handle("ping", func(ctx context.Context, cmd *command.Command) (string, error) {
		gotArgs = cmd.Args
		return "pong", nil
	})
	router.Handle("boom", func(ctx context.Context, cmd *command.Command) (string, error) {
		panic(errors.New("handler blew up"))
	})

	mb := New(b, router, logger)
	mb.Register()

	b.ProcessUpdate(groupMessage("/ping one two"))
	assert.Equal("pong", fake.Sent())
	assert.Equal([]string{"one", "two"}, gotArgs)

	// a panicking handler is logged and does not take the bot down
	b.ProcessUpdate(groupMessage("/boom"))
	assert.Contains(logs.String(), "recovered from panic in handler")
	assert.Contains(logs.String(), "handler blew up")
	assert.Contains(logs.String(), "chat=-100")

	b.ProcessUpdate(groupMessage("/ping"))
	assert.Equal(2, strings.Count(fake.Sent(), "pong"))

	// unregistered commands are ignored
	b.ProcessUpdate(groupMessage("/nope"))
	assert.Len(fake.CallsTo("Send"), 2)
}

func TestCommandContextFollowsRunContext(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, err := tb.NewBot(tb.Settings{Offline: true, Synchronous: true})
	require.NoError(err)
	fake := platform.NewFake(platform.User{ID: 99, IsBot: true})
	router := command.NewRouter(fake, nil)
	var seen error
	router.Handle("ping", func(ctx context.Context, cmd *command.Command) (string, error) {
		seen = ctx.Err()
		return "", nil
	})

	mb := New(b, router, nil)
	mb.Register()

	b.ProcessUpdate(groupMessage("/ping"))
	assert.NoError(seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mb.ctx = ctx
	b.ProcessUpdate(groupMessage("/ping"))
	assert.ErrorIs(seen, context.Canceled)
}

func TestCommandFromContext(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	b := offlineBot(t)

	msg := &tb.Message{
		ID:      77,
		Text:    "/mute 2h spamming links",
		Payload: "2h spamming links",
		Sender:  &tb.User{ID: 1, Username: "admin"},
		Chat:    &tb.Chat{ID: -100, Type: tb.ChatSuperGroup, Title: "group"},
		ReplyTo: &tb.Message{
			ID:     70,
			Sender: &tb.User{ID: 2, FirstName: "Spammer"},
		},
	}
	cmd := CommandFromContext("mute", b.NewContext(tb.Update{Message: msg}))
	require.NotNil(cmd)
	assert.Equal("mute", cmd.Name)
	assert.Equal([]string{"2h", "spamming", "links"}, cmd.Args)
	assert.Equal(int64(1), cmd.Caller.ID)
	assert.Equal(platform.Chat{ID: -100, Type: platform.ChatSuperGroup, Title: "group"}, cmd.Chat)
	assert.Equal(77, cmd.MessageID)
	assert.Equal(70, cmd.ReplyToMessageID)
	require.NotNil(cmd.ReplyTo)
	assert.Equal("Spammer", cmd.ReplyTo.Mention())

	plain := &tb.Message{ID: 5, Sender: &tb.User{ID: 1}, Chat: &tb.Chat{ID: 1, Type: tb.ChatPrivate}}
	cmd = CommandFromContext("rules", b.NewContext(tb.Update{Message: plain}))
	require.NotNil(cmd)
	assert.Nil(cmd.ReplyTo)
	assert.Empty(cmd.Args)
	assert.True(cmd.Chat.IsPrivate())

	assert.Nil(CommandFromContext("rules", b.NewContext(tb.Update{})))
}

type sink struct {
	texts []string
	err   error
}

func (s *sink) send(ctx context.Context, text string) error {
	s.texts = append(s.texts, text)
	return s.err
}

func TestAdminLogHandlerForwardsAboveLevel(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	s := &sink{}
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewAdminLogHandler(inner, slog.LevelWarn, s.send))

	logger.Info("command used", "command", "ban")
	logger.With("component", "moderation").WithGroup("req").Error("moderation action failed", "chat", -100)

	assert.Contains(buf.String(), "command used")
	assert.Contains(buf.String(), "moderation action failed")
	assert.Len(s.texts, 1)
	assert.Equal("[ERROR] moderation action failed component=moderation req.chat=-100", s.texts[0])
}

func TestAdminLogHandlerSendFailure(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	s := &sink{err: errors.New("chat not found")}
	inner := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewAdminLogHandler(inner, slog.LevelError, s.send))

	logger.Error("boom")
	assert.Len(s.texts, 1)
	assert.Contains(buf.String(), "failed to forward log to admin")
	assert.Contains(buf.String(), "chat not found")
}

func TestAdminLogHandlerForwardsBelowInnerLevel(t *testing.T) {
	var buf bytes.Buffer
	s := &sink{}
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(NewAdminLogHandler(inner, slog.LevelInfo, s.send))

	logger.Info("bot started")
	assert.Empty(t, buf.String())
	assert.Equal(t, []string{"[INFO] bot started"}, s.texts)
}
