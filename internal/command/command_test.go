package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/ledger"
	"telegram-group-moderation-bot/internal/moderation"
	"telegram-group-moderation-bot/internal/platform"
	"telegram-group-moderation-bot/internal/ratelimit"
	"telegram-group-moderation-bot/internal/store"
)

var (
	group   = platform.Chat{ID: -100, Type: platform.ChatSuperGroup, Title: "test"}
	botUser = platform.User{ID: 999, Username: "modbot", IsBot: true}
	admin   = platform.User{ID: 1, Username: "Admin"}
	member  = platform.User{ID: 2, Username: "member", FirstName: "Mem"}
	other   = platform.User{ID: 4, FirstName: "Other"}
)

var now = time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	fp     *platform.Fake
	eng    *moderation.Engine
	gate   *authz.Gate
	router *Router
}

func newFixture() *fixture {
	fp := platform.NewFake(botUser)
	fp.SetMember(group.ID, botUser, platform.RoleAdministrator)
	fp.SetMember(group.ID, admin, platform.RoleAdministrator)
	fp.SetMember(group.ID, member, platform.RoleMember)

	l := ledger.New(store.NewMemStore(), nil)
	l.Clock = func() time.Time { return now }
	g := authz.NewGate(fp, nil)
	g.RetryDelay = time.Millisecond
	eng := moderation.NewEngine(fp, l, g, nil)
	eng.Clock = func() time.Time { return now }

	r := NewRouter(fp, nil)
	Register(r, NewHandlers(eng), g)
	return &fixture{fp: fp, eng: eng, gate: g, router: r}
}

func (f *fixture) run(t *testing.T, caller platform.User, name string, reply *platform.User, args ...string) string {
	t.Helper()
	before := len(f.fp.CallsTo("Send"))
	cmd := &Command{Name: name, Args: args, Caller: caller, Chat: group, ReplyTo: reply, MessageID: 50}
	if reply != nil {
		cmd.ReplyToMessageID = 40
	}
	require.NoError(t, f.router.Dispatch(context.Background(), cmd))
	sent := f.fp.CallsTo("Send")
	if len(sent) == before {
		return ""
	}
	return sent[len(sent)-1].Text
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, cmd *Command) (string, error) {
				order = append(order, name)
				return next(ctx, cmd)
			}
		}
	}
	h := Chain(func(ctx context.Context, cmd *Command) (string, error) {
		order = append(order, "handler")
		return "", nil
	}, mw("a"), mw("b"))

	_, err := h(context.Background(), &Command{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestNonAdminNeverReachesHandler(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	called := false
	f.router.Handle("spy", func(ctx context.Context, cmd *Command) (string, error) {
		called = true
		return "ok", nil
	}, AdminOnly(f.gate), BotAdmin(f.gate))

	reply := f.run(t, member, "spy", nil)
	assert.False(called)
	assert.Equal("This command is for admins only!", reply)

	reply = f.run(t, admin, "spy", nil)
	assert.True(called)
	assert.Equal("ok", reply)
}

func TestCallerDemotedBetweenCommands(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	assert.Contains(f.run(t, admin, "lock", nil), "Chat Locked!")
	f.fp.SetMember(group.ID, admin, platform.RoleMember)
	assert.Equal("This command is for admins only!", f.run(t, admin, "unlock", nil))
	assert.Len(f.fp.CallsTo("SetChatPermissions"), 1)
}

func TestBotNotAdmin(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.fp.SetMember(group.ID, botUser, platform.RoleMember)

	reply := f.run(t, admin, "ban", &member)
	assert.Contains(reply, "I need admin permissions")
	assert.Empty(f.fp.CallsTo("Ban"))

	// warn needs only an admin caller
	assert.Contains(f.run(t, admin, "warn", &member, "spam"), "User Warned!")
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "", f.run(t, admin, "nope", nil))
}

func TestResolveTarget(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newFixture()

	tg, err := ResolveTarget(ctx, f.fp, &Command{Name: "ban", Chat: group, ReplyTo: &member, Args: []string{"flooding", "again"}})
	require.NoError(err)
	assert.Equal(member.ID, tg.User.ID)
	assert.Equal([]string{"flooding", "again"}, tg.Rest)

	tg, err = ResolveTarget(ctx, f.fp, &Command{Name: "ban", Chat: group, Args: []string{"2", "spam"}})
	require.NoError(err)
	assert.Equal(member.ID, tg.User.ID)
	assert.Equal([]string{"spam"}, tg.Rest)

	for _, name := range []string{"@admin", "ADMIN", "@Admin"} {
		tg, err = ResolveTarget(ctx, f.fp, &Command{Name: "ban", Chat: group, Args: []string{name}})
		require.NoError(err, name)
		assert.Equal(admin.ID, tg.User.ID, name)
		assert.Empty(tg.Rest)
	}

	// non-admin usernames cannot be looked up
	_, err = ResolveTarget(ctx, f.fp, &Command{Name: "ban", Chat: group, Args: []string{"@member"}})
	r, ok := authz.IsRejection(err)
	require.True(ok)
	assert.Equal(authz.CodeNotFound, r.Code)
	assert.Contains(r.Message, "/ban")

	_, err = ResolveTarget(ctx, f.fp, &Command{Name: "kick", Chat: group})
	_, ok = authz.IsRejection(err)
	assert.True(ok)

	f.fp.Errors["Member"] = fmt.Errorf("%w: user not found", platform.ErrNotFound)
	_, err = ResolveTarget(ctx, f.fp, &Command{Name: "ban", Chat: group, Args: []string{"12345"}})
	_, ok = authz.IsRejection(err)
	assert.True(ok)
}

func TestWarnFlow(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	reply := f.run(t, admin, "warn", &member, "spamming", "links")
	assert.Contains(reply, "Warnings: 1/3")
	assert.Contains(reply, "Reason: spamming links")

	reply = f.run(t, admin, "warn", nil, "2")
	assert.Contains(reply, "Warnings: 2/3")
	assert.Contains(reply, "Reason: No reason provided")

	reply = f.run(t, admin, "warn", &member)
	assert.Contains(reply, "User Auto-Banned!")
	assert.Len(f.fp.CallsTo("Ban"), 1)

	reply = f.run(t, member, "warnings", nil)
	assert.Contains(reply, "Warnings: 0/3")
}

func TestWarnByNonAdminRejected(t *testing.T) {
	f := newFixture()
	assert.Equal(t, "This command is for admins only!", f.run(t, member, "warn", &other))
	assert.Empty(t, f.eng.Warnings(context.Background(), group.ID, other))
}

func TestWarnAdminRejected(t *testing.T) {
	f := newFixture()
	owner := platform.User{ID: 3, Username: "owner"}
	f.fp.SetMember(group.ID, owner, platform.RoleCreator)

	reply := f.run(t, admin, "warn", &owner)
	assert.NotContains(t, reply, "Warned")
	assert.Empty(t, f.eng.Warnings(context.Background(), group.ID, owner))
}

func TestWarningsListsMostRecent(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.eng.MaxWarnings = 10

	for i := 1; i <= 7; i++ {
		f.run(t, admin, "warn", &member, fmt.Sprintf("reason-%d", i))
	}
	reply := f.run(t, member, "warnings", nil)
	assert.Contains(reply, "Warnings: 7/10")
	assert.NotContains(reply, "reason-2")
	assert.Contains(reply, "3. reason-3")
	assert.Contains(reply, "7. reason-7")
	assert.NotContains(reply, "1. reason")

	// anyone can look up someone else
	reply = f.run(t, other, "warnings", &member)
	assert.Contains(reply, "@member")
}

func TestUnwarnFlow(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	assert.Contains(f.run(t, admin, "unwarn", &member), "no warnings")
	f.run(t, admin, "warn", &member, "a")
	f.run(t, admin, "warn", &member, "b")
	assert.Contains(f.run(t, admin, "unwarn", &member), "Warnings: 1/3")

	list := f.eng.Warnings(context.Background(), group.ID, member)
	assert.Len(list, 1)
	assert.Equal("a", list[0].Reason)
}

func TestMuteArguments(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	f := newFixture()

	reply := f.run(t, admin, "mute", &member, "30m", "calm", "down")
	assert.Contains(reply, "Duration: 30 minutes")
	assert.Contains(reply, "Reason: calm down")
	rec, ok := f.eng.MuteRecord(ctx, group.ID, member)
	require.True(ok)
	assert.True(now.Add(30 * time.Minute).Equal(rec.Until))

	// a non-duration first word is part of the reason
	reply = f.run(t, admin, "mute", nil, "2", "stop", "it")
	assert.Contains(reply, "Duration: 1 hour")
	assert.Contains(reply, "Reason: stop it")

	assert.Contains(f.run(t, admin, "unmute", &member), "User Unmuted!")
	_, ok = f.eng.MuteRecord(ctx, group.ID, member)
	assert.False(ok)
}

func TestPlatformFailureReply(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.fp.Errors["Restrict"] = fmt.Errorf("%w: CHAT_ADMIN_REQUIRED", platform.ErrBadRequest)

	reply := f.run(t, admin, "mute", &member)
	assert.True(strings.HasPrefix(reply, "Failed to mute"), reply)
	_, ok := f.eng.MuteRecord(context.Background(), group.ID, member)
	assert.False(ok)
}

func TestUnexpectedErrorReply(t *testing.T) {
	f := newFixture()
	f.router.Handle("boom", func(ctx context.Context, cmd *Command) (string, error) {
		return "", errors.New("boom")
	})
	assert.Equal(t, actionFailedMessage, f.run(t, admin, "boom", nil))
}

func TestDeleteCommand(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	assert.Contains(f.run(t, admin, "del", nil), "reply to a message")
	assert.Equal("", f.run(t, admin, "del", &member))
	assert.Len(f.fp.CallsTo("DeleteMessage"), 2)
}

func TestRulesCommands(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	assert.Contains(f.run(t, member, "rules", nil), "No rules")
	assert.Contains(f.run(t, admin, "setrules", nil), "Usage: /setrules")
	assert.Equal("This command is for admins only!", f.run(t, member, "setrules", nil, "x"))
	assert.Contains(f.run(t, admin, "setrules", nil, "Be", "nice"), "Rules Updated!")
	assert.Equal("Group Rules\n\nBe nice", f.run(t, member, "rules", nil))
}

func TestRateLimitMiddleware(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	lim := ratelimit.New(2, time.Minute, 100)
	f.router.Use(RateLimit(lim))

	f.run(t, member, "rules", nil)
	f.run(t, member, "rules", nil)
	assert.Contains(f.run(t, member, "rules", nil), "Rate limit exceeded")
	assert.Contains(f.run(t, other, "rules", nil), "No rules")
}

func TestCommandsListed(t *testing.T) {
	f := newFixture()
	assert.Equal(t, []string{
		"ban", "del", "demote", "kick", "lock", "mute", "promote", "rules",
		"setrules", "unban", "unlock", "unmute", "unwarn", "warn", "warnings",
	}, f.router.Commands())
}
