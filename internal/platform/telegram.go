package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/telebot.v3"
)

// Telegram implements Platform on top of a telebot Bot. Telebot calls take
// no context, so ctx is accepted for interface symmetry only.
type Telegram struct {
	Bot *tb.Bot
}

func NewTelegram(b *tb.Bot) *Telegram {
	return &Telegram{Bot: b}
}

// apiCode matches the status telebot appends to API errors it has no
// sentinel for, as in "telegram: Bad Request: not enough rights (400)".
var apiCode = regexp.MustCompile(`\((\d{3})\)$`)

// classify maps telebot errors onto the platform sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	code := 0
	var tbErr *tb.Error
	var flood tb.FloodError
	switch {
	case errors.As(err, &flood):
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	case errors.As(err, &tbErr):
		code = tbErr.Code
	default:
		if m := apiCode.FindStringSubmatch(err.Error()); m != nil {
			code, _ = strconv.Atoi(m[1])
		}
	}

	switch {
	case code == 403:
		return fmt.Errorf("%s: %w: %v", op, ErrForbidden, err)
	case code == 400 && strings.Contains(strings.ToLower(err.Error()), "not found"):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	case code == 400:
		return fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}
}

func UserFromTelebot(u *tb.User) User {
	if u == nil {
		return User{}
	}
	return User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		IsBot:     u.IsBot,
	}
}

func ChatFromTelebot(c *tb.Chat) Chat {
	if c == nil {
		return Chat{}
	}
	return Chat{
		ID:    c.ID,
		Type:  ChatType(c.Type),
		Title: c.Title,
	}
}

func memberFromTelebot(m *tb.ChatMember) Member {
	return Member{
		User: UserFromTelebot(m.User),
		Role: Role(m.Role),
	}
}

func rightsFromPermissions(p Permissions) tb.Rights {
	return tb.Rights{
		CanSendMessages: p.SendMessages,
		CanSendMedia:    p.SendMedia,
		CanSendPolls:    p.SendPolls,
		CanSendOther:    p.SendOther,
		CanAddPreviews:  p.AddPreviews,
		CanChangeInfo:   p.ChangeInfo,
		CanInviteUsers:  p.InviteUsers,
		CanPinMessages:  p.PinMessages,
	}
}

func (t *Telegram) Self() User {
	return UserFromTelebot(t.Bot.Me)
}

func (t *Telegram) Member(ctx context.Context, chat, user int64) (Member, error) {
	m, err := t.Bot.ChatMemberOf(&tb.Chat{ID: chat}, &tb.User{ID: user})
	if err != nil {
		return Member{}, classify("getChatMember", err)
	}
	return memberFromTelebot(m), nil
}

func (t *Telegram) Admins(ctx context.Context, chat int64) ([]Member, error) {
	admins, err := t.Bot.AdminsOf(&tb.Chat{ID: chat})
	if err != nil {
		return nil, classify("getChatAdministrators", err)
	}
	out := make([]Member, 0, len(admins))
	for i := range admins {
		out = append(out, memberFromTelebot(&admins[i]))
	}
	return out, nil
}

func (t *Telegram) Ban(ctx context.Context, chat, user int64) error {
	err := t.Bot.Ban(&tb.Chat{ID: chat}, &tb.ChatMember{User: &tb.User{ID: user}})
	return classify("banChatMember", err)
}

func (t *Telegram) Unban(ctx context.Context, chat, user int64) error {
	err := t.Bot.Unban(&tb.Chat{ID: chat}, &tb.User{ID: user})
	return classify("unbanChatMember", err)
}

func (t *Telegram) Restrict(ctx context.Context, chat, user int64, perms Permissions, until time.Time) error {
	member := &tb.ChatMember{
		User:   &tb.User{ID: user},
		Rights: rightsFromPermissions(perms),
	}
	if !until.IsZero() {
		member.RestrictedUntil = until.Unix()
	}
	return classify("restrictChatMember", t.Bot.Restrict(&tb.Chat{ID: chat}, member))
}

func (t *Telegram) Promote(ctx context.Context, chat, user int64, rights AdminRights) error {
	member := &tb.ChatMember{
		User: &tb.User{ID: user},
		Rights: tb.Rights{
			CanDeleteMessages:  rights.DeleteMessages,
			CanRestrictMembers: rights.RestrictMembers,
			CanPinMessages:     rights.PinMessages,
			CanPromoteMembers:  rights.PromoteMembers,
		},
	}
	return classify("promoteChatMember", t.Bot.Promote(&tb.Chat{ID: chat}, member))
}

func (t *Telegram) DeleteMessage(ctx context.Context, chat int64, messageID int) error {
	msg := tb.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chat}
	return classify("deleteMessage", t.Bot.Delete(msg))
}

func (t *Telegram) SetChatPermissions(ctx context.Context, chat int64, perms Permissions) error {
	err := t.Bot.SetGroupPermissions(&tb.Chat{ID: chat}, rightsFromPermissions(perms))
	return classify("setChatPermissions", err)
}

func (t *Telegram) Send(ctx context.Context, chat int64, text string) error {
	_, err := t.Bot.Send(&tb.Chat{ID: chat}, text)
	return classify("sendMessage", err)
}
