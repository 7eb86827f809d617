// Package platform describes the messaging platform the bot moderates.
// Role and membership truth lives on the platform and is always queried
// live; nothing here caches it.
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	// ErrTransient marks network failures, rate limiting and server errors.
	ErrTransient = errors.New("transient platform error")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
)

// IsAdmin is true for administrators and the chat creator.
func (r Role) IsAdmin() bool {
	return r == RoleAdministrator || r == RoleCreator
}

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSuperGroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

type Chat struct {
	ID    int64
	Type  ChatType
	Title string
}

func (c Chat) IsPrivate() bool {
	return c.Type == ChatPrivate
}

type User struct {
	ID        int64
	Username  string
	FirstName string
	IsBot     bool
}

// Mention renders the user for a plain-text reply.
func (u User) Mention() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Unknown User"
}

type Member struct {
	User User
	Role Role
}

// Permissions are the send rights of a member, or the chat defaults.
type Permissions struct {
	SendMessages bool
	SendMedia    bool
	SendPolls    bool
	SendOther    bool
	AddPreviews  bool
	ChangeInfo   bool
	InviteUsers  bool
	PinMessages  bool
}

// Silenced removes every right; used for mutes and chat locks.
func Silenced() Permissions {
	return Permissions{}
}

// Open restores the rights a regular member normally has.
func Open() Permissions {
	return Permissions{
		SendMessages: true,
		SendMedia:    true,
		SendPolls:    true,
		SendOther:    true,
		AddPreviews:  true,
		InviteUsers:  true,
	}
}

// AdminRights are granted by Promote. The zero value demotes.
type AdminRights struct {
	DeleteMessages  bool
	RestrictMembers bool
	PinMessages     bool
	PromoteMembers  bool
}

// ModeratorRights is what the promote command grants.
func ModeratorRights() AdminRights {
	return AdminRights{
		DeleteMessages:  true,
		RestrictMembers: true,
		PinMessages:     true,
	}
}

type Platform interface {
	// Self is the bot's own account.
	Self() User
	Member(ctx context.Context, chat, user int64) (Member, error)
	Admins(ctx context.Context, chat int64) ([]Member, error)
	Ban(ctx context.Context, chat, user int64) error
	Unban(ctx context.Context, chat, user int64) error
	Restrict(ctx context.Context, chat, user int64, perms Permissions, until time.Time) error
	Promote(ctx context.Context, chat, user int64, rights AdminRights) error
	DeleteMessage(ctx context.Context, chat int64, messageID int) error
	SetChatPermissions(ctx context.Context, chat int64, perms Permissions) error
	Send(ctx context.Context, chat int64, text string) error
}
