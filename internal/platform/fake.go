package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Call is one recorded mutation on a Fake.
type Call struct {
	Method string
	Chat   int64
	User   int64
	Perms  Permissions
	Rights AdminRights
	Until  time.Time
	Text   string
}

// Fake is an in-memory Platform for tests. Members not registered with
// SetMember report RoleMember.
type Fake struct {
	mu sync.Mutex

	Bot User
	// per method name; returned instead of performing the call
	Errors map[string]error
	// consumed one per Member call before Errors is consulted
	MemberErrs []error

	members     map[int64]map[int64]Member
	Calls       []Call
	MemberCalls int
}

func NewFake(bot User) *Fake {
	return &Fake{
		Bot:     bot,
		Errors:  make(map[string]error),
		members: make(map[int64]map[int64]Member),
	}
}

func (f *Fake) SetMember(chat int64, u User, role Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[chat] == nil {
		f.members[chat] = make(map[int64]Member)
	}
	f.members[chat][u.ID] = Member{User: u, Role: role}
}

// CallsTo returns the recorded calls of one method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Sent returns the text of every Send, joined by newlines.
func (f *Fake) Sent() string {
	var lines []string
	for _, c := range f.CallsTo("Send") {
		lines = append(lines, c.Text)
	}
	return strings.Join(lines, "\n")
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[c.Method]; err != nil {
		return err
	}
	f.Calls = append(f.Calls, c)
	return nil
}

func (f *Fake) Self() User {
	return f.Bot
}

func (f *Fake) Member(ctx context.Context, chat, user int64) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MemberCalls++
	if len(f.MemberErrs) > 0 {
		err := f.MemberErrs[0]
		f.MemberErrs = f.MemberErrs[1:]
		if err != nil {
			return Member{}, err
		}
	}
	if err := f.Errors["Member"]; err != nil {
		return Member{}, err
	}
	if m, ok := f.members[chat][user]; ok {
		return m, nil
	}
	if user == f.Bot.ID {
		return Member{User: f.Bot, Role: RoleMember}, nil
	}
	return Member{User: User{ID: user}, Role: RoleMember}, nil
}

func (f *Fake) Admins(ctx context.Context, chat int64) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["Admins"]; err != nil {
		return nil, err
	}
	var out []Member
	for _, m := range f.members[chat] {
		if m.Role.IsAdmin() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) Ban(ctx context.Context, chat, user int64) error {
	return f.record(Call{Method: "Ban", Chat: chat, User: user})
}

func (f *Fake) Unban(ctx context.Context, chat, user int64) error {
	return f.record(Call{Method: "Unban", Chat: chat, User: user})
}

func (f *Fake) Restrict(ctx context.Context, chat, user int64, perms Permissions, until time.Time) error {
	return f.record(Call{Method: "Restrict", Chat: chat, User: user, Perms: perms, Until: until})
}

func (f *Fake) Promote(ctx context.Context, chat, user int64, rights AdminRights) error {
	return f.record(Call{Method: "Promote", Chat: chat, User: user, Rights: rights})
}

func (f *Fake) DeleteMessage(ctx context.Context, chat int64, messageID int) error {
	return f.record(Call{Method: "DeleteMessage", Chat: chat, Text: fmt.Sprint(messageID)})
}

func (f *Fake) SetChatPermissions(ctx context.Context, chat int64, perms Permissions) error {
	return f.record(Call{Method: "SetChatPermissions", Chat: chat, Perms: perms})
}

func (f *Fake) Send(ctx context.Context, chat int64, text string) error {
	return f.record(Call{Method: "Send", Chat: chat, Text: text})
}
