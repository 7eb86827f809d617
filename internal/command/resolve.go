package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"telegram-group-moderation-bot/internal/authz"
	"telegram-group-moderation-bot/internal/platform"
)

// Target is the member a command acts on plus the arguments left after the
// member was picked out.
type Target struct {
	User platform.User
	Rest []string
}

func notFound(name string) *authz.Rejection {
	return &authz.Rejection{
		Code: authz.CodeNotFound,
		Message: fmt.Sprintf("User not found!\n\n"+
			"How to specify a user:\n"+
			"- Reply to their message and use /%[1]s\n"+
			"- Use /%[1]s <user_id> with their Telegram ID\n"+
			"- Use /%[1]s @username (works for admins)", name),
	}
}

// ResolveTarget picks the member a command refers to, trying in order: the
// author of the replied-to message, a numeric user ID looked up in the chat,
// and a username (with or without @) matched case-insensitively against the
// chat's admins. Only admin usernames can be resolved; the platform offers
// no lookup by username for ordinary members.
func ResolveTarget(ctx context.Context, p platform.Platform, cmd *Command) (*Target, error) {
	if cmd.ReplyTo != nil {
		return &Target{User: *cmd.ReplyTo, Rest: cmd.Args}, nil
	}
	if len(cmd.Args) == 0 {
		return nil, notFound(cmd.Name)
	}

	token := strings.TrimSpace(cmd.Args[0])
	rest := cmd.Args[1:]

	if id, err := strconv.ParseInt(token, 10, 64); err == nil && id > 0 {
		m, err := p.Member(ctx, cmd.Chat.ID, id)
		if errors.Is(err, platform.ErrNotFound) || errors.Is(err, platform.ErrBadRequest) {
			return nil, notFound(cmd.Name)
		}
		if err != nil {
			return nil, err
		}
		return &Target{User: m.User, Rest: rest}, nil
	}

	username := strings.TrimPrefix(token, "@")
	if username == "" {
		return nil, notFound(cmd.Name)
	}
	admins, err := p.Admins(ctx, cmd.Chat.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range admins {
		if a.User.Username != "" && strings.EqualFold(a.User.Username, username) {
			return &Target{User: a.User, Rest: rest}, nil
		}
	}
	return nil, notFound(cmd.Name)
}
