package ledger

import (
	"context"
)

// AppendWarning records a warning issued by actor and returns the member's
// new warning count.
func (l *Ledger) AppendWarning(ctx context.Context, chat, member int64, reason string, actor int64) int {
	l.warnMu.Lock()
	defer l.warnMu.Unlock()

	all, writable := l.loadWarnings(ctx)
	c, m := key(chat), key(member)
	if all[c] == nil {
		all[c] = make(map[string][]Warning)
	}
	all[c][m] = append(all[c][m], Warning{
		Reason:   NormalizeReason(reason),
		WarnedBy: actor,
		Date:     l.Clock().UTC(),
	})
	count := len(all[c][m])
	l.saveDoc(ctx, DocWarnings, all, writable)
	return count
}

// PopLastWarning removes the most recent warning, if any, and returns the
// remaining count. Nothing is written when there was nothing to remove.
func (l *Ledger) PopLastWarning(ctx context.Context, chat, member int64) int {
	l.warnMu.Lock()
	defer l.warnMu.Unlock()

	all, writable := l.loadWarnings(ctx)
	c, m := key(chat), key(member)
	list := all[c][m]
	if len(list) == 0 {
		return 0
	}
	list = list[:len(list)-1]
	all[c][m] = list
	l.saveDoc(ctx, DocWarnings, all, writable)
	return len(list)
}

// ListWarnings returns the member's warnings, oldest first.
func (l *Ledger) ListWarnings(ctx context.Context, chat, member int64) []Warning {
	l.warnMu.Lock()
	defer l.warnMu.Unlock()

	all, _ := l.loadWarnings(ctx)
	list := all[key(chat)][key(member)]
	if list == nil {
		return []Warning{}
	}
	return list
}

// ResetWarnings empties the member's warning list.
func (l *Ledger) ResetWarnings(ctx context.Context, chat, member int64) {
	l.warnMu.Lock()
	defer l.warnMu.Unlock()

	all, writable := l.loadWarnings(ctx)
	c, m := key(chat), key(member)
	if all[c] == nil {
		all[c] = make(map[string][]Warning)
	}
	all[c][m] = []Warning{}
	l.saveDoc(ctx, DocWarnings, all, writable)
}
