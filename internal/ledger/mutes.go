package ledger

import (
	"context"
	"time"
)

// SetMute stores the member's mute record, replacing any previous one.
func (l *Ledger) SetMute(ctx context.Context, chat, member int64, until time.Time, actor int64, reason string) {
	l.muteMu.Lock()
	defer l.muteMu.Unlock()

	all, writable := l.loadMutes(ctx)
	c, m := key(chat), key(member)
	if all[c] == nil {
		all[c] = make(map[string]Mute)
	}
	all[c][m] = Mute{
		Until:   until.UTC(),
		MutedBy: actor,
		Reason:  NormalizeReason(reason),
	}
	l.saveDoc(ctx, DocMutes, all, writable)
}

// ClearMute deletes the member's mute record and reports whether one existed.
func (l *Ledger) ClearMute(ctx context.Context, chat, member int64) bool {
	l.muteMu.Lock()
	defer l.muteMu.Unlock()

	all, writable := l.loadMutes(ctx)
	c, m := key(chat), key(member)
	if _, ok := all[c][m]; !ok {
		return false
	}
	delete(all[c], m)
	if len(all[c]) == 0 {
		delete(all, c)
	}
	l.saveDoc(ctx, DocMutes, all, writable)
	return true
}

// GetMute returns the member's mute record. Records are informational; the
// platform enforces expiry, so a returned record may already have lapsed.
func (l *Ledger) GetMute(ctx context.Context, chat, member int64) (Mute, bool) {
	l.muteMu.Lock()
	defer l.muteMu.Unlock()

	all, _ := l.loadMutes(ctx)
	mu, ok := all[key(chat)][key(member)]
	return mu, ok
}
