package ledger

import (
	"context"
	"strings"
)

// SetRules overwrites the chat's rule text. Blank text removes the rules.
func (l *Ledger) SetRules(ctx context.Context, chat int64, text string) {
	l.rulesMu.Lock()
	defer l.rulesMu.Unlock()

	all, writable := l.loadRules(ctx)
	text = strings.TrimSpace(text)
	if text == "" {
		delete(all, key(chat))
	} else {
		all[key(chat)] = text
	}
	l.saveDoc(ctx, DocRules, all, writable)
}

func (l *Ledger) GetRules(ctx context.Context, chat int64) (string, bool) {
	l.rulesMu.Lock()
	defer l.rulesMu.Unlock()

	all, _ := l.loadRules(ctx)
	text, ok := all[key(chat)]
	return text, ok && text != ""
}
