package session

import (
	"sync"
	"time"

	"github.com/babelchat/babelchat/internal/model/chat"
)

// MessageLog is the append-only canonical log for one session. Entries are
// deduplicated by message ID so server echoes and history replays after a
// reconnect never produce duplicates.
type MessageLog struct {
	mu              sync.RWMutex
	entries         []chat.Message
	seen            map[string]struct{}
	displayLanguage string
}

// NewMessageLog builds an empty log displaying the given language.
func NewMessageLog(displayLanguage string) *MessageLog {
	return &MessageLog{
		entries:         make([]chat.Message, 0, 32),
		seen:            make(map[string]struct{}),
		displayLanguage: displayLanguage,
	}
}

// Append adds a message, backfilling a missing timestamp at receipt time.
// It reports false for a duplicate ID, leaving the log untouched.
func (l *MessageLog) Append(m chat.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.ID != "" {
		if _, dup := l.seen[m.ID]; dup {
			return false
		}
		l.seen[m.ID] = struct{}{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, m)
	return true
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make([]chat.Message, len(l.entries))
	copy(copied, l.entries)
	return copied
}

// Len reports the number of entries.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// SetDisplayLanguage re-tags the language the log is rendered in; applied
// when the server acknowledges a language change.
func (l *MessageLog) SetDisplayLanguage(lang string) {
	l.mu.Lock()
	l.displayLanguage = lang
	l.mu.Unlock()
}

// DisplayLanguage returns the current render language.
func (l *MessageLog) DisplayLanguage() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.displayLanguage
}
