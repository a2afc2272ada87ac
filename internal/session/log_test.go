package session

import (
	"testing"
	"time"

	"github.com/babelchat/babelchat/internal/model/chat"
)

func TestMessageLogDeduplicatesByID(t *testing.T) {
	log := NewMessageLog("en")

	msg := chat.Message{ID: "m1", Sender: "Alice", Text: "hi", Kind: chat.KindUser}
	if !log.Append(msg) {
		t.Fatal("first append must succeed")
	}
	if log.Append(msg) {
		t.Fatal("duplicate ID must be rejected")
	}
	if log.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", log.Len())
	}
}

func TestMessageLogAllowsMissingIDs(t *testing.T) {
	log := NewMessageLog("en")

	// Entries without IDs cannot be deduplicated; both are kept.
	log.Append(chat.Message{Sender: "Alice", Text: "one"})
	log.Append(chat.Message{Sender: "Alice", Text: "two"})
	if log.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", log.Len())
	}
}

func TestMessageLogBackfillsTimestamp(t *testing.T) {
	log := NewMessageLog("en")

	log.Append(chat.Message{ID: "m1", Text: "no timestamp"})
	stamped := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log.Append(chat.Message{ID: "m2", Text: "stamped", CreatedAt: stamped})

	messages := log.Messages()
	if messages[0].CreatedAt.IsZero() {
		t.Fatal("missing timestamp must be backfilled")
	}
	if !messages[1].CreatedAt.Equal(stamped) {
		t.Fatalf("existing timestamp must be kept, got %v", messages[1].CreatedAt)
	}
}

func TestMessageLogMessagesReturnsCopy(t *testing.T) {
	log := NewMessageLog("en")
	log.Append(chat.Message{ID: "m1", Text: "original"})

	messages := log.Messages()
	messages[0].Text = "mutated"

	if got := log.Messages()[0].Text; got != "original" {
		t.Fatalf("log entry changed through returned slice: %q", got)
	}
}

func TestMessageLogDisplayLanguage(t *testing.T) {
	log := NewMessageLog("en")
	if log.DisplayLanguage() != "en" {
		t.Fatalf("unexpected initial language %q", log.DisplayLanguage())
	}
	log.SetDisplayLanguage("fr")
	if log.DisplayLanguage() != "fr" {
		t.Fatalf("expected fr, got %q", log.DisplayLanguage())
	}
}
