package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/babelchat/babelchat/internal/model/chat"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) Emit(event string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestTrackerEmitsTypingPerKeystroke(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := NewTracker(emitter, "abcde", "Alice")
	defer tracker.Stop()

	tracker.Keystroke()
	tracker.Keystroke()
	tracker.Keystroke()

	if got := emitter.count(chat.EventUserTyping); got != 3 {
		t.Fatalf("expected 3 typing emits, got %d", got)
	}
	if !tracker.Typing() {
		t.Fatal("expected tracker to report typing inside the idle window")
	}
}

func TestTrackerTypingLapsesAfterIdle(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := NewTracker(emitter, "abcde", "Alice", WithIdleAfter(30*time.Millisecond))
	defer tracker.Stop()

	tracker.Keystroke()
	time.Sleep(100 * time.Millisecond)
	if tracker.Typing() {
		t.Fatal("expected typing state to lapse after idle window")
	}
}

func TestTrackerVisibilitySignalsAreLevelTriggered(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := NewTracker(emitter, "abcde", "Alice")
	defer tracker.Stop()

	tracker.SetVisible(false)
	tracker.SetVisible(false)
	tracker.SetVisible(true)

	// Redundant transitions re-emit; the signals are idempotent state
	// broadcasts, not counted events.
	if got := emitter.count(chat.EventUserAway); got != 2 {
		t.Fatalf("expected 2 away emits, got %d", got)
	}
	if got := emitter.count(chat.EventUserReturned); got != 1 {
		t.Fatalf("expected 1 returned emit, got %d", got)
	}
}

func TestTrackerStopSilencesEmits(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := NewTracker(emitter, "abcde", "Alice")

	tracker.Stop()
	tracker.Keystroke()
	tracker.SetVisible(false)

	if got := len(emitter.events); got != 0 {
		t.Fatalf("expected no emits after Stop, got %d", got)
	}
}
