package presence

import (
	"testing"
	"time"
)

func TestIndicatorExpiresOnSilence(t *testing.T) {
	ind := NewIndicator(50*time.Millisecond, nil)
	defer ind.Stop()

	ind.Mark("Bob")
	if got := ind.Active(); len(got) != 1 || got[0] != "Bob" {
		t.Fatalf("expected Bob typing, got %v", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := ind.Active(); len(got) != 0 {
		t.Fatalf("expected indicator to clear after silence, got %v", got)
	}
}

func TestIndicatorRepeatResetsTimerInsteadOfStacking(t *testing.T) {
	ind := NewIndicator(80*time.Millisecond, nil)
	defer ind.Stop()

	ind.Mark("Bob")
	time.Sleep(50 * time.Millisecond)
	// A repeat inside the window restarts the expiry; the original
	// expiration must not fire at its old deadline.
	ind.Mark("Bob")
	time.Sleep(50 * time.Millisecond)
	if got := ind.Active(); len(got) != 1 {
		t.Fatalf("expected Bob still typing after reset, got %v", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := ind.Active(); len(got) != 0 {
		t.Fatalf("expected indicator to clear, got %v", got)
	}
}

func TestIndicatorTracksMultipleTypers(t *testing.T) {
	ind := NewIndicator(time.Second, nil)
	defer ind.Stop()

	ind.Mark("Bob")
	ind.Mark("Alice")
	got := ind.Active()
	if len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Fatalf("expected [Alice Bob], got %v", got)
	}
}

func TestIndicatorNotifiesOnChange(t *testing.T) {
	changes := make(chan []string, 4)
	ind := NewIndicator(40*time.Millisecond, func(active []string) {
		changes <- active
	})
	defer ind.Stop()

	ind.Mark("Bob")
	select {
	case active := <-changes:
		if len(active) != 1 {
			t.Fatalf("expected one typer, got %v", active)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for Mark")
	}

	select {
	case active := <-changes:
		if len(active) != 0 {
			t.Fatalf("expected expiry notification with empty set, got %v", active)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for expiry")
	}
}
