package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestHistory_AppendAndSnapshot(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	_, epoch := h.Snapshot()

	if err := h.Append(epoch, User("hello"), Assistant("hi there")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Add("question", "answer")

	msgs, _ := h.Snapshot()
	msgs[0].Content = "mutated"

	if h.Messages()[0].Content != "question" {
		t.Error("mutating a snapshot must not affect the history")
	}
}

func TestHistory_ResetDiscardsInFlightAppend(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Add("first question", "first answer")

	// A streaming turn snapshots the history, then the user resets before the
	// stream completes.
	_, epoch := h.Snapshot()
	h.Reset()

	err := h.Append(epoch, User("second question"), Assistant("late response"))
	if !errors.Is(err, ErrStaleEpoch) {
		t.Fatalf("Append() after reset = %v, want ErrStaleEpoch", err)
	}

	if got := h.Count(); got != 0 {
		t.Errorf("Count() after reset = %d, want 0 (late append must not land)", got)
	}
}

func TestHistory_ResetAdvancesEpoch(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	before := h.Epoch()
	h.Reset()
	h.Reset()
	if got := h.Epoch(); got != before+2 {
		t.Errorf("Epoch() = %d, want %d", got, before+2)
	}
}

func TestHistory_AppendAfterFreshSnapshot(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Reset()

	// A snapshot taken after the reset is current again.
	_, epoch := h.Snapshot()
	if err := h.Append(epoch, User("q")); err != nil {
		t.Fatalf("Append() with fresh epoch = %v, want nil", err)
	}
}

func TestHistory_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.Add(fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
	}
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Messages()
			_ = h.Count()
		}()
	}
	wg.Wait()

	if got := h.Count(); got != 20 {
		t.Errorf("Count() = %d, want 20", got)
	}
}

func TestValidRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{RoleSystem, true},
		{Role("tool"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		if got := ValidRole(tt.role); got != tt.want {
			t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestMessage_Empty(t *testing.T) {
	t.Parallel()

	if !User("   ").Empty() {
		t.Error("whitespace-only message should be empty")
	}
	if User("hi").Empty() {
		t.Error("non-blank message should not be empty")
	}
}
