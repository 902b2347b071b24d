package tui

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutines leak across the package's tests. Stream
// goroutines must always terminate once their event channel is drained.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
