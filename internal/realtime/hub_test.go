package realtime

import (
	"testing"
)

func TestNotify_NoSessions(t *testing.T) {
	h := NewHub()
	// no sessions: broadcasting must not fail or block
	h.Notify("acme", 3)
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// after close, notifications are dropped
	h.Notify("acme", 4)
}
