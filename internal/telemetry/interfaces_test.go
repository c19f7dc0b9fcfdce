package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
		provider, ok := logger.(interface{ StandardLogger() *log.Logger })
		if !ok || provider.StandardLogger() != base {
			t.Fatalf("expected wrapped logger to expose the standard logger")
		}
	})
}

func TestCounters(t *testing.T) {
	counters := NewCounters()
	counters.Add(SnapshotsSent, 2)
	counters.Store(SnapshotsSent, 5)
	counters.Add(SnapshotsSent, 3)
	counters.Add(MessagesIn, 1)

	snapshot := counters.Snapshot()
	if got := snapshot[SnapshotsSent]; got != 8 {
		t.Fatalf("unexpected counter value: %d", got)
	}
	keys := counters.Keys()
	if len(keys) != 2 || keys[0] != MessagesIn {
		t.Fatalf("unexpected keys: %v", keys)
	}

	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	if len(nilCounters.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot from nil counters")
	}
	NopMetrics().Add("ignored", 1)
}
