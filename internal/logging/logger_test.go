package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/telegram-files/tfsync/internal/events"
)

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cli", nil)
	l.SetOutput(&buf)

	l.Component("store").Info().Msg("page merged")

	out := buf.String()
	if !strings.Contains(out, "page merged") || !strings.Contains(out, "store") {
		t.Errorf("expected component and message in output, got %q", out)
	}
}

func TestWarningsMirroredToEventBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	l := NewLogger("cli", bus)
	l.SetOutput(&bytes.Buffer{})
	l.Info().Msg("not mirrored")
	l.Warn().Msg("push channel closed")

	select {
	case ev := <-ch:
		le := ev.(*events.LogEvent)
		if le.Level != events.WarnLevel || le.Message != "push channel closed" {
			t.Errorf("unexpected log event: %+v", le)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected warning on event bus")
	}

	select {
	case ev := <-ch:
		t.Errorf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestRetryLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cli", nil)
	l.SetOutput(&buf)

	NewRetryLogger(l).Warn("retrying request", "url", "http://x/files", "attempt", 2)

	out := buf.String()
	for _, want := range []string{"retrying request", "http://x/files", "attempt"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error().Msg("discarded")
	l.Component("x").Warnf("discarded %d", 1)
}
