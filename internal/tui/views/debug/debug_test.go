package debug

import (
	"strings"
	"testing"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindSession, "negotiated %s", "abc123")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindSession || m.Entries[0].Message != "negotiated abc123" {
		t.Errorf("unexpected entry %+v", m.Entries[0])
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(KindState, "event %d", i)
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "event 50" {
		t.Errorf("oldest entries should be dropped first, got %q", m.Entries[0].Message)
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(KindState, "msg")
	}

	m.Scroll(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}
	m.Scroll(-3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}
	m.Scroll(-10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
	m.Scroll(100)
	if m.Offset != 19 {
		t.Errorf("expected offset capped at 19, got %d", m.Offset)
	}

	m.Add(KindRun, "rerun")
	if m.Offset != 0 {
		t.Error("adding an entry should scroll back to the newest line")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "No events") {
		t.Error("empty view should say there are no events")
	}

	m.Add(KindState, "open")
	m.Add(KindError, "WebSocket connection error")
	v := m.View(100, 20)
	for _, want := range []string{"open", "WebSocket connection error", "2 entries"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
