package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"cbind/internal/driver"
)

func TestProgressAppliesDriverEvents(t *testing.T) {
	events := make(chan driver.Event)
	m := NewProgressModel("cbind generate", []string{"a.h", "b.h"}, events, nil).(*progressModel)

	m.apply(driver.Event{File: "a.h", Stage: driver.StageParse, Status: driver.StatusWorking})
	if m.items[0].status != "parsing" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	m.apply(driver.Event{File: "a.h", Stage: driver.StageParse, Status: driver.StatusSkipped})
	m.apply(driver.Event{File: "b.h", Stage: driver.StageEmit, Status: driver.StatusWorking})
	if got := m.fraction(); got != 0.75 {
		t.Errorf("fraction = %v, want 0.75", got)
	}
	m.apply(driver.Event{File: "unknown.h", Stage: driver.StageParse, Status: driver.StatusWorking})
	m.apply(driver.Event{Stage: driver.StageWrite, Status: driver.StatusWorking})
	if m.runStatus != "writing" {
		t.Errorf("run status = %q", m.runStatus)
	}

	view := m.View()
	for _, want := range []string{"skipped", "emitting", "a.h", "b.h", "(writing)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressQuitsWhenEventsClose(t *testing.T) {
	events := make(chan driver.Event)
	close(events)
	m := NewProgressModel("x", []string{"a.h"}, events, nil).(*progressModel)
	msg := m.listen()()
	if _, ok := msg.(doneMsg); !ok {
		t.Fatalf("closed channel produced %T", msg)
	}
	_, cmd := m.Update(msg)
	if !m.done || cmd == nil {
		t.Fatalf("model did not finish")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected quit command")
	}
}

func TestProgressCtrlCCancels(t *testing.T) {
	events := make(chan driver.Event)
	calls := 0
	m := NewProgressModel("x", []string{"a.h"}, events, func() { calls++ }).(*progressModel)

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd != nil || calls != 0 {
		t.Fatalf("plain key must be ignored")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Fatalf("cancel called %d times, want 1", calls)
	}
	if cmd == nil {
		t.Fatal("ctrl+c must quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected quit command")
	}
	if !strings.Contains(m.View(), "cancelled") {
		t.Errorf("view does not show cancellation:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("include/openxr/openxr.h", 10); got != "include..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a.h", 10); got != "a.h" {
		t.Errorf("short value changed: %q", got)
	}
}
