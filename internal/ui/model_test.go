// ABOUTME: Tests for the control panel model
// ABOUTME: Tests key handling, parameter adjustment and start/stop commands
package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mictroll/mictroll-go/internal/app"
	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/audio/noise"
	"github.com/mictroll/mictroll-go/pkg/params"
	"github.com/mictroll/mictroll-go/pkg/session"
)

type fakeController struct {
	store    *params.Store
	match    string
	state    session.State
	startErr error
	missing  bool
	starts   int
	stops    int
}

func newFakeController() *fakeController {
	return &fakeController{store: params.NewStore(params.Defaults()), state: session.Idle}
}

func (f *fakeController) Start() error {
	f.starts++
	if f.startErr != nil {
		f.state = session.Error
		return f.startErr
	}
	f.state = session.Running
	return nil
}

func (f *fakeController) Stop() {
	f.stops++
	f.state = session.Closed
}

func (f *fakeController) Status() app.Status {
	return app.Status{
		State:         f.state,
		SinkIndex:     -1,
		SinkMatch:     f.match,
		Params:        f.store.Snapshot(),
		DeviceMissing: f.missing,
		LastError:     f.startErr,
	}
}

func (f *fakeController) Params() *params.Store { return f.store }

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestNewModel(t *testing.T) {
	m := NewModel(newFakeController(), nil)

	if m.selected != rowBreakChance {
		t.Errorf("expected first row selected, got %d", m.selected)
	}
	if m.busy {
		t.Error("expected busy to be false initially")
	}
	if m.showDebug {
		t.Error("expected showDebug to be false initially")
	}
	if m.status.Params != params.Defaults() {
		t.Error("expected defaults from controller")
	}
}

func TestSelectionWraps(t *testing.T) {
	m := NewModel(newFakeController(), nil)

	m, _ = press(t, m, "up")
	if m.selected != rowBedGain {
		t.Errorf("expected last row after up, got %d", m.selected)
	}
	m, _ = press(t, m, "down")
	if m.selected != rowBreakChance {
		t.Errorf("expected first row after down, got %d", m.selected)
	}
}

func TestAdjustFractionalRow(t *testing.T) {
	ctrl := newFakeController()
	changes := 0
	m := NewModel(ctrl, func() { changes++ })

	m, _ = press(t, m, "right", "right")
	if got := ctrl.store.Snapshot().BreakChance; got != 0.2 {
		t.Errorf("expected break chance 0.2, got %v", got)
	}
	if m.status.Params.BreakChance != 0.2 {
		t.Errorf("expected panel to show 0.2, got %v", m.status.Params.BreakChance)
	}
	if changes != 2 {
		t.Errorf("expected 2 change callbacks, got %d", changes)
	}

	// clamps at zero
	_, _ = press(t, m, "left", "left", "left", "left", "left")
	if got := ctrl.store.Snapshot().BreakChance; got != 0 {
		t.Errorf("expected break chance 0, got %v", got)
	}
}

func TestAdjustBitCrushAndNoiseType(t *testing.T) {
	ctrl := newFakeController()
	m := NewModel(ctrl, nil)

	// bit crush row
	m, _ = press(t, m, "down", "down", "down", "down", "down", "left")
	if got := ctrl.store.Snapshot().BitCrush; got != 15 {
		t.Errorf("expected bit crush 15, got %d", got)
	}
	m, _ = press(t, m, "right", "right")
	if got := ctrl.store.Snapshot().BitCrush; got != params.MaxBitCrush {
		t.Errorf("expected bit crush to clamp at %d, got %d", params.MaxBitCrush, got)
	}

	// noise type row cycles both ways
	m, _ = press(t, m, "up", "up", "right")
	if got := ctrl.store.Snapshot().NoiseType; got != noise.White {
		t.Errorf("expected white noise, got %s", got)
	}
	_, _ = press(t, m, "left", "left")
	if got := ctrl.store.Snapshot().NoiseType; got != noise.Triangle {
		t.Errorf("expected triangle after wrapping back, got %s", got)
	}
}

func TestResetKey(t *testing.T) {
	ctrl := newFakeController()
	ctrl.store.SetBassBoost(0.9)
	m := NewModel(ctrl, nil)

	m, _ = press(t, m, "r")
	if ctrl.store.Snapshot() != params.Defaults() {
		t.Error("expected store reset to defaults")
	}
	if m.status.Params.BassBoost != 0 {
		t.Errorf("expected panel to show reset values, got %v", m.status.Params.BassBoost)
	}
}

func TestStartCommand(t *testing.T) {
	ctrl := newFakeController()
	m := NewModel(ctrl, nil)

	m, cmd := press(t, m, "s")
	if cmd == nil {
		t.Fatal("expected a start command")
	}
	if !m.busy {
		t.Error("expected busy while starting")
	}
	if ctrl.starts != 0 {
		t.Error("expected start to run inside the command")
	}

	// a second press while busy does nothing
	_, again := press(t, m, "s")
	if again != nil {
		t.Error("expected no command while busy")
	}

	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(Model)

	if ctrl.starts != 1 {
		t.Errorf("expected 1 start, got %d", ctrl.starts)
	}
	if m.busy {
		t.Error("expected busy cleared after start")
	}
	if m.status.State != session.Running {
		t.Errorf("expected running, got %s", m.status.State)
	}

	// running sessions are not started again
	if _, cmd := press(t, m, "s"); cmd != nil {
		t.Error("expected no command while running")
	}
}

func TestStopCommand(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state = session.Running
	m := NewModel(ctrl, nil)

	m, cmd := press(t, m, "x")
	if cmd == nil {
		t.Fatal("expected a stop command")
	}
	next, _ := m.Update(cmd())
	m = next.(Model)

	if ctrl.stops != 1 {
		t.Errorf("expected 1 stop, got %d", ctrl.stops)
	}
	if m.status.State != session.Closed {
		t.Errorf("expected closed, got %s", m.status.State)
	}
}

func TestStartFailureShowsInstallGuide(t *testing.T) {
	ctrl := newFakeController()
	ctrl.startErr = &device.NotFoundError{Match: device.DefaultSinkMatch, InstallURL: device.InstallURL}
	ctrl.missing = true
	m := NewModel(ctrl, nil)
	m.width = 80

	m, cmd := press(t, m, "s")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.message == "" {
		t.Error("expected an error message after failed start")
	}
	view := m.View()
	if !strings.Contains(view, device.InstallURL) {
		t.Errorf("expected install URL in view, got %q", view)
	}
	if !strings.Contains(view, session.Error.String()) {
		t.Errorf("expected error state in view, got %q", view)
	}
}

func TestInstallGuideShowsConfiguredMatch(t *testing.T) {
	ctrl := newFakeController()
	ctrl.match = "Studio Loopback"
	ctrl.startErr = &device.NotFoundError{Match: ctrl.match, InstallURL: device.InstallURL}
	ctrl.missing = true
	m := NewModel(ctrl, nil)

	view := m.View()
	if !strings.Contains(view, `"Studio Loopback"`) {
		t.Errorf("expected configured match in install guide, got %q", view)
	}
	if strings.Contains(view, `"`+device.DefaultSinkMatch+`"`) {
		t.Errorf("expected default match to be absent, got %q", view)
	}
}

func TestQuitAndDebugKeys(t *testing.T) {
	m := NewModel(newFakeController(), nil)

	m, _ = press(t, m, "d")
	if !m.showDebug {
		t.Error("expected debug toggled on")
	}
	if !strings.Contains(m.View(), "Debug") {
		t.Error("expected debug section in view")
	}

	m, cmd := press(t, m, "q")
	if !m.quitting {
		t.Error("expected quitting after q")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value  float64
		filled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{2, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		bar := renderBar(tt.value, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderBar(%v): expected %d filled, got %d", tt.value, tt.filled, got)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderBar(%v): expected width 10, got %d", tt.value, got)
		}
	}
}

func TestStartErrorIsReported(t *testing.T) {
	ctrl := newFakeController()
	ctrl.startErr = errors.New("boom")
	m := NewModel(ctrl, nil)

	next, _ := m.Update(startedMsg{err: ctrl.Start()})
	m = next.(Model)
	if m.message != "boom" {
		t.Errorf("expected message 'boom', got %q", m.message)
	}
}
