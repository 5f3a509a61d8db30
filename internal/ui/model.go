// ABOUTME: Bubbletea model for the control panel
// ABOUTME: Defines panel state, key handling and session start/stop commands
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mictroll/mictroll-go/internal/app"
	"github.com/mictroll/mictroll-go/pkg/params"
)

// refreshInterval paces status polling
const refreshInterval = 100 * time.Millisecond

// Controller is the part of the application controller the panel drives
type Controller interface {
	Start() error
	Stop()
	Status() app.Status
	Params() *params.Store
}

// Model represents the control panel state
type Model struct {
	ctrl     Controller
	onChange func()

	selected row
	status   app.Status

	// busy is set while a start or stop command is in flight
	busy    bool
	message string

	showDebug bool
	quitting  bool

	width  int
	height int
}

type tickMsg time.Time

// startedMsg reports the result of a start command
type startedMsg struct{ err error }

// stoppedMsg reports that the session has closed
type stoppedMsg struct{}

// NewModel creates a panel for ctrl; onChange runs after every parameter edit
func NewModel(ctrl Controller, onChange func()) Model {
	return Model{
		ctrl:     ctrl,
		onChange: onChange,
		status:   ctrl.Status(),
	}
}

// Init starts status polling
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.status = m.ctrl.Status()
		return m, tickEvery()
	case startedMsg:
		m.busy = false
		m.status = m.ctrl.Status()
		m.message = ""
		if msg.err != nil {
			m.message = msg.err.Error()
		}
	case stoppedMsg:
		m.busy = false
		m.status = m.ctrl.Status()
		m.message = "Stopped"
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.selected = (m.selected + rowCount - 1) % rowCount
	case "down", "j":
		m.selected = (m.selected + 1) % rowCount
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "r":
		m.status.Params = m.ctrl.Params().Reset()
		m.changed()
	case "d":
		m.showDebug = !m.showDebug
	case "s":
		if m.busy || m.status.State.Active() {
			return m, nil
		}
		m.busy = true
		m.message = "Starting..."
		return m, startCmd(m.ctrl)
	case "x":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.message = "Stopping..."
		return m, stopCmd(m.ctrl)
	}

	return m, nil
}

func (m *Model) adjust(dir int) {
	r := m.selected
	m.status.Params = m.ctrl.Params().Update(func(p *params.Parameters) {
		r.adjust(p, dir)
	})
	m.changed()
}

func (m *Model) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

func startCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: ctrl.Start()}
	}
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.Stop()
		return stoppedMsg{}
	}
}
