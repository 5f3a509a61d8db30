// ABOUTME: Rendering for the control panel
// ABOUTME: Draws session state, parameter rows, level meters and guidance with lipgloss
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/session"
)

const barWidth = 20

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// View renders the panel
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("MicTroll"))
	b.WriteString("\n\n")

	b.WriteString(m.renderSession())
	b.WriteString("\n")
	b.WriteString(m.renderParams())
	b.WriteString("\n")
	b.WriteString(m.renderMeters())

	if m.status.DeviceMissing {
		b.WriteString("\n")
		b.WriteString(renderInstallGuide(m.status.SinkMatch))
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Select  ←/→:Adjust  s:Start  x:Stop  r:Reset  d:Debug  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderSession() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Session: "))
	b.WriteString(stateStyle(m.status.State).Render(m.status.State.String()))
	if m.status.SinkIndex >= 0 {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  (sink #%d)", m.status.SinkIndex)))
	}
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(valueStyle.Render(m.message))
		b.WriteString("\n")
	}
	if m.status.LastError != nil && m.status.LastError.Error() != m.message {
		b.WriteString(warnStyle.Render("Error: "))
		b.WriteString(valueStyle.Render(m.status.LastError.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

func stateStyle(state session.State) lipgloss.Style {
	switch state {
	case session.Running:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	case session.Error:
		return warnStyle
	case session.Opening, session.Closing:
		return selectedStyle
	}
	return valueStyle
}

func (m Model) renderParams() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Effects"))
	b.WriteString("\n")

	for r := row(0); r < rowCount; r++ {
		cursor := "  "
		label := valueStyle.Render(fmt.Sprintf("%-15s", r.label()))
		if r == m.selected {
			cursor = selectedStyle.Render("› ")
			label = selectedStyle.Render(fmt.Sprintf("%-15s", r.label()))
		}
		b.WriteString(cursor)
		b.WriteString(label)
		b.WriteString(fmt.Sprintf(" [%s] ", renderBar(r.fraction(m.status.Params), barWidth)))
		b.WriteString(valueStyle.Render(r.value(m.status.Params)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderMeters() string {
	st := m.status.Stats
	var b strings.Builder

	b.WriteString(headerStyle.Render("Levels"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  In  peak [%s] %s\n", renderBar(st.InputPeak, barWidth), dbfs(st.InputPeak)))
	b.WriteString(fmt.Sprintf("  Out rms  [%s] %s\n", renderBar(st.OutputRMS, barWidth), dbfs(st.OutputRMS)))
	b.WriteString(valueStyle.Render(fmt.Sprintf("  Frames: %d  Muted: %d  Distorted: %d  Faults: %d/%d",
		st.Frames, st.Muted, st.Distorted, st.ReadFaults, st.WriteFaults)))
	b.WriteString("\n")

	return b.String()
}

func renderInstallGuide(match string) string {
	if match == "" {
		match = device.DefaultSinkMatch
	}
	var b strings.Builder
	b.WriteString(warnStyle.Render("Virtual cable not found"))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  No output device matches %q.", match)))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render("  Install VB-Audio Virtual Cable from " + device.InstallURL))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render("  then restart your audio apps and press s."))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Debug"))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  Session ID: %s", orDash(m.status.SessionID))))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  Params: %+v", m.status.Params)))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("  Window: %dx%d", m.width, m.height)))
	b.WriteString("\n")
	return b.String()
}

// renderBar draws value in [0,1] as a bar of width cells
func renderBar(value float64, width int) string {
	if math.IsNaN(value) || value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(math.Round(value * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func dbfs(v float64) string {
	if v <= 0 {
		return "  -inf dB"
	}
	return fmt.Sprintf("%6.1f dB", 20*math.Log10(v))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
