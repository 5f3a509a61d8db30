// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the control panel
package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the control panel until the user quits or ctx is cancelled
func Run(ctx context.Context, ctrl Controller, onChange func()) error {
	p := tea.NewProgram(NewModel(ctrl, onChange), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("control panel failed: %w", err)
	}
	return nil
}
