package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// StartPanel runs the rules panel until the user quits.
func StartPanel(ctx context.Context, sender Sender, opener *DeferredOpener, launch Launcher) error {
	model := NewModel(ctx, sender, opener, launch)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "error running panel")
	}
	return nil
}
