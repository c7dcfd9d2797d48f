package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/trackd/internal/feed"
	"github.com/muurk/trackd/internal/ui"
)

// ErrNotTerminal is returned by Run when stdout is not a terminal.
var ErrNotTerminal = errors.New("monitor needs an interactive terminal (use --plain to stream events)")

// Run connects to the feed at url and shows the full screen monitor until
// the user quits or ctx is cancelled.
func Run(ctx context.Context, url string) error {
	if !ui.IsTerminal() {
		return ErrNotTerminal
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := feed.Dial(ctx, url)
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewModel(url, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}

// Stream writes one line per event to w until the channel closes or ctx is
// cancelled. It is the non-interactive form of the monitor.
func Stream(ctx context.Context, events <-chan feed.Event, w io.Writer) error {
	b := newBoard()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintln(w, b.apply(e)); err != nil {
				return err
			}
		}
	}
}
