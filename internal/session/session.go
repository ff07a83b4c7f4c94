// Package session ties one PTY controller, its grid and ANSI processor, its
// shell marker parser, and its durable store into the single object the
// protocol mediator drives once per tick.
package session

import (
	"github.com/fnc12/termihui-sub000/internal/ptyctl"
	"github.com/fnc12/termihui-sub000/internal/shellmarker"
	"github.com/fnc12/termihui-sub000/internal/storage"
	"github.com/fnc12/termihui-sub000/internal/term"
)

const (
	defaultRows = 24
	defaultCols = 80
)

// Session is one live terminal: a PTY process, the grid it renders into,
// and the marker parser that segments its block-mode output into commands.
type Session struct {
	ID uint64

	Controller *ptyctl.Controller
	Grid       *term.Grid
	Processor  *term.Processor
	Marker     *shellmarker.Marker
	Store      *storage.SessionStore

	Interactive               bool
	JustExitedInteractiveMode bool
}

// New starts a PTY-backed session at the given grid dimensions, backed by
// store for command history.
func New(id uint64, store *storage.SessionStore, rows, cols int) (*Session, error) {
	if rows <= 0 {
		rows = defaultRows
	}
	if cols <= 0 {
		cols = defaultCols
	}

	controller, err := ptyctl.Start()
	if err != nil {
		return nil, err
	}
	if err := controller.SetWindowSize(cols, rows); err != nil {
		// Non-fatal: the error is discarded and the PTY keeps its previous size.
		_ = err
	}

	grid := term.NewGrid(rows, cols)

	return &Session{
		ID:         id,
		Controller: controller,
		Grid:       grid,
		Processor:  term.NewProcessor(grid),
		Marker:     shellmarker.New(store),
		Store:      store,
	}, nil
}

// LastKnownCwd returns the marker's tracked cwd, falling back to the PTY's
// own /proc (or platform equivalent) lookup when no marker has reported one yet.
func (s *Session) LastKnownCwd() string {
	if cwd := s.Marker.LastKnownCwd(); cwd != "" {
		return cwd
	}
	return s.Controller.GetCurrentWorkingDirectory()
}

// Close terminates the underlying PTY and releases the session's store.
func (s *Session) Close() error {
	s.Controller.Terminate()
	return s.Store.Close()
}
