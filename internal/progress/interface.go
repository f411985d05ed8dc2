package progress

import (
	"io"

	"github.com/capiweb/capishare/internal/events"
)

// Renderer draws transfer events for a terminal or a plain log.
type Renderer interface {
	// Handle renders one transfer or batch event. Other events are ignored.
	Handle(ev events.Event)

	// Close aborts bars that never finished and waits for the final redraw.
	Close()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if progress bars are active.
	IsTerminal() bool
}

// Reporter is a single progress bar over a known total.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}
