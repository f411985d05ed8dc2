// Package progress renders transfer and loader progress for the CLI: mpb
// bars per transfer task, and a single progressbar bar for aggregate work.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/transfer"
)

var _ Renderer = (*TransferUI)(nil)

// CLIProgress implements Reporter with a single progress bar.
type CLIProgress struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	showBytes bool
}

// NewCLIProgress creates a reporter drawing on stderr.
func NewCLIProgress(showBytes bool) *CLIProgress {
	return NewCLIProgressTo(os.Stderr, showBytes)
}

// NewCLIProgressTo creates a reporter drawing on w.
func NewCLIProgressTo(w io.Writer, showBytes bool) *CLIProgress {
	return &CLIProgress{out: w, showBytes: showBytes}
}

// Start initializes the progress bar with total and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(p.showBytes),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                   {}
func (p *NoOpProgress) Finish()                                {}
func (p *NoOpProgress) Error(err error)                        {}
func (p *NoOpProgress) SetDescription(desc string)             {}

// NewReporter returns a CLIProgress on a terminal and a no-op otherwise.
func NewReporter(showBytes bool) Reporter {
	if !IsTerminal(os.Stderr) {
		return NewNoOpProgress()
	}
	enableANSIOnWindows(os.Stderr)
	return NewCLIProgress(showBytes)
}

// FollowOverall drives r from the coordinator state events of kind until
// the notification for batchID arrives. The bar runs from 0 to 100.
func FollowOverall(ctx context.Context, sub <-chan events.Event, kind transfer.Kind, batchID string, r Reporter) (*events.BatchEvent, error) {
	r.Start(100, transfer.StateLabel(kind, transfer.StateActive))
	for {
		select {
		case <-ctx.Done():
			r.Error(ctx.Err())
			return nil, ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return nil, ErrStreamClosed
			}
			switch e := ev.(type) {
			case *transfer.StateEvent:
				if e.State.Kind == kind {
					r.Update(int64(e.State.OverallProgress))
				}
			case *events.BatchEvent:
				if e.BatchID != batchID {
					continue
				}
				if e.Failed == 0 && e.Cancelled == 0 {
					r.Update(100)
					r.Finish()
				} else {
					r.Error(fmt.Errorf("%d failed, %d cancelled", e.Failed, e.Cancelled))
				}
				return e, nil
			}
		}
	}
}
