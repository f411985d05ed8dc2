package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/capiweb/capishare/internal/events"
)

// ErrStreamClosed is returned by Follow when the event bus closes first.
var ErrStreamClosed = errors.New("event stream closed")

const barUpdateInterval = 300 * time.Millisecond

// TransferUI renders one mpb bar per transfer task on stderr, or one line
// per state change when stderr is not a terminal.
type TransferUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	total      int

	mu        sync.Mutex
	bars      map[string]*taskBar
	started   int
	completed int
	failed    int
}

type taskBar struct {
	bar        *mpb.Bar
	index      int
	name       string
	kind       string
	total      int64
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	done       bool
}

// NewTransferUI creates a UI for a batch of total tasks. Bars are drawn only
// when stderr is a terminal.
func NewTransferUI(total int) *TransferUI {
	isTerminal := IsTerminal(os.Stderr)
	if !isTerminal {
		return NewTextTransferUI(os.Stdout, total)
	}

	enableANSIOnWindows(os.Stderr)
	p := mpb.New(
		mpb.WithOutput(os.Stderr),
		mpb.WithRefreshRate(barUpdateInterval),
		mpb.WithWidth(100),
	)
	return &TransferUI{
		progress:   p,
		out:        os.Stderr,
		isTerminal: true,
		total:      total,
		bars:       make(map[string]*taskBar),
	}
}

// NewTextTransferUI creates a UI that writes plain lines to w.
func NewTextTransferUI(w io.Writer, total int) *TransferUI {
	return &TransferUI{
		progress: mpb.New(mpb.WithOutput(io.Discard)),
		out:      w,
		total:    total,
		bars:     make(map[string]*taskBar),
	}
}

// Handle renders one event.
func (u *TransferUI) Handle(ev events.Event) {
	switch e := ev.(type) {
	case *events.TransferEvent:
		switch e.Type() {
		case events.EventTransferQueued:
			u.add(e)
		case events.EventTransferStarted:
			u.start(e)
		case events.EventTransferProgress:
			u.update(e)
		case events.EventTransferCompleted, events.EventTransferFailed, events.EventTransferCancelled:
			u.complete(e)
		}
	case *events.BatchEvent:
		u.summary(e)
	}
}

// Follow renders events from sub until the notification for batchID
// arrives, and returns it. Events of other batches are skipped.
func (u *TransferUI) Follow(ctx context.Context, sub <-chan events.Event, batchID string) (*events.BatchEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return nil, ErrStreamClosed
			}
			switch e := ev.(type) {
			case *events.TransferEvent:
				if e.BatchID == batchID {
					u.Handle(e)
				}
			case *events.BatchEvent:
				if e.BatchID == batchID {
					u.Handle(e)
					return e, nil
				}
			}
		}
	}
}

func (u *TransferUI) add(e *events.TransferEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.bars[e.TaskID]; ok {
		return
	}

	u.started++
	tb := &taskBar{
		index:      u.started,
		name:       e.Name,
		kind:       e.Kind,
		total:      e.Total,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
	u.bars[e.TaskID] = tb

	if !u.isTerminal {
		return
	}
	total := e.Total
	if total < 0 {
		total = 0
	}
	label := fmt.Sprintf("[%d/%d] %s %s", tb.index, u.total, arrow(tb.kind), truncatePath(tb.name, 2))
	tb.bar = u.progress.New(total,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			decor.Name("  "),
			decor.Name("ETA ", decor.WCSyncWidth),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
		mpb.BarRemoveOnComplete(),
	)
}

func (u *TransferUI) start(e *events.TransferEvent) {
	u.mu.Lock()
	tb := u.bars[e.TaskID]
	if tb == nil {
		u.mu.Unlock()
		u.add(e)
		u.mu.Lock()
		tb = u.bars[e.TaskID]
	}
	tb.startTime = time.Now()
	tb.lastUpdate = tb.startTime
	u.mu.Unlock()

	if !u.isTerminal {
		fmt.Fprintf(u.out, "%s [%d/%d]: %s\n", verb(tb.kind), tb.index, u.total, tb.name)
	}
}

func (u *TransferUI) update(e *events.TransferEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	tb := u.bars[e.TaskID]
	if tb == nil || tb.bar == nil || tb.done {
		return
	}

	if e.Total > 0 && e.Total != tb.total {
		tb.total = e.Total
		tb.bar.SetTotal(e.Total, false)
	}

	now := time.Now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed < barUpdateInterval {
		return
	}
	tb.bar.EwmaIncrBy(int(e.Loaded-tb.lastBytes), elapsed)
	tb.lastBytes = e.Loaded
	tb.lastUpdate = now
}

func (u *TransferUI) complete(e *events.TransferEvent) {
	u.mu.Lock()
	tb := u.bars[e.TaskID]
	if tb == nil || tb.done {
		u.mu.Unlock()
		return
	}
	tb.done = true

	var msg string
	elapsed := time.Since(tb.startTime)
	switch e.Type() {
	case events.EventTransferCompleted:
		u.completed++
		size := e.Loaded
		if tb.bar != nil {
			if size <= 0 {
				size = tb.total
			}
			tb.bar.SetCurrent(size)
			tb.bar.SetTotal(size, true)
		}
		msg = fmt.Sprintf("✓ %s (%.1f MiB, %s)\n", tb.name, float64(size)/(1024*1024), elapsed.Round(time.Second))
	case events.EventTransferFailed:
		u.failed++
		if tb.bar != nil {
			tb.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", tb.name, e.Error)
	default:
		if tb.bar != nil {
			tb.bar.Abort(true)
		}
		msg = fmt.Sprintf("- %s cancelled\n", tb.name)
	}
	u.mu.Unlock()

	io.WriteString(u.Writer(), msg)
}

func (u *TransferUI) summary(e *events.BatchEvent) {
	var msg string
	if e.Type() == events.EventBatchAllCompleted {
		msg = fmt.Sprintf("All %d %ss completed\n", e.Completed, e.Kind)
	} else {
		msg = fmt.Sprintf("%d of %d %ss completed (%d failed, %d cancelled)\n",
			e.Completed, e.Completed+e.Failed+e.Cancelled, e.Kind, e.Failed, e.Cancelled)
	}
	io.WriteString(u.Writer(), msg)
}

// Counts returns the completed and failed tasks seen so far.
func (u *TransferUI) Counts() (completed, failed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.completed, u.failed
}

// Close aborts unfinished bars and waits for mpb to stop.
func (u *TransferUI) Close() {
	u.mu.Lock()
	for _, tb := range u.bars {
		if !tb.done && tb.bar != nil {
			tb.bar.Abort(false)
		}
		tb.done = true
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// Writer returns mpb's writer in terminal mode so lines print above the bars.
func (u *TransferUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if progress bars are active.
func (u *TransferUI) IsTerminal() bool {
	return u.isTerminal
}

func arrow(kind string) string {
	if kind == events.KindUpload {
		return "↑"
	}
	return "↓"
}

func verb(kind string) string {
	if kind == events.KindUpload {
		return "Uploading"
	}
	return "Downloading"
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}
