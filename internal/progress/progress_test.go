package progress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/transfer"
)

func transferEvent(t events.EventType, task, batch, name string, loaded, total int64, err error) *events.TransferEvent {
	return &events.TransferEvent{
		BaseEvent: events.NewBase(t),
		TaskID:    task,
		BatchID:   batch,
		Kind:      events.KindUpload,
		Name:      name,
		Loaded:    loaded,
		Total:     total,
		Error:     err,
	}
}

func TestTextTransferUI(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTextTransferUI(&buf, 2)

	ui.Handle(transferEvent(events.EventTransferQueued, "t1", "b", "a.txt", 0, -1, nil))
	ui.Handle(transferEvent(events.EventTransferQueued, "t2", "b", "b.txt", 0, -1, nil))
	ui.Handle(transferEvent(events.EventTransferStarted, "t1", "b", "a.txt", 0, -1, nil))
	ui.Handle(transferEvent(events.EventTransferProgress, "t1", "b", "a.txt", 5, 10, nil))
	ui.Handle(transferEvent(events.EventTransferCompleted, "t1", "b", "a.txt", 10, 10, nil))
	ui.Handle(transferEvent(events.EventTransferFailed, "t2", "b", "b.txt", 0, -1, errors.New("rejected")))
	ui.Handle(transferEvent(events.EventTransferFailed, "t2", "b", "b.txt", 0, -1, errors.New("again")))
	ui.Close()

	out := buf.String()
	for _, want := range []string{"Uploading [1/2]: a.txt", "✓ a.txt", "✗ b.txt: rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "again") {
		t.Error("a finished task must be reported once")
	}
	if c, f := ui.Counts(); c != 1 || f != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", c, f)
	}
	if ui.IsTerminal() {
		t.Error("text UI must not report a terminal")
	}
}

func TestFollowStopsAtOwnBatch(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTextTransferUI(&buf, 1)
	sub := make(chan events.Event, 8)

	sub <- transferEvent(events.EventTransferQueued, "x", "other", "skip.txt", 0, -1, nil)
	sub <- &events.BatchEvent{BaseEvent: events.NewBase(events.EventBatchAllCompleted), BatchID: "other", Kind: "upload", Completed: 1}
	sub <- transferEvent(events.EventTransferQueued, "t1", "b", "a.txt", 0, -1, nil)
	sub <- transferEvent(events.EventTransferCompleted, "t1", "b", "a.txt", 3, 3, nil)
	sub <- &events.BatchEvent{BaseEvent: events.NewBase(events.EventBatchAllCompleted), BatchID: "b", Kind: "upload", Completed: 1}

	ev, err := ui.Follow(context.Background(), sub, "b")
	if err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if ev.BatchID != "b" {
		t.Errorf("batch = %s", ev.BatchID)
	}
	if strings.Contains(buf.String(), "skip.txt") {
		t.Error("events of other batches must be skipped")
	}
	if !strings.Contains(buf.String(), "All 1 uploads completed") {
		t.Errorf("missing summary:\n%s", buf.String())
	}
}

func TestFollowContextAndClosedStream(t *testing.T) {
	ui := NewTextTransferUI(&bytes.Buffer{}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ui.Follow(ctx, make(chan events.Event), "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}

	closed := make(chan events.Event)
	close(closed)
	if _, err := ui.Follow(context.Background(), closed, "b"); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("error = %v, want ErrStreamClosed", err)
	}
}

type recordingReporter struct {
	started  int64
	updates  []int64
	finished bool
	err      error
}

func (r *recordingReporter) Start(total int64, description string) { r.started = total }
func (r *recordingReporter) Update(current int64)                   { r.updates = append(r.updates, current) }
func (r *recordingReporter) Finish()                                { r.finished = true }
func (r *recordingReporter) Error(err error)                        { r.err = err }
func (r *recordingReporter) SetDescription(desc string)             {}

func TestFollowOverall(t *testing.T) {
	sub := make(chan events.Event, 8)
	state := func(kind transfer.Kind, p int) *transfer.StateEvent {
		return &transfer.StateEvent{
			BaseEvent: events.NewBase(transfer.EventTransferState),
			State:     transfer.Snapshot{Kind: kind, OverallProgress: p},
		}
	}
	sub <- state(transfer.KindDownload, 40)
	sub <- state(transfer.KindUpload, 90)
	sub <- state(transfer.KindDownload, 80)
	sub <- &events.BatchEvent{BaseEvent: events.NewBase(events.EventBatchPartialCompleted), BatchID: "b", Completed: 1, Failed: 1}

	r := &recordingReporter{}
	ev, err := FollowOverall(context.Background(), sub, transfer.KindDownload, "b", r)
	if err != nil || ev == nil {
		t.Fatalf("FollowOverall() = %v, %v", ev, err)
	}
	if r.started != 100 {
		t.Errorf("started with %d, want 100", r.started)
	}
	if len(r.updates) != 2 || r.updates[0] != 40 || r.updates[1] != 80 {
		t.Errorf("updates = %v, want [40 80]", r.updates)
	}
	if r.finished || r.err == nil {
		t.Error("a partial batch must report an error, not finish")
	}
}

func TestCLIProgressWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressTo(&buf, false)
	p.Start(4, "thumbnails")
	p.Update(4)
	p.Finish()
	if !strings.Contains(buf.String(), "thumbnails") {
		t.Errorf("bar output missing description: %q", buf.String())
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"file.txt", 2, "file.txt"},
		{"dir/file.txt", 2, "file.txt"},
		{"/a/b/c/d/file.txt", 3, "…/c/d/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.path, tt.n); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}
