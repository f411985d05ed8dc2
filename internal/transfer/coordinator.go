package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/metrics"
)

// EventTransferState carries a StateEvent after every coordinator change.
const EventTransferState events.EventType = "transfer_state"

// ErrTaskNotFound is returned for an unknown task id.
var ErrTaskNotFound = errors.New("transfer task not found")

// ErrTaskNotActive is returned when cancelling a task that has not started.
var ErrTaskNotActive = errors.New("transfer task has not started")

// Snapshot is the aggregate view of a coordinator.
type Snapshot struct {
	Kind            Kind
	Tasks           []TaskInfo
	OverallProgress int
	ActiveCount     int
	CompletedCount  int
	FailedCount     int
	CancelledCount  int
	Visible         bool
}

// StateEvent publishes a Snapshot.
type StateEvent struct {
	events.BaseEvent
	State Snapshot
}

// BatchResult is the outcome of a finished batch.
type BatchResult struct {
	BatchID   string
	Completed int
	Failed    int
	Cancelled int
}

// AllCompleted reports whether every task of the batch completed.
func (r BatchResult) AllCompleted() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

// Options tunes coordinator timing. Zero values take the defaults.
type Options struct {
	// SpeedInterval is the speed sampling period.
	SpeedInterval time.Duration
	// AutoHide is the delay before the panel hides after a fully successful batch.
	AutoHide time.Duration
}

func (o Options) withDefaults() Options {
	if o.SpeedInterval <= 0 {
		o.SpeedInterval = constants.SpeedSampleInterval
	}
	if o.AutoHide <= 0 {
		o.AutoHide = constants.TransferAutoHideDelay
	}
	return o
}

type batch struct {
	id        string
	total     int
	completed int
	failed    int
	cancelled int
	notified  bool
	done      chan struct{}
}

func (b *batch) result() BatchResult {
	return BatchResult{BatchID: b.id, Completed: b.completed, Failed: b.failed, Cancelled: b.cancelled}
}

// Coordinator starts every enqueued task at once, tracks progress and speed,
// and fires exactly one completion notification per batch.
type Coordinator struct {
	kind     Kind
	runner   Runner
	eventBus *events.EventBus
	logger   *logging.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   chan struct{}

	mu        sync.Mutex
	tasks     []*task
	byID      map[string]*task
	batches   map[string]*batch
	visible   bool
	hideGen   uint64
	hideTimer *time.Timer
	closed    bool
}

// NewCoordinator creates a coordinator for kind and starts its speed sampler.
func NewCoordinator(kind Kind, runner Runner, eventBus *events.EventBus, logger *logging.Logger, opts Options) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		kind:     kind,
		runner:   runner,
		eventBus: eventBus,
		logger:   logging.OrNop(logger).Named(string(kind) + "s"),
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		stop:     make(chan struct{}),
		byID:     make(map[string]*task),
		batches:  make(map[string]*batch),
	}
	go c.sampleSpeed()
	return c
}

// Kind returns the transfer kind.
func (c *Coordinator) Kind() Kind {
	return c.kind
}

// Enqueue creates one pending task per payload and starts them all. The
// panel becomes visible.
func (c *Coordinator) Enqueue(payloads []Payload) (string, []TaskInfo) {
	if len(payloads) == 0 {
		return "", nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn().Int("count", len(payloads)).Msg("enqueue after close ignored")
		return "", nil
	}

	b := &batch{id: uuid.NewString(), total: len(payloads), done: make(chan struct{})}
	c.batches[b.id] = b

	created := make([]*task, 0, len(payloads))
	infos := make([]TaskInfo, 0, len(payloads))
	now := time.Now()
	for _, p := range payloads {
		t := &task{info: TaskInfo{
			ID:        uuid.NewString(),
			Name:      p.Name,
			Kind:      c.kind,
			Payload:   p,
			State:     StatePending,
			Total:     -1,
			BatchID:   b.id,
			CreatedAt: now,
		}}
		c.tasks = append(c.tasks, t)
		c.byID[t.info.ID] = t
		created = append(created, t)
		infos = append(infos, t.snapshot())
	}
	c.visible = true
	c.stopHideLocked()
	c.wg.Add(len(created))
	c.mu.Unlock()

	c.logger.Info().Str("batch", b.id).Int("count", len(created)).Msg("batch enqueued")
	for _, info := range infos {
		c.publishTask(events.EventTransferQueued, info)
	}
	c.publishState()

	for _, t := range created {
		go c.run(t)
	}
	return b.id, infos
}

func (c *Coordinator) run(t *task) {
	defer c.wg.Done()

	c.mu.Lock()
	if t.info.State != StatePending {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	t.cancel = cancel
	t.info.State = StateActive
	t.lastSample = time.Now()
	info := t.snapshot()
	c.mu.Unlock()

	metrics.RecordTransferStarted(string(c.kind))
	c.publishTask(events.EventTransferStarted, info)
	c.publishState()

	err := c.runner.Run(ctx, info, func(loaded, total int64) {
		c.progress(t, loaded, total)
	})

	if err == nil {
		c.finish(t, StateCompleted, nil)
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		c.finish(t, StateCancelled, nil)
		return
	}
	c.finish(t, StateError, err)
}

func (c *Coordinator) progress(t *task, loaded, total int64) {
	c.mu.Lock()
	if t.info.State != StateActive {
		c.mu.Unlock()
		return
	}
	before := t.info.Progress
	t.info.Loaded = loaded
	if total > 0 {
		t.info.Total = total
		t.info.Progress = percent(loaded, total)
	}
	changed := t.info.Progress != before
	info := t.snapshot()
	c.mu.Unlock()

	if changed {
		c.publishTask(events.EventTransferProgress, info)
		c.publishState()
	}
}

// finish moves t to a terminal state. A task that is already terminal keeps
// its state.
func (c *Coordinator) finish(t *task, state State, err error) {
	c.mu.Lock()
	if t.info.State.IsTerminal() {
		c.mu.Unlock()
		return
	}
	note := c.terminateLocked(t, state, err)
	info := t.snapshot()
	c.mu.Unlock()

	c.afterTerminal(info, note)
}

// terminateLocked applies a terminal state, updates the batch counters and
// returns the batch notification to send, if this was the last task.
func (c *Coordinator) terminateLocked(t *task, state State, err error) *events.BatchEvent {
	t.info.State = state
	t.info.Speed = ""
	if state == StateCompleted {
		t.info.Progress = 100
	}
	if err != nil {
		t.info.Error = err.Error()
	}
	if t.cancel != nil {
		t.cancel()
	}

	b := c.batches[t.info.BatchID]
	if b == nil {
		return nil
	}
	switch state {
	case StateCompleted:
		b.completed++
	case StateError:
		b.failed++
	case StateCancelled:
		b.cancelled++
	}
	if b.notified || b.completed+b.failed+b.cancelled < b.total {
		return nil
	}
	b.notified = true
	close(b.done)

	eventType := events.EventBatchPartialCompleted
	if b.failed == 0 && b.cancelled == 0 {
		eventType = events.EventBatchAllCompleted
		c.scheduleHideLocked()
	}
	return &events.BatchEvent{
		BaseEvent: events.NewBase(eventType),
		BatchID:   b.id,
		Kind:      string(c.kind),
		Completed: b.completed,
		Failed:    b.failed,
		Cancelled: b.cancelled,
	}
}

func (c *Coordinator) afterTerminal(info TaskInfo, note *events.BatchEvent) {
	outcome := string(info.State)
	metrics.RecordTransferFinished(string(c.kind), outcome, info.Loaded)

	switch info.State {
	case StateCompleted:
		c.logger.Info().Str("task", info.ID).Str("name", info.Name).Msg("transfer completed")
		c.publishTask(events.EventTransferCompleted, info)
	case StateError:
		c.logger.Error().Str("task", info.ID).Str("name", info.Name).Str("error", info.Error).Msg("transfer failed")
		c.publishTask(events.EventTransferFailed, info)
	case StateCancelled:
		c.logger.Info().Str("task", info.ID).Str("name", info.Name).Msg("transfer cancelled")
		c.publishTask(events.EventTransferCancelled, info)
	}

	if note != nil {
		c.logger.Info().Str("batch", note.BatchID).Int("completed", note.Completed).
			Int("failed", note.Failed).Int("cancelled", note.Cancelled).Msg("batch finished")
		if c.eventBus != nil {
			c.eventBus.Publish(note)
		}
	}
	c.publishState()
}

// Cancel aborts an uploading or downloading task. A task that already
// finished is removed from the list instead; a pending one is left alone.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	t, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.info.State.IsTerminal() {
		c.removeLocked(func(x *task) bool { return x == t })
		c.mu.Unlock()
		c.publishState()
		return nil
	}
	if t.info.State != StateActive {
		c.mu.Unlock()
		return ErrTaskNotActive
	}
	note := c.terminateLocked(t, StateCancelled, nil)
	info := t.snapshot()
	c.mu.Unlock()

	c.afterTerminal(info, note)
	return nil
}

// ClearCompleted drops every task that is no longer pending or active.
func (c *Coordinator) ClearCompleted() {
	c.mu.Lock()
	c.removeLocked(func(t *task) bool { return t.info.State.IsTerminal() })
	c.mu.Unlock()
	c.publishState()
}

// Dismiss hides the panel and drops finished tasks.
func (c *Coordinator) Dismiss() {
	c.mu.Lock()
	c.visible = false
	c.stopHideLocked()
	c.removeLocked(func(t *task) bool { return t.info.State.IsTerminal() })
	c.mu.Unlock()
	c.publishState()
}

// Expand shows the panel. A pending auto-hide is abandoned.
func (c *Coordinator) Expand() {
	c.mu.Lock()
	c.visible = true
	c.stopHideLocked()
	c.mu.Unlock()
	c.publishState()
}

// Visible reports whether the panel is shown.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

func (c *Coordinator) removeLocked(drop func(*task) bool) {
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if drop(t) {
			delete(c.byID, t.info.ID)
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(c.tasks); i++ {
		c.tasks[i] = nil
	}
	c.tasks = kept
}

func (c *Coordinator) scheduleHideLocked() {
	c.stopHideLocked()
	gen := c.hideGen
	c.hideTimer = time.AfterFunc(c.opts.AutoHide, func() {
		c.mu.Lock()
		if c.hideGen != gen || c.closed || c.busyLocked() {
			c.mu.Unlock()
			return
		}
		c.visible = false
		c.mu.Unlock()
		c.publishState()
	})
}

func (c *Coordinator) stopHideLocked() {
	c.hideGen++
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
}

func (c *Coordinator) busyLocked() bool {
	for _, t := range c.tasks {
		if !t.info.State.IsTerminal() {
			return true
		}
	}
	return false
}

// Wait blocks until the batch has finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context, batchID string) (BatchResult, error) {
	c.mu.Lock()
	b, ok := c.batches[batchID]
	c.mu.Unlock()
	if !ok {
		return BatchResult{}, ErrTaskNotFound
	}

	select {
	case <-b.done:
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return b.result(), nil
}

// OverallProgress returns the mean progress of all listed tasks.
func (c *Coordinator) OverallProgress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return overallProgress(c.tasks)
}

// overallProgress averages task progress, counting completed tasks as 100
// and failed or cancelled ones as 0. Once every task is terminal and at
// least one completed, the result is exactly 100.
func overallProgress(tasks []*task) int {
	if len(tasks) == 0 {
		return 0
	}
	sum := 0
	allTerminal := true
	anyCompleted := false
	for _, t := range tasks {
		switch t.info.State {
		case StateCompleted:
			sum += 100
			anyCompleted = true
		case StateError, StateCancelled:
		default:
			allTerminal = false
			sum += t.info.Progress
		}
	}
	if allTerminal && anyCompleted {
		return 100
	}
	p := int(float64(sum)/float64(len(tasks)) + 0.5)
	if p > 100 {
		return 100
	}
	return p
}

// Snapshot returns a copy of the coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		Kind:            c.kind,
		Tasks:           make([]TaskInfo, 0, len(c.tasks)),
		OverallProgress: overallProgress(c.tasks),
		Visible:         c.visible,
	}
	for _, t := range c.tasks {
		s.Tasks = append(s.Tasks, t.snapshot())
		switch t.info.State {
		case StateActive:
			s.ActiveCount++
		case StateCompleted:
			s.CompletedCount++
		case StateError:
			s.FailedCount++
		case StateCancelled:
			s.CancelledCount++
		}
	}
	return s
}

// Task returns a copy of one task.
func (c *Coordinator) Task(id string) (TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.byID[id]
	if !ok {
		return TaskInfo{}, ErrTaskNotFound
	}
	return t.snapshot(), nil
}

// sampleSpeed recomputes the speed of active tasks every SpeedInterval.
func (c *Coordinator) sampleSpeed() {
	ticker := time.NewTicker(c.opts.SpeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			active := 0
			for _, t := range c.tasks {
				if t.info.State != StateActive {
					t.info.Speed = ""
					continue
				}
				active++
				if dt := now.Sub(t.lastSample).Seconds(); dt > 0 {
					t.info.Speed = FormatSpeed(float64(t.info.Loaded-t.lastLoaded) / dt)
				}
				t.lastLoaded = t.info.Loaded
				t.lastSample = now
			}
			c.mu.Unlock()
			if active > 0 {
				c.publishState()
			}
		}
	}
}

// Close cancels every task, stops the sampler and timers, and waits for
// running transfers to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var notes []*events.BatchEvent
	var infos []TaskInfo
	for _, t := range c.tasks {
		if t.info.State.IsTerminal() {
			continue
		}
		notes = append(notes, c.terminateLocked(t, StateCancelled, nil))
		infos = append(infos, t.snapshot())
	}
	c.stopHideLocked()
	c.mu.Unlock()

	c.cancel()
	close(c.stop)
	for i, info := range infos {
		c.afterTerminal(info, notes[i])
	}
	c.wg.Wait()
}

func (c *Coordinator) publishTask(t events.EventType, info TaskInfo) {
	if c.eventBus == nil {
		return
	}
	ev := &events.TransferEvent{
		BaseEvent: events.NewBase(t),
		TaskID:    info.ID,
		BatchID:   info.BatchID,
		Kind:      string(info.Kind),
		Name:      info.Name,
		Loaded:    info.Loaded,
		Total:     info.Total,
		Progress:  info.Progress,
	}
	if info.Error != "" {
		ev.Error = errors.New(info.Error)
	}
	c.eventBus.Publish(ev)
}

func (c *Coordinator) publishState() {
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(&StateEvent{BaseEvent: events.NewBase(EventTransferState), State: c.Snapshot()})
}
