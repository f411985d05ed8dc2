// Package assets loads thumbnails under a process-wide concurrency cap with
// a minimum spacing between dispatches and flat retry on failure.
package assets

import (
	"sync"
	"time"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/metrics"
)

// Options tunes the loader. Zero values take the defaults.
type Options struct {
	MaxConcurrent int
	MinSpacing    time.Duration
	RetryDelay    time.Duration
	// FetchTimeout bounds a single load. A load that runs out of time fails
	// and is retried like any other failure.
	FetchTimeout time.Duration
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent: constants.ThumbnailMaxConcurrent,
		MinSpacing:    constants.ThumbnailMinSpacing,
		RetryDelay:    constants.ThumbnailRetryDelay,
		FetchTimeout:  constants.ThumbnailFetchTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.MinSpacing <= 0 {
		o.MinSpacing = d.MinSpacing
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	return o
}

// dispatchHistory is how many recent start times DispatchTimes keeps.
const dispatchHistory = 64

// Job is one load. It must call done exactly once when it finishes; extra
// calls are ignored.
type Job func(done func())

// Stats is a point-in-time view of the loader.
type Stats struct {
	Active     int
	Queued     int
	Dispatched int
}

// Loader admits jobs FIFO, runs at most MaxConcurrent at a time and starts
// them at least MinSpacing apart. Create one per process and share it.
type Loader struct {
	opts   Options
	cache  *Cache
	logger *logging.Logger

	mu            sync.Mutex
	active        int
	queue         []Job
	nextSlot      time.Time // earliest start for the next reservation
	lastStart     time.Time
	dispatched    int
	dispatchTimes []time.Time
}

// NewLoader creates a loader with an empty cache.
func NewLoader(opts Options, logger *logging.Logger) *Loader {
	return &Loader{
		opts:   opts.withDefaults(),
		cache:  NewCache(),
		logger: logging.OrNop(logger).Named("assets"),
	}
}

// Options returns the effective options.
func (l *Loader) Options() Options {
	return l.opts
}

// Cache returns the loader's byte cache.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Enqueue admits job. With a free slot it is reserved at once and the job is
// scheduled at the next spacing boundary; otherwise it waits in the queue.
func (l *Loader) Enqueue(job Job) {
	l.mu.Lock()
	if l.active < l.opts.MaxConcurrent {
		l.active++
		delay := l.reserveLocked()
		l.updateGaugesLocked()
		l.mu.Unlock()
		l.schedule(job, delay)
		return
	}
	l.queue = append(l.queue, job)
	l.updateGaugesLocked()
	l.mu.Unlock()
}

// reserveLocked books the next dispatch time, max(now, previous + spacing),
// and returns how long to wait for it.
func (l *Loader) reserveLocked() time.Duration {
	now := time.Now()
	at := l.nextSlot
	if at.Before(now) {
		at = now
	}
	l.nextSlot = at.Add(l.opts.MinSpacing)
	return at.Sub(now)
}

func (l *Loader) schedule(job Job, delay time.Duration) {
	if delay <= 0 {
		go l.dispatch(job)
		return
	}
	time.AfterFunc(delay, func() { l.dispatch(job) })
}

// dispatch starts job. Timers can fire late, so the gap to the previous
// start is checked again against the actual clock.
func (l *Loader) dispatch(job Job) {
	l.mu.Lock()
	now := time.Now()
	if l.dispatched > 0 {
		if wait := l.lastStart.Add(l.opts.MinSpacing).Sub(now); wait > 0 {
			l.mu.Unlock()
			time.AfterFunc(wait, func() { l.dispatch(job) })
			return
		}
	}
	l.lastStart = now
	l.dispatched++
	if len(l.dispatchTimes) == dispatchHistory {
		l.dispatchTimes = l.dispatchTimes[1:]
	}
	l.dispatchTimes = append(l.dispatchTimes, now)
	l.mu.Unlock()

	var once sync.Once
	job(func() { once.Do(l.complete) })
}

// complete frees a slot and admits the head of the queue.
func (l *Loader) complete() {
	l.mu.Lock()
	l.active--
	if len(l.queue) == 0 || l.active >= l.opts.MaxConcurrent {
		l.updateGaugesLocked()
		l.mu.Unlock()
		return
	}
	job := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.active++
	delay := l.reserveLocked()
	l.updateGaugesLocked()
	l.mu.Unlock()

	l.schedule(job, delay)
}

func (l *Loader) updateGaugesLocked() {
	metrics.SetAssetLoaderState(l.active, len(l.queue))
}

// Stats returns the current counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Active: l.active, Queued: len(l.queue), Dispatched: l.dispatched}
}

// DispatchTimes returns the start times of the most recent dispatches, oldest
// first.
func (l *Loader) DispatchTimes() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.dispatchTimes...)
}
