package assets

import (
	"context"
	"sync"
	"time"

	"github.com/capiweb/capishare/internal/metrics"
)

// Fetcher downloads one asset. *api.Client implements it through FetchAsset.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// Visibility reports when a consumer's target becomes visible. Observe calls
// onVisible at least once the target is shown and returns a function that
// stops observing.
type Visibility interface {
	Observe(onVisible func()) (stop func())
}

// Consumer loads one asset through a shared Loader and retries forever on
// failure. Close it when the asset is no longer needed.
type Consumer struct {
	loader    *Loader
	url       string
	fetcher   Fetcher
	onLoading func(bool)
	onLoaded  func([]byte)

	mu          sync.Mutex
	closed      bool
	seen        bool
	stopObserve func()
	retryTimer  *time.Timer
}

// NewConsumer creates a consumer for url. Callbacks may be nil.
func NewConsumer(loader *Loader, url string, fetcher Fetcher, onLoading func(bool), onLoaded func([]byte)) *Consumer {
	return &Consumer{
		loader:    loader,
		url:       url,
		fetcher:   fetcher,
		onLoading: onLoading,
		onLoaded:  onLoaded,
	}
}

// URL returns the asset URL.
func (c *Consumer) URL() string {
	return c.url
}

// Start reports loading and enqueues the asset, on first visibility when
// vis is non-nil or immediately otherwise. Cached assets complete without
// touching the loader.
func (c *Consumer) Start(vis Visibility) {
	c.emitLoading(true)

	if data, ok := c.loader.cache.Get(c.url); ok {
		c.finish(data)
		return
	}
	if vis == nil {
		c.loader.Enqueue(c.job)
		return
	}

	stop := vis.Observe(c.visible)
	c.mu.Lock()
	if c.seen || c.closed {
		c.mu.Unlock()
		stop()
		return
	}
	c.stopObserve = stop
	c.mu.Unlock()
}

func (c *Consumer) visible() {
	c.mu.Lock()
	if c.seen || c.closed {
		c.mu.Unlock()
		return
	}
	c.seen = true
	stop := c.stopObserve
	c.stopObserve = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.loader.Enqueue(c.job)
}

func (c *Consumer) job(done func()) {
	defer done()
	if c.isClosed() {
		return
	}

	// In-flight loads are not cancellable, only bounded.
	ctx, cancel := context.WithTimeout(context.Background(), c.loader.opts.FetchTimeout)
	data, err := c.fetcher.Fetch(ctx, c.url)
	cancel()
	if err != nil {
		metrics.RecordAssetLoad(false)
		c.loader.logger.Debug().Str("url", c.url).Err(err).Dur("retry_in", c.loader.opts.RetryDelay).Msg("asset load failed")
		c.scheduleRetry()
		return
	}
	metrics.RecordAssetLoad(true)
	c.loader.cache.Put(c.url, data)
	c.finish(data)
}

func (c *Consumer) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.retryTimer = time.AfterFunc(c.loader.opts.RetryDelay, func() {
		if !c.isClosed() {
			c.loader.Enqueue(c.job)
		}
	})
}

func (c *Consumer) finish(data []byte) {
	if c.isClosed() {
		return
	}
	c.emitLoading(false)
	if c.onLoaded != nil {
		c.onLoaded(data)
	}
}

func (c *Consumer) emitLoading(loading bool) {
	if c.onLoading != nil {
		c.onLoading(loading)
	}
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops observing visibility and cancels a pending retry. A queued
// job that dispatches later completes without fetching.
func (c *Consumer) Close() {
	c.mu.Lock()
	c.closed = true
	stop := c.stopObserve
	c.stopObserve = nil
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}
