package assets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Six images through a loader capped at two: never more than two run, starts
// are at least 200ms apart and admission is first come first served.
func TestLoaderCapAndSpacing(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 2, MinSpacing: 200 * time.Millisecond, RetryDelay: time.Minute}, nil)

	var running, peak atomic.Int32
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		l.Enqueue(func(done func()) {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
			done()
		})
		if s := l.Stats(); s.Active > 2 {
			t.Fatalf("active = %d after enqueue %d", s.Active, i)
		}
	}
	if s := l.Stats(); s.Active != 2 || s.Queued != 4 {
		t.Errorf("stats after enqueue = %+v, want 2 active 4 queued", s)
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	times := l.DispatchTimes()
	if len(times) != 6 {
		t.Fatalf("dispatched %d jobs, want 6", len(times))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 200*time.Millisecond {
			t.Errorf("gap %d = %v, want >= 200ms", i, gap)
		}
	}
	for i, v := range order {
		if v != i {
			t.Errorf("dispatch order = %v, want FIFO", order)
			break
		}
	}
	waitFor(t, "slots to drain", func() bool { return l.Stats().Active == 0 })
	if s := l.Stats(); s.Dispatched != 6 || s.Queued != 0 {
		t.Errorf("final stats = %+v", s)
	}
}

func TestLoaderDoneIsIdempotent(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 1, MinSpacing: time.Millisecond}, nil)
	finished := make(chan struct{})
	l.Enqueue(func(done func()) {
		done()
		done()
		close(finished)
	})
	<-finished
	waitFor(t, "release", func() bool { return l.Stats().Active == 0 })
	if s := l.Stats(); s.Active != 0 {
		t.Errorf("active = %d, want 0", s.Active)
	}
}

type countingFetcher struct {
	calls atomic.Int32
	fails int32
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	n := f.calls.Add(1)
	if n <= f.fails {
		return nil, errors.New("unavailable")
	}
	return []byte("img:" + url), nil
}

type recorder struct {
	mu      sync.Mutex
	loading []bool
	data    []byte
}

func (r *recorder) onLoading(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, v)
}

func (r *recorder) onLoaded(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = b
}

func (r *recorder) loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data != nil
}

func (r *recorder) states() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.loading...)
}

func TestConsumerLoadsAndCaches(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 2, MinSpacing: time.Millisecond}, nil)
	f := &countingFetcher{}
	url := ThumbnailURL(7)

	r := &recorder{}
	c := NewConsumer(l, url, f, r.onLoading, r.onLoaded)
	c.Start(nil)
	waitFor(t, "load", r.loaded)

	if got := r.states(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("loading states = %v, want [true false]", got)
	}
	if string(r.data) != "img:/transfers/7/download/" {
		t.Errorf("data = %q", r.data)
	}

	again := &recorder{}
	NewConsumer(l, url, f, again.onLoading, again.onLoaded).Start(nil)
	if !again.loaded() {
		t.Error("cached asset should load synchronously")
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	if l.Cache().Len() != 1 {
		t.Errorf("cache len = %d", l.Cache().Len())
	}
}

func TestConsumerRetriesUntilSuccess(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 1, MinSpacing: time.Millisecond, RetryDelay: 10 * time.Millisecond}, nil)
	f := &countingFetcher{fails: 2}
	r := &recorder{}

	c := NewConsumer(l, "/x", f, r.onLoading, r.onLoaded)
	c.Start(nil)
	defer c.Close()

	waitFor(t, "load after retries", r.loaded)
	if f.calls.Load() != 3 {
		t.Errorf("fetch calls = %d, want 3", f.calls.Load())
	}
	if got := r.states(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("loading states = %v, want [true false]", got)
	}
}

func TestConsumerCloseStopsRetry(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 1, MinSpacing: time.Millisecond, RetryDelay: 20 * time.Millisecond}, nil)
	f := &countingFetcher{fails: 100}
	c := NewConsumer(l, "/x", f, nil, nil)
	c.Start(nil)

	waitFor(t, "first attempt", func() bool { return f.calls.Load() == 1 })
	c.Close()
	time.Sleep(80 * time.Millisecond)
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls after Close = %d, want 1", n)
	}
}

func TestConsumerClosedWhileQueued(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 1, MinSpacing: time.Millisecond}, nil)
	release := make(chan struct{})
	l.Enqueue(func(done func()) {
		<-release
		done()
	})

	f := &countingFetcher{}
	c := NewConsumer(l, "/queued", f, nil, nil)
	c.Start(nil)
	if s := l.Stats(); s.Queued != 1 {
		t.Fatalf("queued = %d, want 1", s.Queued)
	}
	c.Close()
	close(release)

	waitFor(t, "queue to drain", func() bool {
		s := l.Stats()
		return s.Active == 0 && s.Queued == 0 && s.Dispatched == 2
	})
	if f.calls.Load() != 0 {
		t.Errorf("closed consumer fetched %d times", f.calls.Load())
	}
}

type fakeVisibility struct {
	mu       sync.Mutex
	callback func()
	stopped  bool
}

func (v *fakeVisibility) Observe(onVisible func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callback = onVisible
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.stopped = true
	}
}

func (v *fakeVisibility) show() {
	v.mu.Lock()
	cb := v.callback
	v.mu.Unlock()
	cb()
}

func TestConsumerWaitsForVisibility(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 1, MinSpacing: time.Millisecond}, nil)
	f := &countingFetcher{}
	r := &recorder{}
	vis := &fakeVisibility{}

	c := NewConsumer(l, "/lazy", f, r.onLoading, r.onLoaded)
	c.Start(vis)
	defer c.Close()

	time.Sleep(20 * time.Millisecond)
	if f.calls.Load() != 0 {
		t.Fatal("fetched before becoming visible")
	}
	if got := r.states(); len(got) != 1 || !got[0] {
		t.Errorf("loading states = %v, want [true]", got)
	}

	vis.show()
	vis.show()
	waitFor(t, "visible load", r.loaded)
	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	vis.mu.Lock()
	stopped := vis.stopped
	vis.mu.Unlock()
	if !stopped {
		t.Error("observation not stopped after first visibility")
	}
}

func TestDefaultOptions(t *testing.T) {
	o := NewLoader(Options{}, nil).Options()
	if o.MaxConcurrent != 2 || o.MinSpacing != 200*time.Millisecond || o.RetryDelay != 60*time.Second || o.FetchTimeout != 30*time.Second {
		t.Errorf("defaults = %+v", o)
	}
}

// A server that accepts the request and never answers must not hold a slot:
// the fetch times out, counts as a failure and the retry succeeds.
func TestConsumerRetriesHungFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte("png"))
	}))
	defer srv.Close()
	defer close(release)

	fetch := FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})

	l := NewLoader(Options{
		MaxConcurrent: 1,
		MinSpacing:    time.Millisecond,
		RetryDelay:    20 * time.Millisecond,
		FetchTimeout:  50 * time.Millisecond,
	}, nil)
	r := &recorder{}
	c := NewConsumer(l, srv.URL+ThumbnailURL(3), fetch, r.onLoading, r.onLoaded)
	defer c.Close()
	c.Start(nil)

	waitFor(t, "load after a hung fetch", r.loaded)
	if string(r.data) != "png" {
		t.Errorf("data = %q, want png", r.data)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
	waitFor(t, "slot release", func() bool { return l.Stats().Active == 0 })
}

func TestDispatchHistoryIsBounded(t *testing.T) {
	l := NewLoader(Options{MaxConcurrent: 4, MinSpacing: time.Millisecond}, nil)
	total := dispatchHistory + 10

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		l.Enqueue(func(done func()) {
			defer wg.Done()
			done()
		})
	}
	wg.Wait()

	if s := l.Stats(); s.Dispatched != total {
		t.Errorf("dispatched = %d, want %d", s.Dispatched, total)
	}
	times := l.DispatchTimes()
	if len(times) != dispatchHistory {
		t.Fatalf("kept %d dispatch times, want %d", len(times), dispatchHistory)
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			t.Fatalf("dispatch times out of order at %d", i)
		}
	}
}
