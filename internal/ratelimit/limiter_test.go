package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capiweb/capishare/internal/logging"
)

func take(rl *RateLimiter, n int) int {
	got := 0
	for i := 0; i < n; i++ {
		if rl.TryAcquire() {
			got++
		}
	}
	return got
}

func TestBucketAllowsBurstThenRefills(t *testing.T) {
	rl := NewRateLimiter(50, 3)

	if got := take(rl, 5); got != 3 {
		t.Fatalf("acquired %d of 5 from a burst of 3", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := take(rl, 5); got < 2 || got > 3 {
		t.Errorf("acquired %d after ~3 tokens of refill, want 2 or 3", got)
	}

	time.Sleep(500 * time.Millisecond)
	if tokens := rl.GetCurrentTokens(); tokens > 3 {
		t.Errorf("tokens = %.2f, refill must stop at the burst size", tokens)
	}
}

// A 429 drains the bucket and sets a cooldown; later 429s only extend it.
func TestThrottleResponseSequence(t *testing.T) {
	tests := []struct {
		name      string
		cooldowns []time.Duration
		wantMin   time.Duration
		wantMax   time.Duration
	}{
		{"single", []time.Duration{time.Second}, 900 * time.Millisecond, time.Second},
		{"shorter is ignored", []time.Duration{2 * time.Second, 100 * time.Millisecond}, 1900 * time.Millisecond, 2 * time.Second},
		{"longer extends", []time.Duration{100 * time.Millisecond, 2 * time.Second}, 1900 * time.Millisecond, 2 * time.Second},
		{"zero keeps current", []time.Duration{time.Second, 0}, 900 * time.Millisecond, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(100, 10)
			for _, d := range tt.cooldowns {
				rl.Drain()
				rl.SetCooldown(d)
			}
			got := rl.CooldownRemaining()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("CooldownRemaining() = %v, want within [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
			if rl.TryAcquire() {
				t.Error("TryAcquire() succeeded during cooldown")
			}
		})
	}
}

func TestCooldownLapses(t *testing.T) {
	rl := NewRateLimiter(100, 10)
	if d := rl.CooldownRemaining(); d != 0 {
		t.Fatalf("fresh limiter cooldown = %v", d)
	}

	rl.SetCooldown(30 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if d := rl.CooldownRemaining(); d != 0 {
		t.Errorf("cooldown = %v after it lapsed", d)
	}
	if !rl.TryAcquire() {
		t.Error("TryAcquire() failed after cooldown lapsed with tokens left")
	}
}

func TestWaitHonorsCooldownAndContext(t *testing.T) {
	rl := NewRateLimiter(100, 10)
	rl.SetCooldown(80 * time.Millisecond)

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if waited := time.Since(start); waited < 60*time.Millisecond {
		t.Errorf("Wait() returned after %v, before the cooldown ended", waited)
	}

	rl.Drain()
	rl.SetCooldown(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestLongWaitIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger("shell", nil)
	logger.SetOutput(&buf)

	rl := NewRateLimiter(100, 10)
	rl.SetLogger(logger)
	rl.SetCooldown(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = rl.Wait(ctx)

	if !strings.Contains(buf.String(), "rate limited") {
		t.Errorf("log = %q, want a rate limit warning", buf.String())
	}

	rl.SetLogger(nil)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := rl.Wait(ctx2); err == nil {
		t.Error("Wait() succeeded during cooldown")
	}
}

func TestConcurrentWaitersShareBucket(t *testing.T) {
	rl := NewRateLimiter(1, 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			if rl.Wait(ctx) == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 4 {
		t.Errorf("%d waiters acquired within 100ms at 1 token/s and burst 4, want 4", acquired)
	}
}
