package constants

import (
	"time"
)

// Navigator timing
const (
	// MinLoadingDuration - minimum time a folder view stays in the loading state (500ms)
	// Fetches that return sooner are held back so the loading indicator never flashes.
	MinLoadingDuration = 500 * time.Millisecond

	// NavigateDebounce - window in which a repeated navigation to the same folder is ignored (700ms)
	NavigateDebounce = 700 * time.Millisecond

	// MarkViewedTimeout - upper bound for the background mark-viewed call on leaving a folder
	MarkViewedTimeout = 10 * time.Second

	// MaxAncestorDepth - upper bound for ancestor walks (breadcrumbs, cycle checks)
	MaxAncestorDepth = 256
)

// Touch gestures
const (
	// TouchPressDelay - dead zone before a touch is treated as a press (500ms)
	TouchPressDelay = 500 * time.Millisecond

	// TouchSelectHold - holding a press this long toggles selection (1500ms)
	TouchSelectHold = 1500 * time.Millisecond

	// TouchDragThreshold - movement in pixels needed to start a drag
	TouchDragThreshold = 15.0
)

// Transfers
const (
	// SpeedSampleInterval - interval between download speed samples (1s)
	SpeedSampleInterval = 1 * time.Second

	// TransferAutoHideDelay - panel auto-hide delay after a batch fully completes (3s)
	TransferAutoHideDelay = 3 * time.Second

	// DownloadBufferSize - copy buffer for streamed downloads (256 KB)
	DownloadBufferSize = 256 * 1024

	// PartialFileSuffix - suffix for downloads that have not finished yet
	PartialFileSuffix = ".part"
)

// Thumbnails
const (
	// ThumbnailMaxConcurrent - concurrent thumbnail fetches allowed process-wide
	ThumbnailMaxConcurrent = 2

	// ThumbnailMinSpacing - minimum gap between two thumbnail dispatches (200ms)
	ThumbnailMinSpacing = 200 * time.Millisecond

	// ThumbnailRetryDelay - flat delay before a failed thumbnail is re-queued (60s)
	ThumbnailRetryDelay = 60 * time.Second

	// ThumbnailFetchTimeout - upper bound for one thumbnail fetch (30s)
	ThumbnailFetchTimeout = 30 * time.Second

	// ThumbnailMaxBytes - response size cap for a single thumbnail fetch (32 MB)
	ThumbnailMaxBytes = 32 * 1024 * 1024
)

// API rate limiting
const (
	// APIRatePerSec - steady-state request rate towards the backend
	APIRatePerSec = 10.0

	// APIBurstCapacity - token bucket capacity
	APIBurstCapacity = 40.0

	// RateLimitWarnThreshold - waits longer than this are logged
	RateLimitWarnThreshold = 2 * time.Second
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient API errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// HTTP client timeouts
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPResponseHeaderTimeout = 60 * time.Second

	// HTTPClientTimeout - overall timeout for JSON API calls.
	// Transfers use a client without an overall timeout and rely on ctx.
	HTTPClientTimeout = 120 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// UI Updates
const (
	// ProgressRefreshRate - mpb refresh rate for transfer bars
	ProgressRefreshRate = 300 * time.Millisecond

	// ProgressBarWidth - width of mpb bars
	ProgressBarWidth = 100
)
