package http

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/capiweb/capishare/internal/constants"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates an authentication failure (401, 403, expired session)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (500, 502, 503, 429)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried (400, 404, 409)
	ErrorTypeFatal
)

// Config holds retry parameters for ExecuteWithRetry
type Config struct {
	// MaxRetries is the maximum number of attempts
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// ClassifyStatus maps an HTTP status code to a retry class.
func ClassifyStatus(status int) ErrorType {
	switch {
	case status < 400:
		return ErrorTypeSuccess
	case status == nethttp.StatusUnauthorized, status == nethttp.StatusForbidden:
		return ErrorTypeCredential
	case status == nethttp.StatusTooManyRequests, status == nethttp.StatusRequestTimeout:
		return ErrorTypeRetryable
	case status >= 500 && status != nethttp.StatusNotImplemented:
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}

// ClassifyError determines the error type for retry strategy.
// Errors carrying a status code are classified by status; others by message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	var se StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode())
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		var certErr *x509.UnknownAuthorityError
		if errors.As(uerr.Err, &certErr) {
			return ErrorTypeFatal
		}
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "csrf") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "too many requests") {
		return ErrorTypeRetryable
	}

	// Unknown errors are fatal to avoid retrying something that will never succeed
	return ErrorTypeFatal
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := initialDelay
	for i := 0; i < attempt && base < maxDelay; i++ {
		base *= 2
	}
	if base > maxDelay {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// IsIdempotent reports whether a request with this method may be replayed.
func IsIdempotent(method string) bool {
	switch method {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions, nethttp.MethodPut, nethttp.MethodDelete:
		return true
	}
	return false
}

// CheckRetry is a retryablehttp.CheckRetry policy. It never replays
// non-idempotent requests (uploads, folder creation, moves) and only retries
// network failures and retryable statuses.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	var req *nethttp.Request
	if resp != nil {
		req = resp.Request
	}
	if err != nil {
		// url.Error.Op holds the method title-cased, e.g. "Post"
		var uerr *url.Error
		if errors.As(err, &uerr) && !IsIdempotent(strings.ToUpper(uerr.Op)) {
			return false, nil
		}
		t := ClassifyError(err)
		return t == ErrorTypeNetwork || t == ErrorTypeRetryable, nil
	}

	if req != nil && !IsIdempotent(req.Method) {
		return false, nil
	}
	return ClassifyStatus(resp.StatusCode) == ErrorTypeRetryable, nil
}

// Backoff is a retryablehttp.Backoff that honours Retry-After on 429/503 and
// otherwise uses CalculateBackoff.
func Backoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil && (resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) {
		if s := resp.Header.Get("Retry-After"); s != "" {
			if d, err := time.ParseDuration(s + "s"); err == nil && d > 0 {
				if d > max {
					return max
				}
				return d
			}
		}
	}
	d := CalculateBackoff(attemptNum+1, min, max)
	if d < min {
		d = min
	}
	return d
}

// ExecuteWithRetry runs an operation with retry logic.
//
// Retry strategy:
//   - Network/Retryable errors: exponential backoff with full jitter
//   - Credential and fatal errors: return immediately
//   - Context cancellation: return immediately, including mid-backoff
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errType := ClassifyError(err)
		if errType != ErrorTypeNetwork && errType != ErrorTypeRetryable {
			return err
		}
		if attempt == config.MaxRetries-1 {
			break
		}

		backoff := CalculateBackoff(attempt+1, config.InitialDelay, config.MaxDelay)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return fmt.Errorf("deadline too short for retry backoff: %w", err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, errType)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
