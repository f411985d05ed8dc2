// Package api is the REST client for the file-sharing backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/http"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/metrics"
	"github.com/capiweb/capishare/internal/ratelimit"
	"github.com/capiweb/capishare/internal/version"
)

// retryLogger adapts logging.Logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to the REST backend. JSON calls go through a retrying client
// (idempotent methods only). Transfers use a separate client with no overall
// timeout and no retry.
type Client struct {
	httpClient     *nethttp.Client
	transferClient *nethttp.Client
	config         *config.Config
	baseURL        string
	limiters       *ratelimit.Registry
	logger         *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty: set api_url in the config file or %s", config.EnvAPIURL)
	}
	logger = logging.OrNop(logger).Named("api")

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	transferClient, err := http.CreateTransferClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.CheckRetry = http.CheckRetry
	retryClient.Backoff = http.Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	rate, burst := cfg.RequestsPerSecond, cfg.Burst
	if rate <= 0 {
		rate = constants.APIRatePerSec
	}
	if burst <= 0 {
		burst = constants.APIBurstCapacity
	}
	limiters := ratelimit.NewRegistry(rate, burst)
	limiters.Limiter(ratelimit.ScopeAPI).SetLogger(logger)
	limiters.Limiter(ratelimit.ScopeTransfer).SetLogger(logger)

	return &Client{
		httpClient:     retryClient.StandardClient(),
		transferClient: transferClient,
		config:         cfg,
		baseURL:        strings.TrimSuffix(cfg.APIBaseURL, "/"),
		limiters:       limiters,
		logger:         logger,
	}, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// Username returns the configured account name, used as the default upload recipient.
func (c *Client) Username() string {
	return c.config.Username
}

// ResolveURL turns an API-relative path into an absolute URL. Absolute URLs
// are returned unchanged.
func (c *Client) ResolveURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.baseURL + p
}

func (c *Client) authorize(req *nethttp.Request) {
	req.Header.Set("User-Agent", version.UserAgent())
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Token "+c.config.APIToken)
	}
	if c.config.SessionCookie != "" {
		req.AddCookie(&nethttp.Cookie{Name: "sessionid", Value: c.config.SessionCookie})
	}
	if c.config.CSRFToken != "" {
		req.AddCookie(&nethttp.Cookie{Name: "csrftoken", Value: c.config.CSRFToken})
		req.Header.Set("X-CSRFToken", c.config.CSRFToken)
	}
}

// doRequest performs a JSON request with authentication and rate limiting.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.ResolveURL(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(ctx, c.httpClient, req)
}

// doForm performs a form-encoded request. Repeated keys are sent as repeated fields.
func (c *Client) doForm(ctx context.Context, client *nethttp.Client, method, path string, form url.Values) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, c.ResolveURL(path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.send(ctx, client, req)
}

// send waits on the scope's limiter, authorizes and executes req.
func (c *Client) send(ctx context.Context, client *nethttp.Client, req *nethttp.Request) (*nethttp.Response, error) {
	limiter := c.limiters.For(req.Method, req.URL.Path)
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	c.authorize(req)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(req.Method, 0, time.Since(start))
		c.logger.Debug().Str("method", req.Method).Str("path", req.URL.Path).Err(err).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	metrics.RecordAPIRequest(req.Method, resp.StatusCode, time.Since(start))

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		limiter.Drain()
		cooldown := 5 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				cooldown = time.Duration(secs) * time.Second
			}
		}
		limiter.SetCooldown(cooldown)
		c.logger.Warn().Str("method", req.Method).Str("path", req.URL.Path).
			Dur("cooldown", cooldown).Msg("throttled by server")
	}

	return resp, nil
}

// decodeJSON checks the status and decodes the body into out.
func decodeJSON(resp *nethttp.Response, op string, out interface{}, okStatus ...int) error {
	defer resp.Body.Close()
	if !statusOK(resp.StatusCode, okStatus) {
		return newAPIError(resp, op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// expectStatus checks the status and discards the body.
func expectStatus(resp *nethttp.Response, op string, okStatus ...int) error {
	defer resp.Body.Close()
	if !statusOK(resp.StatusCode, okStatus) {
		return newAPIError(resp, op)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func statusOK(status int, ok []int) bool {
	if len(ok) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range ok {
		if s == status {
			return true
		}
	}
	return false
}
