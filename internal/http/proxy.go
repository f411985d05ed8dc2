package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/constants"
)

// newBaseTransport returns the transport shared by API and transfer clients.
func newBaseTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       32,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		ResponseHeaderTimeout: constants.HTTPResponseHeaderTimeout,
	}
}

// ConfigureHTTPClient configures an HTTP client for JSON API calls with the
// proxy settings from cfg.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	rt, err := configureRoundTripper(cfg, newBaseTransport())
	if err != nil {
		return nil, err
	}

	client := &nethttp.Client{
		Transport: rt,
		Timeout:   constants.HTTPClientTimeout,
	}

	if cfg.ProxyWarmup && proxyActive(cfg) && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		if err := warmupProxy(client, cfg); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	return client, nil
}

// configureRoundTripper applies the proxy mode to transport. NTLM wraps the
// transport in a negotiator.
func configureRoundTripper(cfg *config.Config, transport *nethttp.Transport) (nethttp.RoundTripper, error) {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil
		return transport, nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment
		return transport, nil

	case "ntlm":
		if cfg.ProxyHost == "" {
			log.Printf("[WARN] Proxy mode is NTLM but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			return transport, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		return ntlmssp.Negotiator{RoundTripper: transport}, nil

	case "basic":
		if cfg.ProxyHost == "" {
			log.Printf("[WARN] Proxy mode is basic but host is missing - falling back to no-proxy mode")
			transport.Proxy = nil
			return transport, nil
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Printf("[WARN] Proxy user configured but password missing - proxy auth disabled until password is set")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		return transport, nil
	}

	return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Only embed credentials if both user AND password are provided
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy performs one request through the proxy so the first real call
// does not pay for the authentication handshake.
func warmupProxy(client *nethttp.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, "GET", cfg.APIBaseURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	pc := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := pc.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}

// proxyActive reports whether requests will go through a proxy.
func proxyActive(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		return envProxySet()
	}
	return cfg.ProxyHost != ""
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by the CLI to decide whether to prompt.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
