package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/capiweb/capishare/internal/config"
)

// CreateTransferClient creates an HTTP client for uploads and downloads.
//
// Differences from ConfigureHTTPClient:
//   - no overall timeout; transfers are bounded by their context
//   - compression disabled (uploads are usually already compressed media)
//   - HTTP/2 negotiated when no proxy is in the path
//
// Set DISABLE_HTTP2=true to force HTTP/1.1.
func CreateTransferClient(cfg *config.Config) (*nethttp.Client, error) {
	tr := newBaseTransport()
	tr.MaxIdleConnsPerHost = 64
	tr.MaxConnsPerHost = 64
	tr.ResponseHeaderTimeout = 0
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	// Proxies often break HTTP/2 multiplexing mid-transfer.
	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	rt, err := configureRoundTripper(cfg, tr)
	if err != nil {
		return nil, err
	}

	return &nethttp.Client{Transport: rt}, nil
}

func envProxySet() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
