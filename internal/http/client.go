// Package http builds the shared HTTP client used by every upload backend.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
)

// CreateOptimizedClient creates an HTTP client tuned for large file uploads
// on top of the configured proxy.
//
//   - Large connection pool for the parallel driver
//   - Extended handshake timeouts for slow links
//   - HTTP/2 unless a proxy is active or DISABLE_HTTP2=true
//   - Compression disabled (media files are already compressed)
//   - No overall client timeout; callers bound requests with a context
func CreateOptimizedClient(proxy config.ProxyConfig) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(proxy)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; leave it alone.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 100
	tr.MaxConnsPerHost = 100
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.TLSHandshakeTimeout = constants.HTTPTLSHandshakeTimeout
	tr.ExpectContinueTimeout = constants.HTTPExpectContinueTimeout
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	disable := os.Getenv("DISABLE_HTTP2") == "true"
	// Proxies often break HTTP/2 streams mid-transfer. FORCE_HTTP2=true overrides.
	if ProxyActive(proxy) && os.Getenv("FORCE_HTTP2") != "true" {
		disable = true
	}
	if disable {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0

	return baseClient, nil
}

func envProxySet() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
