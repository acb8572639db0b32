package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/rescale/archive-uploader/internal/config"
	"github.com/rescale/archive-uploader/internal/constants"
)

// ConfigureHTTPClient builds an HTTP client honoring the proxy settings.
func ConfigureHTTPClient(proxy config.ProxyConfig) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		if proxy.Host == "" {
			log.Warn().Msg("Proxy mode is NTLM but host is missing - falling back to no-proxy mode")
			return &nethttp.Client{Transport: transport}, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy)
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
		}, nil

	case "basic":
		if proxy.Host == "" {
			log.Warn().Msg("Proxy mode is basic but host is missing - falling back to no-proxy mode")
			return &nethttp.Client{Transport: transport}, nil
		}

		if proxy.User != "" && proxy.Password == "" {
			log.Warn().Msg("Proxy user configured but password missing - proxy auth disabled")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy)

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", proxy.Mode)
	}

	return &nethttp.Client{Transport: transport}, nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(proxy config.ProxyConfig) *url.URL {
	port := proxy.Port
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", proxy.Host, port),
	}

	// Only embed credentials if both user AND password are provided
	if proxy.User != "" && proxy.Password != "" {
		proxyURL.User = url.UserPassword(proxy.User, proxy.Password)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass (direct connection)")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// ProxyActive reports whether requests will go through a proxy.
func ProxyActive(proxy config.ProxyConfig) bool {
	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		return false
	case "system":
		return envProxySet()
	default:
		return proxy.Host != ""
	}
}
