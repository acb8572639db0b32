package http

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/Azure/go-ntlmssp"

	"github.com/rescale/archive-uploader/internal/config"
)

// TestProxyFuncWithBypass_EmptyNoProxy verifies that an empty noProxy always routes through proxy.
func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "")

	req, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_WildcardDomain verifies *.example.com bypasses api.example.com.
func TestProxyFuncWithBypass_WildcardDomain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.example.com")

	// Subdomain should bypass proxy
	req, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for api.example.com, got %v", result)
	}
}

// TestProxyFuncWithBypass_ExactDomain verifies example.com bypasses root and subdomains.
func TestProxyFuncWithBypass_ExactDomain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "example.com")

	// Root domain should bypass
	req, _ := http.NewRequest("GET", "https://example.com/data", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for example.com, got %v", result)
	}

	// Subdomain should also bypass (httpproxy matches subdomains of a bare domain)
	req2, _ := http.NewRequest("GET", "https://api.example.com/data", nil)
	result2, err := proxyFunc(req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result2 != nil {
		t.Errorf("expected nil (bypass) for api.example.com, got %v", result2)
	}
}

// TestProxyFuncWithBypass_CIDR verifies IP/CIDR range matching.
func TestProxyFuncWithBypass_CIDR(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "10.0.0.0/8")

	// IP in range should bypass
	req, _ := http.NewRequest("GET", "http://10.1.2.3:8080/api", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for 10.1.2.3, got %v", result)
	}
}

// TestProxyFuncWithBypass_NonMatchingHost verifies non-matching hosts route through proxy.
func TestProxyFuncWithBypass_NonMatchingHost(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.internal.corp,10.0.0.0/8")

	// External host should use proxy
	req, _ := http.NewRequest("GET", "https://s3.us.archive.org/item/", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL for s3.us.archive.org, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_MultiplePatterns verifies comma-separated patterns work.
func TestProxyFuncWithBypass_MultiplePatterns(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.example.com, 192.168.0.0/16, internal.corp")

	tests := []struct {
		name       string
		url        string
		wantBypass bool
	}{
		{"wildcard match", "https://api.example.com/data", true},
		{"cidr match", "http://192.168.1.100/api", true},
		{"exact domain match", "https://internal.corp/status", true},
		{"non-match", "https://s3.us.archive.org/item/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass (nil) for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass && result == nil {
				t.Errorf("expected proxy for %s, got nil (bypass)", tt.url)
			}
		})
	}
}

func TestConfigureHTTPClient_Modes(t *testing.T) {
	tests := []struct {
		name      string
		proxy     config.ProxyConfig
		wantProxy bool
		wantNTLM  bool
		wantErr   bool
	}{
		{"no-proxy", config.ProxyConfig{Mode: "no-proxy"}, false, false, false},
		{"empty mode", config.ProxyConfig{}, false, false, false},
		{"system", config.ProxyConfig{Mode: "system"}, true, false, false},
		{"basic", config.ProxyConfig{Mode: "basic", Host: "proxy.corp", Port: 3128}, true, false, false},
		{"basic without host", config.ProxyConfig{Mode: "basic"}, false, false, false},
		{"ntlm", config.ProxyConfig{Mode: "NTLM", Host: "proxy.corp"}, false, true, false},
		{"unsupported", config.ProxyConfig{Mode: "socks5"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := ConfigureHTTPClient(tt.proxy)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantNTLM {
				if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
					t.Fatalf("expected NTLM negotiator transport, got %T", client.Transport)
				}
				return
			}

			tr, ok := client.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", client.Transport)
			}
			if (tr.Proxy != nil) != tt.wantProxy {
				t.Errorf("proxy configured = %v, want %v", tr.Proxy != nil, tt.wantProxy)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(config.ProxyConfig{Host: "proxy.corp", User: "bob", Password: "pw"})
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User == nil || u.User.Username() != "bob" {
		t.Errorf("expected credentials embedded, got %v", u.User)
	}

	u = buildProxyURL(config.ProxyConfig{Host: "proxy.corp", Port: 3128, User: "bob"})
	if u.User != nil {
		t.Errorf("credentials without password must not be embedded, got %v", u.User)
	}
}

func TestCreateOptimizedClient_ProxyDisablesHTTP2(t *testing.T) {
	t.Setenv("FORCE_HTTP2", "")

	client, err := CreateOptimizedClient(config.ProxyConfig{Mode: "basic", Host: "proxy.corp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := client.Transport.(*http.Transport)
	if tr.ForceAttemptHTTP2 {
		t.Error("expected HTTP/2 disabled behind a proxy")
	}
	if client.Timeout != 0 {
		t.Errorf("expected no client timeout, got %v", client.Timeout)
	}

	direct, err := CreateOptimizedClient(config.ProxyConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !direct.Transport.(*http.Transport).DisableCompression {
		t.Error("expected compression disabled")
	}
}
