package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newRequest(remoteAddr string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	cfg := &IPConfig{}
	r := newRequest("203.0.113.7:51432", nil)

	if got := cfg.ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP() = %q, want %q", got, "203.0.113.7")
	}
}

func TestClientIP_IgnoresForwardedHeaderFromUntrustedSource(t *testing.T) {
	cfg := &IPConfig{}
	r := newRequest("203.0.113.7:51432", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})

	if got := cfg.ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP() = %q, want RemoteAddr when proxy is untrusted", got)
	}
}

func TestClientIP_HonorsForwardedHeaderFromTrustedProxy(t *testing.T) {
	cfg := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	r := newRequest("10.0.0.1:51432", map[string]string{
		"X-Forwarded-For": "198.51.100.1, 10.0.0.1",
	})

	if got := cfg.ClientIP(r); got != "198.51.100.1" {
		t.Errorf("ClientIP() = %q, want first forwarded IP", got)
	}
}

func TestClientIP_HonorsRealIPFromTrustedProxy(t *testing.T) {
	cfg := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	r := newRequest("10.0.0.1:51432", map[string]string{
		"X-Real-IP": "198.51.100.2",
	})

	if got := cfg.ClientIP(r); got != "198.51.100.2" {
		t.Errorf("ClientIP() = %q, want X-Real-IP value", got)
	}
}

func TestClientIP_SkipsInvalidForwardedEntries(t *testing.T) {
	cfg := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	r := newRequest("10.0.0.1:51432", map[string]string{
		"X-Forwarded-For": "not-an-ip, 198.51.100.3",
	})

	if got := cfg.ClientIP(r); got != "198.51.100.3" {
		t.Errorf("ClientIP() = %q, want first valid forwarded IP", got)
	}
}

func TestClientIP_SkipsInvalidCIDR(t *testing.T) {
	cfg := &IPConfig{TrustedProxies: []string{"bogus", "10.0.0.0/8"}}
	r := newRequest("10.0.0.1:51432", map[string]string{
		"X-Forwarded-For": "198.51.100.4",
	})

	if got := cfg.ClientIP(r); got != "198.51.100.4" {
		t.Errorf("ClientIP() = %q, want forwarded IP despite invalid CIDR entry", got)
	}
}

func TestClientIP_NilConfig(t *testing.T) {
	var cfg *IPConfig
	r := newRequest("203.0.113.7:51432", map[string]string{
		"X-Forwarded-For": "198.51.100.1",
	})

	if got := cfg.ClientIP(r); got != "203.0.113.7" {
		t.Errorf("ClientIP() = %q, want RemoteAddr with nil config", got)
	}
}
