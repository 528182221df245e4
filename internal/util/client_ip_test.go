package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPWithoutTrustedProxies(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := ClientIP(r, nil); got != "10.1.2.3" {
		t.Fatalf("forwarded header must be ignored without trust, got %s", got)
	}
}

func TestClientIPTrustsForwardedChain(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.7")

	if got := ClientIP(r, trusted); got != "203.0.113.9" {
		t.Fatalf("expected first untrusted hop, got %s", got)
	}
}

func TestClientIPRealIPFallback(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"127.0.0.1"})
	if err != nil {
		t.Fatalf("NewTrustedProxies: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:9000"
	r.Header.Set("X-Real-IP", "198.51.100.4")

	if got := ClientIP(r, trusted); got != "198.51.100.4" {
		t.Fatalf("expected X-Real-IP value, got %s", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected parse error")
	}
}
