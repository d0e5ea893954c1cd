package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ainoob2025/AICore/internal/ssrf"
)

func TestGetRejectsNonHTTPScheme(t *testing.T) {
	f := New(ssrf.ParseAllowlist(""))
	res := f.Get(context.Background(), "ftp://example.com", 5, 0, 0)
	if res.OK || res.Error != "INVALID_SCHEME" {
		t.Fatalf("expected INVALID_SCHEME, got %+v", res)
	}
}

func TestGetRejectsLoopbackWithoutAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(ssrf.ParseAllowlist(""))
	res := f.Get(context.Background(), srv.URL, 5, 0, 0)
	if res.OK {
		t.Fatalf("expected loopback fetch to be rejected, got %+v", res)
	}
	if res.Error != "LAN_HOST_NOT_ALLOWLISTED" {
		t.Fatalf("expected LAN_HOST_NOT_ALLOWLISTED, got %s", res.Error)
	}
}

func TestGetAllowsLoopbackWithAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(strings.TrimPrefix(srv.URL, "http://"), "https://")
	hostOnly := strings.SplitN(host, ":", 2)[0]

	f := New(ssrf.ParseAllowlist(hostOnly))
	res := f.Get(context.Background(), srv.URL, 5, 0, 0)
	if !res.OK {
		t.Fatalf("expected allowlisted fetch to succeed, got %+v", res)
	}
	if res.Text != "hello world" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestGetTruncatesOversizeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")
	hostOnly := strings.SplitN(host, ":", 2)[0]

	f := New(ssrf.ParseAllowlist(hostOnly))
	res := f.Get(context.Background(), srv.URL, 5, 5, 5)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if !res.BodyTruncated {
		t.Fatalf("expected body_truncated=true")
	}
}

func TestGetParsesJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")
	hostOnly := strings.SplitN(host, ":", 2)[0]

	f := New(ssrf.ParseAllowlist(hostOnly))
	res := f.Get(context.Background(), srv.URL, 5, 0, 0)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	m, ok := res.JSON.(map[string]any)
	if !ok || m["a"].(float64) != 1 {
		t.Fatalf("expected parsed json, got %+v", res.JSON)
	}
}
