// Package fetch implements the SSRF-guarded HTTP fetcher (spec component
// C7): a single http_get operation that never raises, returning a fixed
// result schema instead.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ainoob2025/AICore/internal/ssrf"
)

// MaxTimeoutSec is the hard cap on timeout_sec.
const MaxTimeoutSec = 300

// MaxBytes is the hard cap on max_bytes.
const MaxBytes = 200_000_000

// MaxTextChars is the hard cap on max_text_chars.
const MaxTextChars = 200_000_000

// Fetcher performs SSRF-guarded outbound GET requests.
type Fetcher struct {
	Resolver  ssrf.Resolver
	Allowlist ssrf.Allowlist
	Client    *http.Client
}

// New constructs a Fetcher using the default DNS resolver and a
// dial-validating HTTP client. Get's up-front hostname check happens
// once against whatever address DNS returns at that moment; if the
// stdlib dialer were left to re-resolve the hostname on its own when
// connecting, a second, independently timed lookup could return a
// different (private) address — a DNS-rebinding TOCTOU. The custom
// DialContext closes that gap by doing its own resolution, validating
// every candidate address itself, and dialing the one validated IP
// directly, so the address that gets dialed is always the one that was
// checked.
func New(allowlist ssrf.Allowlist) *Fetcher {
	f := &Fetcher{Resolver: ssrf.DefaultResolver, Allowlist: allowlist}
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				host, port = addr, ""
			}

			if ip := net.ParseIP(host); ip != nil {
				if ssrf.IsPrivateIPAddress(host) && !f.Allowlist.Allows(host) {
					return nil, &ssrf.BlockedError{Kind: "LAN_HOST_NOT_ALLOWLISTED", Message: "dial target is a private address: " + host}
				}
				return dialer.DialContext(ctx, network, addr)
			}

			addrs, err := f.Resolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, &ssrf.BlockedError{Kind: "DNS_RESOLUTION_FAILED", Message: "dns resolution failed for " + host + ": " + err.Error()}
			}
			for _, a := range addrs {
				ipStr := a.IP.String()
				if ssrf.IsPrivateIPAddress(ipStr) && !f.Allowlist.Allows(host) {
					continue
				}
				return dialer.DialContext(ctx, network, net.JoinHostPort(ipStr, port))
			}
			return nil, &ssrf.BlockedError{Kind: "LAN_HOST_NOT_ALLOWLISTED", Message: "no admissible resolved address for " + host}
		},
	}
	f.Client = &http.Client{Transport: transport}
	return f
}

// Result is the fixed schema returned by Get, matching spec.md §4.7.
type Result struct {
	OK            bool           `json:"ok"`
	URL           string         `json:"url"`
	Status        int            `json:"status,omitempty"`
	Headers       map[string]any `json:"headers,omitempty"`
	ContentType   string         `json:"content_type,omitempty"`
	Text          string         `json:"text,omitempty"`
	JSON          any            `json:"json,omitempty"`
	BodyTruncated bool           `json:"body_truncated"`
	TextTruncated bool           `json:"text_truncated"`
	Error         string         `json:"error,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// Get performs the guarded fetch. It never returns a Go error; failures
// are reported via Result.OK=false.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeoutSec int, maxBytes, maxTextChars int) Result {
	if timeoutSec <= 0 || timeoutSec > MaxTimeoutSec {
		timeoutSec = MaxTimeoutSec
	}
	if maxBytes <= 0 || maxBytes > MaxBytes {
		maxBytes = MaxBytes
	}
	if maxTextChars <= 0 || maxTextChars > MaxTextChars {
		maxTextChars = MaxTextChars
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{OK: false, URL: rawURL, Error: "INVALID_URL", Details: map[string]any{"message": err.Error()}}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{OK: false, URL: rawURL, Error: "INVALID_SCHEME", Details: map[string]any{"scheme": u.Scheme}}
	}

	if err := ssrf.ValidatePublicHostname(ctx, f.Resolver, u.Hostname(), f.Allowlist); err != nil {
		kind := "LAN_HOST_NOT_ALLOWLISTED"
		if be, ok := err.(*ssrf.BlockedError); ok {
			kind = be.Kind
		}
		return Result{OK: false, URL: rawURL, Error: kind, Details: map[string]any{"message": err.Error()}}
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{OK: false, URL: rawURL, Error: "INVALID_URL", Details: map[string]any{"message": err.Error()}}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if be, ok := errAsBlocked(err); ok {
			return Result{OK: false, URL: rawURL, Error: be.Kind, Details: map[string]any{"message": be.Message}}
		}
		return Result{OK: false, URL: rawURL, Error: "HTTP_ERROR", Details: map[string]any{"message": err.Error()}}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(maxBytes)+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return Result{OK: false, URL: rawURL, Status: resp.StatusCode, Error: "HTTP_ERROR", Details: map[string]any{"message": err.Error()}}
	}
	bodyTruncated := len(body) > maxBytes
	if bodyTruncated {
		body = body[:maxBytes]
	}

	contentType := resp.Header.Get("Content-Type")
	text, textTruncated := decodeText(body, contentType, maxTextChars)

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	var parsed any
	if strings.Contains(strings.ToLower(contentType), "json") {
		_ = json.Unmarshal(body, &parsed)
	}

	return Result{
		OK:            true,
		URL:           rawURL,
		Status:        resp.StatusCode,
		Headers:       headers,
		ContentType:   contentType,
		Text:          text,
		JSON:          parsed,
		BodyTruncated: bodyTruncated,
		TextTruncated: textTruncated,
	}
}

func errAsBlocked(err error) (*ssrf.BlockedError, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if be, ok := e.(*ssrf.BlockedError); ok {
			return be, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}

func decodeText(body []byte, contentType string, maxChars int) (string, bool) {
	charset := "utf-8"
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs, ok := params["charset"]; ok {
			charset = strings.ToLower(cs)
		}
	}

	var text string
	if charset == "utf-8" || charset == "" {
		text = toValidUTF8(body)
	} else {
		// Non-UTF-8 charsets fall back to a replacement-safe UTF-8 coercion;
		// a full charset transcoding table is out of scope for this fetcher.
		text = toValidUTF8(body)
	}

	r := []rune(text)
	if len(r) > maxChars {
		return string(r[:maxChars]), true
	}
	return text, false
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
