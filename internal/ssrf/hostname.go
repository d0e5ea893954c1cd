package ssrf

import (
	"context"
	"net"
	"strings"
)

var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

var dangerousSuffixes = []string{".localhost", ".local", ".internal"}

// IsBlockedHostname reports whether host is explicitly blocked by name,
// independent of DNS resolution.
func IsBlockedHostname(host string) bool {
	h := normalizeHostname(host)
	if blockedHostnames[h] {
		return true
	}
	for _, suf := range dangerousSuffixes {
		if strings.HasSuffix(h, suf) {
			return true
		}
	}
	return false
}

// Allowlist matches hostnames against a comma-separated list read from
// configuration, supporting a leading "*." wildcard for subdomains.
type Allowlist struct {
	exact      map[string]bool
	wildcards  []string // each stored without the leading "*."
}

// ParseAllowlist parses a comma-separated allowlist spec such as
// "example.com,*.example.net".
func ParseAllowlist(spec string) Allowlist {
	al := Allowlist{exact: make(map[string]bool)}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(strings.ToLower(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			al.wildcards = append(al.wildcards, entry[2:])
		} else {
			al.exact[entry] = true
		}
	}
	return al
}

// Allows reports whether host matches the allowlist.
func (a Allowlist) Allows(host string) bool {
	h := normalizeHostname(host)
	if a.exact[h] {
		return true
	}
	for _, suf := range a.wildcards {
		if strings.HasSuffix(h, "."+suf) {
			return true
		}
	}
	return false
}

// BlockedError indicates a URL was rejected for SSRF reasons.
type BlockedError struct {
	Kind    string
	Message string
}

func (e *BlockedError) Error() string { return e.Message }

func newBlocked(kind, msg string) *BlockedError {
	return &BlockedError{Kind: kind, Message: msg}
}

// Resolver abstracts DNS lookups so tests can substitute a fake.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type netResolver struct{}

func (netResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

// DefaultResolver is the production net.Resolver-backed Resolver.
var DefaultResolver Resolver = netResolver{}

// ValidatePublicHostname resolves host and rejects it if it is explicitly
// blocked by name, is itself a private IP literal, or resolves to any
// private/loopback/link-local address — unless allowlist admits it.
func ValidatePublicHostname(ctx context.Context, resolver Resolver, host string, allowlist Allowlist) error {
	h := normalizeHostname(host)

	if allowlist.Allows(h) {
		return nil
	}

	if IsBlockedHostname(h) {
		return newBlocked("LAN_HOST_NOT_ALLOWLISTED", "hostname is blocked: "+h)
	}

	if IsPrivateIPAddress(h) {
		return newBlocked("LAN_HOST_NOT_ALLOWLISTED", "hostname resolves to a private address: "+h)
	}

	addrs, err := resolver.LookupIPAddr(ctx, h)
	if err != nil {
		return newBlocked("DNS_RESOLUTION_FAILED", "dns resolution failed for "+h+": "+err.Error())
	}
	for _, a := range addrs {
		if IsPrivateIPAddress(a.IP.String()) {
			return newBlocked("LAN_HOST_NOT_ALLOWLISTED", "hostname resolves to a private address: "+a.IP.String())
		}
	}
	return nil
}
