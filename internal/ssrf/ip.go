// Package ssrf validates URLs and resolved IP addresses against the
// private/loopback/link-local blocklist required before the HTTP fetcher
// (spec component C7) is allowed to dial out, with an explicit allowlist
// override read from configuration.
package ssrf

import (
	"net"
	"strings"
)

// IsPrivateIPv4 reports whether a 4-byte address falls in one of the
// blocked IPv4 ranges from spec.md §4.7.
func IsPrivateIPv4(ip [4]byte) bool {
	switch {
	case ip[0] == 0: // 0.0.0.0/8
		return true
	case ip[0] == 10: // 10.0.0.0/8
		return true
	case ip[0] == 127: // 127.0.0.0/8
		return true
	case ip[0] == 169 && ip[1] == 254: // 169.254.0.0/16
		return true
	case ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31: // 172.16.0.0/12
		return true
	case ip[0] == 192 && ip[1] == 168: // 192.168.0.0/16
		return true
	case ip[0] == 100 && ip[1] >= 64 && ip[1] <= 127: // 100.64.0.0/10
		return true
	}
	return false
}

func normalizeHostname(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// blockedIPv6Nets are the blocked IPv6 ranges from spec.md §4.7, matched by
// mask rather than string prefix so fe80::/10 (which spans fe80:: through
// febf::) is covered in full.
var blockedIPv6Nets = func() []*net.IPNet {
	cidrs := []string{
		"fe80::/10", // link-local
		"fec0::/10", // site-local (deprecated, still blocked)
		"fc00::/7",  // unique-local
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("ssrf: invalid blocked CIDR literal: " + c)
		}
		nets = append(nets, n)
	}
	return nets
}()

// IsPrivateIPAddress reports whether addr (an IPv4 or IPv6 literal,
// optionally bracketed) falls within a blocked private/loopback/
// link-local range.
func IsPrivateIPAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "[")
	addr = strings.TrimSuffix(addr, "]")

	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	if v4 := ip.To4(); v4 != nil {
		return IsPrivateIPv4([4]byte{v4[0], v4[1], v4[2], v4[3]})
	}

	if ip.IsLoopback() {
		return true
	}
	for _, n := range blockedIPv6Nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
