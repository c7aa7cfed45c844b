// Package safeurl rejects prospect URLs that would make the service fetch internal resources:
// loopback, private and link-local addresses, cloud metadata endpoints and internal hostnames.
package safeurl

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/jonathan/propoto-agents/internal/apierr"
)

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Substrings; any hostname containing one is rejected.
var blockedHostnames = []string{"localhost", "internal", "metadata", "169.254.169.254"}

// Check returns nil when raw is an http(s) URL whose host is neither a blocked hostname nor a
// literal address in a blocked range. Hostnames are not resolved.
func Check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return invalid(fmt.Sprintf("URL validation error: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(fmt.Sprintf("Invalid URL scheme: %s. Only http/https allowed.", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return invalid("Invalid URL: no hostname found")
	}

	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if strings.Contains(lower, blocked) {
			return invalid("Blocked hostname: " + host)
		}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	addr = addr.Unmap().WithZone("")
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return invalid("Internal IP address not allowed: " + host)
		}
	}
	return nil
}

func invalid(message string) *apierr.Error {
	return apierr.Validation(apierr.CodeInvalidURL, message)
}
