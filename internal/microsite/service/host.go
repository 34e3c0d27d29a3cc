package service

import (
	"net"
	"regexp"
	"strings"
)

var hostPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// NormalizeHost lower-cases the host and strips any port. Malformed hosts
// normalize to the empty string.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if !hostPattern.MatchString(host) {
		return ""
	}
	return host
}

// candidates lists the subdomain lookups for a host: first label, then the full host.
func candidates(host string) []string {
	first, _, found := strings.Cut(host, ".")
	if !found || first == "" {
		return []string{host}
	}
	return []string{first, host}
}
