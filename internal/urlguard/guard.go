// Package urlguard validates navigation targets before the browser is
// allowed to reach them. Every navigation-causing action goes through
// Check; there is no fallback URL on rejection.
package urlguard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

// LookupFunc resolves a hostname to its addresses. Swappable in tests.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Guard rejects URLs whose scheme is not http(s) or whose host resolves
// to loopback, link-local or private address space.
type Guard struct {
	timeout time.Duration
	lookup  LookupFunc
}

// New returns a Guard that resolves hostnames with the default resolver
// under the given timeout.
func New(timeout time.Duration) *Guard {
	return &Guard{
		timeout: timeout,
		lookup:  net.DefaultResolver.LookupIPAddr,
	}
}

// NewWithLookup returns a Guard with a custom resolver, for tests.
func NewWithLookup(timeout time.Duration, lookup LookupFunc) *Guard {
	return &Guard{timeout: timeout, lookup: lookup}
}

// SanitizeHTTPURL accepts only absolute http/https URLs with a hostname
// and returns the trimmed form. It performs no DNS work.
func SanitizeHTTPURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("url is empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("url does not parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme %q is not allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url has no host")
	}
	return s, nil
}

// Check validates a URL for navigation. The hostname is resolved under
// the guard's timeout and every resolved address must be public. Failures
// are returned as SsrfBlocked step errors.
func (g *Guard) Check(ctx context.Context, raw string) error {
	s, err := SanitizeHTTPURL(raw)
	if err != nil {
		return domain.WrapStepError(domain.ErrKindSsrfBlocked, err.Error(), err)
	}
	u, _ := url.Parse(s)
	host := u.Hostname()

	// Literal addresses never hit DNS.
	if ip := net.ParseIP(host); ip != nil {
		if reason := blockedRange(ip); reason != "" {
			return domain.StepErrorf(domain.ErrKindSsrfBlocked, "address %s is %s", ip, reason)
		}
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	addrs, err := g.lookup(rctx, host)
	if err != nil {
		return domain.WrapStepError(domain.ErrKindSsrfBlocked, fmt.Sprintf("dns resolution for %q failed: %v", host, err), err)
	}
	if len(addrs) == 0 {
		return domain.StepErrorf(domain.ErrKindSsrfBlocked, "dns resolution for %q returned no addresses", host)
	}
	for _, a := range addrs {
		if reason := blockedRange(a.IP); reason != "" {
			return domain.StepErrorf(domain.ErrKindSsrfBlocked, "host %q resolves to %s address %s", host, reason, a.IP)
		}
	}
	return nil
}

// blockedRange names the disallowed range an address falls in, or "".
func blockedRange(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return "link-local"
	case ip.IsPrivate():
		return "private"
	case ip.IsUnspecified():
		return "unspecified"
	default:
		return ""
	}
}
