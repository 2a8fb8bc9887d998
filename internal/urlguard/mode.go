package urlguard

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects how a run's starting URL is chosen.
type Mode string

const (
	// ModeDemo pins every run to the configured demo URL. The requested
	// starting URL is ignored, never trusted.
	ModeDemo Mode = "demo"

	// ModePlan accepts the plan's starting URL when its hostname is on
	// the configured allowlist.
	ModePlan Mode = "plan"

	// ModeAnyPublic accepts any http(s) URL. The resolve-time guard
	// still blocks non-public addresses at navigation.
	ModeAnyPublic Mode = "any_public"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDemo, "":
		return ModeDemo, nil
	case ModePlan:
		return ModePlan, nil
	case ModeAnyPublic:
		return ModeAnyPublic, nil
	default:
		return "", fmt.Errorf("starting url mode must be one of: demo, plan, any_public")
	}
}

// ResolveStartingURL applies the mode policy to a requested starting URL
// and returns the URL the run will actually open.
func ResolveStartingURL(mode Mode, demoURL, requested string, allowedHosts []string) (string, error) {
	switch mode {
	case ModeDemo:
		return demoURL, nil
	case ModePlan:
		s, err := SanitizeHTTPURL(requested)
		if err != nil {
			return "", err
		}
		u, _ := url.Parse(s)
		host := strings.ToLower(u.Hostname())
		for _, allowed := range allowedHosts {
			if host == strings.ToLower(strings.TrimSpace(allowed)) {
				return s, nil
			}
		}
		return "", fmt.Errorf("host %q is not on the starting-host allowlist", host)
	case ModeAnyPublic:
		return SanitizeHTTPURL(requested)
	default:
		return "", fmt.Errorf("unknown starting url mode %q", mode)
	}
}
