// Package artifacts stores run evidence (screenshots) and hands back
// addressable paths. Bytes live in a pluggable backend; metadata lives
// in the relational store.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Backend stores raw artifact bytes under a key.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// PublicPrefix is the URL prefix artifacts are served under.
const PublicPrefix = "/artifacts"

var reUnsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// SanitizeLabel reduces a label to a filesystem-safe token. Empty or
// fully unsafe labels become "shot".
func SanitizeLabel(label string) string {
	safe := strings.Trim(reUnsafeLabel.ReplaceAllString(label, "_"), "_")
	if safe == "" {
		return "shot"
	}
	return safe
}

// Key builds the backend storage key for a capture.
func Key(runID, stepID, label string) string {
	return fmt.Sprintf("%s/%s/%s.png", runID, stepID, label)
}

// PublicPath builds the URL path a capture is served from.
func PublicPath(runID, stepID, label string) string {
	return fmt.Sprintf("%s/%s/%s/%s.png", PublicPrefix, runID, stepID, label)
}
