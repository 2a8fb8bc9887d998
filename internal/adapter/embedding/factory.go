package embedding

import (
	"log"
	"os"
	"time"
)

const (
	// EnvUIRunMode is the environment variable name for mode selection.
	EnvUIRunMode = "UIRUN_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewEmbedder creates an embedder based on the UIRUN_MODE environment
// variable. If UIRUN_MODE=MOCK, returns a MockEmbedder; otherwise
// returns an HTTPEmbedder against the configured endpoint.
func NewEmbedder(baseURL, apiKey, model string, timeout time.Duration) Embedder {
	if os.Getenv(EnvUIRunMode) == ModeMock {
		log.Println("UIRUN_MODE=MOCK detected, using mock embedder")
		return NewMockEmbedder()
	}
	return NewHTTPEmbedder(baseURL, apiKey, model, timeout)
}
