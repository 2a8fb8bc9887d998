package planner

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

// NewPlanner creates a planner based on the UIRUN_MODE environment
// variable. If UIRUN_MODE=MOCK, returns a MockPlanner; otherwise returns
// an HTTPPlanner against the configured endpoint.
func NewPlanner(baseURL, apiKey, model string, timeout time.Duration) Planner {
	if os.Getenv(EnvUIRunMode) == ModeMock {
		log.Println("UIRUN_MODE=MOCK detected, using mock planner")
		return NewMockPlanner()
	}
	return NewHTTPPlanner(baseURL, apiKey, model, timeout)
}
