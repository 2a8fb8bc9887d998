// Package service implements the run engine's business logic: planning,
// run lifecycle, step dispatch, approvals and session upkeep. Handlers
// stay thin; everything stateful happens here.
package service

import (
	"sync"

	"github.com/uirun/uirun/config"
	"github.com/uirun/uirun/internal/adapter/notify"
	"github.com/uirun/uirun/internal/adapter/planner"
	"github.com/uirun/uirun/internal/artifacts"
	"github.com/uirun/uirun/internal/browser"
	"github.com/uirun/uirun/internal/dsl"
	"github.com/uirun/uirun/internal/index"
	"github.com/uirun/uirun/internal/interpreter"
	store "github.com/uirun/uirun/internal/repository"
	"github.com/uirun/uirun/internal/urlguard"
	"github.com/uirun/uirun/policy"
)

// Service orchestrates the run engine.
type Service struct {
	store        store.Store
	sessions     *browser.Manager
	interp       *interpreter.Interpreter
	guard        *urlguard.Guard
	bridge       *artifacts.Bridge
	planner      planner.Planner
	index        *index.Index
	notify       *notify.Client
	policyEngine *policy.Engine
	config       *config.Config

	// runLocks serializes execute-next-step per run. Entries are tiny and
	// never removed; a stale lock for a finished run is harmless.
	runLocks sync.Map
}

// New creates a new service instance.
func New(
	st store.Store,
	sessions *browser.Manager,
	interp *interpreter.Interpreter,
	guard *urlguard.Guard,
	bridge *artifacts.Bridge,
	pl planner.Planner,
	idx *index.Index,
	notifyClient *notify.Client,
	policyEngine *policy.Engine,
	cfg *config.Config,
) *Service {
	return &Service{
		store:        st,
		sessions:     sessions,
		interp:       interp,
		guard:        guard,
		bridge:       bridge,
		planner:      pl,
		index:        idx,
		notify:       notifyClient,
		policyEngine: policyEngine,
		config:       cfg,
	}
}

// runLock returns the dispatch mutex for a run.
func (s *Service) runLock(runID string) *sync.Mutex {
	mu, _ := s.runLocks.LoadOrStore(runID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Health reports liveness plus the effective execution configuration.
func (s *Service) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":            "healthy",
		"version":           "0.1.0",
		"starting_url_mode": s.config.StartingURLMode,
		"artifact_backend":  s.config.ArtifactBackend,
		"headless":          s.config.Headless,
		"active_sessions":   s.sessions.Active(),
	}
}

// planLimits bounds plans accepted from clients and from the planner.
func (s *Service) planLimits() dsl.Limits {
	return dsl.Limits{
		MaxSteps:  s.config.MaxPlanSteps,
		MaxWaitMS: int(s.config.MaxWaitSleep.Milliseconds()),
	}
}
