package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

// CloseSession tears down the run's browser session, waiting for an
// in-flight step to drain first. Closing a run without a session is a
// no-op; the returned flag reports whether a live session was closed.
// The run itself stays dispatchable, a later step reopens the session.
func (s *Service) CloseSession(ctx context.Context, runID string) (bool, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return false, fmt.Errorf("run not found")
	}

	closed, err := s.sessions.Close(ctx, runID)
	if err != nil {
		log.Printf("WARN: session close for run %s reported: %v", runID, err)
	}
	if closed {
		s.appendLog(ctx, runID, domain.LogLevelInfo, domain.LogMsgSessionClosed, domain.SessionPayload{
			Reason: "requested",
		})
	}
	return closed, nil
}

// SweepSessions reclaims sessions idle past the TTL and returns the run
// IDs whose sessions were torn down. Sessions with a step in flight are
// left alone.
func (s *Service) SweepSessions(ctx context.Context) []string {
	reclaimed := s.sessions.ReapIdle(ctx)
	for _, runID := range reclaimed {
		s.appendLog(ctx, runID, domain.LogLevelInfo, domain.LogMsgSessionReclaimed, domain.SessionPayload{
			Reason: "idle",
		})
	}
	return reclaimed
}

// RunSessionSweeper reclaims idle sessions on an interval until the
// context is cancelled. Run this in a goroutine at startup.
func (s *Service) RunSessionSweeper(ctx context.Context) {
	interval := s.config.SessionSweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Session sweeper started (interval: %v, idle TTL: %v)", interval, s.config.SessionIdleTTL)

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper stopped")
			return
		case <-ticker.C:
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if reclaimed := s.SweepSessions(sctx); len(reclaimed) > 0 {
				log.Printf("Reclaimed %d idle session(s): %v", len(reclaimed), reclaimed)
			}
			cancel()
		}
	}
}
