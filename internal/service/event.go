package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

// appendLog writes one audit entry for a run; the store assigns the
// sequence number. Audit failures never fail the operation that caused
// them; they are logged and the caller continues. Every stored entry is
// also pushed best-effort to the notify sink so frontends can stream
// run progress without polling.
func (s *Service) appendLog(ctx context.Context, runID string, level domain.LogLevel, message string, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("ERROR: failed to marshal audit payload for run %s: %v", runID, err)
			return
		}
		raw = data
	}

	entry := &domain.LogEntry{
		RunID:   runID,
		Ts:      time.Now().UTC(),
		Level:   level,
		Message: message,
		Payload: raw,
	}

	if err := s.store.AppendLog(ctx, entry); err != nil {
		log.Printf("ERROR: failed to append audit entry %q for run %s: %v", message, runID, err)
		return
	}

	if s.notify == nil {
		return
	}
	event := map[string]interface{}{
		"type":    "audit",
		"run_id":  entry.RunID,
		"seq":     entry.Seq,
		"ts":      entry.Ts.UnixMilli(),
		"level":   string(entry.Level),
		"message": entry.Message,
	}
	if len(entry.Payload) > 0 {
		event["payload"] = entry.Payload
	}
	if err := s.notify.PushRunEvent(runID, event); err != nil {
		log.Printf("WARN: failed to push audit entry for run %s: %v", runID, err)
	}
}
