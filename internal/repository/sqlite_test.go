package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/uirun/uirun/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func seedRun(t *testing.T, s *SQLiteStore, runID string) {
	t.Helper()
	run := &domain.Run{
		RunID:       runID,
		Task:        "log into the demo site",
		Status:      domain.RunStatusCreated,
		StartingURL: "https://the-internet.herokuapp.com/",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	steps := []domain.Step{
		{StepID: "S1", Idx: 0, Kind: domain.StepKindUI, Instruction: "CLICK_TEXT: Form Authentication", Verb: "CLICK_TEXT", Arg: "Form Authentication", Status: domain.StepStatusPending},
		{StepID: "S2", Idx: 1, Kind: domain.StepKindUI, Instruction: "TYPE_ID: username = tomsmith", Verb: "TYPE_ID", Arg: "username", Status: domain.StepStatusPending},
		{StepID: "S3", Idx: 2, Kind: domain.StepKindNonUI, Instruction: "Draft a welcome note", RequiresApproval: true, Status: domain.StepStatusPending},
	}
	if err := s.CreateRunWithSteps(context.Background(), run, steps); err != nil {
		t.Fatalf("CreateRunWithSteps failed: %v", err)
	}
}

func TestSQLiteStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedRun(t, store, "run_1")

	got, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.Status != domain.RunStatusCreated {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.StartingURL != "https://the-internet.herokuapp.com/" {
		t.Fatalf("unexpected starting url: %s", got.StartingURL)
	}

	missing, err := store.GetRun(ctx, "run_none")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing run")
	}

	ok, err := store.TransitionRunStatus(ctx, "run_1", domain.RunStatusCreated, domain.RunStatusRunning)
	if err != nil {
		t.Fatalf("TransitionRunStatus failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected transition to apply")
	}

	// Guarded: a second identical transition finds the wrong from-status.
	ok, err = store.TransitionRunStatus(ctx, "run_1", domain.RunStatusCreated, domain.RunStatusRunning)
	if err != nil {
		t.Fatalf("TransitionRunStatus failed: %v", err)
	}
	if ok {
		t.Fatalf("expected guarded transition to be a no-op")
	}

	ok, err = store.CompleteRun(ctx, "run_1", domain.RunStatusError, []byte(`{"kind":"Timeout"}`))
	if err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected completion to apply")
	}

	got, err = store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != domain.RunStatusError || len(got.Error) == 0 {
		t.Fatalf("unexpected run after completion: %+v", got)
	}

	// Terminal runs stay terminal.
	ok, err = store.CompleteRun(ctx, "run_1", domain.RunStatusDone, nil)
	if err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if ok {
		t.Fatalf("expected terminal run to be immutable")
	}
}

func TestSQLiteStoreStepOrderAndGuards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedRun(t, store, "run_1")

	steps, err := store.GetSteps(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetSteps failed: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, st := range steps {
		if st.Idx != i {
			t.Fatalf("steps out of order at %d: %+v", i, st)
		}
	}
	if !steps[2].RequiresApproval {
		t.Fatalf("requires_approval not persisted")
	}
	if steps[2].Kind != domain.StepKindNonUI {
		t.Fatalf("unexpected kind: %s", steps[2].Kind)
	}

	next, err := store.NextPendingStep(ctx, "run_1")
	if err != nil {
		t.Fatalf("NextPendingStep failed: %v", err)
	}
	if next == nil || next.StepID != "S1" {
		t.Fatalf("unexpected next step: %+v", next)
	}

	ok, err := store.FinishStep(ctx, "run_1", "S1", domain.StepStatusExecuted)
	if err != nil {
		t.Fatalf("FinishStep failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected finish to apply")
	}

	// A finished step never moves again.
	ok, err = store.FinishStep(ctx, "run_1", "S1", domain.StepStatusFailed)
	if err != nil {
		t.Fatalf("FinishStep failed: %v", err)
	}
	if ok {
		t.Fatalf("expected terminal step to be immutable")
	}

	got, err := store.GetStep(ctx, "run_1", "S1")
	if err != nil {
		t.Fatalf("GetStep failed: %v", err)
	}
	if got.Status != domain.StepStatusExecuted || got.ExecutedAt == nil {
		t.Fatalf("unexpected step: %+v", got)
	}

	next, err = store.NextPendingStep(ctx, "run_1")
	if err != nil {
		t.Fatalf("NextPendingStep failed: %v", err)
	}
	if next == nil || next.StepID != "S2" {
		t.Fatalf("expected S2 next, got %+v", next)
	}

	store.FinishStep(ctx, "run_1", "S2", domain.StepStatusExecuted)
	store.FinishStep(ctx, "run_1", "S3", domain.StepStatusSkipped)

	next, err = store.NextPendingStep(ctx, "run_1")
	if err != nil {
		t.Fatalf("NextPendingStep failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected exhausted plan, got %+v", next)
	}
}

func TestSQLiteStoreAppendLogAssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedRun(t, store, "run_1")
	seedRun(t, store, "run_2")

	for i := 1; i <= 3; i++ {
		entry := &domain.LogEntry{
			RunID:   "run_1",
			Ts:      time.Now(),
			Level:   domain.LogLevelInfo,
			Message: domain.LogMsgExecutingStep,
			Payload: json.RawMessage(fmt.Sprintf(`{"step_index":%d}`, i)),
		}
		if err := store.AppendLog(ctx, entry); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
		if entry.Seq != int64(i) {
			t.Fatalf("expected seq %d, got %d", i, entry.Seq)
		}
	}

	// Sequences are per run.
	other := &domain.LogEntry{RunID: "run_2", Ts: time.Now(), Level: domain.LogLevelInfo, Message: domain.LogMsgRunCreated}
	if err := store.AppendLog(ctx, other); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	if other.Seq != 1 {
		t.Fatalf("expected seq 1 for second run, got %d", other.Seq)
	}

	logs, err := store.GetLogs(ctx, "run_1", 0, 0)
	if err != nil {
		t.Fatalf("GetLogs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(logs))
	}
	for i, e := range logs {
		if e.Seq != int64(i+1) {
			t.Fatalf("entries out of order: %+v", logs)
		}
	}

	tail, err := store.GetLogs(ctx, "run_1", 1, 0)
	if err != nil {
		t.Fatalf("GetLogs failed: %v", err)
	}
	if len(tail) != 2 || tail[0].Seq != 2 {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestSQLiteStoreApprovals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedRun(t, store, "run_1")

	ap := &domain.Approval{
		ApprovalID: "ap_1",
		RunID:      "run_1",
		StepID:     "S3",
		Status:     domain.ApprovalStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := store.CreateApproval(ctx, ap); err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	pending, err := store.GetPendingApproval(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetPendingApproval failed: %v", err)
	}
	if pending == nil || pending.ApprovalID != "ap_1" {
		t.Fatalf("unexpected pending approval: %+v", pending)
	}

	ok, err := store.DecideApproval(ctx, "ap_1", domain.ApprovalStatusApproved, "operator", "looks safe")
	if err != nil {
		t.Fatalf("DecideApproval failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected decision to apply")
	}

	// Decisions are final.
	ok, err = store.DecideApproval(ctx, "ap_1", domain.ApprovalStatusDenied, "operator", "")
	if err != nil {
		t.Fatalf("DecideApproval failed: %v", err)
	}
	if ok {
		t.Fatalf("expected decided approval to be immutable")
	}

	got, err := store.GetApprovalForStep(ctx, "run_1", "S3")
	if err != nil {
		t.Fatalf("GetApprovalForStep failed: %v", err)
	}
	if got == nil || got.Status != domain.ApprovalStatusApproved || got.DecidedBy != "operator" || got.DecidedAt == nil {
		t.Fatalf("unexpected approval: %+v", got)
	}

	pending, err = store.GetPendingApproval(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetPendingApproval failed: %v", err)
	}
	if pending != nil {
		t.Fatalf("expected no pending approval, got %+v", pending)
	}
}

func TestSQLiteStoreArtifactsWriteOnceKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seedRun(t, store, "run_1")

	a := &domain.Artifact{
		RunID:     "run_1",
		StepID:    "S1",
		Label:     "shot",
		Path:      "/artifacts/run_1/S1/shot.png",
		Size:      1024,
		CreatedAt: time.Now(),
	}
	if err := store.CreateArtifact(ctx, a); err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}
	if err := store.CreateArtifact(ctx, a); err == nil {
		t.Fatalf("expected duplicate key to fail")
	}

	got, err := store.GetArtifact(ctx, "run_1", "S1", "shot")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if got == nil || got.Path != "/artifacts/run_1/S1/shot.png" || got.Size != 1024 {
		t.Fatalf("unexpected artifact: %+v", got)
	}

	missing, err := store.GetArtifact(ctx, "run_1", "S1", "other")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing artifact")
	}

	list, err := store.ListArtifacts(ctx, "run_1")
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(list))
	}
}

func TestSQLiteStoreBrandDocs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	doc := &domain.BrandDoc{
		DocID:     "doc_1",
		Title:     "Voice and tone",
		Source:    "brand-kit.md",
		Content:   "Keep copy short and friendly.",
		Tags:      "voice,tone",
		Embedding: []float64{0.1, -0.2, 0.3},
		CreatedAt: time.Now(),
	}
	if err := store.CreateBrandDoc(ctx, doc); err != nil {
		t.Fatalf("CreateBrandDoc failed: %v", err)
	}

	docs, err := store.ListBrandDocs(ctx)
	if err != nil {
		t.Fatalf("ListBrandDocs failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0].Title != "Voice and tone" || len(docs[0].Embedding) != 3 {
		t.Fatalf("unexpected doc: %+v", docs[0])
	}
	if docs[0].Embedding[1] != -0.2 {
		t.Fatalf("embedding not preserved: %+v", docs[0].Embedding)
	}
}
