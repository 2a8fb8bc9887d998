package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uirun/uirun/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", connString(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection; pool growth would hand
	// out fresh empty databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	st := &SQLiteStore{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// connString layers the driver options every connection needs on top of the
// caller's DSN. Foreign keys and the busy timeout are per-connection settings
// in SQLite; encoding them in the DSN covers the whole pool.
func connString(dsn string) string {
	const opts = "_foreign_keys=on&_busy_timeout=5000"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + opts
	}
	return dsn + "?" + opts
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			task TEXT,
			status TEXT NOT NULL,
			starting_url TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL,
			instruction TEXT NOT NULL,
			verb TEXT,
			arg TEXT,
			requires_approval INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			executed_at DATETIME,
			PRIMARY KEY (run_id, step_id),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run_idx ON steps(run_id, idx)`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			payload TEXT,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			decided_by TEXT,
			reason TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_run ON approvals(run_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			label TEXT NOT NULL,
			path TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step_id, label),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS brand_docs (
			doc_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT,
			content TEXT NOT NULL,
			tags TEXT,
			embedding TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("failed to apply migration: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRunWithSteps inserts a run and its full plan in one transaction.
// The plan is immutable after this point.
func (s *SQLiteStore) CreateRunWithSteps(ctx context.Context, run *domain.Run, steps []domain.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, task, status, starting_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Task, run.Status, run.StartingURL, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return err
	}
	for _, st := range steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, step_id, idx, kind, instruction, verb, arg, requires_approval, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, st.StepID, st.Idx, st.Kind, st.Instruction, textOrNull(st.Verb), textOrNull(st.Arg), st.RequiresApproval, st.Status)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var task, errData sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, task, status, starting_url, error, created_at, updated_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &task, &run.Status, &run.StartingURL, &errData, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Task = task.String
	if errData.Valid {
		run.Error = json.RawMessage(errData.String)
	}
	return &run, nil
}

// ListRuns lists runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT run_id, task, status, starting_url, error, created_at, updated_at FROM runs ORDER BY created_at DESC, run_id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var task, errData sql.NullString
		if err := rows.Scan(&run.RunID, &task, &run.Status, &run.StartingURL, &errData, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		run.Task = task.String
		if errData.Valid {
			run.Error = json.RawMessage(errData.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TransitionRunStatus moves a run from one status to another. Returns false
// when the run is missing or not in the expected status.
func (s *SQLiteStore) TransitionRunStatus(ctx context.Context, runID string, from, to domain.RunStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ? AND status = ?`,
		to, time.Now(), runID, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteRun moves a run to a terminal status with an optional error
// payload. Guarded so a terminal run is never rewritten.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, errData []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE run_id = ? AND status NOT IN (?, ?)`,
		status, jsonOrNull(errData), time.Now(), runID, domain.RunStatusDone, domain.RunStatusError)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetSteps retrieves all steps of a run in plan order.
func (s *SQLiteStore) GetSteps(ctx context.Context, runID string) ([]domain.Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_id, idx, kind, instruction, verb, arg, requires_approval, status, executed_at FROM steps WHERE run_id = ? ORDER BY idx ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *st)
	}
	return steps, rows.Err()
}

// GetStep retrieves one step of a run.
func (s *SQLiteStore) GetStep(ctx context.Context, runID, stepID string) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, step_id, idx, kind, instruction, verb, arg, requires_approval, status, executed_at FROM steps WHERE run_id = ? AND step_id = ?`,
		runID, stepID)
	st, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NextPendingStep returns the first PENDING step in plan order, or nil
// when the plan is exhausted.
func (s *SQLiteStore) NextPendingStep(ctx context.Context, runID string) (*domain.Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, step_id, idx, kind, instruction, verb, arg, requires_approval, status, executed_at FROM steps WHERE run_id = ? AND status = ? ORDER BY idx ASC LIMIT 1`,
		runID, domain.StepStatusPending)
	st, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// FinishStep moves a PENDING step to a terminal status. Returns false when
// the step is missing or already terminal; a step never re-executes.
func (s *SQLiteStore) FinishStep(ctx context.Context, runID, stepID string, status domain.StepStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steps SET status = ?, executed_at = ? WHERE run_id = ? AND step_id = ? AND status = ?`,
		status, time.Now(), runID, stepID, domain.StepStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStep(r rowScanner) (*domain.Step, error) {
	var st domain.Step
	var verb, arg sql.NullString
	var executedAt sql.NullTime
	if err := r.Scan(&st.RunID, &st.StepID, &st.Idx, &st.Kind, &st.Instruction, &verb, &arg, &st.RequiresApproval, &st.Status, &executedAt); err != nil {
		return nil, err
	}
	st.Verb = verb.String
	st.Arg = arg.String
	if executedAt.Valid {
		t := executedAt.Time
		st.ExecutedAt = &t
	}
	return &st, nil
}

// AppendLog appends one audit entry. The per-run sequence number is
// assigned inside the insert so concurrent appends never reuse a seq;
// the assigned value is written back to entry.Seq.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry *domain.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_logs (run_id, seq, ts, level, message, payload)
		 SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ? FROM run_logs WHERE run_id = ?`,
		entry.RunID, entry.Ts, entry.Level, entry.Message, jsonOrNull(entry.Payload), entry.RunID)
	if err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM run_logs WHERE run_id = ?`, entry.RunID).Scan(&entry.Seq); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLogs retrieves audit entries for a run in sequence order.
func (s *SQLiteStore) GetLogs(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.LogEntry, error) {
	query := `SELECT run_id, seq, ts, level, message, payload FROM run_logs WHERE run_id = ?`
	args := []interface{}{runID}

	if afterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, afterSeq)
	}

	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		var payload sql.NullString
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Ts, &e.Level, &e.Message, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateApproval creates a new approval.
func (s *SQLiteStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (approval_id, run_id, step_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		approval.ApprovalID, approval.RunID, approval.StepID, approval.Status, approval.CreatedAt)
	return err
}

// GetApproval retrieves an approval by ID.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT approval_id, run_id, step_id, status, created_at, decided_at, decided_by, reason FROM approvals WHERE approval_id = ?`,
		approvalID)
	return scanApproval(row)
}

// GetApprovalForStep retrieves the most recent approval for a step.
func (s *SQLiteStore) GetApprovalForStep(ctx context.Context, runID, stepID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT approval_id, run_id, step_id, status, created_at, decided_at, decided_by, reason FROM approvals
		 WHERE run_id = ? AND step_id = ? ORDER BY created_at DESC, approval_id DESC LIMIT 1`,
		runID, stepID)
	return scanApproval(row)
}

// GetPendingApproval retrieves the pending approval for a run, if any.
func (s *SQLiteStore) GetPendingApproval(ctx context.Context, runID string) (*domain.Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT approval_id, run_id, step_id, status, created_at, decided_at, decided_by, reason FROM approvals
		 WHERE run_id = ? AND status = ? ORDER BY created_at DESC, approval_id DESC LIMIT 1`,
		runID, domain.ApprovalStatusPending)
	return scanApproval(row)
}

// DecideApproval resolves a PENDING approval. Returns false when the
// approval is missing or already decided.
func (s *SQLiteStore) DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, decidedBy, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, decided_at = ?, decided_by = ?, reason = ? WHERE approval_id = ? AND status = ?`,
		status, time.Now(), textOrNull(decidedBy), textOrNull(reason), approvalID, domain.ApprovalStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanApproval(row *sql.Row) (*domain.Approval, error) {
	var ap domain.Approval
	var decidedAt sql.NullTime
	var decidedBy, reason sql.NullString
	err := row.Scan(&ap.ApprovalID, &ap.RunID, &ap.StepID, &ap.Status, &ap.CreatedAt, &decidedAt, &decidedBy, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ap.DecidedBy = decidedBy.String
	ap.Reason = reason.String
	if decidedAt.Valid {
		t := decidedAt.Time
		ap.DecidedAt = &t
	}
	return &ap, nil
}

// CreateArtifact records artifact metadata. The (run_id, step_id, label)
// key is unique; a second insert for the same key fails.
func (s *SQLiteStore) CreateArtifact(ctx context.Context, artifact *domain.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (run_id, step_id, label, path, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		artifact.RunID, artifact.StepID, artifact.Label, artifact.Path, artifact.Size, artifact.CreatedAt)
	return err
}

// GetArtifact retrieves artifact metadata by key.
func (s *SQLiteStore) GetArtifact(ctx context.Context, runID, stepID, label string) (*domain.Artifact, error) {
	var a domain.Artifact
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, step_id, label, path, size, created_at FROM artifacts WHERE run_id = ? AND step_id = ? AND label = ?`,
		runID, stepID, label).Scan(&a.RunID, &a.StepID, &a.Label, &a.Path, &a.Size, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArtifacts lists artifact metadata for a run in creation order.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step_id, label, path, size, created_at FROM artifacts WHERE run_id = ? ORDER BY created_at ASC, step_id ASC, label ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.RunID, &a.StepID, &a.Label, &a.Path, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// CreateBrandDoc stores a brand-kit document with its embedding.
func (s *SQLiteStore) CreateBrandDoc(ctx context.Context, doc *domain.BrandDoc) error {
	var embedding sql.NullString
	if len(doc.Embedding) > 0 {
		b, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		embedding = jsonOrNull(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO brand_docs (doc_id, title, source, content, tags, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.DocID, doc.Title, textOrNull(doc.Source), doc.Content, textOrNull(doc.Tags), embedding, doc.CreatedAt)
	return err
}

// ListBrandDocs lists all brand-kit documents with embeddings decoded.
func (s *SQLiteStore) ListBrandDocs(ctx context.Context) ([]domain.BrandDoc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, title, source, content, tags, embedding, created_at FROM brand_docs ORDER BY created_at ASC, doc_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.BrandDoc
	for rows.Next() {
		var d domain.BrandDoc
		var source, tags, embedding sql.NullString
		if err := rows.Scan(&d.DocID, &d.Title, &source, &d.Content, &tags, &embedding, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Source = source.String
		d.Tags = tags.String
		if embedding.Valid {
			if err := json.Unmarshal([]byte(embedding.String), &d.Embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding for %s: %w", d.DocID, err)
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func textOrNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonOrNull(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}
