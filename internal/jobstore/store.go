// Package jobstore durably records translation jobs and their chunk-level
// progress. One engine run owns one job, but the store serializes
// conflicting writes (single connection, WAL, busy timeout) so interleaved
// readers never observe a torn update.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/valpere/booktran/internal"
)

// ErrNotFound is returned by Get for an unknown job id.
var ErrNotFound = errors.New("job not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate job schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		progress REAL NOT NULL DEFAULT 0,
		current_chunk INTEGER NOT NULL DEFAULT 0,
		total_chunks INTEGER NOT NULL DEFAULT 0,
		original_text TEXT,
		machine_translation TEXT,
		translated_text TEXT,
		error_message TEXT,
		llm_refine BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		translation_id TEXT NOT NULL,
		chunk_number INTEGER NOT NULL,
		original_text TEXT,
		machine_translation TEXT,
		translated_text TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (translation_id, chunk_number),
		FOREIGN KEY (translation_id) REFERENCES translations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_translations_status ON translations(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateParams are the immutable fields of a new job.
type CreateParams struct {
	Filename     string
	SourceLang   string
	TargetLang   string
	Model        string
	OriginalText string
	LLMRefine    bool
}

// Create inserts a job in status in_progress and returns it. Job ids are
// opaque UUIDs.
func (s *Store) Create(ctx context.Context, p CreateParams) (*internal.Job, error) {
	now := time.Now()
	job := &internal.Job{
		ID:           uuid.New().String(),
		Filename:     p.Filename,
		SourceLang:   p.SourceLang,
		TargetLang:   p.TargetLang,
		Model:        p.Model,
		Status:       internal.StatusInProgress,
		OriginalText: p.OriginalText,
		LLMRefine:    p.LLMRefine,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations
		 (id, filename, source_lang, target_lang, model, status, original_text, llm_refine, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Filename, job.SourceLang, job.TargetLang, job.Model,
		string(job.Status), job.OriginalText, job.LLMRefine, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Update carries the mutable job fields; nil pointers are left untouched.
// All set fields are written in one statement, so no partial update is
// ever visible.
type Update struct {
	Status             *internal.Status
	Progress           *float64
	CurrentChunk       *int
	TotalChunks        *int
	MachineTranslation *string
	TranslatedText     *string
	ErrorMessage       *string
}

// Apply writes the set fields of u and refreshes updated_at.
func (s *Store) Apply(ctx context.Context, jobID string, u Update) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Progress != nil {
		add("progress", *u.Progress)
	}
	if u.CurrentChunk != nil {
		add("current_chunk", *u.CurrentChunk)
	}
	if u.TotalChunks != nil {
		add("total_chunks", *u.TotalChunks)
	}
	if u.MachineTranslation != nil {
		add("machine_translation", *u.MachineTranslation)
	}
	if u.TranslatedText != nil {
		add("translated_text", *u.TranslatedText)
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}

	args = append(args, jobID)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE translations SET %s WHERE id = ?`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}

const jobColumns = `id, filename, source_lang, target_lang, model, status, progress,
	current_chunk, total_chunks, original_text, machine_translation, translated_text,
	error_message, llm_refine, created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*internal.Job, error) {
	var job internal.Job
	var status string
	var originalText, machineTranslation, translatedText, errorMessage sql.NullString

	err := row.Scan(&job.ID, &job.Filename, &job.SourceLang, &job.TargetLang, &job.Model,
		&status, &job.Progress, &job.CurrentChunk, &job.TotalChunks,
		&originalText, &machineTranslation, &translatedText, &errorMessage,
		&job.LLMRefine, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	job.Status = internal.Status(status)
	job.OriginalText = originalText.String
	job.MachineTranslation = machineTranslation.String
	job.TranslatedText = translatedText.String
	job.ErrorMessage = errorMessage.String
	return &job, nil
}

// Get returns a job by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*internal.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM translations WHERE id = ?`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return job, nil
}

// Filter restricts List. The zero value lists everything.
type Filter struct {
	Status internal.Status
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Store) List(ctx context.Context, f Filter) ([]internal.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM translations`
	var args []interface{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []internal.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// RecordChunk upserts a chunk sub-record, bumping its attempt count on
// re-processing. These rows only feed recovery; the pipeline recomputes
// segmentation from the original text.
func (s *Store) RecordChunk(ctx context.Context, rec internal.ChunkRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks
		 (translation_id, chunk_number, original_text, machine_translation, translated_text, status, error_message, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(translation_id, chunk_number) DO UPDATE SET
		 	original_text = excluded.original_text,
		 	machine_translation = excluded.machine_translation,
		 	translated_text = excluded.translated_text,
		 	status = excluded.status,
		 	error_message = excluded.error_message,
		 	attempts = attempts + 1`,
		rec.JobID, rec.ChunkNumber, rec.OriginalText, rec.MachineTranslation,
		rec.TranslatedText, string(rec.Status), rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to record chunk %d of job %s: %w", rec.ChunkNumber, rec.JobID, err)
	}
	return nil
}

// Chunks returns a job's chunk records ordered by chunk number.
func (s *Store) Chunks(ctx context.Context, jobID string) ([]internal.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT translation_id, chunk_number, original_text, machine_translation,
		        translated_text, status, error_message, attempts
		 FROM chunks WHERE translation_id = ? ORDER BY chunk_number`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var recs []internal.ChunkRecord
	for rows.Next() {
		var rec internal.ChunkRecord
		var status string
		var orig, machine, translated, errMsg sql.NullString
		if err := rows.Scan(&rec.JobID, &rec.ChunkNumber, &orig, &machine,
			&translated, &status, &errMsg, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Status = internal.Status(status)
		rec.OriginalText = orig.String
		rec.MachineTranslation = machine.String
		rec.TranslatedText = translated.String
		rec.ErrorMessage = errMsg.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ResetErrorChunks moves a job's failed chunk records back to pending and
// clears their error messages. Missing records are not an error.
func (s *Store) ResetErrorChunks(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET status = ?, error_message = NULL
		 WHERE translation_id = ? AND status = ?`,
		string(internal.StatusPending), jobID, string(internal.StatusError))
	return err
}

// DeleteFailedOlderThan removes error-status jobs created before the age
// threshold, cascading only to their own chunk records. Irreversible.
func (s *Store) DeleteFailedOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reap transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE translation_id IN
		 (SELECT id FROM translations WHERE status = ? AND created_at < ?)`,
		string(internal.StatusError), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap chunks: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM translations WHERE status = ? AND created_at < ?`,
		string(internal.StatusError), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap jobs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping verifies the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
