package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourorg/bulk-verify/internal/types"
)

// Validation run statuses. The state machine is
// in_queue -> validating -> {completed, error}; terminal states are never
// left, which every UPDATE below enforces in its WHERE clause.
const (
	StatusInQueue    = "in_queue"
	StatusValidating = "validating"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// FileRecord is one validation run: created at enqueue time, mutated at
// completion or failure, never deleted by the pipeline.
type FileRecord struct {
	ID              string
	UserID          int64
	Filename        string
	Status          string
	Stats           types.Stats
	CreditsConsumed int
	ErrorMessage    *string
	CreatedAt       time.Time
}

// FileRepository records pipeline lifecycle transitions for status queries.
type FileRepository interface {
	// RecordStart writes in_queue before any processing begins, so a status
	// query during queueing returns a real record.
	RecordStart(ctx context.Context, id string, userID int64, filename string) (FileRecord, error)
	// MarkValidating transitions in_queue -> validating.
	MarkValidating(ctx context.Context, id string) error
	// RecordFailure writes error with the captured message; it refuses to
	// overwrite a terminal status.
	RecordFailure(ctx context.Context, id, errMsg string) error
	Get(ctx context.Context, id string) (FileRecord, error)
}

// NewFileRepo returns a repository bound to the pool.
func NewFileRepo(p *Pool) FileRepository { return &fileRepo{p: p} }

type fileRepo struct{ p *Pool }

func (r *fileRepo) RecordStart(ctx context.Context, id string, userID int64, filename string) (FileRecord, error) {
	const q = `insert into files (id, user_id, filename, status) values ($1, $2, $3, 'in_queue')
               returning id, user_id, filename, status, coalesce(stats,'{}'::jsonb), credits_consumed, error_message, created_at`
	return r.scanOne(r.p.QueryRow(ctx, q, id, userID, filename))
}

func (r *fileRepo) MarkValidating(ctx context.Context, id string) error {
	const q = `update files set status='validating' where id=$1 and status='in_queue'`
	ct, err := r.p.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("mark validating %s: %w", id, ErrTerminalStatus)
	}
	return nil
}

func (r *fileRepo) RecordFailure(ctx context.Context, id, errMsg string) error {
	const q = `update files set status='error', error_message=$2 where id=$1 and status not in ('completed','error')`
	ct, err := r.p.Exec(ctx, q, id, errMsg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("record failure %s: %w", id, ErrTerminalStatus)
	}
	return nil
}

func (r *fileRepo) Get(ctx context.Context, id string) (FileRecord, error) {
	const q = `select id, user_id, filename, status, coalesce(stats,'{}'::jsonb), credits_consumed, error_message, created_at
               from files where id=$1`
	return r.scanOne(r.p.QueryRow(ctx, q, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *fileRepo) scanOne(row rowScanner) (FileRecord, error) {
	var f FileRecord
	var stats []byte
	err := row.Scan(&f.ID, &f.UserID, &f.Filename, &f.Status, &stats, &f.CreditsConsumed, &f.ErrorMessage, &f.CreatedAt)
	if err != nil {
		return FileRecord{}, mapRowErr(err)
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &f.Stats); err != nil {
			return FileRecord{}, fmt.Errorf("decode stats for %s: %w", f.ID, err)
		}
	}
	return f, nil
}
