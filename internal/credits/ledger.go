// Package credits gates pipeline entry on a user's credit balance and
// performs the final debit atomically with job completion.
package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourorg/bulk-verify/internal/db"
	"github.com/yourorg/bulk-verify/internal/types"
)

// ErrUserNotFound indicates no account matched the given email.
var ErrUserNotFound = errors.New("user not found")

// InsufficientCreditsError reports the shortfall so callers can surface
// an actionable message.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: %d required, %d available", e.Required, e.Available)
}

// Balance is the result of a successful authorization. Available is the
// headroom left after this job's reservation: credits minus all
// outstanding reservations.
type Balance struct {
	UserID    int64
	Available int
}

// Ledger authorizes runs against and settles against the users table.
type Ledger struct {
	pool *db.Pool
}

// NewLedger binds a ledger to the connection pool.
func NewLedger(pool *db.Pool) *Ledger { return &Ledger{pool: pool} }

// Authorize reserves the declared row count against the user's balance.
// It must succeed before any verification work is dispatched, so a job
// never consumes API quota it cannot pay for. The reservation is a
// single compare-and-set against credits minus already-reserved amounts,
// so two concurrent jobs for the same user cannot both authorize against
// a balance neither has debited yet: one reserves, the other sees the
// shrunken headroom and fails here instead of at settlement. The caller
// must pair a successful Authorize with either Settle or Release.
func (l *Ledger) Authorize(ctx context.Context, userEmail string, required int) (Balance, error) {
	const reserve = `update users set reserved = reserved + $2
	                 where email=$1 and credits - reserved >= $2
	                 returning id, credits - reserved`
	var b Balance
	err := l.pool.QueryRow(ctx, reserve, userEmail, required).Scan(&b.UserID, &b.Available)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, fmt.Errorf("reserve credits: %w", err)
	}

	// No row matched: either the user is unknown or the headroom is short.
	const q = `select credits - reserved from users where email=$1`
	var available int
	if err := l.pool.QueryRow(ctx, q, userEmail).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, fmt.Errorf("%w: %s", ErrUserNotFound, userEmail)
		}
		return Balance{}, fmt.Errorf("read credit balance: %w", err)
	}
	return Balance{}, &InsufficientCreditsError{Required: required, Available: available}
}

// Release frees a reservation for a run that will not settle. Safe to
// call more than once for the same run; the reserved amount never goes
// negative.
func (l *Ledger) Release(ctx context.Context, userID int64, amount int) error {
	const q = `update users set reserved = greatest(reserved - $1, 0) where id=$2`
	if _, err := l.pool.Exec(ctx, q, amount, userID); err != nil {
		return fmt.Errorf("release credit reservation: %w", err)
	}
	return nil
}

// Settle debits consumed credits, converts the reservation taken at
// Authorize, and marks the file completed in a single transaction. Either
// both writes land or neither does: a failed run never leaves credits
// deducted without a completed job, nor a completed job with credits
// undeducted. The debit re-checks the balance (credits >= consumed) so it
// can never go negative under concurrency.
func (l *Ledger) Settle(ctx context.Context, userID int64, fileID string, consumed int, stats types.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	const debit = `update users set credits = credits - $1, reserved = greatest(reserved - $1, 0)
	               where id=$2 and credits >= $1`
	ct, err := tx.Exec(ctx, debit, consumed, userID)
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &InsufficientCreditsError{Required: consumed, Available: -1}
	}

	const complete = `update files set status='completed', stats=$2, credits_consumed=$3
                      where id=$1 and status='validating'`
	ct, err = tx.Exec(ctx, complete, fileID, statsJSON, consumed)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("mark completed %s: %w", fileID, db.ErrTerminalStatus)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}
