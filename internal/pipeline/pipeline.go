// Package pipeline orchestrates one validation run: authorize credits,
// fetch the uploaded table, split out the address column, fan out
// verification over chunk workers, merge results back in row order,
// upload the augmented table, and settle credits atomically with the
// completed status.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/bulk-verify/internal/credits"
	mergepkg "github.com/yourorg/bulk-verify/internal/merge"
	"github.com/yourorg/bulk-verify/internal/metrics"
	"github.com/yourorg/bulk-verify/internal/schedule"
	"github.com/yourorg/bulk-verify/internal/storage"
	"github.com/yourorg/bulk-verify/internal/tabular"
	"github.com/yourorg/bulk-verify/internal/types"
)

// Ledger gates entry and finalizes exit of a run. Authorize reserves the
// credits; a run must end in exactly one of Settle (which converts the
// reservation to a debit) or Release.
type Ledger interface {
	Authorize(ctx context.Context, userEmail string, required int) (credits.Balance, error)
	Release(ctx context.Context, userID int64, amount int) error
	Settle(ctx context.Context, userID int64, fileID string, consumed int, stats types.Stats) error
}

// StatusRecorder writes lifecycle transitions visible to status queries.
type StatusRecorder interface {
	MarkValidating(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id, errMsg string) error
}

// Config tunes the run-independent knobs.
type Config struct {
	// Workers is the chunk fan-out. Default schedule.DefaultWorkers.
	Workers int
	// UploadAttempts bounds augmented-file upload retries. Default 3.
	UploadAttempts int
	// UploadBackoff is the fixed delay between upload attempts. Default 2s.
	UploadBackoff time.Duration
}

// Pipeline holds the injected collaborators for one deployment. It keeps
// no per-run state; Run may be invoked concurrently.
type Pipeline struct {
	store    storage.ObjectStore
	verifier schedule.Verifier
	ledger   Ledger
	status   StatusRecorder
	log      *zap.Logger
	cfg      Config
}

// New wires a pipeline from its collaborators.
func New(store storage.ObjectStore, verifier schedule.Verifier, ledger Ledger, status StatusRecorder, log *zap.Logger, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = schedule.DefaultWorkers
	}
	if cfg.UploadAttempts <= 0 {
		cfg.UploadAttempts = 3
	}
	if cfg.UploadBackoff <= 0 {
		cfg.UploadBackoff = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: store, verifier: verifier, ledger: ledger, status: status, log: log, cfg: cfg}
}

// Run executes one validation job. Progress is coarse: 0 at start, 100 at
// finish. On any failure the job status is recorded as error best-effort
// and the original error is returned; a secondary storage error never
// masks it.
func (p *Pipeline) Run(ctx context.Context, params types.JobParams, progress func(int)) (types.RunResult, error) {
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)
	log := p.log.With(zap.String("fileID", params.FileID), zap.String("user", params.UserEmail))

	// Authorization comes first: no blob access or verification calls may
	// happen for a job the user cannot pay for.
	bal, err := p.ledger.Authorize(ctx, params.UserEmail, params.TotalEmails)
	if err != nil {
		return p.fail(ctx, params.FileID, log, err)
	}
	// The reservation taken above is consumed by Settle; any earlier exit
	// must hand it back or the user's headroom leaks away.
	release := func(cause error) (types.RunResult, error) {
		if relErr := p.ledger.Release(ctx, bal.UserID, params.TotalEmails); relErr != nil {
			log.Error("failed to release credit reservation", zap.Error(relErr))
		}
		return p.fail(ctx, params.FileID, log, cause)
	}

	if err := p.status.MarkValidating(ctx, params.FileID); err != nil {
		return release(err)
	}

	header, rows, records, withAddress, sourceURI, err := p.load(ctx, params)
	if err != nil {
		return release(err)
	}
	log.Info("dispatching verification",
		zap.Int("rows", len(records)), zap.Int("workers", p.cfg.Workers))

	outcomes, err := schedule.Run(ctx, p.verifier, records, p.cfg.Workers)
	if err != nil {
		return release(err)
	}

	outHeader, outRows, stats, err := mergepkg.Merge(header, rows, outcomes, params.ColumnIndex, withAddress)
	if err != nil {
		return release(err)
	}

	rendered, err := tabular.Render(outHeader, outRows)
	if err != nil {
		return release(fmt.Errorf("render output: %w", err))
	}
	outputURI := validatedURI(sourceURI)
	if _, err := storage.PutWithRetry(ctx, p.store, outputURI, rendered, "text/csv", p.cfg.UploadAttempts, p.cfg.UploadBackoff); err != nil {
		return release(fmt.Errorf("upload augmented file: %w", err))
	}

	// Settlement is the last durable write: debit and completed status land
	// in one transaction or not at all.
	if err := p.ledger.Settle(ctx, bal.UserID, params.FileID, stats.Total, stats); err != nil {
		return release(fmt.Errorf("settle credits: %w", err))
	}

	if withAddress {
		// Intermediate extracts are scratch; the run's outcome no longer
		// depends on them.
		if err := p.store.Delete(ctx, params.FullFilename, params.EmailsFilename); err != nil {
			log.Warn("cleanup of intermediate files failed", zap.Error(err))
		}
	}

	metrics.JobsCompleted.Inc()
	progress(100)
	log.Info("validation run completed",
		zap.Int("valid", stats.Valid), zap.Int("invalid", stats.Invalid),
		zap.Int("unverifiable", stats.Unverifiable), zap.String("output", outputURI))
	return types.RunResult{
		Message:         "validation complete",
		Status:          "completed",
		Stats:           stats,
		CreditsConsumed: stats.Total,
		OutputURI:       outputURI,
	}, nil
}

// load fetches and parses the input, returning the header, the rows the
// merger will thread outcomes onto, and the address extract. withAddress
// reports the split-file variant, where the address column must be
// re-inserted at merge time.
func (p *Pipeline) load(ctx context.Context, params types.JobParams) (tabular.Row, []tabular.Row, []types.EmailRecord, bool, string, error) {
	if params.Filename != "" {
		t, err := p.fetchTable(ctx, params.Filename)
		if err != nil {
			return nil, nil, nil, false, "", err
		}
		if _, err := tabular.LocateAddressColumn(t, params.ColumnIndex); err != nil {
			return nil, nil, nil, false, "", err
		}
		p.reportInconsistent(params.FileID, t)
		records, _ := tabular.Split(t.Rows, params.ColumnIndex)
		return t.Header, t.Rows, records, false, params.Filename, nil
	}

	if params.FullFilename == "" || params.EmailsFilename == "" {
		return nil, nil, nil, false, "", fmt.Errorf("job %s carries neither a filename nor a file pair", params.FileID)
	}
	emails, err := p.fetchTable(ctx, params.EmailsFilename)
	if err != nil {
		return nil, nil, nil, false, "", err
	}
	full, err := p.fetchTable(ctx, params.FullFilename)
	if err != nil {
		return nil, nil, nil, false, "", err
	}
	if len(emails.Rows) != len(full.Rows) {
		return nil, nil, nil, false, "", fmt.Errorf("extract mismatch: %d addresses for %d rows", len(emails.Rows), len(full.Rows))
	}
	p.reportInconsistent(params.FileID, full)
	records, _ := tabular.Split(emails.Rows, 0)
	return full.Header, full.Rows, records, true, params.FullFilename, nil
}

func (p *Pipeline) fetchTable(ctx context.Context, uri string) (tabular.Table, error) {
	rc, _, err := p.store.Get(ctx, uri)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer rc.Close()
	t, err := tabular.ParseNamed(uri, rc)
	if err != nil {
		return tabular.Table{}, fmt.Errorf("parse %s: %w", uri, err)
	}
	return t, nil
}

func (p *Pipeline) reportInconsistent(fileID string, t tabular.Table) {
	if len(t.InconsistentRows) > 0 {
		p.log.Warn("rows with inconsistent column count",
			zap.String("fileID", fileID), zap.Int("count", len(t.InconsistentRows)))
	}
}

// fail records the error status best-effort and always returns the
// original error.
func (p *Pipeline) fail(ctx context.Context, fileID string, log *zap.Logger, cause error) (types.RunResult, error) {
	metrics.JobsFailed.Inc()
	if recErr := p.status.RecordFailure(ctx, fileID, cause.Error()); recErr != nil {
		log.Error("failed to record error status", zap.Error(recErr), zap.NamedError("cause", cause))
	}
	return types.RunResult{}, cause
}

// validatedURI derives the output object name from the input's,
// inserting "_validated" and normalizing the extension to .csv.
func validatedURI(uri string) string {
	ext := path.Ext(uri)
	return strings.TrimSuffix(uri, ext) + "_validated.csv"
}
