package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/yourorg/bulk-verify/internal/pipeline"
	"github.com/yourorg/bulk-verify/internal/types"
)

// Activities exposes the validation pipeline to the Temporal worker.
type Activities struct {
	pl *pipeline.Pipeline
}

// New binds the activity set to a wired pipeline.
func New(pl *pipeline.Pipeline) *Activities { return &Activities{pl: pl} }

// RunValidation executes one validation run end to end. The run is atomic
// from the caller's perspective; the workflow configures zero retries so
// a crashed run stays in validating for monitoring rather than being
// resumed automatically.
func (a *Activities) RunValidation(ctx context.Context, p types.JobParams) (types.RunResult, error) {
	log := activity.GetLogger(ctx)
	log.Info("validation run starting", "fileID", p.FileID, "totalEmails", p.TotalEmails)

	res, err := a.pl.Run(ctx, p, func(pct int) {
		activity.RecordHeartbeat(ctx, pct)
	})
	if err != nil {
		log.Error("validation run failed", "fileID", p.FileID, "error", err)
		return types.RunResult{}, err
	}
	return res, nil
}
