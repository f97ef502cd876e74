package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/bulk-verify/internal/types"
)

// TaskQueue is the queue shared by the API and the worker.
const TaskQueue = "bulk-verify"

// ValidationWorkflow runs one validation job. The whole run is a single
// activity: credits, chunk workers and settlement all live inside one
// process, and a partially-run job cannot be resumed safely, so
// MaximumAttempts is 1. Retrying would re-verify addresses the user was
// already charged API quota for.
func ValidationWorkflow(ctx workflow.Context, p types.JobParams) (types.RunResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var res types.RunResult
	if err := workflow.ExecuteActivity(ctx, "Activities.RunValidation", p).Get(ctx, &res); err != nil {
		return types.RunResult{}, err
	}
	return res, nil
}
