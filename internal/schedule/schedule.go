package schedule

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/bulk-verify/internal/types"
)

// DefaultWorkers is the fixed fan-out used when no override is configured.
const DefaultWorkers = 4

// Verifier classifies a single address. The concrete client never returns
// an error; a stub used in tests may panic, which the scheduler treats as
// a fatal worker failure.
type Verifier interface {
	Verify(ctx context.Context, address string) types.Outcome
}

// Chunks partitions record indices round-robin: chunk i receives indices
// congruent to i mod workers. This spreads slow or blocked addresses
// evenly across workers instead of stalling one worker on a bad
// contiguous run. Chunks may be empty when there are fewer records than
// workers.
func Chunks(n, workers int) [][]int {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	out := make([][]int, workers)
	for i := 0; i < n; i++ {
		w := i % workers
		out[w] = append(out[w], i)
	}
	return out
}

// Run verifies all records with bounded parallelism: one goroutine per
// non-empty chunk, each driving the verifier sequentially over its chunk.
// The returned slice is positionally aligned with records, so output
// order depends only on SourceRowIndex, never on completion order. A
// worker failing outside the verifier's own error containment fails the
// whole run; partial chunk results are never returned.
func Run(ctx context.Context, v Verifier, records []types.EmailRecord, workers int) ([]types.Outcome, error) {
	outcomes := make([]types.Outcome, len(records))

	g, ctx := errgroup.WithContext(ctx)
	for _, chunk := range Chunks(len(records), workers) {
		if len(chunk) == 0 {
			continue
		}
		chunk := chunk
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("verification worker crashed: %v", r)
				}
			}()
			for _, i := range chunk {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				rec := records[i]
				out := v.Verify(ctx, rec.Address)
				out.Address = rec.Address
				out.SourceRowIndex = rec.SourceRowIndex
				outcomes[i] = out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("chunk worker failed: %w", err)
	}
	return outcomes, nil
}
