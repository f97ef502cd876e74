package merge

import (
	"fmt"

	"github.com/yourorg/bulk-verify/internal/metrics"
	"github.com/yourorg/bulk-verify/internal/tabular"
	"github.com/yourorg/bulk-verify/internal/types"
)

// Column labels added to the output header.
const (
	ValidationLabel = "Email_Validation"
	AddressLabel    = "Email"
)

// Merge re-attaches verification outcomes to their originating rows and
// recomputes aggregate stats. Outcomes are threaded by SourceRowIndex,
// never by position in the slice, because chunk round-robin reorders
// results relative to the row sequence. The result is deterministic:
// same inputs produce byte-identical rows regardless of worker timing.
//
// In the default mode rows still carry the address at col and the
// validation status is inserted at col+1. With withAddress set (the
// split-file variant) rows are the residual extract, so the address is
// re-inserted at col and the status at col+1; the header gains the
// matching labels at the same positions.
func Merge(header tabular.Row, rows []tabular.Row, outcomes []types.Outcome, col int, withAddress bool) (tabular.Row, []tabular.Row, types.Stats, error) {
	if len(outcomes) != len(rows) {
		return nil, nil, types.Stats{}, fmt.Errorf("merge: %d outcomes for %d rows", len(outcomes), len(rows))
	}

	byRow := make([]*types.Outcome, len(rows))
	for i := range outcomes {
		o := &outcomes[i]
		if o.SourceRowIndex < 0 || o.SourceRowIndex >= len(rows) {
			return nil, nil, types.Stats{}, fmt.Errorf("merge: outcome row index %d out of range", o.SourceRowIndex)
		}
		if byRow[o.SourceRowIndex] != nil {
			return nil, nil, types.Stats{}, fmt.Errorf("merge: duplicate outcome for row %d", o.SourceRowIndex)
		}
		byRow[o.SourceRowIndex] = o
	}

	var outHeader tabular.Row
	if withAddress {
		outHeader = insertAt(insertAt(header, col, AddressLabel), col+1, ValidationLabel)
	} else {
		outHeader = insertAt(header, col+1, ValidationLabel)
	}

	stats := types.Stats{Total: len(rows)}
	outRows := make([]tabular.Row, 0, len(rows))
	for i, row := range rows {
		o := byRow[i]
		var out tabular.Row
		if withAddress {
			out = insertAt(insertAt(row, col, o.Address), col+1, o.Status)
		} else {
			out = insertAt(row, col+1, o.Status)
		}
		outRows = append(outRows, out)

		switch {
		case o.Status == types.StatusValid:
			stats.Valid++
		case o.Unreachable():
			stats.Unverifiable++
		default:
			stats.Invalid++
		}
		stats.Processed++
	}

	metrics.RowsMerged.Add(float64(len(outRows)))
	return outHeader, outRows, stats, nil
}

// insertAt returns a copy of row with v inserted at position pos,
// clamped to the row's length so short (inconsistent) rows still gain
// the new field at their end.
func insertAt(row tabular.Row, pos int, v string) tabular.Row {
	if pos > len(row) {
		pos = len(row)
	}
	out := make(tabular.Row, 0, len(row)+1)
	out = append(out, row[:pos]...)
	out = append(out, v)
	out = append(out, row[pos:]...)
	return out
}
