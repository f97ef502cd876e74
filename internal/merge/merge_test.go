package merge

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/yourorg/bulk-verify/internal/tabular"
	"github.com/yourorg/bulk-verify/internal/types"
)

func exampleInput() (tabular.Row, []tabular.Row, []types.Outcome) {
	header := tabular.Row{"name", "email", "age"}
	rows := []tabular.Row{
		{"A", "a@x.com", "20"},
		{"B", "bad", "x"},
		{"C", "", "5"},
	}
	outcomes := []types.Outcome{
		{Address: "a@x.com", SourceRowIndex: 0, Status: types.StatusValid, MX: "mx.x.com", Provider: "x"},
		{Address: "bad", SourceRowIndex: 1, Status: types.StatusInvalid},
		{Address: "", SourceRowIndex: 2, Status: types.StatusInvalid},
	}
	return header, rows, outcomes
}

func TestMergeExampleScenario(t *testing.T) {
	header, rows, outcomes := exampleInput()
	outHeader, outRows, stats, err := Merge(header, rows, outcomes, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := outHeader, (tabular.Row{"name", "email", "Email_Validation", "age"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
	if got, want := outRows[0], (tabular.Row{"A", "a@x.com", "valid", "20"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("row[0]=%v; want %v", got, want)
	}
	want := types.Stats{Total: 3, Valid: 1, Invalid: 2, Unverifiable: 0, Processed: 3}
	if stats != want {
		t.Fatalf("stats=%+v; want %+v", stats, want)
	}
}

func TestMergeThreadsBySourceRowIndexNotPosition(t *testing.T) {
	header, rows, outcomes := exampleInput()
	baseRows, baseStats := mustMerge(t, header, rows, outcomes)
	for i := 0; i < 10; i++ {
		shuffled := append([]types.Outcome(nil), outcomes...)
		rand.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		gotRows, gotStats := mustMerge(t, header, rows, shuffled)
		if !reflect.DeepEqual(gotRows, baseRows) || gotStats != baseStats {
			t.Fatalf("merge output depended on outcome order")
		}
	}
}

func mustMerge(t *testing.T, header tabular.Row, rows []tabular.Row, outcomes []types.Outcome) ([]tabular.Row, types.Stats) {
	t.Helper()
	_, outRows, stats, err := Merge(header, rows, outcomes, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return outRows, stats
}

func TestMergeRoundTrip(t *testing.T) {
	header, rows, outcomes := exampleInput()
	_, outRows, _, err := Merge(header, rows, outcomes, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// removing the inserted column reconstructs the original rows exactly
	for i, out := range outRows {
		stripped := append(append(tabular.Row{}, out[:2]...), out[3:]...)
		if !reflect.DeepEqual(stripped, rows[i]) {
			t.Fatalf("row %d: stripped=%v; want %v", i, stripped, rows[i])
		}
	}
}

func TestMergeSplitVariantReinsertsAddress(t *testing.T) {
	header := tabular.Row{"name", "age"}
	rows := []tabular.Row{{"A", "20"}, {"B", "30"}}
	outcomes := []types.Outcome{
		{Address: "a@x.com", SourceRowIndex: 0, Status: types.StatusValid},
		{Address: "b@y.com", SourceRowIndex: 1, Status: types.StatusInvalid, MX: "error", Provider: "error"},
	}
	outHeader, outRows, stats, err := Merge(header, rows, outcomes, 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := outHeader, (tabular.Row{"name", "Email", "Email_Validation", "age"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
	if got, want := outRows[0], (tabular.Row{"A", "a@x.com", "valid", "20"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("row[0]=%v; want %v", got, want)
	}
	if stats.Unverifiable != 1 || stats.Valid != 1 || stats.Invalid != 0 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestMergeStatsPartitionProcessed(t *testing.T) {
	header, rows, outcomes := exampleInput()
	outcomes[1].MX, outcomes[1].Provider = "error", "error" // retries exhausted
	_, _, stats, err := Merge(header, rows, outcomes, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Processed != stats.Total {
		t.Fatalf("processed=%d total=%d", stats.Processed, stats.Total)
	}
	if stats.Valid+stats.Invalid+stats.Unverifiable != stats.Processed {
		t.Fatalf("stats do not partition processed: %+v", stats)
	}
}

func TestMergeCountMismatch(t *testing.T) {
	header, rows, outcomes := exampleInput()
	if _, _, _, err := Merge(header, rows, outcomes[:2], 1, false); err == nil {
		t.Fatalf("expected error for outcome/row count mismatch")
	}
}

func TestMergeHeaderOnly(t *testing.T) {
	outHeader, outRows, stats, err := Merge(tabular.Row{"name", "email"}, nil, nil, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := outHeader, (tabular.Row{"name", "email", "Email_Validation"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
	if len(outRows) != 0 || stats.Total != 0 || stats.Processed != 0 {
		t.Fatalf("rows=%v stats=%+v; want empty", outRows, stats)
	}
}
