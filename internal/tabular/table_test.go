package tabular

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sample = "name,email,age\nA,a@x.com,20\nB,bad,x\nC,,5\n"

func TestParse(t *testing.T) {
	tbl, err := Parse(strings.NewReader(sample), ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := tbl.Header, (Row{"name", "email", "age"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows=%d; want 3", len(tbl.Rows))
	}
	if len(tbl.InconsistentRows) != 0 {
		t.Fatalf("inconsistent=%v; want none", tbl.InconsistentRows)
	}
}

func TestParseFlagsInconsistentRows(t *testing.T) {
	in := "name,email\nA,a@x.com\nB,b@x.com,extra\nC\n"
	tbl, err := Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := tbl.InconsistentRows, []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("inconsistent=%v; want %v", got, want)
	}
	// flagged, not rejected
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows=%d; want 3", len(tbl.Rows))
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), ','); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err=%v; want ErrEmptyFile", err)
	}
}

func TestParseNamedTSV(t *testing.T) {
	tbl, err := ParseNamed("list.tsv", strings.NewReader("name\temail\nA\ta@x.com\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := tbl.Header, (Row{"name", "email"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
}

func TestLocateAddressColumnByName(t *testing.T) {
	tbl, _ := Parse(strings.NewReader(sample), ',')
	name, err := LocateAddressColumn(tbl, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "email" {
		t.Fatalf("name=%q; want %q", name, "email")
	}
}

func TestLocateAddressColumnByContent(t *testing.T) {
	in := "name,contact\nA,a@x.com\nB,b@y.org\nC,c@z.net\n"
	tbl, _ := Parse(strings.NewReader(in), ',')
	if _, err := LocateAddressColumn(tbl, 1); err != nil {
		t.Fatalf("content heuristic should accept: %v", err)
	}
}

func TestLocateAddressColumnOutOfBounds(t *testing.T) {
	tbl, _ := Parse(strings.NewReader(sample), ',')
	if _, err := LocateAddressColumn(tbl, 7); !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("err=%v; want ErrInvalidColumn", err)
	}
}

func TestLocateAddressColumnNotEmail(t *testing.T) {
	tbl, _ := Parse(strings.NewReader(sample), ',')
	_, err := LocateAddressColumn(tbl, 0)
	var cne *ColumnNotEmailError
	if !errors.As(err, &cne) {
		t.Fatalf("err=%v; want ColumnNotEmailError", err)
	}
	if got, want := cne.Candidates, []int{1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("candidates=%v; want %v", got, want)
	}
}

func TestSplit(t *testing.T) {
	tbl, _ := Parse(strings.NewReader(sample), ',')
	records, residual := Split(tbl.Rows, 1)
	if len(records) != 3 || len(residual) != 3 {
		t.Fatalf("got %d records / %d residual; want 3/3", len(records), len(residual))
	}
	if records[0].Address != "a@x.com" || records[0].SourceRowIndex != 0 {
		t.Fatalf("records[0]=%+v", records[0])
	}
	if records[2].Address != "" {
		t.Fatalf("records[2].Address=%q; want empty", records[2].Address)
	}
	if got, want := residual[0], (Row{"A", "20"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("residual[0]=%v; want %v", got, want)
	}
}

func TestParseNamedDispatchesXLSX(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()
	sheet := wb.GetSheetName(0)
	seed := [][]interface{}{
		{"name", "email", "age"},
		{"A", "a@x.com", "20"},
		{"B", "b@y.org", "30", "extra"},
	}
	for i, row := range seed {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	tbl, err := ParseNamed("upload.xlsx", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := tbl.Header, (Row{"name", "email", "age"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("header=%v; want %v", got, want)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows=%d; want 2", len(tbl.Rows))
	}
	if got, want := tbl.Rows[0], (Row{"A", "a@x.com", "20"}); !reflect.DeepEqual(got, want) {
		t.Fatalf("rows[0]=%v; want %v", got, want)
	}
	if got, want := tbl.InconsistentRows, []int{1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("inconsistent=%v; want %v", got, want)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	tbl, _ := Parse(strings.NewReader(sample), ',')
	out, err := Render(tbl.Header, tbl.Rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := Parse(strings.NewReader(string(out)), ',')
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(again.Header, tbl.Header) || !reflect.DeepEqual(again.Rows, tbl.Rows) {
		t.Fatalf("round trip mismatch: %v vs %v", again, tbl)
	}
}
