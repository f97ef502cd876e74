package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/bulk-verify/internal/types"
)

// Row is one record of the table: an ordered sequence of string fields.
type Row []string

// Table holds a parsed delimited file: one header row plus data rows.
// InconsistentRows lists the data-row indices whose field count differs
// from the header's; such rows are flagged, never rejected.
type Table struct {
	Header           Row
	Rows             []Row
	InconsistentRows []int
}

// ErrEmptyFile indicates the input had no header row at all.
var ErrEmptyFile = errors.New("file contains no rows")

// Parse reads delimited bytes into a Table. The first record is the
// header. FieldsPerRecord is disabled so ragged rows surface as
// InconsistentRows instead of parse errors.
func Parse(r io.Reader, comma rune) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse delimited input: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}
	t := Table{Header: Row(records[0])}
	for i, rec := range records[1:] {
		if len(rec) != len(t.Header) {
			t.InconsistentRows = append(t.InconsistentRows, i)
		}
		t.Rows = append(t.Rows, Row(rec))
	}
	return t, nil
}

// ParseXLSX reads the first sheet of an xlsx workbook into a Table.
func ParseXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}
	t := Table{Header: Row(records[0])}
	for i, rec := range records[1:] {
		if len(rec) != len(t.Header) {
			t.InconsistentRows = append(t.InconsistentRows, i)
		}
		t.Rows = append(t.Rows, Row(rec))
	}
	return t, nil
}

// ParseNamed dispatches on the file extension: .csv, .tsv, .xlsx/.xls.
// Anything else is parsed as CSV.
func ParseNamed(name string, r io.Reader) (Table, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tsv"):
		return Parse(r, '\t')
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return ParseXLSX(r)
	default:
		return Parse(r, ',')
	}
}

// Split extracts the address column into EmailRecords, in row order,
// and returns the residual rows with the address column removed. Rows
// too short to contain the column yield an empty address, which the
// verification client later short-circuits to invalid.
func Split(rows []Row, col int) ([]types.EmailRecord, []Row) {
	records := make([]types.EmailRecord, 0, len(rows))
	residual := make([]Row, 0, len(rows))
	for i, row := range rows {
		var addr string
		if col < len(row) {
			addr = row[col]
		}
		records = append(records, types.EmailRecord{Address: addr, SourceRowIndex: i})

		rest := make(Row, 0, len(row))
		for j, f := range row {
			if j == col {
				continue
			}
			rest = append(rest, f)
		}
		residual = append(residual, rest)
	}
	return records, residual
}

// Render serializes header + rows back to CSV bytes.
func Render(header Row, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
