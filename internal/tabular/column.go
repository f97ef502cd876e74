package tabular

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/bulk-verify/internal/normalize"
)

// ErrInvalidColumn indicates the declared column index is out of bounds.
var ErrInvalidColumn = errors.New("column index out of bounds")

// ColumnNotEmailError reports that the declared column passed neither the
// naming nor the content heuristic. Candidates carries the indices of
// columns that DO pass, for caller-facing suggestions.
type ColumnNotEmailError struct {
	Column     int
	Name       string
	Candidates []int
}

func (e *ColumnNotEmailError) Error() string {
	return fmt.Sprintf("column %d (%q) does not look like an email column", e.Column, e.Name)
}

// sampleSize caps how many data rows the content heuristic inspects.
const sampleSize = 20

// LocateAddressColumn validates that the declared column holds email
// addresses and returns its header name. A column is accepted when its
// header text contains "email" (case-insensitive) or when a majority of
// sampled non-empty values match the structural email pattern.
func LocateAddressColumn(t Table, declared int) (string, error) {
	if declared < 0 || declared >= len(t.Header) {
		return "", fmt.Errorf("%w: %d (file has %d columns)", ErrInvalidColumn, declared, len(t.Header))
	}
	if columnIsEmail(t, declared) {
		return t.Header[declared], nil
	}
	var candidates []int
	for i := range t.Header {
		if i == declared {
			continue
		}
		if columnIsEmail(t, i) {
			candidates = append(candidates, i)
		}
	}
	return "", &ColumnNotEmailError{Column: declared, Name: t.Header[declared], Candidates: candidates}
}

func columnIsEmail(t Table, col int) bool {
	if strings.Contains(strings.ToLower(t.Header[col]), "email") {
		return true
	}
	sampled, matched := 0, 0
	for _, row := range t.Rows {
		if sampled == sampleSize {
			break
		}
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		sampled++
		if normalize.IsStructural(row[col]) {
			matched++
		}
	}
	return sampled > 0 && matched*2 > sampled
}
