package types

// JobParams is the unit of work delivered by the job trigger (Temporal).
// Single-file mode sets Filename; the split-file variant instead carries
// FullFilename (rows with the address column removed) and EmailsFilename
// (the address-only extract).
type JobParams struct {
	FileID         string `json:"file_id"`
	UserEmail      string `json:"user_email"`
	Filename       string `json:"filename"`
	FullFilename   string `json:"full_filename,omitempty"`
	EmailsFilename string `json:"emails_filename,omitempty"`
	ColumnIndex    int    `json:"column_index"`
	TotalEmails    int    `json:"total_emails"`
}

// EmailRecord is the unit of work submitted to verification.
// SourceRowIndex is the ordinal position within the non-header data rows
// and is the only thing that threads a result back to its row.
type EmailRecord struct {
	Address        string `json:"address"`
	SourceRowIndex int    `json:"source_row_index"`
}

// Verification statuses. A status is terminal; it is never revisited
// within a run.
const (
	StatusValid        = "valid"
	StatusInvalid      = "invalid"
	StatusUnverifiable = "unverifiable"
)

// Outcome is the terminal classification of one address.
// An exhausted-retries outcome carries MX and Provider set to "error".
type Outcome struct {
	Address        string `json:"email"`
	SourceRowIndex int    `json:"source_row_index"`
	Status         string `json:"email_status"`
	MX             string `json:"email_mx"`
	Provider       string `json:"provider"`
}

// Unreachable reports whether the outcome is the synthetic classification
// produced after the verification service could not be reached.
func (o Outcome) Unreachable() bool {
	return o.MX == "error" && o.Provider == "error"
}

// Stats are the aggregate counters for one validation run.
// Processed is monotonically non-decreasing and equals Total only on
// full completion.
type Stats struct {
	Total        int `json:"total_emails"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	Unverifiable int `json:"unverifiable"`
	Processed    int `json:"processed"`
}

// RunResult is returned to the job trigger when a run finishes.
type RunResult struct {
	Message         string `json:"message"`
	Status          string `json:"status"`
	Stats           Stats  `json:"stats"`
	CreditsConsumed int    `json:"credits_consumed"`
	OutputURI       string `json:"output_uri"`
}
