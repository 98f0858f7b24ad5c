package types

// Sort orders accepted by list and search queries.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Store-level sort fields. Richer sort keys (name, email, age, gender) live
// inside form_data and are handled above the store.
const (
	SortByID          = "id"
	SortBySubmittedAt = "submitted_at"
)

// ScanParams selects a window of submissions from the store. A Limit <= 0
// means no window: return every matching record.
type ScanParams struct {
	Skip      int
	Limit     int
	SortField string
	SortOrder string
	Duplicate *bool // nil: no filter; true/false: only (non-)duplicates
}

// SubmissionPage is one page of submissions plus the total number of records
// matching the filter, independent of the window.
type SubmissionPage struct {
	Submissions []Submission `json:"submissions"`
	Total       int64        `json:"total"`
}

type DuplicateStats struct {
	Total               int64   `json:"total"`
	Duplicates          int64   `json:"duplicates"`
	Unique              int64   `json:"unique"`
	DuplicatePercentage float64 `json:"duplicate_percentage"`
}

type EmailList struct {
	Emails []string `json:"emails"`
	Count  int      `json:"count"`
}
