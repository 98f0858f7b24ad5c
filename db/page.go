package db

import (
	"sort"

	"formsystem/backend/types"
)

// SortSubmissions orders records in place by the store-level sort field.
// Unknown fields fall back to submitted_at (the list default). Ties always
// break by id ascending, so two identical scans return identical slices.
func SortSubmissions(submissions []types.Submission, field, order string) {
	desc := order == types.OrderDesc

	sort.SliceStable(submissions, func(i, j int) bool {
		a, b := submissions[i], submissions[j]

		var less, equal bool
		switch field {
		case types.SortByID:
			less, equal = a.ID < b.ID, a.ID == b.ID
		default:
			less, equal = a.SubmittedAt < b.SubmittedAt, a.SubmittedAt == b.SubmittedAt
		}

		if equal {
			return a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

// Window slices out [skip, skip+limit). A negative skip is treated as 0; a
// limit <= 0 means no upper bound.
func Window(submissions []types.Submission, skip, limit int) []types.Submission {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(submissions) {
		return []types.Submission{}
	}

	end := len(submissions)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return submissions[skip:end]
}
