package engine

import (
	"sort"
	"strconv"
	"strings"

	"formsystem/backend/types"
)

// Sort orders submissions in place by a field that may live inside
// form_data. Coercion rules: age is parsed as an integer and defaults to 0
// on parse failure; string fields compare case-insensitively. Ties always
// break by id ascending, regardless of the requested order.
func Sort(submissions []types.Submission, field, order string) {
	desc := order == types.OrderDesc

	sort.SliceStable(submissions, func(i, j int) bool {
		cmp := compareByField(submissions[i], submissions[j], field)
		if cmp == 0 {
			return submissions[i].ID < submissions[j].ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareByField(a, b types.Submission, field string) int {
	switch field {
	case types.SortByID:
		return compareInt64(a.ID, b.ID)
	case types.SortBySubmittedAt:
		return compareInt64(a.SubmittedAt, b.SubmittedAt)
	case "age":
		return compareInt64(ageValue(a.FormData), ageValue(b.FormData))
	default:
		av := strings.ToLower(a.FormData.Field(field))
		bv := strings.ToLower(b.FormData.Field(field))
		return strings.Compare(av, bv)
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func ageValue(data types.FormData) int64 {
	switch v := data["age"].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
