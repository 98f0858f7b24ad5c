package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"formsystem/backend/db"
	"formsystem/backend/types"
)

// SearchParams describes a substring search over submissions. An empty query
// matches every record. The window applies to the filtered result set, and
// the optional sort may use form_data fields (name, email, age, gender) in
// addition to the store-level ones.
type SearchParams struct {
	Query     string
	Skip      int
	Limit     int
	SortField string
	SortOrder string
	Duplicate *bool
}

var searchSortFields = map[string]bool{
	types.SortByID:          true,
	types.SortBySubmittedAt: true,
	"name":                  true,
	"email":                 true,
	"age":                   true,
	"gender":                true,
}

// Search matches the query case-insensitively against id, name, email, age,
// and gender, then sorts and windows the matches. Served through the cache
// like List.
func (e *Engine) Search(ctx context.Context, params SearchParams) (*types.SubmissionPage, error) {
	params = normalizeSearchParams(params)
	key := searchKey(params)

	if page, ok := e.cachedPage(ctx, key); ok {
		return page, nil
	}

	// The filter runs over the full eligible set before paging, so the
	// store is asked for everything matching the duplicate filter.
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	all, _, err := e.store.Scan(storeCtx, types.ScanParams{
		SortField: types.SortByID,
		SortOrder: types.OrderAsc,
		Duplicate: params.Duplicate,
	})
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	matched := make([]types.Submission, 0, len(all))
	for _, submission := range all {
		if matchesQuery(submission, query) {
			matched = append(matched, submission)
		}
	}

	Sort(matched, params.SortField, params.SortOrder)

	page := &types.SubmissionPage{
		Submissions: db.Window(matched, params.Skip, params.Limit),
		Total:       int64(len(matched)),
	}
	e.putCached(ctx, key, page)
	return page, nil
}

// matchesQuery reports whether any searchable field contains the lowercased
// query as a substring.
func matchesQuery(submission types.Submission, query string) bool {
	if query == "" {
		return true
	}

	candidates := []string{
		strconv.FormatInt(submission.ID, 10),
		submission.FormData.Field("name"),
		submission.FormData.Field("email"),
		scalarString(submission.FormData["age"]),
		submission.FormData.Field("gender"),
	}
	for _, candidate := range candidates {
		if candidate != "" && strings.Contains(strings.ToLower(candidate), query) {
			return true
		}
	}
	return false
}

// scalarString renders a form value the way a user would see it. JSON
// decoding hands numbers over as float64.
func scalarString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return ""
	}
}

func normalizeSearchParams(params SearchParams) SearchParams {
	if params.Skip < 0 {
		params.Skip = 0
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if !searchSortFields[params.SortField] {
		params.SortField = types.SortByID
	}
	if params.SortOrder != types.OrderDesc {
		params.SortOrder = types.OrderAsc
	}
	return params
}

func searchKey(params SearchParams) string {
	return fmt.Sprintf("search:q=%s:skip=%d:limit=%d:sort=%s:order=%s:dup=%s",
		strings.ToLower(strings.TrimSpace(params.Query)),
		params.Skip, params.Limit, params.SortField, params.SortOrder,
		duplicateFilterKey(params.Duplicate))
}
