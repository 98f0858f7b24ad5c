package db

import (
	"testing"

	"formsystem/backend/types"

	"github.com/stretchr/testify/require"
)

func ids(submissions []types.Submission) []int64 {
	out := make([]int64, len(submissions))
	for i, s := range submissions {
		out[i] = s.ID
	}
	return out
}

func TestSortSubmissionsByID(t *testing.T) {
	records := []types.Submission{{ID: 2}, {ID: 3}, {ID: 1}}

	SortSubmissions(records, types.SortByID, types.OrderAsc)
	require.Equal(t, []int64{1, 2, 3}, ids(records))

	SortSubmissions(records, types.SortByID, types.OrderDesc)
	require.Equal(t, []int64{3, 2, 1}, ids(records))
}

func TestSortSubmissionsBySubmittedAtTieBreaksByID(t *testing.T) {
	records := []types.Submission{
		{ID: 3, SubmittedAt: 100},
		{ID: 1, SubmittedAt: 100},
		{ID: 2, SubmittedAt: 50},
	}

	SortSubmissions(records, types.SortBySubmittedAt, types.OrderAsc)
	require.Equal(t, []int64{2, 1, 3}, ids(records))

	// The tie-break stays id ascending in descending order, so repeated
	// scans page identically.
	SortSubmissions(records, types.SortBySubmittedAt, types.OrderDesc)
	require.Equal(t, []int64{1, 3, 2}, ids(records))
}

func TestSortSubmissionsUnknownFieldFallsBackToSubmittedAt(t *testing.T) {
	records := []types.Submission{
		{ID: 1, SubmittedAt: 200},
		{ID: 2, SubmittedAt: 100},
	}

	SortSubmissions(records, "is_duplicate", types.OrderAsc)
	require.Equal(t, []int64{2, 1}, ids(records))
}

func TestWindow(t *testing.T) {
	records := []types.Submission{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}

	require.Equal(t, []int64{1, 2}, ids(Window(records, 0, 2)))
	require.Equal(t, []int64{3, 4}, ids(Window(records, 2, 2)))
	require.Equal(t, []int64{5}, ids(Window(records, 4, 10)))
	require.Empty(t, Window(records, 5, 10))
	require.Equal(t, []int64{1, 2, 3, 4, 5}, ids(Window(records, -3, 0)))
}
