package engine_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"formsystem/backend/cache"
	"formsystem/backend/db"
	"formsystem/backend/engine"
	"formsystem/backend/fault"
	"formsystem/backend/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// memStore implements engine.Store in memory with the same semantics as the
// DynamoDB adapter: strictly increasing ids and a refcounted email index
// whose register answer is authoritative.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]types.Submission
	emails  map[string]int

	appendErr error
	lastScan  types.ScanParams
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[int64]types.Submission),
		emails:  make(map[string]int),
	}
}

func (s *memStore) Append(_ context.Context, submission *types.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return 0, s.appendErr
	}
	s.nextID++
	submission.ID = s.nextID
	s.records[submission.ID] = *submission
	return submission.ID, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*types.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *memStore) Scan(_ context.Context, params types.ScanParams) ([]types.Submission, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastScan = params
	var submissions []types.Submission
	for _, record := range s.records {
		if params.Duplicate != nil && record.IsDuplicate != *params.Duplicate {
			continue
		}
		submissions = append(submissions, record)
	}
	db.SortSubmissions(submissions, params.SortField, params.SortOrder)
	total := int64(len(submissions))
	return db.Window(submissions, params.Skip, params.Limit), total, nil
}

func (s *memStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *memStore) CountDuplicates(_ context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var duplicates int64
	for _, record := range s.records {
		if record.IsDuplicate {
			duplicates++
		}
	}
	return duplicates, int64(len(s.records)), nil
}

func (s *memStore) RegisterEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails[email]++
	return s.emails[email] > 1, nil
}

func (s *memStore) UnregisterEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails[email]--
	if s.emails[email] <= 0 {
		delete(s.emails, email)
	}
	return nil
}

func (s *memStore) ExistingEmails(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emails := make([]string, 0, len(s.emails))
	for email := range s.emails {
		emails = append(emails, email)
	}
	return emails, nil
}

func newTestEngine(t *testing.T) (*engine.Engine, *memStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemStore()
	return engine.New(store, cache.NewMemory(), log, engine.Options{}), store
}

func submitForm(t *testing.T, eng *engine.Engine, data types.FormData) *types.Submission {
	t.Helper()
	submission, err := eng.Submit(context.Background(), data)
	require.NoError(t, err)
	return submission
}

func boolPtr(v bool) *bool { return &v }

func TestSubmitFreshEmailIsNotDuplicate(t *testing.T) {
	eng, _ := newTestEngine(t)

	submission := submitForm(t, eng, types.FormData{
		"name": "Ann", "email": "ann@example.com", "age": float64(30),
	})
	require.Equal(t, int64(1), submission.ID)
	require.False(t, submission.IsDuplicate)

	emails, err := eng.ExistingEmails(context.Background())
	require.NoError(t, err)
	require.Contains(t, emails.Emails, "ann@example.com")
	require.Equal(t, 1, emails.Count)
}

func TestSubmitFlagsCaseAndWhitespaceInsensitiveDuplicates(t *testing.T) {
	eng, _ := newTestEngine(t)

	first := submitForm(t, eng, types.FormData{"name": "Ann", "email": "Ann@X.com", "age": float64(30), "gender": "female"})
	require.Equal(t, int64(1), first.ID)
	require.False(t, first.IsDuplicate)

	second := submitForm(t, eng, types.FormData{"name": "Bob", "email": "ann@x.com", "age": float64(40), "gender": "male"})
	require.Equal(t, int64(2), second.ID)
	require.True(t, second.IsDuplicate)

	third := submitForm(t, eng, types.FormData{"name": "Cid", "email": "  ANN@x.COM  ", "age": float64(25)})
	require.True(t, third.IsDuplicate)

	stats, err := eng.DuplicateStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.Duplicates)
	require.Equal(t, int64(1), stats.Unique)
	require.InDelta(t, 66.67, stats.DuplicatePercentage, 0.001)
}

func TestSubmitWithoutEmailIsNeverFlagged(t *testing.T) {
	eng, _ := newTestEngine(t)

	first := submitForm(t, eng, types.FormData{"name": "Ann"})
	second := submitForm(t, eng, types.FormData{"name": "Bob"})
	require.False(t, first.IsDuplicate)
	require.False(t, second.IsDuplicate)

	emails, err := eng.ExistingEmails(context.Background())
	require.NoError(t, err)
	require.Empty(t, emails.Emails)
}

func TestSubmitValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		data  types.FormData
		field string
	}{
		{"empty form", types.FormData{}, "form_data"},
		{"bad email", types.FormData{"email": "not-an-email"}, "email"},
		{"short name", types.FormData{"email": "a@b.co", "name": "A"}, "name"},
		{"under age", types.FormData{"email": "a@b.co", "age": float64(12)}, "age"},
		{"bad gender", types.FormData{"email": "a@b.co", "gender": "unknown"}, "gender"},
		{"short password", types.FormData{"email": "a@b.co", "password": "123"}, "password"},
		{"bad date", types.FormData{"email": "a@b.co", "date": "31-12-2020"}, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eng.Submit(ctx, tc.data)
			require.Error(t, err)
			require.True(t, fault.IsValidation(err))

			var ve *fault.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestSubmitRollsBackEmailRegistrationWhenAppendFails(t *testing.T) {
	eng, store := newTestEngine(t)
	store.appendErr = fmt.Errorf("%w: table throttled", fault.ErrStoreUnavailable)

	_, err := eng.Submit(context.Background(), types.FormData{"email": "ann@x.com"})
	require.ErrorIs(t, err, fault.ErrStoreUnavailable)
	require.Empty(t, store.emails)
}

func TestDeleteReleasesEmailOnlyWhenLastRecordGoes(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	submitForm(t, eng, types.FormData{"name": "Ann", "email": "Ann@X.com", "age": float64(30), "gender": "female"})
	submitForm(t, eng, types.FormData{"name": "Bob", "email": "ann@x.com", "age": float64(40), "gender": "male"})

	require.NoError(t, eng.Delete(ctx, 1))
	emails, err := eng.ExistingEmails(ctx)
	require.NoError(t, err)
	require.Contains(t, emails.Emails, "ann@x.com")

	require.NoError(t, eng.Delete(ctx, 2))
	emails, err = eng.ExistingEmails(ctx)
	require.NoError(t, err)
	require.NotContains(t, emails.Emails, "ann@x.com")
}

func TestDeleteMissingSubmission(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.Delete(context.Background(), 42)
	require.ErrorIs(t, err, fault.ErrNotFound)
}

func TestGetByIDAbsentReturnsNil(t *testing.T) {
	eng, _ := newTestEngine(t)

	submission, err := eng.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Nil(t, submission)
}

func TestListRepeatIsServedFromCache(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	submitForm(t, eng, types.FormData{"name": "Ann", "email": "ann@x.com"})

	params := types.ScanParams{Skip: 0, Limit: 10}
	first, err := eng.List(ctx, params)
	require.NoError(t, err)

	hitsBefore := eng.CacheHits()
	second, err := eng.List(ctx, params)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, hitsBefore+1, eng.CacheHits())
}

func TestWritesInvalidateCachedResults(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	submitForm(t, eng, types.FormData{"name": "Ann", "email": "ann@x.com"})

	params := types.ScanParams{Skip: 0, Limit: 10}
	before, err := eng.List(ctx, params)
	require.NoError(t, err)
	require.Equal(t, int64(1), before.Total)

	submitForm(t, eng, types.FormData{"name": "Bob", "email": "bob@x.com"})

	after, err := eng.List(ctx, params)
	require.NoError(t, err)
	require.Equal(t, int64(2), after.Total)
	require.Len(t, after.Submissions, 2)

	statsBefore, err := eng.DuplicateStats(ctx)
	require.NoError(t, err)

	require.NoError(t, eng.Delete(ctx, 1))

	statsAfter, err := eng.DuplicateStats(ctx)
	require.NoError(t, err)
	require.Equal(t, statsBefore.Total-1, statsAfter.Total)
}

func TestListClampsWindowParameters(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	submitForm(t, eng, types.FormData{"name": "Ann", "email": "ann@x.com"})

	_, err := eng.List(ctx, types.ScanParams{Skip: -5, Limit: 5000, SortField: "bogus", SortOrder: "sideways"})
	require.NoError(t, err)

	require.Equal(t, 0, store.lastScan.Skip)
	require.Equal(t, engine.MaxLimit, store.lastScan.Limit)
	require.Equal(t, types.SortBySubmittedAt, store.lastScan.SortField)
	require.Equal(t, types.OrderDesc, store.lastScan.SortOrder)
}

func TestListPaginationBoundaries(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	total := 5
	for i := 0; i < total; i++ {
		submitForm(t, eng, types.FormData{"name": fmt.Sprintf("User %d", i), "email": fmt.Sprintf("user%d@x.com", i)})
	}

	lastPage, err := eng.List(ctx, types.ScanParams{Skip: total - 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, lastPage.Submissions, 1)
	require.Equal(t, int64(total), lastPage.Total)

	emptyPage, err := eng.List(ctx, types.ScanParams{Skip: total, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, emptyPage.Submissions)
	require.Equal(t, int64(total), emptyPage.Total)
}

func TestListDuplicateFilter(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	submitForm(t, eng, types.FormData{"name": "Ann", "email": "ann@x.com"})
	submitForm(t, eng, types.FormData{"name": "Bob", "email": "ann@x.com"})

	duplicates, err := eng.List(ctx, types.ScanParams{Limit: 10, Duplicate: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, int64(1), duplicates.Total)
	require.Equal(t, int64(2), duplicates.Submissions[0].ID)

	originals, err := eng.List(ctx, types.ScanParams{Limit: 10, Duplicate: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, int64(1), originals.Total)
	require.Equal(t, int64(1), originals.Submissions[0].ID)
}

func TestListStoreFailurePropagates(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := newMemStore()
	eng := engine.New(store, cache.NewMemory(), log, engine.Options{})

	submitForm(t, eng, types.FormData{"name": "Ann", "email": "ann@x.com"})
	store.appendErr = fmt.Errorf("%w: endpoint unreachable", fault.ErrStoreUnavailable)

	_, err := eng.Submit(context.Background(), types.FormData{"name": "Bob", "email": "bob@x.com"})
	require.ErrorIs(t, err, fault.ErrStoreUnavailable)
}
