// Package engine is the submission ingestion-and-retrieval core: it
// validates intake, flags duplicate emails, persists records, and answers
// list/search/stats queries through the cache layer.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"formsystem/backend/cache"
	"formsystem/backend/fault"
	"formsystem/backend/types"
	"formsystem/backend/validate"

	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000

	statsKey  = "stats:duplicates"
	emailsKey = "emails:existing"
)

// Store is the record store contract the engine requires, regardless of
// backing technology.
type Store interface {
	Append(ctx context.Context, submission *types.Submission) (int64, error)
	Get(ctx context.Context, id int64) (*types.Submission, error)
	Scan(ctx context.Context, params types.ScanParams) ([]types.Submission, int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	CountDuplicates(ctx context.Context) (duplicates, total int64, err error)

	// RegisterEmail atomically records one more submission for the email and
	// reports whether it was already present. Its answer is the source of
	// truth for the duplicate flag.
	RegisterEmail(ctx context.Context, email string) (existed bool, err error)
	UnregisterEmail(ctx context.Context, email string) error
	ExistingEmails(ctx context.Context) ([]string, error)
}

type Options struct {
	StoreTimeout time.Duration
	CacheTimeout time.Duration
	CacheTTL     time.Duration
}

func (o *Options) fillDefaults() {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.CacheTimeout <= 0 {
		o.CacheTimeout = 2 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = cache.DefaultTTL
	}
}

type Engine struct {
	store Store
	cache cache.Cache
	log   *logrus.Entry
	opts  Options

	cacheHits   uint64
	cacheMisses uint64
}

func New(store Store, c cache.Cache, log *logrus.Logger, opts Options) *Engine {
	opts.fillDefaults()
	return &Engine{
		store: store,
		cache: c,
		log:   log.WithField("component", "engine"),
		opts:  opts,
	}
}

// Submit validates the form, flags it as duplicate when its normalized email
// is already on record, persists it, and invalidates cached query results.
// Duplicates are recorded and flagged, never rejected.
func (e *Engine) Submit(ctx context.Context, formData types.FormData) (*types.Submission, error) {
	if err := validate.FormData(formData); err != nil {
		return nil, err
	}

	submission := &types.Submission{
		FormData:    formData,
		SubmittedAt: time.Now().Unix(),
	}

	email := validate.NormalizeEmail(formData.Email())
	if email != "" {
		existed, err := e.registerEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		submission.IsDuplicate = existed
	}

	if _, err := e.appendSubmission(ctx, submission); err != nil {
		// The email was registered for a record that will never exist;
		// roll the index back before surfacing the failure.
		if email != "" {
			if unregErr := e.unregisterEmail(ctx, email); unregErr != nil {
				e.log.WithError(unregErr).WithField("email", email).
					Error("failed to roll back email registration")
			}
		}
		return nil, err
	}

	e.invalidate(ctx)

	e.log.WithFields(logrus.Fields{
		"id":           submission.ID,
		"is_duplicate": submission.IsDuplicate,
	}).Info("submission accepted")

	return submission, nil
}

// List returns one page of submissions, served from cache when a prior
// identical query is still fresh.
func (e *Engine) List(ctx context.Context, params types.ScanParams) (*types.SubmissionPage, error) {
	params = normalizeListParams(params)
	key := listKey(params)

	if page, ok := e.cachedPage(ctx, key); ok {
		return page, nil
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	submissions, total, err := e.store.Scan(storeCtx, params)
	if err != nil {
		return nil, err
	}

	page := &types.SubmissionPage{Submissions: submissions, Total: total}
	e.putCached(ctx, key, page)
	return page, nil
}

// GetByID returns the submission or nil when absent. Single-record lookups
// bypass the cache.
func (e *Engine) GetByID(ctx context.Context, id int64) (*types.Submission, error) {
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.Get(storeCtx, id)
}

// Delete removes the submission, releases its email from the duplicate index
// when it was the last record for that address, and invalidates the cache.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()

	submission, err := e.store.Get(storeCtx, id)
	if err != nil {
		return err
	}
	if submission == nil {
		return fault.ErrNotFound
	}

	existed, err := e.store.Delete(storeCtx, id)
	if err != nil {
		return err
	}
	if !existed {
		return fault.ErrNotFound
	}

	if email := validate.NormalizeEmail(submission.FormData.Email()); email != "" {
		if err := e.unregisterEmail(ctx, email); err != nil {
			e.invalidate(ctx)
			return err
		}
	}

	e.invalidate(ctx)
	e.log.WithField("id", id).Info("submission deleted")
	return nil
}

// DuplicateStats reports how many submissions were flagged as duplicates.
func (e *Engine) DuplicateStats(ctx context.Context) (*types.DuplicateStats, error) {
	if value, ok := e.cachedValue(ctx, statsKey); ok {
		var stats types.DuplicateStats
		if err := json.Unmarshal(value, &stats); err == nil {
			return &stats, nil
		}
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	duplicates, total, err := e.store.CountDuplicates(storeCtx)
	if err != nil {
		return nil, err
	}

	stats := &types.DuplicateStats{
		Total:      total,
		Duplicates: duplicates,
		Unique:     total - duplicates,
	}
	if total > 0 {
		stats.DuplicatePercentage = math.Round(float64(duplicates)/float64(total)*100*100) / 100
	}

	e.putCached(ctx, statsKey, stats)
	return stats, nil
}

// ExistingEmails returns the distinct normalized emails currently on record.
func (e *Engine) ExistingEmails(ctx context.Context) (*types.EmailList, error) {
	if value, ok := e.cachedValue(ctx, emailsKey); ok {
		var list types.EmailList
		if err := json.Unmarshal(value, &list); err == nil {
			return &list, nil
		}
	}

	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	emails, err := e.store.ExistingEmails(storeCtx)
	if err != nil {
		return nil, err
	}
	sort.Strings(emails)

	list := &types.EmailList{Emails: emails, Count: len(emails)}
	e.putCached(ctx, emailsKey, list)
	return list, nil
}

// CacheHits reports how many reads were served from cache.
func (e *Engine) CacheHits() uint64 { return atomic.LoadUint64(&e.cacheHits) }

// CacheMisses reports how many reads had to fall through to the store.
func (e *Engine) CacheMisses() uint64 { return atomic.LoadUint64(&e.cacheMisses) }

func (e *Engine) registerEmail(ctx context.Context, email string) (bool, error) {
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.RegisterEmail(storeCtx, email)
}

func (e *Engine) unregisterEmail(ctx context.Context, email string) error {
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.UnregisterEmail(storeCtx, email)
}

func (e *Engine) appendSubmission(ctx context.Context, submission *types.Submission) (int64, error) {
	storeCtx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.store.Append(storeCtx, submission)
}

func (e *Engine) invalidate(ctx context.Context) {
	cacheCtx, cancel := e.cacheContext(ctx)
	defer cancel()
	e.cache.InvalidateAll(cacheCtx)
}

func (e *Engine) cachedPage(ctx context.Context, key string) (*types.SubmissionPage, bool) {
	value, ok := e.cachedValue(ctx, key)
	if !ok {
		return nil, false
	}
	var page types.SubmissionPage
	if err := json.Unmarshal(value, &page); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return nil, false
	}
	return &page, true
}

func (e *Engine) cachedValue(ctx context.Context, key string) ([]byte, bool) {
	cacheCtx, cancel := e.cacheContext(ctx)
	defer cancel()

	value, ok := e.cache.Get(cacheCtx, key)
	if ok {
		atomic.AddUint64(&e.cacheHits, 1)
	} else {
		atomic.AddUint64(&e.cacheMisses, 1)
	}
	return value, ok
}

func (e *Engine) putCached(ctx context.Context, key string, value interface{}) {
	encoded, err := json.Marshal(value)
	if err != nil {
		e.log.WithError(err).WithField("key", key).Warn("failed to encode cache entry")
		return
	}

	cacheCtx, cancel := e.cacheContext(ctx)
	defer cancel()
	e.cache.Put(cacheCtx, key, encoded, e.opts.CacheTTL)
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

func (e *Engine) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.CacheTimeout)
}

func normalizeListParams(params types.ScanParams) types.ScanParams {
	if params.Skip < 0 {
		params.Skip = 0
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if params.SortField != types.SortByID {
		params.SortField = types.SortBySubmittedAt
	}
	if params.SortOrder != types.OrderAsc {
		params.SortOrder = types.OrderDesc
	}
	return params
}

func listKey(params types.ScanParams) string {
	return fmt.Sprintf("list:skip=%d:limit=%d:sort=%s:order=%s:dup=%s",
		params.Skip, params.Limit, params.SortField, params.SortOrder, duplicateFilterKey(params.Duplicate))
}

func duplicateFilterKey(duplicate *bool) string {
	if duplicate == nil {
		return "any"
	}
	return fmt.Sprintf("%t", *duplicate)
}
