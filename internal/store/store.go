// Package store holds the repository list shown to the user: paginated
// fetches from the search API, local renames and removals, the active sort
// configuration and its mirror in local storage.
//
// All operations are safe for concurrent use. Every mutating operation
// leaves the store in a consistent state and then notifies subscribers.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/storage"
)

// Searcher fetches one page of repositories for a sort configuration
type Searcher interface {
	Search(ctx context.Context, sort models.Sort, page int) ([]models.Repository, error)
}

// State is a consistent copy of the observable store fields
type State struct {
	Repos   []models.Repository
	Loading bool
	Page    int
	Sort    models.Sort
	Error   string // "" when there is no error
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for fetch and persistence diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxRepos caps the list length. Items of a page beyond the cap are
// dropped; the cursor still advances. Zero means unbounded.
func WithMaxRepos(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRepos = n
		}
	}
}

// Store is the single owner of the repository list
type Store struct {
	searcher Searcher
	storage  storage.Storage
	logger   *slog.Logger
	maxRepos int

	mu      sync.Mutex
	repos   []models.Repository
	loading bool
	page    int
	sort    models.Sort
	errMsg  string

	// generation is bumped by sort changes and resets; a fetch only applies
	// its results while the generation it started with is still current.
	generation uint64
	fetching   bool

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int
}

// New creates a store and hydrates it from the snapshot in st.
// It never fetches; see NeedsInitialFetch.
func New(searcher Searcher, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		searcher:    searcher,
		storage:     st,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		page:        1,
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mustBeReady()

	snap := loadSnapshot(st, s.logger)
	s.repos = snap.repos
	s.sort = snap.sort

	s.logger.Debug("store initialized", "repos", len(s.repos), "sort", s.sort.String())

	return s
}

func (s *Store) mustBeReady() {
	if s == nil || s.searcher == nil || s.storage == nil || s.subscribers == nil {
		panic("store: store used before initialization (use store.New)")
	}
}

// State returns a copy of the current state
func (s *Store) State() State {
	s.mustBeReady()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{
		Repos:   slices.Clone(s.repos),
		Loading: s.loading,
		Page:    s.page,
		Sort:    s.sort,
		Error:   s.errMsg,
	}
}

// NeedsInitialFetch reports whether the list is empty and nothing is loading,
// which is when a freshly mounted view should request the first page.
func (s *Store) NeedsInitialFetch() bool {
	s.mustBeReady()

	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.repos) == 0 && !s.loading
}

// Subscribe registers fn to be called with the new state after every change.
// fn runs on the goroutine that performed the change, outside the store lock.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mustBeReady()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// FetchNextPage requests the page at the cursor with the current sort
// configuration and appends the result. On failure the list and cursor are
// left untouched and the user-facing error is set.
func (s *Store) FetchNextPage(ctx context.Context) error {
	s.mustBeReady()

	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return ErrFetchInFlight
	}
	gen := s.generation
	sort := s.sort
	page := s.page
	s.fetching = true
	s.loading = true
	s.errMsg = ""
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	s.logger.Debug("fetching repositories", "sort", sort.String(), "page", page)

	items, err := s.searcher.Search(ctx, sort, page)

	s.mu.Lock()
	if gen != s.generation {
		// loading and fetching now belong to the newer generation
		s.mu.Unlock()
		s.logger.Debug("discarding stale page", "sort", sort.String(), "page", page)
		return ErrStaleFetch
	}
	s.fetching = false
	s.loading = false

	if err != nil {
		s.errMsg = FetchFailedMessage
		st = s.stateLocked()
		s.mu.Unlock()
		s.notify(st)

		s.logger.Error("error fetching repositories", "page", page, "error", err)
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	s.repos = s.appendCapped(s.repos, items)
	s.page++
	s.errMsg = ""
	s.persistLocked()
	st = s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	s.logger.Debug("fetched repositories", "page", page, "items", len(items), "total", len(st.Repos))
	return nil
}

func (s *Store) appendCapped(repos, items []models.Repository) []models.Repository {
	if s.maxRepos > 0 {
		room := s.maxRepos - len(repos)
		if room <= 0 {
			return repos
		}
		if len(items) > room {
			items = items[:room]
		}
	}
	return append(repos, items...)
}

// SetSortField switches the remote ordering field, clears the list and
// fetches the first page of the new ordering.
func (s *Store) SetSortField(ctx context.Context, field models.SortField) error {
	s.mustBeReady()

	s.mu.Lock()
	sort := s.sort
	s.mu.Unlock()

	sort.Field = field
	return s.SetSort(ctx, sort)
}

// SetSortOrder switches the remote ordering direction, clears the list and
// fetches the first page of the new ordering.
func (s *Store) SetSortOrder(ctx context.Context, order models.SortOrder) error {
	s.mustBeReady()

	s.mu.Lock()
	sort := s.sort
	s.mu.Unlock()

	sort.Order = order
	return s.SetSort(ctx, sort)
}

// SetSort replaces field and order together, with a single refetch
func (s *Store) SetSort(ctx context.Context, sort models.Sort) error {
	s.mustBeReady()

	if !sort.Field.Valid() {
		return fmt.Errorf("%w: field %q", ErrInvalidSort, sort.Field)
	}
	if !sort.Order.Valid() {
		return fmt.Errorf("%w: order %q", ErrInvalidSort, sort.Order)
	}

	s.mu.Lock()
	s.restartLocked(sort)
	s.persistLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	s.logger.Debug("sort changed", "sort", sort.String())

	return s.FetchNextPage(ctx)
}

// restartLocked empties the list and starts a new fetch generation
func (s *Store) restartLocked(sort models.Sort) {
	s.sort = sort
	s.repos = []models.Repository{}
	s.page = 1
	s.generation++
	s.fetching = false
	s.loading = false
}

// EditRepo renames the record with id in place. It reports whether a record
// was found; a miss changes nothing.
func (s *Store) EditRepo(id int64, name string) bool {
	s.mustBeReady()

	s.mu.Lock()
	idx := slices.IndexFunc(s.repos, func(r models.Repository) bool { return r.ID == id })
	if idx == -1 {
		s.mu.Unlock()
		return false
	}

	// copy-on-write so previously returned States keep their values
	repos := slices.Clone(s.repos)
	repos[idx].Name = name
	s.repos = repos
	s.persistLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	return true
}

// DeleteRepo removes every record with id and returns how many were removed
func (s *Store) DeleteRepo(id int64) int {
	s.mustBeReady()

	s.mu.Lock()
	repos := make([]models.Repository, 0, len(s.repos))
	for _, r := range s.repos {
		if r.ID != id {
			repos = append(repos, r)
		}
	}
	removed := len(s.repos) - len(repos)
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	s.repos = repos
	s.persistLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	return removed
}

// ResetToDefault restores the default sort, empties the list, removes the
// persisted snapshot and fetches the first page.
func (s *Store) ResetToDefault(ctx context.Context) error {
	s.mustBeReady()

	s.mu.Lock()
	s.restartLocked(models.DefaultSort())
	s.errMsg = ""
	if err := clearSnapshot(s.storage); err != nil {
		s.logger.Warn("failed to clear persisted state", "error", err)
	}
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)

	return s.FetchNextPage(ctx)
}

func (s *Store) persistLocked() {
	if err := saveSnapshot(s.storage, snapshot{repos: s.repos, sort: s.sort}); err != nil {
		s.logger.Warn("failed to persist state", "error", err)
	}
}
