package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/storage"
)

type searchCall struct {
	sort models.Sort
	page int
}

type searchResult struct {
	items []models.Repository
	err   error
}

// fakeSearcher replays queued results in order; an empty queue yields an empty page
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results []searchResult
}

func (f *fakeSearcher) queue(items []models.Repository, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, searchResult{items: items, err: err})
}

func (f *fakeSearcher) Search(_ context.Context, sort models.Sort, page int) ([]models.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, searchCall{sort: sort, page: page})
	if len(f.results) == 0 {
		return []models.Repository{}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.items, r.err
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// blockingSearcher parks every call until the test releases it
type blockingSearcher struct {
	started chan pendingSearch
}

type pendingSearch struct {
	searchCall
	release chan searchResult
}

func newBlockingSearcher() *blockingSearcher {
	return &blockingSearcher{started: make(chan pendingSearch, 8)}
}

func (b *blockingSearcher) Search(ctx context.Context, sort models.Sort, page int) ([]models.Repository, error) {
	p := pendingSearch{
		searchCall: searchCall{sort: sort, page: page},
		release:    make(chan searchResult, 1),
	}
	b.started <- p
	select {
	case r := <-p.release:
		return r.items, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func repo(id int64, name string, stars int) models.Repository {
	return models.Repository{
		ID:          id,
		Name:        name,
		Description: "Description " + name,
		StarCount:   stars,
		UpdatedAt:   time.Date(2023, 1, int(id%28)+1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestStore(t *testing.T) (*Store, *fakeSearcher, *storage.Memory) {
	t.Helper()

	searcher := &fakeSearcher{}
	st := storage.NewMemory()

	return New(searcher, st), searcher, st
}

func persistedRepos(t *testing.T, st storage.Storage) []models.Repository {
	t.Helper()

	raw, ok, err := st.Get(KeyRepos)
	require.NoError(t, err)
	require.True(t, ok, "repos key should be present")

	var repos []models.Repository
	require.NoError(t, json.Unmarshal([]byte(raw), &repos))
	return repos
}

func TestNew_Defaults(t *testing.T) {
	s, searcher, _ := newTestStore(t)

	st := s.State()
	assert.Empty(t, st.Repos)
	assert.False(t, st.Loading)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, models.SortStars, st.Sort.Field)
	assert.Equal(t, models.OrderDesc, st.Sort.Order)
	assert.Empty(t, st.Error)
	assert.True(t, s.NeedsInitialFetch())
	assert.Empty(t, searcher.Calls(), "construction must not fetch")
}

func TestNew_HydratesFromStorage(t *testing.T) {
	st := storage.NewMemory()
	persisted := []models.Repository{repo(9, "z", 1)}
	data, err := json.Marshal(persisted)
	require.NoError(t, err)
	require.NoError(t, st.Set(KeyRepos, string(data)))
	require.NoError(t, st.Set(KeySortField, "updated"))
	require.NoError(t, st.Set(KeySortOrder, "asc"))

	s := New(&fakeSearcher{}, st)

	state := s.State()
	assert.Equal(t, persisted, state.Repos)
	assert.Equal(t, models.Sort{Field: models.SortUpdated, Order: models.OrderAsc}, state.Sort)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, 1, state.Page)
	assert.False(t, s.NeedsInitialFetch())
}

func TestNew_MalformedSnapshotFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name      string
		repos     string
		field     string
		order     string
		wantRepos int
		wantSort  models.Sort
	}{
		{
			name:     "garbage json",
			repos:    "{not json",
			field:    "stars",
			order:    "desc",
			wantSort: models.DefaultSort(),
		},
		{
			name:     "object instead of array",
			repos:    `{"items":[]}`,
			field:    "name",
			order:    "asc",
			wantSort: models.Sort{Field: models.SortName, Order: models.OrderAsc},
		},
		{
			name:      "unknown sort values",
			repos:     `[{"id":1,"name":"a"}]`,
			field:     "forks",
			order:     "sideways",
			wantRepos: 1,
			wantSort:  models.DefaultSort(),
		},
		{
			name:     "json null",
			repos:    "null",
			field:    "updated",
			order:    "desc",
			wantSort: models.Sort{Field: models.SortUpdated, Order: models.OrderDesc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemory()
			require.NoError(t, st.Set(KeyRepos, tt.repos))
			require.NoError(t, st.Set(KeySortField, tt.field))
			require.NoError(t, st.Set(KeySortOrder, tt.order))

			var s *Store
			require.NotPanics(t, func() { s = New(&fakeSearcher{}, st) })

			state := s.State()
			assert.Len(t, state.Repos, tt.wantRepos)
			assert.NotNil(t, state.Repos)
			assert.Equal(t, tt.wantSort, state.Sort)
		})
	}
}

func TestFetchNextPage_AppendsAndAdvances(t *testing.T) {
	s, searcher, st := newTestStore(t)
	page1 := []models.Repository{repo(1, "a", 10), repo(2, "b", 5)}
	page2 := []models.Repository{repo(3, "c", 4)}
	searcher.queue(page1, nil)
	searcher.queue(page2, nil)

	require.NoError(t, s.FetchNextPage(context.Background()))

	state := s.State()
	assert.Equal(t, page1, state.Repos)
	assert.Equal(t, 2, state.Page)
	assert.Empty(t, state.Error)
	assert.False(t, state.Loading)

	require.NoError(t, s.FetchNextPage(context.Background()))

	state = s.State()
	assert.Equal(t, append(append([]models.Repository{}, page1...), page2...), state.Repos)
	assert.Equal(t, 3, state.Page)
	assert.Equal(t, state.Repos, persistedRepos(t, st))

	calls := searcher.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, searchCall{sort: models.DefaultSort(), page: 1}, calls[0])
	assert.Equal(t, searchCall{sort: models.DefaultSort(), page: 2}, calls[1])
}

func TestFetchNextPage_EmptyPageStillAdvances(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{}, nil)

	require.NoError(t, s.FetchNextPage(context.Background()))

	assert.Empty(t, s.State().Repos)
	assert.Equal(t, 2, s.State().Page)
}

func TestFetchNextPage_DoesNotDeduplicate(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)

	require.NoError(t, s.FetchNextPage(context.Background()))
	require.True(t, s.EditRepo(1, "a2"))
	require.NoError(t, s.FetchNextPage(context.Background()))

	repos := s.State().Repos
	require.Len(t, repos, 2)
	assert.Equal(t, "a2", repos[0].Name)
	assert.Equal(t, "a", repos[1].Name, "re-fetched record keeps the remote name")
}

func TestFetchNextPage_FailureIsInert(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	before := s.State()

	networkErr := errors.New("network error")
	searcher.queue(nil, networkErr)

	err := s.FetchNextPage(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, networkErr)

	after := s.State()
	assert.Equal(t, before.Repos, after.Repos)
	assert.Equal(t, before.Page, after.Page)
	assert.Equal(t, FetchFailedMessage, after.Error)
	assert.False(t, after.Loading)

	// the failed page is retried at the same offset, and success clears the error
	searcher.queue([]models.Repository{repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	calls := searcher.Calls()
	assert.Equal(t, 2, calls[1].page)
	assert.Equal(t, 2, calls[2].page)
	assert.Empty(t, s.State().Error)
	assert.Equal(t, 3, s.State().Page)
}

func TestFetchNextPage_FailureOnEmptyStore(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue(nil, errors.New("rejected"))

	require.Error(t, s.FetchNextPage(context.Background()))

	state := s.State()
	assert.Empty(t, state.Repos)
	assert.Equal(t, "Failed to fetch repositories. Please try again.", state.Error)
	assert.Equal(t, 1, state.Page)
	assert.False(t, state.Loading)
}

func TestFetchNextPage_LoadingTransitions(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)

	var states []State
	unsubscribe := s.Subscribe(func(st State) { states = append(states, st) })
	defer unsubscribe()

	require.NoError(t, s.FetchNextPage(context.Background()))

	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.Empty(t, states[0].Repos)
	assert.False(t, states[1].Loading)
	assert.Len(t, states[1].Repos, 1)
}

func TestFetchNextPage_ClearsPreviousError(t *testing.T) {
	s, _, _ := newTestStore(t)
	searcher := newBlockingSearcher()
	s.searcher = searcher

	go func() {
		p := <-searcher.started
		p.release <- searchResult{err: errors.New("boom")}
	}()
	require.Error(t, s.FetchNextPage(context.Background()))
	require.Equal(t, FetchFailedMessage, s.State().Error)

	done := make(chan error, 1)
	go func() { done <- s.FetchNextPage(context.Background()) }()

	p := <-searcher.started
	assert.Empty(t, s.State().Error, "error is cleared when a fetch starts")
	assert.True(t, s.State().Loading)

	p.release <- searchResult{items: []models.Repository{}}
	require.NoError(t, <-done)
}

// Overlapping fetches are rejected instead of racing on the same cursor.
func TestFetchNextPage_OverlappingCallRejected(t *testing.T) {
	s, _, _ := newTestStore(t)
	searcher := newBlockingSearcher()
	s.searcher = searcher

	done := make(chan error, 1)
	go func() { done <- s.FetchNextPage(context.Background()) }()
	p := <-searcher.started

	require.ErrorIs(t, s.FetchNextPage(context.Background()), ErrFetchInFlight)
	assert.True(t, s.State().Loading)

	p.release <- searchResult{items: []models.Repository{repo(1, "a", 1)}}
	require.NoError(t, <-done)

	state := s.State()
	assert.Len(t, state.Repos, 1)
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.Loading)
}

// A fetch that outlives a sort change must not append onto the new list.
func TestFetchNextPage_StaleResultDiscarded(t *testing.T) {
	s, _, st := newTestStore(t)
	searcher := newBlockingSearcher()
	s.searcher = searcher

	oldDone := make(chan error, 1)
	go func() { oldDone <- s.FetchNextPage(context.Background()) }()
	oldCall := <-searcher.started
	assert.Equal(t, models.SortStars, oldCall.sort.Field)

	sortDone := make(chan error, 1)
	go func() { sortDone <- s.SetSortField(context.Background(), models.SortName) }()
	newCall := <-searcher.started
	assert.Equal(t, models.SortName, newCall.sort.Field)
	assert.Equal(t, 1, newCall.page)

	// old request resolves first, with old-order results
	oldCall.release <- searchResult{items: []models.Repository{repo(1, "stale", 100)}}
	require.ErrorIs(t, <-oldDone, ErrStaleFetch)

	state := s.State()
	assert.Empty(t, state.Repos)
	assert.True(t, state.Loading, "newer fetch still owns the loading flag")

	newCall.release <- searchResult{items: []models.Repository{repo(3, "c", 1)}}
	require.NoError(t, <-sortDone)

	state = s.State()
	require.Len(t, state.Repos, 1)
	assert.Equal(t, int64(3), state.Repos[0].ID)
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.Loading)
	assert.Equal(t, state.Repos, persistedRepos(t, st))
}

func TestSetSortField_ResetsThenFetches(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	var first *State
	unsubscribe := s.Subscribe(func(state State) {
		if first == nil {
			first = &state
		}
	})
	defer unsubscribe()

	searcher.queue([]models.Repository{repo(3, "c", 1)}, nil)
	require.NoError(t, s.SetSortField(context.Background(), models.SortName))

	require.NotNil(t, first)
	assert.Empty(t, first.Repos, "list is cleared before the re-fetch")
	assert.Equal(t, 1, first.Page)
	assert.False(t, first.Loading)
	assert.Equal(t, models.SortName, first.Sort.Field)

	calls := searcher.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, searchCall{sort: models.Sort{Field: models.SortName, Order: models.OrderDesc}, page: 1}, last)

	state := s.State()
	assert.Equal(t, []models.Repository{repo(3, "c", 1)}, state.Repos)
	assert.Equal(t, 2, state.Page)

	field, _, _ := st.Get(KeySortField)
	assert.Equal(t, "name", field)
}

func TestSetSortOrder_ResetsThenFetches(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	searcher.queue([]models.Repository{repo(2, "b", 1), repo(3, "c", 2)}, nil)
	require.NoError(t, s.SetSortOrder(context.Background(), models.OrderAsc))

	state := s.State()
	assert.Equal(t, models.OrderAsc, state.Sort.Order)
	assert.Equal(t, 2, state.Page)
	assert.Len(t, state.Repos, 2)

	calls := searcher.Calls()
	assert.Equal(t, models.OrderAsc, calls[len(calls)-1].sort.Order)

	order, _, _ := st.Get(KeySortOrder)
	assert.Equal(t, "asc", order)
}

func TestSetSort_InvalidValuesRejected(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	before := s.State()

	require.ErrorIs(t, s.SetSortField(context.Background(), "forks"), ErrInvalidSort)
	require.ErrorIs(t, s.SetSortOrder(context.Background(), "up"), ErrInvalidSort)

	assert.Equal(t, before, s.State())
	assert.Len(t, searcher.Calls(), 1)
}

func TestSetSort_SingleRefetch(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	want := models.Sort{Field: models.SortUpdated, Order: models.OrderAsc}
	searcher.queue([]models.Repository{repo(7, "g", 3)}, nil)
	require.NoError(t, s.SetSort(context.Background(), want))

	calls := searcher.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, searchCall{sort: want, page: 1}, calls[1])

	state := s.State()
	assert.Equal(t, want, state.Sort)
	assert.Equal(t, []models.Repository{repo(7, "g", 3)}, state.Repos)
	assert.Equal(t, 2, state.Page)

	field, _, _ := st.Get(KeySortField)
	assert.Equal(t, "updated", field)
}

func TestSetSortField_FailedRefetchLeavesEmptyList(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 1)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	searcher.queue(nil, errors.New("rate limited"))
	require.ErrorIs(t, s.SetSortField(context.Background(), models.SortUpdated), ErrFetchFailed)

	state := s.State()
	assert.Empty(t, state.Repos)
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, FetchFailedMessage, state.Error)
}

func TestEditRepo(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	before := s.State()

	require.True(t, s.EditRepo(1, "a2"))

	after := s.State()
	assert.Equal(t, "a2", after.Repos[0].Name)
	assert.Equal(t, before.Repos[1], after.Repos[1])

	expected := before.Repos[0]
	expected.Name = "a2"
	assert.Equal(t, expected, after.Repos[0], "only the name changes")
	assert.Equal(t, "a", before.Repos[0].Name, "earlier states are not mutated")
	assert.Equal(t, "a2", persistedRepos(t, st)[0].Name)

	// same name again is observationally a no-op
	require.True(t, s.EditRepo(1, "a2"))
	assert.Equal(t, after, s.State())

	assert.Len(t, searcher.Calls(), 1, "edit never calls the remote")
}

func TestEditRepo_MissingID(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	before := s.State()

	assert.False(t, s.EditRepo(42, "nope"))
	assert.Equal(t, before, s.State())
}

func TestDeleteRepo(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	require.True(t, s.EditRepo(1, "a2"))

	assert.Equal(t, 1, s.DeleteRepo(2))

	repos := s.State().Repos
	require.Len(t, repos, 1)
	assert.Equal(t, int64(1), repos[0].ID)
	assert.Equal(t, "a2", repos[0].Name)
	assert.Equal(t, repos, persistedRepos(t, st))

	assert.Equal(t, 0, s.DeleteRepo(2), "second delete is a no-op")
	assert.Len(t, s.State().Repos, 1)
}

func TestDeleteRepo_MissDoesNotPersistOrNotify(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.SetSortField(context.Background(), models.SortUpdated))

	// reset clears storage; its first page fails, leaving nothing to persist
	searcher.queue(nil, errors.New("offline"))
	require.ErrorIs(t, s.ResetToDefault(context.Background()), ErrFetchFailed)

	notified := false
	unsubscribe := s.Subscribe(func(State) { notified = true })
	defer unsubscribe()

	assert.Equal(t, 0, s.DeleteRepo(99))
	assert.False(t, notified)

	for _, key := range []string{KeyRepos, KeySortField, KeySortOrder} {
		_, ok, err := st.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, "%s should stay absent after a delete miss", key)
	}
}

func TestResetToDefault(t *testing.T) {
	s, searcher, st := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.SetSortField(context.Background(), models.SortUpdated))
	searcher.queue(nil, errors.New("boom"))
	require.Error(t, s.FetchNextPage(context.Background()))

	var first *State
	unsubscribe := s.Subscribe(func(state State) {
		if first == nil {
			first = &state
		}
	})
	defer unsubscribe()

	// the first page after reset fails, so the cleared storage stays cleared
	searcher.queue(nil, errors.New("offline"))
	require.ErrorIs(t, s.ResetToDefault(context.Background()), ErrFetchFailed)

	require.NotNil(t, first)
	assert.Empty(t, first.Repos)
	assert.Empty(t, first.Error)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, models.DefaultSort(), first.Sort)

	for _, key := range []string{KeyRepos, KeySortField, KeySortOrder} {
		_, ok, err := st.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, "%s should be absent after reset", key)
	}

	calls := searcher.Calls()
	assert.Equal(t, searchCall{sort: models.DefaultSort(), page: 1}, calls[len(calls)-1])
}

func TestResetToDefault_FetchesFirstPage(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10)}, nil)
	require.NoError(t, s.SetSortOrder(context.Background(), models.OrderAsc))

	searcher.queue([]models.Repository{repo(5, "e", 50)}, nil)
	require.NoError(t, s.ResetToDefault(context.Background()))

	state := s.State()
	assert.Equal(t, models.DefaultSort(), state.Sort)
	assert.Equal(t, []models.Repository{repo(5, "e", 50)}, state.Repos)
	assert.Equal(t, 2, state.Page)
}

func TestPersistenceRoundTrip(t *testing.T) {
	st := storage.NewMemory()
	searcher := &fakeSearcher{}
	s := New(searcher, st)

	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.SetSortOrder(context.Background(), models.OrderAsc))

	ops := []struct {
		name string
		run  func()
	}{
		{"edit", func() { s.EditRepo(2, "renamed") }},
		{"delete", func() { s.DeleteRepo(1) }},
		{"fetch", func() {
			searcher.queue([]models.Repository{repo(7, "g", 3)}, nil)
			require.NoError(t, s.FetchNextPage(context.Background()))
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			op.run()

			want := s.State()
			got := New(&fakeSearcher{}, st).State()

			assert.Equal(t, want.Repos, got.Repos)
			assert.Equal(t, want.Sort, got.Sort)
			assert.Equal(t, 1, got.Page)
			assert.False(t, got.Loading)
			assert.Empty(t, got.Error)
		})
	}
}

// failingStorage rejects every write while failWrites is set. Batch writes
// fail as a whole, like a rolled back transaction.
type failingStorage struct {
	*storage.Memory
	failWrites bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStorage) Set(key, value string) error {
	if f.failWrites {
		return errDiskFull
	}
	return f.Memory.Set(key, value)
}

func (f *failingStorage) SetMany(values map[string]string) error {
	if f.failWrites {
		return errDiskFull
	}
	return f.Memory.SetMany(values)
}

func snapshotOf(t *testing.T, st storage.Storage) map[string]string {
	t.Helper()

	out := make(map[string]string)
	for _, key := range []string{KeyRepos, KeySortField, KeySortOrder} {
		v, ok, err := st.Get(key)
		require.NoError(t, err)
		if ok {
			out[key] = v
		}
	}
	return out
}

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	st := &failingStorage{Memory: storage.NewMemory()}
	searcher := &fakeSearcher{}
	s := New(searcher, st)

	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	saved := snapshotOf(t, st)
	require.Len(t, saved, 3)

	st.failWrites = true

	searcher.queue([]models.Repository{repo(3, "c", 1)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))
	assert.True(t, s.EditRepo(1, "a2"))
	assert.Equal(t, 1, s.DeleteRepo(2))

	state := s.State()
	assert.Equal(t, []models.Repository{
		{ID: 1, Name: "a2", Description: "Description a", StarCount: 10, UpdatedAt: repo(1, "a", 10).UpdatedAt},
		repo(3, "c", 1),
	}, state.Repos)
	assert.Equal(t, 3, state.Page)
	assert.Empty(t, state.Error)

	assert.Equal(t, saved, snapshotOf(t, st), "failed writes leave the previous snapshot intact")
}

func TestPersistenceFailureNeverMixesSnapshots(t *testing.T) {
	st := &failingStorage{Memory: storage.NewMemory()}
	searcher := &fakeSearcher{}
	s := New(searcher, st)

	searcher.queue([]models.Repository{repo(1, "desc-first", 10)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	st.failWrites = true
	searcher.queue([]models.Repository{repo(2, "asc-first", 1)}, nil)
	require.NoError(t, s.SetSortOrder(context.Background(), models.OrderAsc))

	live := s.State()
	assert.Equal(t, models.OrderAsc, live.Sort.Order)
	assert.Equal(t, "asc-first", live.Repos[0].Name)

	// a fresh store sees the old list under the old sort, never a mix
	fresh := New(&fakeSearcher{}, st).State()
	assert.Equal(t, models.DefaultSort(), fresh.Sort)
	require.Len(t, fresh.Repos, 1)
	assert.Equal(t, "desc-first", fresh.Repos[0].Name)
}

func TestWithMaxRepos(t *testing.T) {
	searcher := &fakeSearcher{}
	s := New(searcher, storage.NewMemory(), WithMaxRepos(3))

	searcher.queue([]models.Repository{repo(1, "a", 1), repo(2, "b", 1)}, nil)
	searcher.queue([]models.Repository{repo(3, "c", 1), repo(4, "d", 1)}, nil)
	searcher.queue([]models.Repository{repo(5, "e", 1)}, nil)

	for range 3 {
		require.NoError(t, s.FetchNextPage(context.Background()))
	}

	state := s.State()
	require.Len(t, state.Repos, 3)
	assert.Equal(t, int64(3), state.Repos[2].ID)
	assert.Equal(t, 4, state.Page)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s, searcher, _ := newTestStore(t)
	searcher.queue([]models.Repository{repo(1, "a", 10), repo(2, "b", 5)}, nil)
	require.NoError(t, s.FetchNextPage(context.Background()))

	count := 0
	unsubscribe := s.Subscribe(func(State) { count++ })

	s.DeleteRepo(1)
	assert.Equal(t, 1, count)

	unsubscribe()
	s.DeleteRepo(2)
	assert.Equal(t, 1, count)
}

func TestUninitializedStorePanics(t *testing.T) {
	var nilStore *Store
	assert.PanicsWithValue(t, "store: store used before initialization (use store.New)", func() {
		nilStore.State()
	})

	assert.Panics(t, func() {
		var zero Store
		_ = zero.FetchNextPage(context.Background())
	})
}
