package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/turireg/apartment-catalog-server/internal/catalog"
	"github.com/turireg/apartment-catalog-server/internal/geocode"
	"github.com/turireg/apartment-catalog-server/internal/model"
	"github.com/turireg/apartment-catalog-server/internal/remote"
	"github.com/turireg/apartment-catalog-server/internal/remote/mocks"
	"github.com/turireg/apartment-catalog-server/internal/runlog"
	"github.com/turireg/apartment-catalog-server/internal/synclock"
)

// fakeRepo is an in-memory catalog.Repository
type fakeRepo struct {
	mu         sync.Mutex
	apartments map[string]model.Apartment
	upsertErr  map[string]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{apartments: make(map[string]model.Apartment)}
}

func (r *fakeRepo) FindByNaturalKey(_ context.Context, key string) (*model.Apartment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.apartments[key]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := apt
	return &cp, nil
}

func (r *fakeRepo) Upsert(_ context.Context, apt *model.Apartment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.upsertErr[apt.NaturalKey]; err != nil {
		return err
	}
	r.apartments[apt.NaturalKey] = *apt
	return nil
}

func (r *fakeRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.apartments)), nil
}

func (r *fakeRepo) CountMissingCoordinates(ctx context.Context) (int64, error) {
	missing, err := r.ListMissingCoordinates(ctx)
	return int64(len(missing)), err
}

func (r *fakeRepo) ListMissingCoordinates(_ context.Context) ([]model.Apartment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []model.Apartment
	for _, apt := range r.apartments {
		if apt.Active && !apt.HasCoordinates() {
			missing = append(missing, apt)
		}
	}
	return missing, nil
}

// fakeRunStore is an in-memory runlog.Store
type fakeRunStore struct {
	mu   sync.Mutex
	runs []runlog.SyncRun
	last *time.Time
}

func (s *fakeRunStore) Insert(_ context.Context, run *runlog.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	finished := run.FinishedAt
	s.last = &finished
	return nil
}

func (s *fakeRunStore) ListRecent(_ context.Context, n int) ([]runlog.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.runs) {
		n = len(s.runs)
	}
	out := make([]runlog.SyncRun, 0, n)
	for i := len(s.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *fakeRunStore) LastFinished(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

// fakeLock is an in-memory synclock.Service with the same atomic
// check-and-set semantics as the database lock
type fakeLock struct {
	mu             sync.Mutex
	held           *synclock.Lock
	maxRunDuration time.Duration
}

func newFakeLock() *fakeLock {
	return &fakeLock{maxRunDuration: 30 * time.Minute}
}

func (l *fakeLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != nil && !l.isStale(l.held) {
		return false, nil
	}
	l.held = &synclock.Lock{AcquiredAt: time.Now()}
	return true, nil
}

func (l *fakeLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = nil
	return nil
}

func (l *fakeLock) Current(_ context.Context) (*synclock.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		return nil, nil
	}
	cp := *l.held
	return &cp, nil
}

func (l *fakeLock) IsStale(lock *synclock.Lock) bool {
	return l.isStale(lock)
}

func (l *fakeLock) isStale(lock *synclock.Lock) bool {
	if lock == nil {
		return false
	}
	return time.Since(lock.AcquiredAt) > l.maxRunDuration
}

type managerFixture struct {
	remote *mocks.MockClient
	repo   *fakeRepo
	runs   *fakeRunStore
	lock   *fakeLock
}

func newTestManager(t *testing.T, cfg Config) (Manager, *managerFixture) {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &managerFixture{
		remote: mocks.NewMockClient(ctrl),
		repo:   newFakeRepo(),
		runs:   &fakeRunStore{},
		lock:   newFakeLock(),
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 2
	}
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}

	m, err := NewManager(f.remote, f.repo, f.runs, f.lock, geocode.New(f.repo), cfg)
	require.NoError(t, err)
	return m, f
}

func rawRecord(key string) remote.RawRecord {
	return remote.RawRecord{
		"n_registro": key,
		"nombre":     "Apartamentos " + key,
		"provincia":  "Valladolid",
		"posicion":   map[string]any{"lat": 41.65, "lon": -4.72},
	}
}

func TestNewManagerValidation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	remoteClient := mocks.NewMockClient(ctrl)
	repo := newFakeRepo()
	backfill := geocode.New(repo)

	_, err := NewManager(nil, repo, &fakeRunStore{}, newFakeLock(), backfill, Config{PageSize: 10})
	assert.Error(t, err)

	_, err = NewManager(remoteClient, repo, &fakeRunStore{}, newFakeLock(), backfill, Config{PageSize: 0})
	assert.Error(t, err)

	_, err = NewManager(remoteClient, repo, &fakeRunStore{}, newFakeLock(), backfill, Config{PageSize: 10, AnchorTime: "25:99"})
	assert.Error(t, err)
}

func TestForceRunFullSync(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 2})

	// 3 records across two pages
	f.remote.EXPECT().FetchPage(gomock.Any(), 2, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1"), rawRecord("A2")},
		TotalCount: 3,
	}, nil)
	f.remote.EXPECT().FetchPage(gomock.Any(), 2, 2).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A3")},
		TotalCount: 3,
	}, nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.True(t, run.Succeeded)
	assert.Equal(t, 3, run.RecordsSeen)
	assert.Equal(t, 3, run.RecordsCreated)
	assert.Equal(t, 0, run.RecordsUpdated)
	assert.Equal(t, 0, run.ErrorCount)
	assert.False(t, run.FinishedAt.IsZero())

	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Run is recorded and the lock is free again
	assert.Len(t, f.runs.runs, 1)
	current, err := f.lock.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestForceRunPaginatesFullDataset(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 100})

	page := func(start, n int) *remote.Page {
		records := make([]remote.RawRecord, 0, n)
		for i := start; i < start+n; i++ {
			records = append(records, rawRecord(fmt.Sprintf("A%03d", i)))
		}
		return &remote.Page{Records: records, TotalCount: 150}
	}

	// 150 records at page size 100: offsets 0 and 100, then stop
	f.remote.EXPECT().FetchPage(gomock.Any(), 100, 0).Return(page(0, 100), nil)
	f.remote.EXPECT().FetchPage(gomock.Any(), 100, 100).Return(page(100, 50), nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Succeeded)
	assert.Equal(t, 150, run.RecordsSeen)
	assert.Equal(t, 150, run.RecordsCreated)
}

func TestForceRunIdempotent(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})

	page := &remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1"), rawRecord("A2")},
		TotalCount: 2,
	}
	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(page, nil).Times(2)

	first, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.RecordsCreated)
	assert.Equal(t, 0, first.RecordsUpdated)

	second, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsCreated)
	assert.Equal(t, 2, second.RecordsUpdated)

	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestForceRunPageFailureRetainsProgress(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 2})

	f.remote.EXPECT().FetchPage(gomock.Any(), 2, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1"), rawRecord("A2")},
		TotalCount: 6,
	}, nil)
	f.remote.EXPECT().FetchPage(gomock.Any(), 2, 2).Return(nil,
		fmt.Errorf("%w: status 503", remote.ErrRemoteUnavailable))

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.False(t, run.Succeeded)
	assert.Equal(t, 2, run.RecordsSeen)
	assert.Equal(t, 1, run.ErrorCount)

	// The first page's upserts survive the abort
	count, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The failed run is still recorded and the lock released
	assert.Len(t, f.runs.runs, 1)
	assert.False(t, f.runs.runs[0].Succeeded)
	current, err := f.lock.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestForceRunRecordFailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})

	broken := remote.RawRecord{"n_registro": "BAD", "provincia": "Soria"} // missing name
	skipped := remote.RawRecord{"nombre": "Sin registro"}                 // no natural key

	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1"), broken, skipped, rawRecord("A2")},
		TotalCount: 4,
	}, nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)

	assert.True(t, run.Succeeded)
	assert.Equal(t, 2, run.RecordsSeen)
	assert.Equal(t, 2, run.RecordsCreated)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestForceRunUpsertFailureIsIsolated(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})
	f.repo.upsertErr = map[string]error{"A2": fmt.Errorf("constraint violation")}

	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1"), rawRecord("A2"), rawRecord("A3")},
		TotalCount: 3,
	}, nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)

	assert.True(t, run.Succeeded)
	assert.Equal(t, 2, run.RecordsCreated)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestForceRunBackfillsMissingCoordinates(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})

	noCoords := remote.RawRecord{
		"n_registro": "N1",
		"nombre":     "Sin posición",
		"provincia":  "Burgos",
	}
	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{noCoords},
		TotalCount: 1,
	}, nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Succeeded)

	apt, err := f.repo.FindByNaturalKey(context.Background(), "N1")
	require.NoError(t, err)
	assert.True(t, apt.HasCoordinates())
}

func TestRunRespectsLock(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})
	f.lock.held = &synclock.Lock{AcquiredAt: time.Now()}

	run, err := m.ForceRun(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, run)
	assert.Empty(t, f.runs.runs)
}

func TestRunReclaimsStaleLock(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})
	f.lock.held = &synclock.Lock{AcquiredAt: time.Now().Add(-time.Hour)}

	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(&remote.Page{
		Records:    []remote.RawRecord{rawRecord("A1")},
		TotalCount: 1,
	}, nil)

	run, err := m.ForceRun(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Succeeded)
}

func TestConcurrentTriggersRunOnce(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10})

	release := make(chan struct{})
	f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).DoAndReturn(
		func(context.Context, int, int) (*remote.Page, error) {
			<-release
			return &remote.Page{
				Records:    []remote.RawRecord{rawRecord("A1")},
				TotalCount: 1,
			}, nil
		})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := m.ForceRun(context.Background())
			results <- err
		}()
	}

	// One trigger holds the lock inside FetchPage; the other must be
	// rejected before the first completes.
	var rejected error
	select {
	case rejected = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("expected one trigger to be rejected while the other holds the lock")
	}
	assert.ErrorIs(t, rejected, ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-results)
	assert.Len(t, f.runs.runs, 1)
}

func TestShouldSync(t *testing.T) {
	t.Parallel()

	t.Run("never synced", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t, Config{PageSize: 10})
		should, reason := m.ShouldSync(context.Background())
		assert.True(t, should)
		assert.Equal(t, ReasonNeverSynced, reason)
	})

	t.Run("interval not elapsed", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10, Interval: 24 * time.Hour})
		recent := time.Now().Add(-time.Hour)
		f.runs.last = &recent

		should, reason := m.ShouldSync(context.Background())
		assert.False(t, should)
		assert.Equal(t, ReasonNotDue, reason)
	})

	t.Run("interval elapsed", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10, Interval: 24 * time.Hour})
		old := time.Now().Add(-25 * time.Hour)
		f.runs.last = &old

		should, reason := m.ShouldSync(context.Background())
		assert.True(t, should)
		assert.Equal(t, ReasonDue, reason)
	})

	t.Run("live lock held", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10})
		f.lock.held = &synclock.Lock{AcquiredAt: time.Now()}

		should, reason := m.ShouldSync(context.Background())
		assert.False(t, should)
		assert.Equal(t, ReasonAlreadyInProgress, reason)
	})
}

func TestMaybeRun(t *testing.T) {
	t.Parallel()

	t.Run("not due is a no-op", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10, Interval: 24 * time.Hour})
		recent := time.Now().Add(-time.Hour)
		f.runs.last = &recent

		run, err := m.MaybeRun(context.Background())
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("lock held returns ErrAlreadyRunning", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10})
		f.lock.held = &synclock.Lock{AcquiredAt: time.Now()}

		run, err := m.MaybeRun(context.Background())
		assert.ErrorIs(t, err, ErrAlreadyRunning)
		assert.Nil(t, run)
	})

	t.Run("due runs the sync", func(t *testing.T) {
		t.Parallel()

		m, f := newTestManager(t, Config{PageSize: 10})
		f.remote.EXPECT().FetchPage(gomock.Any(), 10, 0).Return(&remote.Page{
			Records:    []remote.RawRecord{rawRecord("A1")},
			TotalCount: 1,
		}, nil)

		run, err := m.MaybeRun(context.Background())
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.True(t, run.Succeeded)
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	m, f := newTestManager(t, Config{PageSize: 10, Interval: 24 * time.Hour})

	acquiredAt := time.Now().Add(-time.Hour)
	f.lock.held = &synclock.Lock{AcquiredAt: acquiredAt}
	finished := time.Now().Add(-2 * time.Hour)
	f.runs.last = &finished

	status, err := m.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Locked)
	require.NotNil(t, status.LockAcquiredAt)
	assert.WithinDuration(t, acquiredAt, *status.LockAcquiredAt, time.Second)
	assert.True(t, status.LockStale)
	require.NotNil(t, status.LastRunFinished)
	assert.False(t, status.Due)
	assert.Equal(t, ReasonNotDue, status.Reason)
}
