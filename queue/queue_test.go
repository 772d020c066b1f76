package queue

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

func TestQueue_FlushRetriesInOrderUntilAcknowledged(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	transport := &scriptedTransport{failures: 2}
	q := newTestQueue(t, Config{Transport: transport, Clock: clock})

	first := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "default", Payload: map[string]any{"view": "calendar"}})
	second := enqueue(t, q, Mutation{Kind: KindSave, Payload: map[string]any{"theme": "dark"}})
	third := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "work", FullSync: true})
	require.Less(t, first.Seq, second.Seq)
	require.Less(t, second.Seq, third.Seq)

	result, err := q.Flush(ctx)
	require.NoError(t, err)
	require.True(t, result.Stopped)
	require.Empty(t, result.Acknowledged)
	require.Error(t, result.LastError)
	require.Equal(t, clock.Now().Add(time.Second), result.RetryAt)
	require.Equal(t, 3, result.Remaining)
	requireSize(t, q, 3)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, pending[0].Status)
	require.Equal(t, 1, pending[0].Attempts)
	require.Equal(t, StatusPending, pending[1].Status)

	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.True(t, result.Stopped)
	require.Equal(t, 1, transport.attempts(), "a mutation in backoff is not resent early")

	clock.Advance(time.Second)
	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.True(t, result.Stopped)
	require.Equal(t, clock.Now().Add(2*time.Second), result.RetryAt)
	requireSize(t, q, 3)

	clock.Advance(2 * time.Second)
	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.False(t, result.Stopped)
	require.Len(t, result.Acknowledged, 3)
	require.Equal(t, 0, result.Remaining)
	requireSize(t, q, 0)

	require.Equal(t, []int64{first.Seq, second.Seq, third.Seq}, transport.delivered())
	require.Equal(t, 5, transport.attempts())
}

func TestQueue_EnqueueNormalizesMutations(t *testing.T) {
	q := newTestQueue(t, Config{Transport: &scriptedTransport{}})

	_, err := q.Enqueue(context.Background(), Mutation{Kind: "drop"})
	require.ErrorIs(t, err, ErrUnknownKind)

	saved := enqueue(t, q, Mutation{Kind: KindSave, ProfileName: "work", FullSync: true})
	require.Equal(t, "default", saved.ProfileName)
	require.False(t, saved.FullSync)
	require.Equal(t, map[string]any{}, saved.Payload)
	require.Equal(t, StatusPending, saved.Status)

	synced := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "  "})
	require.Equal(t, map[string]map[string]any{"default": {}}, synced.Profiles)
	require.Empty(t, synced.ProfileName)
	require.Nil(t, synced.Payload)

	retireAll := enqueue(t, q, Mutation{Kind: KindSync, Profiles: map[string]map[string]any{}, FullSync: true})
	require.Empty(t, retireAll.Profiles)
	require.Empty(t, retireAll.Names())
	requireSize(t, q, 3)

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"default"}, pending[1].Names())
	require.NotNil(t, pending[2].Profiles)
	require.Empty(t, pending[2].Profiles)
	require.True(t, pending[2].FullSync)
}

func TestQueue_SyncCarriesEveryProfile(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, Config{Transport: &scriptedTransport{}})

	m := enqueue(t, q, Mutation{
		Kind: KindSync,
		Profiles: map[string]map[string]any{
			"work":  {"view": "list"},
			" home": {"theme": "dark"},
			"spare": nil,
		},
		FullSync: true,
	})
	require.Equal(t, []string{"home", "spare", "work"}, m.Names())

	stored, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].FullSync)
	require.Equal(t, map[string]map[string]any{
		"home":  {"theme": "dark"},
		"spare": {},
		"work":  {"view": "list"},
	}, stored[0].Profiles)
}

func TestQueue_EnqueueReturnsStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingAppendStore{BunStore: newTestStore(t), err: errors.New("disk full")}
	q := newTestQueue(t, Config{Store: store, Transport: &scriptedTransport{}})

	_, err := q.Enqueue(ctx, Mutation{Kind: KindSave, Payload: map[string]any{"theme": "dark"}})
	require.ErrorIs(t, err, store.err)
	requireSize(t, q, 0)

	store.err = nil
	enqueue(t, q, Mutation{Kind: KindSave})
	requireSize(t, q, 1)
}

func TestQueue_LegacySyncRowsReadAsSingleProfile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.db.ExecContext(ctx, `INSERT INTO queued_mutations
		(seq, id, kind, profile_name, payload, status, created_at, updated_at)
		VALUES (1, '2f1c1f0e-6b0a-4c1e-9d7a-1a2b3c4d5e6f', 'sync', 'work', '{"view":"list"}', 'pending', '2024-03-01 09:00:00', '2024-03-01 09:00:00')`)
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, map[string]map[string]any{"work": {"view": "list"}}, entries[0].Profiles)
	require.Equal(t, []string{"work"}, entries[0].Names())
}

func TestQueue_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	clock := newManualClock()

	q, err := New(Config{Store: store, Transport: &scriptedTransport{}, Clock: clock})
	require.NoError(t, err)
	m := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "default", Payload: map[string]any{"holidays": []any{}}})

	claimed, err := store.Claim(ctx, m.ID, clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	transport := &scriptedTransport{}
	restarted, err := New(Config{Store: store, Transport: transport, Clock: clock})
	require.NoError(t, err)
	requireSize(t, restarted, 1)

	result, err := restarted.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Acknowledged, 1)
	require.Equal(t, []int64{m.Seq}, transport.delivered())
	requireSize(t, restarted, 0)
}

func TestQueue_StuckMutationBlocksOnlyItsProfile(t *testing.T) {
	ctx := context.Background()
	var stuck []Mutation
	transport := &scriptedTransport{
		permanent: func(m Mutation) bool { return slices.Contains(m.Names(), "work") },
	}
	q := newTestQueue(t, Config{
		Transport: transport,
		OnStuck:   func(m Mutation) { stuck = append(stuck, m) },
	})

	work1 := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "work"})
	home := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "home"})
	work2 := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "work"})

	result, err := q.Flush(ctx)
	require.NoError(t, err)
	require.False(t, result.Stopped)
	require.Len(t, result.Stuck, 1)
	require.Equal(t, work1.ID, result.Stuck[0].ID)
	require.Len(t, result.Acknowledged, 1)
	require.Equal(t, home.ID, result.Acknowledged[0].ID)
	require.Equal(t, 2, result.Remaining)
	require.Len(t, stuck, 1)

	listed, err := q.Stuck(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, work1.ID, listed[0].ID)
	require.Contains(t, listed[0].LastError, "permanent")

	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Acknowledged)
	require.Equal(t, []int64{home.Seq}, transport.delivered())

	transport.setPermanent(nil)
	retried, err := q.Retry(ctx, work1.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, retried.Status)
	require.Zero(t, retried.Attempts)

	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Acknowledged, 2)
	require.Equal(t, []int64{home.Seq, work1.Seq, work2.Seq}, transport.delivered())
	requireSize(t, q, 0)
}

func TestQueue_StuckMutationBlocksEveryProfileItNames(t *testing.T) {
	ctx := context.Background()
	transport := &scriptedTransport{
		permanent: func(m Mutation) bool { return len(m.Profiles) == 1 && m.Profiles["work"] != nil },
	}
	q := newTestQueue(t, Config{Transport: transport})

	enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "work"})
	both := enqueue(t, q, Mutation{Kind: KindSync, Profiles: map[string]map[string]any{"home": {}, "work": {}}, FullSync: true})
	home := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "home"})
	other := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "other"})

	result, err := q.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Stuck, 1)
	require.Len(t, result.Acknowledged, 1)
	require.Equal(t, other.ID, result.Acknowledged[0].ID)
	require.Equal(t, []int64{other.Seq}, transport.delivered(), "home waits behind the sync that also names work")
	require.Equal(t, 3, result.Remaining)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, both.ID, pending[1].ID)
	require.Equal(t, StatusPending, pending[1].Status)
	require.Equal(t, home.ID, pending[2].ID)
	require.Equal(t, StatusPending, pending[2].Status)
}

func TestQueue_ExhaustedRetriesBecomeStuck(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	transport := &scriptedTransport{failures: 100}
	q := newTestQueue(t, Config{
		Transport:   transport,
		Clock:       clock,
		MaxAttempts: 2,
		Backoff:     Backoff{Base: time.Second, Max: time.Second},
	})
	m := enqueue(t, q, Mutation{Kind: KindSave})

	result, err := q.Flush(ctx)
	require.NoError(t, err)
	require.True(t, result.Stopped)
	require.Empty(t, result.Stuck)

	clock.Advance(time.Second)
	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, result.Stuck, 1)
	require.Equal(t, 2, result.Stuck[0].Attempts)

	clock.Advance(time.Hour)
	result, err = q.Flush(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Stuck)
	require.Equal(t, 2, transport.attempts(), "stuck mutations are never retried automatically")

	require.NoError(t, q.Discard(ctx, m.ID))
	require.ErrorIs(t, q.Discard(ctx, m.ID), ErrMutationNotFound)
	requireSize(t, q, 0)
}

func TestQueue_ClearDuringFlushDropsUnacknowledged(t *testing.T) {
	ctx := context.Background()
	transport := newBlockingTransport()
	q := newTestQueue(t, Config{Transport: transport})

	first := enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "default"})
	enqueue(t, q, Mutation{Kind: KindSync, ProfileName: "default"})

	type outcome struct {
		result FlushResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := q.Flush(ctx)
		done <- outcome{result, err}
	}()

	inFlight := <-transport.entered
	require.Equal(t, first.ID, inFlight.ID)
	require.ErrorIs(t, q.Discard(ctx, first.ID), ErrMutationInFlight)

	removed, err := q.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed, "the mutation in flight is not counted until its outcome is known")
	requireSize(t, q, 1)

	transport.release <- errors.New("connection reset")
	out := <-done
	require.NoError(t, out.err)
	require.Empty(t, out.result.Acknowledged)
	requireSize(t, q, 0)
}

func TestQueue_ClearKeepsAcceptedMutationAcknowledged(t *testing.T) {
	ctx := context.Background()
	transport := newBlockingTransport()
	q := newTestQueue(t, Config{Transport: transport})
	enqueue(t, q, Mutation{Kind: KindSave})

	done := make(chan FlushResult, 1)
	go func() {
		result, _ := q.Flush(ctx)
		done <- result
	}()
	<-transport.entered

	removed, err := q.Clear(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)

	transport.release <- nil
	result := <-done
	require.Len(t, result.Acknowledged, 1)
	requireSize(t, q, 0)
}

func TestNew_RequiresStoreAndTransport(t *testing.T) {
	_, err := New(Config{Transport: &scriptedTransport{}})
	require.ErrorIs(t, err, ErrMissingStore)

	_, err = New(Config{Store: newTestStore(t)})
	require.ErrorIs(t, err, ErrMissingTransport)
}

func TestWorker_FlushesOnNotify(t *testing.T) {
	transport := &scriptedTransport{}
	q := newTestQueue(t, Config{Transport: transport})

	flushed := make(chan FlushResult, 4)
	w := NewWorker(q, WithFlushObserver(func(result FlushResult, err error) {
		if err == nil {
			flushed <- result
		}
	}))
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not flush on start")
	}

	enqueue(t, q, Mutation{Kind: KindSave})
	w.Notify()

	select {
	case result := <-flushed:
		require.Len(t, result.Acknowledged, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not flush on notify")
	}
	requireSize(t, q, 0)

	w.Stop()
	w.Stop()
}

func enqueue(t *testing.T, q *Queue, m Mutation) Mutation {
	t.Helper()
	stored, err := q.Enqueue(context.Background(), m)
	require.NoError(t, err)
	return stored
}

func requireSize(t *testing.T, q *Queue, want int) {
	t.Helper()
	size, err := q.Size(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, size)
}

func newTestQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = newTestStore(t)
	}
	if cfg.Clock == nil {
		cfg.Clock = newManualClock()
	}
	q, err := New(cfg)
	require.NoError(t, err)
	return q
}

func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	store, err := NewBunStore(db)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scriptedTransport struct {
	mu        sync.Mutex
	failures  int
	permanent func(Mutation) bool
	tries     int
	sent      []int64
}

func (s *scriptedTransport) Send(_ context.Context, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.permanent != nil && s.permanent(m) {
		return ErrPermanent
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("server unreachable")
	}
	s.sent = append(s.sent, m.Seq)
	return nil
}

func (s *scriptedTransport) setPermanent(fn func(Mutation) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = fn
}

func (s *scriptedTransport) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tries
}

func (s *scriptedTransport) delivered() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.sent...)
}

type failingAppendStore struct {
	*BunStore
	err error
}

func (s *failingAppendStore) Append(ctx context.Context, m Mutation) (Mutation, error) {
	if s.err != nil {
		return Mutation{}, s.err
	}
	return s.BunStore.Append(ctx, m)
}

type blockingTransport struct {
	entered chan Mutation
	release chan error
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		entered: make(chan Mutation, 1),
		release: make(chan error),
	}
}

func (b *blockingTransport) Send(ctx context.Context, m Mutation) error {
	b.entered <- m
	select {
	case err := <-b.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
