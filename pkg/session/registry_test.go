package session_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/session"
	"github.com/m-mizutani/gt"
)

type mockAgent struct {
	storeID model.StoreID
}

func (m *mockAgent) StoreID() model.StoreID { return m.storeID }

func (m *mockAgent) CreateSession(ctx context.Context, label string) (model.SessionID, error) {
	return model.NewSessionID(), nil
}

func (m *mockAgent) Turn(ctx context.Context, sessionID model.SessionID, history []model.Turn, message string) iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {}
}

type evictRecorder struct {
	mu      sync.Mutex
	evicted []model.SessionID
}

func (x *evictRecorder) fn(ctx context.Context, s *model.Session) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.evicted = append(x.evicted, s.ID)
}

func (x *evictRecorder) list() []model.SessionID {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]model.SessionID(nil), x.evicted...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func create(t *testing.T, r *session.Registry) (model.SessionID, model.StoreID) {
	t.Helper()
	storeID := model.NewStoreID()
	id, err := r.Create(context.Background(), &mockAgent{storeID: storeID}, storeID, "pdf-chat-session")
	gt.NoError(t, err)
	return id, storeID
}

func TestCreateAndGet(t *testing.T) {
	r := session.New()
	id, storeID := create(t, r)

	s, err := r.Get(context.Background(), id)
	gt.NoError(t, err)
	gt.Equal(t, s.ID, id)
	gt.Equal(t, s.StoreID, storeID)
	gt.Equal(t, s.Label, "pdf-chat-session")
	gt.A(t, s.History).Length(0)
	gt.Equal(t, r.Len(), 1)
}

func TestGetUnknown(t *testing.T) {
	r := session.New()
	_, err := r.Get(context.Background(), model.NewSessionID())
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))

	err = r.Append(context.Background(), "unknown", model.Turn{Role: model.RoleUser, Content: "hi"})
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
}

func TestCreateStoreMismatch(t *testing.T) {
	r := session.New()
	_, err := r.Create(context.Background(), &mockAgent{storeID: model.NewStoreID()}, model.NewStoreID(), "label")
	gt.Error(t, err)
	gt.Equal(t, r.Len(), 0)
}

func TestAppendOrderAndCopy(t *testing.T) {
	ctx := context.Background()
	r := session.New()
	id, _ := create(t, r)

	gt.NoError(t, r.Append(ctx, id,
		model.Turn{Role: model.RoleUser, Content: "Summarize"},
		model.Turn{Role: model.RoleAssistant, Content: "Summary"},
	))
	gt.NoError(t, r.Append(ctx, id,
		model.Turn{Role: model.RoleUser, Content: "Question"},
		model.Turn{Role: model.RoleAssistant, Content: "Answer"},
	))

	s, err := r.Get(ctx, id)
	gt.NoError(t, err)
	gt.A(t, s.History).Length(4)
	gt.Equal(t, s.History[0].Content, "Summarize")
	gt.Equal(t, s.History[3].Content, "Answer")
	gt.False(t, s.History[0].CreatedAt.IsZero())

	s.History[0].Content = "modified"
	s2, err := r.Get(ctx, id)
	gt.NoError(t, err)
	gt.Equal(t, s2.History[0].Content, "Summarize")
}

func TestDoSerializesSameSession(t *testing.T) {
	ctx := context.Background()
	r := session.New()
	id, _ := create(t, r)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Do(ctx, id, func(e *session.Entry) error {
				e.Append(model.Turn{Role: model.RoleUser, Content: "q"})
				time.Sleep(time.Millisecond)
				e.Append(model.Turn{Role: model.RoleAssistant, Content: "a"})
				return nil
			})
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := r.Get(ctx, id)
	gt.NoError(t, err)
	gt.A(t, s.History).Length(workers * 2)
	for i, turn := range s.History {
		if i%2 == 0 {
			gt.Equal(t, turn.Role, model.RoleUser)
		} else {
			gt.Equal(t, turn.Role, model.RoleAssistant)
		}
	}
}

func TestConcurrentCreate(t *testing.T) {
	r := session.New()

	const workers = 100
	var wg sync.WaitGroup
	ids := make([]model.SessionID, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _ = create(t, r)
		}(i)
	}
	wg.Wait()

	gt.Equal(t, r.Len(), workers)
	for _, id := range ids {
		_, err := r.Get(context.Background(), id)
		gt.NoError(t, err)
	}
}

func TestDoError(t *testing.T) {
	r := session.New()
	id, _ := create(t, r)

	errBoom := errors.New("boom")
	err := r.Do(context.Background(), id, func(e *session.Entry) error { return errBoom })
	gt.True(t, errors.Is(err, errBoom))
}

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	rec := &evictRecorder{}
	r := session.New(
		session.WithTTL(time.Minute),
		session.WithClock(clock.Now),
		session.WithOnEvict(rec.fn),
	)
	id, _ := create(t, r)

	clock.Advance(50 * time.Second)
	_, err := r.Get(ctx, id)
	gt.NoError(t, err)

	// access refreshes the idle timer
	clock.Advance(50 * time.Second)
	_, err = r.Get(ctx, id)
	gt.NoError(t, err)

	clock.Advance(61 * time.Second)
	_, err = r.Get(ctx, id)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	gt.Equal(t, rec.list(), []model.SessionID{id})
	gt.Equal(t, r.Len(), 0)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	rec := &evictRecorder{}
	r := session.New(
		session.WithTTL(time.Minute),
		session.WithClock(clock.Now),
		session.WithOnEvict(rec.fn),
	)

	old, _ := create(t, r)
	clock.Advance(45 * time.Second)
	fresh, _ := create(t, r)
	clock.Advance(30 * time.Second)

	gt.Equal(t, r.Sweep(ctx), 1)
	gt.Equal(t, rec.list(), []model.SessionID{old})

	_, err := r.Get(ctx, fresh)
	gt.NoError(t, err)
	gt.Equal(t, r.Sweep(ctx), 0)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	rec := &evictRecorder{}
	r := session.New(session.WithCapacity(2), session.WithOnEvict(rec.fn))

	a, _ := create(t, r)
	b, _ := create(t, r)

	_, err := r.Get(ctx, a)
	gt.NoError(t, err)

	c, _ := create(t, r)
	gt.Equal(t, r.Len(), 2)
	gt.Equal(t, rec.list(), []model.SessionID{b})

	_, err = r.Get(ctx, b)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	_, err = r.Get(ctx, a)
	gt.NoError(t, err)
	_, err = r.Get(ctx, c)
	gt.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	rec := &evictRecorder{}
	r := session.New(session.WithOnEvict(rec.fn))
	id, _ := create(t, r)

	gt.NoError(t, r.Delete(ctx, id))
	gt.Equal(t, rec.list(), []model.SessionID{id})

	err := r.Delete(ctx, id)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	gt.A(t, rec.list()).Length(1)
}

func TestEvictHookOutlivesCanceledContext(t *testing.T) {
	var hookErr []error
	r := session.New(session.WithOnEvict(func(ctx context.Context, s *model.Session) {
		hookErr = append(hookErr, ctx.Err())
	}))
	id, _ := create(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gt.NoError(t, r.Delete(ctx, id))
	gt.A(t, hookErr).Length(1)
	gt.NoError(t, hookErr[0])
}

func TestEvictionWaitsForInFlightTurn(t *testing.T) {
	ctx := context.Background()
	rec := &evictRecorder{}
	r := session.New(session.WithOnEvict(rec.fn))
	id, _ := create(t, r)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- r.Do(ctx, id, func(e *session.Entry) error {
			close(started)
			<-release
			e.Append(model.Turn{Role: model.RoleUser, Content: "late"})
			return nil
		})
	}()
	<-started

	deleted := make(chan struct{})
	go func() {
		gt.NoError(t, r.Delete(ctx, id))
		close(deleted)
	}()

	time.Sleep(20 * time.Millisecond)
	gt.A(t, rec.list()).Length(0)

	close(release)
	gt.NoError(t, <-done)
	<-deleted
	gt.Equal(t, rec.list(), []model.SessionID{id})

	err := r.Do(ctx, id, func(e *session.Entry) error { return nil })
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
}

func TestClose(t *testing.T) {
	rec := &evictRecorder{}
	r := session.New(session.WithOnEvict(rec.fn))
	create(t, r)
	create(t, r)

	r.Close(context.Background())
	gt.Equal(t, r.Len(), 0)
	gt.A(t, rec.list()).Length(2)
}

func TestRunStopsOnCancel(t *testing.T) {
	r := session.New(session.WithTTL(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
