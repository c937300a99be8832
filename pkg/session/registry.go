package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// EvictFunc is called once for every session leaving the registry, after any
// in-flight operation on that session has finished. ctx is never canceled.
type EvictFunc func(ctx context.Context, s *model.Session)

// Registry owns all sessions of the process. Sessions are removed when idle longer
// than the TTL, when the capacity is exceeded (least recently used first), or on Delete.
type Registry struct {
	mu       sync.Mutex
	entries  map[model.SessionID]*Entry
	lru      *list.List
	ttl      time.Duration
	capacity int
	onEvict  EvictFunc
	now      func() time.Time
}

type Option func(*Registry)

// WithTTL sets the idle timeout. 0 disables expiration.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		r.ttl = d
	}
}

// WithCapacity bounds the number of sessions. 0 disables the bound.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		r.capacity = n
	}
}

func WithOnEvict(fn EvictFunc) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[model.SessionID]*Entry),
		lru:     list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create issues a session through the agent and registers it
func (r *Registry) Create(ctx context.Context, agent interfaces.Agent, storeID model.StoreID, label string) (model.SessionID, error) {
	if agent.StoreID() != storeID {
		return "", goerr.New("agent is bound to another knowledge store",
			goerr.V("store_id", storeID),
			goerr.V("agent_store_id", agent.StoreID()))
	}

	id, err := agent.CreateSession(ctx, label)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create agent session", goerr.V("store_id", storeID))
	}

	now := r.now()
	e := &Entry{
		agent: agent,
		session: &model.Session{
			ID:        id,
			Label:     label,
			StoreID:   storeID,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return "", goerr.New("duplicated session id", goerr.V("session_id", id))
	}
	e.lastUsed = now
	e.elem = r.lru.PushFront(e)
	r.entries[id] = e

	var victims []*Entry
	for r.capacity > 0 && len(r.entries) > r.capacity {
		oldest := r.lru.Back().Value.(*Entry)
		r.remove(oldest)
		victims = append(victims, oldest)
	}
	r.mu.Unlock()

	r.finalize(ctx, "capacity", victims...)

	logging.From(ctx).Info("session registered", "session_id", id, "store_id", storeID)
	return id, nil
}

// Get returns a copy of the session
func (r *Registry) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var s *model.Session
	err := r.Do(ctx, id, func(e *Entry) error {
		s = e.Session()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds turns to the end of the session history
func (r *Registry) Append(ctx context.Context, id model.SessionID, turns ...model.Turn) error {
	return r.Do(ctx, id, func(e *Entry) error {
		e.Append(turns...)
		return nil
	})
}

// Do runs fn with exclusive access to the session. Calls on the same session are serialized.
// fn must not call Delete or Close of this registry.
func (r *Registry) Do(ctx context.Context, id model.SessionID, fn func(e *Entry) error) error {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return goerr.Wrap(model.ErrSessionNotFound, "session was evicted", goerr.V("session_id", id))
	}

	defer r.touch(e)
	return fn(e)
}

// Delete removes the session. Any in-flight operation on it completes first.
func (r *Registry) Delete(ctx context.Context, id model.SessionID) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		r.remove(e)
	}
	r.mu.Unlock()

	if !ok {
		return goerr.Wrap(model.ErrSessionNotFound, "failed to delete session", goerr.V("session_id", id))
	}
	r.finalize(ctx, "deleted", e)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes expired sessions and returns how many were removed
func (r *Registry) Sweep(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	var victims []*Entry
	for elem := r.lru.Back(); elem != nil; {
		e := elem.Value.(*Entry)
		if !r.expired(e) {
			break
		}
		elem = elem.Prev()
		r.remove(e)
		victims = append(victims, e)
	}
	r.mu.Unlock()

	r.finalize(ctx, "expired", victims...)
	return len(victims)
}

// Run sweeps expired sessions periodically until ctx is canceled
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		<-ctx.Done()
		return
	}

	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				logging.From(ctx).Info("expired sessions removed", "count", n)
			}
		}
	}
}

// Close removes every session
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	victims := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		victims = append(victims, e)
	}
	for _, e := range victims {
		r.remove(e)
	}
	r.mu.Unlock()

	r.finalize(ctx, "closed", victims...)
}

func (r *Registry) lookup(ctx context.Context, id model.SessionID) (*Entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil, goerr.Wrap(model.ErrSessionNotFound, "session is not registered", goerr.V("session_id", id))
	}
	if r.expired(e) {
		r.remove(e)
		r.mu.Unlock()
		r.finalize(ctx, "expired", e)
		return nil, goerr.Wrap(model.ErrSessionNotFound, "session expired", goerr.V("session_id", id))
	}
	e.lastUsed = r.now()
	r.lru.MoveToFront(e.elem)
	r.mu.Unlock()

	return e, nil
}

func (r *Registry) touch(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.elem == nil {
		return
	}
	e.lastUsed = r.now()
	r.lru.MoveToFront(e.elem)
}

// remove must be called with r.mu held
func (r *Registry) remove(e *Entry) {
	delete(r.entries, e.id())
	if e.elem != nil {
		r.lru.Remove(e.elem)
		e.elem = nil
	}
}

// expired must be called with r.mu held
func (r *Registry) expired(e *Entry) bool {
	return r.ttl > 0 && r.now().Sub(e.lastUsed) > r.ttl
}

func (r *Registry) finalize(ctx context.Context, reason string, victims ...*Entry) {
	for _, e := range victims {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			continue
		}
		e.closed = true
		snapshot := e.session.Copy()
		e.mu.Unlock()

		logging.From(ctx).Info("session removed",
			"session_id", snapshot.ID,
			"store_id", snapshot.StoreID,
			"reason", reason,
		)
		if r.onEvict != nil {
			r.onEvict(context.WithoutCancel(ctx), snapshot)
		}
	}
}
