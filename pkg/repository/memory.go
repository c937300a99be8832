package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type memoryStore struct {
	cfg    model.EmbeddingConfig
	chunks []*model.Chunk
}

// Memory is an in-process Repository using brute-force cosine similarity
type Memory struct {
	mu     sync.RWMutex
	stores map[model.StoreID]*memoryStore
}

func NewMemory() *Memory {
	return &Memory{
		stores: make(map[model.StoreID]*memoryStore),
	}
}

func (m *Memory) CreateStore(ctx context.Context, id model.StoreID, cfg model.EmbeddingConfig) error {
	if cfg.Dimension <= 0 {
		return goerr.New("embedding dimension must be positive", goerr.V("dimension", cfg.Dimension))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[id]; ok {
		return goerr.Wrap(ErrStoreExists, "failed to create store", goerr.V("store_id", id))
	}
	m.stores[id] = &memoryStore{cfg: cfg}
	return nil
}

func (m *Memory) StoreExists(ctx context.Context, id model.StoreID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stores[id]
	return ok, nil
}

func (m *Memory) DeleteStore(ctx context.Context, id model.StoreID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
	return nil
}

func (m *Memory) PutChunks(ctx context.Context, id model.StoreID, chunks []*model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	store, ok := m.stores[id]
	if !ok {
		return goerr.Wrap(ErrStoreNotFound, "failed to put chunks", goerr.V("store_id", id))
	}

	copied := make([]*model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Vector) != store.cfg.Dimension {
			return goerr.Wrap(ErrDimensionMismatch, "failed to put chunks",
				goerr.V("store_id", id),
				goerr.V("expected", store.cfg.Dimension),
				goerr.V("actual", len(c.Vector)))
		}
		dup := *c
		dup.Vector = append([]float32(nil), c.Vector...)
		copied = append(copied, &dup)
	}
	store.chunks = append(store.chunks, copied...)
	return nil
}

func (m *Memory) Search(ctx context.Context, id model.StoreID, vector []float32, limit int) ([]*model.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store, ok := m.stores[id]
	if !ok {
		return nil, goerr.Wrap(ErrStoreNotFound, "failed to search", goerr.V("store_id", id))
	}
	if len(vector) != store.cfg.Dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "failed to search",
			goerr.V("expected", store.cfg.Dimension),
			goerr.V("actual", len(vector)))
	}

	results := make([]*model.ScoredChunk, 0, len(store.chunks))
	for _, c := range store.chunks {
		results = append(results, &model.ScoredChunk{
			Chunk: *c,
			Score: cosine(vector, c.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
