package repository

import (
	"context"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrStoreNotFound     = goerr.New("knowledge store not found")
	ErrStoreExists       = goerr.New("knowledge store already exists")
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")
)

// Repository stores embedded document chunks. Each knowledge store is an isolated index.
type Repository interface {
	// CreateStore registers a new empty store with a fixed embedding configuration
	CreateStore(ctx context.Context, id model.StoreID, cfg model.EmbeddingConfig) error

	// StoreExists reports whether the store is registered
	StoreExists(ctx context.Context, id model.StoreID) (bool, error)

	// DeleteStore removes the store and all of its chunks. Deleting a missing store is not an error.
	DeleteStore(ctx context.Context, id model.StoreID) error

	// PutChunks inserts embedded chunks. Chunk.Vector must match the store dimension.
	PutChunks(ctx context.Context, id model.StoreID, chunks []*model.Chunk) error

	// Search returns up to limit chunks ordered by descending similarity
	Search(ctx context.Context, id model.StoreID, vector []float32, limit int) ([]*model.ScoredChunk, error)

	// Ping checks backend availability
	Ping(ctx context.Context) error

	Close() error
}
