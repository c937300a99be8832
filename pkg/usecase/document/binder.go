package document

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/repository"
	"github.com/m-mizutani/docent/pkg/utils/chunk"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultBatchSize = 32
	mimeType         = "text/plain"
)

// Binder turns a document into a new knowledge store. Every call creates a new store.
type Binder struct {
	repo      repository.Repository
	embedder  interfaces.LLM
	embedding model.EmbeddingConfig
	chunkSize int
	batchSize int
}

type BinderOption func(*Binder)

// WithChunkSize sets the chunk size in estimated tokens
func WithChunkSize(n int) BinderOption {
	return func(b *Binder) {
		b.chunkSize = n
	}
}

// WithBatchSize sets how many chunks are embedded per request
func WithBatchSize(n int) BinderOption {
	return func(b *Binder) {
		b.batchSize = n
	}
}

func NewBinder(repo repository.Repository, embedder interfaces.LLM, embedding model.EmbeddingConfig, opts ...BinderOption) *Binder {
	b := &Binder{
		repo:      repo,
		embedder:  embedder,
		embedding: embedding,
		chunkSize: chunk.DefaultSize,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind registers a new store and inserts doc into it. If insertion fails the store is deleted.
func (b *Binder) Bind(ctx context.Context, doc *model.Document) (model.StoreID, error) {
	pieces := chunk.Split(doc.Text, b.chunkSize)
	if len(pieces) == 0 {
		return "", model.WithKind(model.ErrInsertion,
			goerr.New("document has no content", goerr.V("source", doc.Source)))
	}

	id := model.NewStoreID()
	if err := b.repo.CreateStore(ctx, id, b.embedding); err != nil {
		return "", model.WithKind(model.ErrStoreRegistration,
			goerr.Wrap(err, "failed to create knowledge store",
				goerr.V("store_id", id),
				goerr.V("embedding_model", b.embedding.Model)))
	}

	if err := b.insert(ctx, id, doc, pieces); err != nil {
		b.Release(ctx, id)
		return "", model.WithKind(model.ErrInsertion, err)
	}

	logging.From(ctx).Info("knowledge store bound",
		"store_id", id,
		"source", doc.Source,
		"chunks", len(pieces),
	)
	return id, nil
}

// Release deletes the store. Failures are logged, not returned. It runs even
// when ctx is already canceled.
func (b *Binder) Release(ctx context.Context, id model.StoreID) {
	ctx = context.WithoutCancel(ctx)
	if err := b.repo.DeleteStore(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to delete knowledge store", "store_id", id, "error", err)
		return
	}
	logging.From(ctx).Debug("knowledge store deleted", "store_id", id)
}

func (b *Binder) insert(ctx context.Context, id model.StoreID, doc *model.Document, pieces []string) error {
	metadata := map[string]string{
		"document_id":     doc.ID,
		"source":          doc.Source,
		"original_format": doc.Format,
		"mime_type":       mimeType,
	}
	if doc.Pages > 0 {
		metadata["pages"] = strconv.Itoa(doc.Pages)
	}

	for start := 0; start < len(pieces); start += b.batchSize {
		end := min(start+b.batchSize, len(pieces))
		batch := pieces[start:end]

		vectors, err := b.embedder.Embed(ctx, batch)
		if err != nil {
			return goerr.Wrap(err, "failed to embed chunks",
				goerr.V("store_id", id),
				goerr.V("offset", start))
		}
		if len(vectors) != len(batch) {
			return goerr.New("embedding count mismatch",
				goerr.V("store_id", id),
				goerr.V("expected", len(batch)),
				goerr.V("actual", len(vectors)))
		}

		chunks := make([]*model.Chunk, len(batch))
		for i, text := range batch {
			if len(vectors[i]) != b.embedding.Dimension {
				return goerr.Wrap(repository.ErrDimensionMismatch, "embedding has unexpected dimension",
					goerr.V("store_id", id),
					goerr.V("expected", b.embedding.Dimension),
					goerr.V("actual", len(vectors[i])))
			}

			meta := make(map[string]string, len(metadata))
			for k, v := range metadata {
				meta[k] = v
			}
			chunks[i] = &model.Chunk{
				ID:       uuid.NewString(),
				Index:    start + i,
				Text:     text,
				Vector:   vectors[i],
				Metadata: meta,
			}
		}

		if err := b.repo.PutChunks(ctx, id, chunks); err != nil {
			return goerr.Wrap(err, "failed to put chunks",
				goerr.V("store_id", id),
				goerr.V("offset", start))
		}
	}

	return nil
}
