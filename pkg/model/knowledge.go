package model

import (
	"strings"

	"github.com/google/uuid"
)

// StoreID identifies a knowledge store. It is unique per bind, even for identical content.
type StoreID string

// NewStoreID generates a new StoreID in the form of "vector-db-<hex>"
func NewStoreID() StoreID {
	return StoreID("vector-db-" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func (x StoreID) String() string { return string(x) }

// EmbeddingConfig is fixed for the lifetime of a knowledge store
type EmbeddingConfig struct {
	Model     string `json:"model" yaml:"model"`
	Dimension int    `json:"dimension" yaml:"dimension"`
}

// Document is extracted text with provenance. It is consumed once by a bind.
type Document struct {
	ID     string
	Text   string
	Source string
	Format string
	Pages  int
}

// Chunk is a bounded window of a document
type Chunk struct {
	ID       string
	Index    int
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// ScoredChunk is a chunk returned by similarity search
type ScoredChunk struct {
	Chunk
	Score float32
}

type ModelType string

const (
	ModelTypeLLM       ModelType = "llm"
	ModelTypeEmbedding ModelType = "embedding"
)

// ModelInfo describes a model known to an LLM backend
type ModelInfo struct {
	ID       string
	Type     ModelType
	Provider string
}
