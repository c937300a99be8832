package interfaces

import (
	"context"
	"iter"

	"github.com/m-mizutani/docent/pkg/model"
)

// LLM is a text generation and embedding backend
type LLM interface {
	// GenerateStream generates a response to messages and yields text fragments in order
	GenerateStream(ctx context.Context, system string, messages []model.Message) iter.Seq2[string, error]

	// Embed returns one vector per input text
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ListModels returns models known to the backend
	ListModels(ctx context.Context) ([]*model.ModelInfo, error)
}
