package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
)

const (
	Name        = "knowledge_search"
	DefaultTopK = 10
)

// Search retrieves the chunks of one knowledge store most similar to a query
type Search struct {
	client  *tool.Client
	storeID model.StoreID
	topK    int
}

// New creates a knowledge_search tool scoped to storeID
func New(client *tool.Client, storeID model.StoreID, topK int) *Search {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Search{
		client:  client,
		storeID: storeID,
		topK:    topK,
	}
}

func (s *Search) Name() string { return Name }

func (s *Search) Prompt(ctx context.Context) string {
	return fmt.Sprintf("Document excerpts are retrieved from the knowledge store %s by the %s tool and attached to each user message. At most %d excerpts are attached.", s.storeID, Name, s.topK)
}

// Execute embeds the query and returns matching chunks formatted for the model
func (s *Search) Execute(ctx context.Context, query string) (*tool.Result, error) {
	if strings.TrimSpace(query) == "" {
		return &tool.Result{}, nil
	}

	vectors, err := s.client.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("store_id", s.storeID))
	}
	if len(vectors) != 1 {
		return nil, goerr.New("unexpected embedding count", goerr.V("count", len(vectors)))
	}

	chunks, err := s.client.Repo.Search(ctx, s.storeID, vectors[0], s.topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search knowledge store", goerr.V("store_id", s.storeID))
	}

	return &tool.Result{
		Content: formatResult(chunks),
		Chunks:  chunks,
	}, nil
}

func formatResult(chunks []*model.ScoredChunk) string {
	if len(chunks) == 0 {
		return "No relevant content was found in the document."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d excerpts found:\n", len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[Excerpt %d] (chunk %d, score %.3f)\n%s\n", i+1, c.Index, c.Score, c.Text)
	}
	return b.String()
}
