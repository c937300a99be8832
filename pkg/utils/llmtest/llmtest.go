// Package llmtest provides a deterministic in-process LLM for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"iter"
	"strings"
	"sync"
	"unicode"

	"github.com/m-mizutani/docent/pkg/model"
)

// Call records one GenerateStream invocation
type Call struct {
	System   string
	Messages []model.Message
}

// LLM implements interfaces.LLM. Embeddings are hashed bags of words, so texts sharing
// words are similar. Replies are produced by Reply, or "answer" when Reply is nil.
type LLM struct {
	Dimension   int
	Reply       func(system string, messages []model.Message) []string
	GenerateErr error
	EmbedErr    error
	Models      []*model.ModelInfo

	// BeforeEmbed and BeforeGenerate run at the start of each call, e.g. to cancel ctx
	BeforeEmbed    func()
	BeforeGenerate func()

	mu    sync.Mutex
	calls []Call
}

func New(dimension int) *LLM {
	return &LLM{Dimension: dimension}
}

func (x *LLM) Calls() []Call {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Call(nil), x.calls...)
}

func (x *LLM) GenerateStream(ctx context.Context, system string, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		x.mu.Lock()
		x.calls = append(x.calls, Call{System: system, Messages: append([]model.Message(nil), messages...)})
		x.mu.Unlock()

		if x.BeforeGenerate != nil {
			x.BeforeGenerate()
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		if x.GenerateErr != nil {
			yield("", x.GenerateErr)
			return
		}

		fragments := []string{"answer"}
		if x.Reply != nil {
			fragments = x.Reply(system, messages)
		}
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (x *LLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if x.BeforeEmbed != nil {
		x.BeforeEmbed()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if x.EmbedErr != nil {
		return nil, x.EmbedErr
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = x.vector(text)
	}
	return vectors, nil
}

func (x *LLM) ListModels(ctx context.Context) ([]*model.ModelInfo, error) {
	return x.Models, nil
}

func (x *LLM) vector(text string) []float32 {
	v := make([]float32, x.Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%x.Dimension]++
	}
	return v
}
