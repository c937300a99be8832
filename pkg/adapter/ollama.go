package adapter

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaURL            = "http://localhost:11434"
	DefaultOllamaModel          = "llama3.2:3b"
	DefaultOllamaEmbeddingModel = "all-minilm"
)

var errStopStream = goerr.New("stream stopped by consumer")

// OllamaClient implements interfaces.LLM with a local or remote Ollama server
type OllamaClient struct {
	client          *api.Client
	generativeModel string
	embeddingModel  string
}

type OllamaOption func(*OllamaClient)

func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.generativeModel = model
	}
}

func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.embeddingModel = model
	}
}

func NewOllama(baseURL string, httpClient *http.Client, opts ...OllamaOption) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid ollama url", goerr.V("url", baseURL))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &OllamaClient{
		client:          api.NewClient(uri, httpClient),
		generativeModel: DefaultOllamaModel,
		embeddingModel:  DefaultOllamaEmbeddingModel,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *OllamaClient) GenerativeModel() string { return c.generativeModel }

func (c *OllamaClient) EmbeddingModel() string { return c.embeddingModel }

func (c *OllamaClient) GenerateStream(ctx context.Context, system string, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, 0, len(messages)+1)
		if system != "" {
			msgs = append(msgs, api.Message{Role: "system", Content: system})
		}
		for _, m := range messages {
			msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
		}

		stream := true
		req := &api.ChatRequest{
			Model:    c.generativeModel,
			Messages: msgs,
			Stream:   &stream,
		}

		stopped := false
		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !yield(resp.Message.Content, nil) {
				stopped = true
				return errStopStream
			}
			return nil
		})
		if err != nil && !stopped {
			yield("", goerr.Wrap(err, "failed to chat with ollama", goerr.V("model", c.generativeModel)))
		}
	}
}

func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed with ollama", goerr.V("model", c.embeddingModel))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Embeddings)))
	}

	return resp.Embeddings, nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]*model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list ollama models")
	}

	models := make([]*model.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, &model.ModelInfo{
			ID:       m.Name,
			Type:     ollamaModelType(m.Name, m.Details.Family, m.Details.Families),
			Provider: "ollama",
		})
	}
	return models, nil
}

// ollamaModelType classifies by name and architecture family since the
// tags endpoint does not report capabilities
func ollamaModelType(name, family string, families []string) model.ModelType {
	if strings.Contains(strings.ToLower(name), "embed") || strings.Contains(strings.ToLower(name), "minilm") {
		return model.ModelTypeEmbedding
	}
	for _, f := range append([]string{family}, families...) {
		if strings.Contains(strings.ToLower(f), "bert") {
			return model.ModelTypeEmbedding
		}
	}
	return model.ModelTypeLLM
}
