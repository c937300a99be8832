package adapter

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements interfaces.LLM with the OpenAI API or any compatible server
type OpenAIClient struct {
	client              *openai.Client
	generativeModel     string
	embeddingModel      string
	embeddingDimensions int
}

type OpenAIOption func(*OpenAIClient)

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.generativeModel = model
	}
}

func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.embeddingModel = model
	}
}

func WithOpenAIEmbeddingDimensions(dim int) OpenAIOption {
	return func(c *OpenAIClient) {
		c.embeddingDimensions = dim
	}
}

// NewOpenAI creates a client. An empty baseURL means the official endpoint.
func NewOpenAI(apiKey, baseURL string, opts ...OpenAIOption) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	c := &OpenAIClient{
		client:          openai.NewClientWithConfig(config),
		generativeModel: openai.GPT4oMini,
		embeddingModel:  string(openai.SmallEmbedding3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenAIClient) GenerativeModel() string { return c.generativeModel }

func (c *OpenAIClient) EmbeddingModel() string { return c.embeddingModel }

func (c *OpenAIClient) GenerateStream(ctx context.Context, system string, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
		if system != "" {
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
		}
		for _, m := range messages {
			role := openai.ChatMessageRoleUser
			if m.Role == model.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    c.generativeModel,
			Messages: msgs,
			Stream:   true,
		})
		if err != nil {
			yield("", goerr.Wrap(err, "failed to start chat completion stream", goerr.V("model", c.generativeModel)))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", goerr.Wrap(err, "failed to receive chat completion", goerr.V("model", c.generativeModel)))
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: c.embeddingDimensions,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", c.embeddingModel))
	}
	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, goerr.New("embedding index out of range", goerr.V("index", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (c *OpenAIClient) ListModels(ctx context.Context) ([]*model.ModelInfo, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list openai models")
	}

	models := make([]*model.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		info := &model.ModelInfo{
			ID:       m.ID,
			Type:     model.ModelTypeLLM,
			Provider: "openai",
		}
		if strings.Contains(m.ID, "embed") {
			info.Type = model.ModelTypeEmbedding
		}
		models = append(models, info)
	}
	return models, nil
}
