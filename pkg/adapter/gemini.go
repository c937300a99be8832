package adapter

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiClient implements interfaces.LLM with Gemini on Vertex AI or the Gemini API
type GeminiClient struct {
	client              *genai.Client
	generativeModel     string
	embeddingModel      string
	embeddingDimensions int32
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithEmbeddingDimensions truncates embeddings to the knowledge store dimension
func WithEmbeddingDimensions(dim int) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingDimensions = int32(dim)
	}
}

// NewGemini creates a Vertex AI backed client. If apiKey is given, the Gemini API is used instead.
func NewGemini(ctx context.Context, projectID, location, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}
	if apiKey != "" {
		cfg = &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerativeModel() string { return g.generativeModel }

func (g *GeminiClient) EmbeddingModel() string { return g.embeddingModel }

func (g *GeminiClient) GenerateStream(ctx context.Context, system string, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := geminiContents(messages)

		config := &genai.GenerateContentConfig{}
		if system != "" {
			config.SystemInstruction = genai.NewContentFromText(system, "")
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.generativeModel, contents, config) {
			if err != nil {
				yield("", goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel)))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// geminiContents maps history to Gemini contents. Gemini knows only user and model roles.
func geminiContents(messages []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{}
	if g.embeddingDimensions > 0 {
		config.OutputDimensionality = &g.embeddingDimensions
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (g *GeminiClient) ListModels(ctx context.Context) ([]*model.ModelInfo, error) {
	var models []*model.ModelInfo
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list gemini models")
		}

		info := &model.ModelInfo{
			ID:       strings.TrimPrefix(m.Name, "models/"),
			Type:     model.ModelTypeLLM,
			Provider: "gemini",
		}
		switch {
		case slices.Contains(m.SupportedActions, "generateContent"):
		case slices.Contains(m.SupportedActions, "embedContent"):
			info.Type = model.ModelTypeEmbedding
		case strings.Contains(m.Name, "embedding"):
			info.Type = model.ModelTypeEmbedding
		}
		models = append(models, info)
	}
	return models, nil
}
