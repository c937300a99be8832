package agent

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/repository"
	"github.com/m-mizutani/docent/pkg/tool"
	"github.com/m-mizutani/docent/pkg/tool/knowledge"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

const DefaultHistoryBudget = 4096

// Factory builds agents bound to a single knowledge store
type Factory struct {
	llm           interfaces.LLM
	repo          repository.Repository
	modelID       string
	topK          int
	historyBudget int
}

type FactoryOption func(*Factory)

// WithModelID sets the model identifier reported by agents
func WithModelID(id string) FactoryOption {
	return func(f *Factory) {
		f.modelID = id
	}
}

// WithTopK sets the number of chunks retrieved per message
func WithTopK(k int) FactoryOption {
	return func(f *Factory) {
		f.topK = k
	}
}

// WithHistoryBudget bounds the history sent to the model in estimated tokens. 0 disables the bound.
func WithHistoryBudget(tokens int) FactoryOption {
	return func(f *Factory) {
		f.historyBudget = tokens
	}
}

func NewFactory(llm interfaces.LLM, repo repository.Repository, opts ...FactoryOption) *Factory {
	f := &Factory{
		llm:           llm,
		repo:          repo,
		topK:          knowledge.DefaultTopK,
		historyBudget: DefaultHistoryBudget,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns an agent whose only tool is knowledge_search over storeID
func (f *Factory) Create(ctx context.Context, storeID model.StoreID) (interfaces.Agent, error) {
	exists, err := f.repo.StoreExists(ctx, storeID)
	if err != nil {
		return nil, model.WithKind(model.ErrAgentCreation,
			goerr.Wrap(err, "failed to look up knowledge store", goerr.V("store_id", storeID)))
	}
	if !exists {
		return nil, model.WithKind(model.ErrAgentCreation,
			goerr.New("knowledge store is not registered", goerr.V("store_id", storeID)))
	}

	registry := tool.New(knowledge.New(&tool.Client{Repo: f.repo, Embedder: f.llm}, storeID, f.topK))

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"ToolPrompts": registry.Prompts(ctx),
	}); err != nil {
		return nil, model.WithKind(model.ErrAgentCreation,
			goerr.Wrap(err, "failed to execute system prompt template"))
	}

	return &Agent{
		llm:           f.llm,
		registry:      registry,
		storeID:       storeID,
		modelID:       f.modelID,
		instructions:  buf.String(),
		historyBudget: f.historyBudget,
	}, nil
}
