package document

import (
	"context"

	"github.com/m-mizutani/docent/pkg/adapter"
	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/session"
)

const DefaultLabel = "pdf-chat-session"

// AgentFactory creates an agent bound to one knowledge store
type AgentFactory interface {
	Create(ctx context.Context, storeID model.StoreID) (interfaces.Agent, error)
}

// UseCase provides document summarization and chat operations
type UseCase struct {
	stager   adapter.Stager
	binder   *Binder
	factory  AgentFactory
	registry *session.Registry
	pdf      adapter.PDFReader
	fetcher  adapter.Fetcher
	label    string
}

// Option is a functional option for UseCase
type Option func(*UseCase)

func WithPDFReader(r adapter.PDFReader) Option {
	return func(uc *UseCase) {
		uc.pdf = r
	}
}

func WithFetcher(f adapter.Fetcher) Option {
	return func(uc *UseCase) {
		uc.fetcher = f
	}
}

// WithLabel sets the label given to new sessions
func WithLabel(label string) Option {
	return func(uc *UseCase) {
		uc.label = label
	}
}

// New creates a new document UseCase instance
func New(
	stager adapter.Stager,
	binder *Binder,
	factory AgentFactory,
	registry *session.Registry,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		stager:   stager,
		binder:   binder,
		factory:  factory,
		registry: registry,
		pdf:      adapter.NewPDFReader(),
		fetcher:  adapter.NewFetcher(),
		label:    DefaultLabel,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
