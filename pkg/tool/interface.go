package tool

import (
	"context"

	"github.com/m-mizutani/docent/pkg/model"
)

// Tool is a capability the agent runs while answering a message
type Tool interface {
	// Name is the identifier reported in tool events
	Name() string

	// Execute runs the tool for a query
	Execute(ctx context.Context, query string) (*Result, error)

	// Prompt returns additional information to be added to the system prompt
	// Returns empty string if no additional prompt is needed
	Prompt(ctx context.Context) string
}

// Result is the output of a tool execution
type Result struct {
	// Content is the text handed to the model
	Content string
	Chunks  []*model.ScoredChunk
}
