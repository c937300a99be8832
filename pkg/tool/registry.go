package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var errToolNotFound = goerr.New("tool not found")

// Registry manages tools available to an agent
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Tools returns tools in registration order
func (r *Registry) Tools() []Tool {
	return r.allTools
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Execute runs the named tool
func (r *Registry) Execute(ctx context.Context, name, query string) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "tool not found", goerr.V("name", name))
	}

	return t.Execute(ctx, query)
}
