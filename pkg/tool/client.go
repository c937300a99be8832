package tool

import (
	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/repository"
)

// Client contains shared resources that tools can use
type Client struct {
	Repo     repository.Repository
	Embedder interfaces.LLM
}
