package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/usecase/document"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UseCase is the set of document operations exposed as MCP tools
type UseCase interface {
	Summarize(ctx context.Context, path string) (*document.SummaryResult, error)
	SummarizeURL(ctx context.Context, rawURL string) (*document.SummaryResult, error)
	Chat(ctx context.Context, sessionID model.SessionID, message string) (*document.ChatResult, error)
}

// Server exposes summarize and chat operations over MCP
type Server struct {
	uc     UseCase
	server *mcp.Server
}

type summarizePDFParams struct {
	FilePath string `json:"file_path" jsonschema:"Path of a PDF returned by upload or readable from the staging area"`
}

type summarizeURLParams struct {
	URL string `json:"url" jsonschema:"http or https URL whose response body is summarized"`
}

type chatParams struct {
	SessionID string `json:"session_id" jsonschema:"Session id returned by summarize_pdf or summarize_url"`
	Message   string `json:"message" jsonschema:"Question about the document"`
}

func NewServer(uc UseCase, version string) *Server {
	s := &Server{
		uc: uc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "docent",
			Version: version,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_pdf",
		Description: "Summarize a staged PDF and start a chat session about it",
	}, s.summarizePDF)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "summarize_url",
		Description: "Summarize the content of a URL and start a chat session about it",
	}, s.summarizeURL)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Ask a question in an existing session. Answers are grounded in the summarized document.",
	}, s.chat)

	return s
}

// RunStdio serves on stdin/stdout until the client disconnects or ctx is canceled
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Connect serves a single session on t
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	ss, err := s.server.Connect(ctx, t, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mcp session")
	}
	return ss, nil
}

// Handler serves MCP over streamable HTTP
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) summarizePDF(ctx context.Context, req *mcp.CallToolRequest, params *summarizePDFParams) (*mcp.CallToolResult, any, error) {
	result, err := s.uc.Summarize(ctx, params.FilePath)
	return toolResult(ctx, "summarize_pdf", result, err)
}

func (s *Server) summarizeURL(ctx context.Context, req *mcp.CallToolRequest, params *summarizeURLParams) (*mcp.CallToolResult, any, error) {
	result, err := s.uc.SummarizeURL(ctx, params.URL)
	return toolResult(ctx, "summarize_url", result, err)
}

func (s *Server) chat(ctx context.Context, req *mcp.CallToolRequest, params *chatParams) (*mcp.CallToolResult, any, error) {
	result, err := s.uc.Chat(ctx, model.SessionID(params.SessionID), params.Message)
	return toolResult(ctx, "chat", result, err)
}

// toolResult returns v as JSON text. Failures are reported to the client as tool errors.
func toolResult(ctx context.Context, name string, v any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		logging.From(ctx).Warn("mcp tool failed", "tool", name, "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result", goerr.V("tool", name))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}
