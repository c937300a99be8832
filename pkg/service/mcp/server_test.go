package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/service/mcp"
	"github.com/m-mizutani/docent/pkg/usecase/document"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type mockUseCase struct {
	sessions map[model.SessionID][]string
}

func newMockUseCase() *mockUseCase {
	return &mockUseCase{sessions: make(map[model.SessionID][]string)}
}

func (m *mockUseCase) Summarize(ctx context.Context, path string) (*document.SummaryResult, error) {
	if path == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "file_path is required")
	}
	id := model.NewSessionID()
	m.sessions[id] = nil
	return &document.SummaryResult{Summary: "summary of " + path, SessionID: id}, nil
}

func (m *mockUseCase) SummarizeURL(ctx context.Context, rawURL string) (*document.SummaryResult, error) {
	return m.Summarize(ctx, rawURL)
}

func (m *mockUseCase) Chat(ctx context.Context, sessionID model.SessionID, message string) (*document.ChatResult, error) {
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "session is not registered")
	}
	m.sessions[sessionID] = append(m.sessions[sessionID], message)
	return &document.ChatResult{Response: "reply to " + message}, nil
}

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := mcpsdk.NewInMemoryTransports()

	_, err := srv.Connect(ctx, serverT)
	gt.NoError(t, err)

	cs, err := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0.0"}, nil).Connect(ctx, clientT, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	cs := connect(t, mcp.NewServer(newMockUseCase(), "test"))

	tools, err := cs.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	gt.A(t, tools.Tools).Length(3)
	gt.True(t, names["summarize_pdf"])
	gt.True(t, names["summarize_url"])
	gt.True(t, names["chat"])
}

func TestSummarizeThenChat(t *testing.T) {
	uc := newMockUseCase()
	cs := connect(t, mcp.NewServer(uc, "test"))

	text, isError := callText(t, cs, "summarize_pdf", map[string]any{"file_path": "uploads/a.pdf"})
	gt.False(t, isError)

	var summary document.SummaryResult
	gt.NoError(t, json.Unmarshal([]byte(text), &summary))
	gt.Equal(t, summary.Summary, "summary of uploads/a.pdf")

	text, isError = callText(t, cs, "chat", map[string]any{
		"session_id": summary.SessionID.String(),
		"message":    "What is it about?",
	})
	gt.False(t, isError)

	var chat document.ChatResult
	gt.NoError(t, json.Unmarshal([]byte(text), &chat))
	gt.Equal(t, chat.Response, "reply to What is it about?")
	gt.Equal(t, uc.sessions[summary.SessionID], []string{"What is it about?"})
}

func TestToolError(t *testing.T) {
	cs := connect(t, mcp.NewServer(newMockUseCase(), "test"))

	text, isError := callText(t, cs, "chat", map[string]any{"session_id": "unknown", "message": "hi"})
	gt.True(t, isError)
	gt.S(t, text).Contains("session not found")

	_, isError = callText(t, cs, "summarize_url", map[string]any{"url": ""})
	gt.True(t, isError)
}

func TestStreamableHTTP(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(mcp.NewServer(newMockUseCase(), "test").Handler())
	defer srv.Close()

	cs, err := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0.0"}, nil).
		Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: srv.URL}, nil)
	gt.NoError(t, err)
	defer cs.Close()

	text, isError := callText(t, cs, "summarize_url", map[string]any{"url": "https://example.com"})
	gt.False(t, isError)
	gt.S(t, text).Contains("summary of https://example.com")
}
