package adapter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/docent/pkg/adapter"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/gt"
)

func collect(t *testing.T, seq func(func(string, error) bool)) (string, error) {
	t.Helper()
	var out string
	for text, err := range seq {
		if err != nil {
			return out, err
		}
		out += text
	}
	return out, nil
}

func newOllamaServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req["model"], any("llama3.2:3b"))
		msgs := req["messages"].([]any)
		gt.Equal(t, msgs[0].(map[string]any)["role"], any("system"))

		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "Hello"}, "done": false}` + "\n"))
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": ", world"}, "done": false}` + "\n"))
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": ""}, "done": true}` + "\n"))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "all-minilm", "embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models": [
			{"name": "llama3.2:3b", "model": "llama3.2:3b", "details": {"family": "llama", "families": ["llama"]}},
			{"name": "all-minilm:latest", "model": "all-minilm:latest", "details": {"family": "bert", "families": ["bert"]}},
			{"name": "nomic-embed-text:latest", "model": "nomic-embed-text:latest", "details": {"family": "nomic-bert"}}
		]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOllamaGenerateStream(t *testing.T) {
	server := newOllamaServer(t)
	client, err := adapter.NewOllama(server.URL, nil)
	gt.NoError(t, err)

	out, err := collect(t, client.GenerateStream(context.Background(), "be brief", []model.Message{
		{Role: model.RoleUser, Content: "hi"},
	}))
	gt.NoError(t, err)
	gt.Equal(t, out, "Hello, world")
}

func TestOllamaGenerateStreamStop(t *testing.T) {
	server := newOllamaServer(t)
	client, err := adapter.NewOllama(server.URL, nil)
	gt.NoError(t, err)

	var received []string
	for text, err := range client.GenerateStream(context.Background(), "be brief", nil) {
		gt.NoError(t, err)
		received = append(received, text)
		break
	}
	gt.A(t, received).Length(1)
	gt.Equal(t, received[0], "Hello")
}

func TestOllamaGenerateStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	client, err := adapter.NewOllama(server.URL, nil)
	gt.NoError(t, err)

	_, err = collect(t, client.GenerateStream(context.Background(), "", []model.Message{{Role: model.RoleUser, Content: "hi"}}))
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("model not found")
}

func TestOllamaEmbed(t *testing.T) {
	server := newOllamaServer(t)
	client, err := adapter.NewOllama(server.URL, nil)
	gt.NoError(t, err)

	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(2)
	gt.Equal(t, vectors[1][0], float32(0.3))

	_, err = client.Embed(context.Background(), []string{"only one"})
	gt.Error(t, err)

	empty, err := client.Embed(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, empty).Length(0)
}

func TestOllamaListModels(t *testing.T) {
	server := newOllamaServer(t)
	client, err := adapter.NewOllama(server.URL, nil)
	gt.NoError(t, err)

	models, err := client.ListModels(context.Background())
	gt.NoError(t, err)
	gt.A(t, models).Length(3)
	gt.Equal(t, models[0].ID, "llama3.2:3b")
	gt.Equal(t, models[0].Type, model.ModelTypeLLM)
	gt.Equal(t, models[1].Type, model.ModelTypeEmbedding)
	gt.Equal(t, models[2].Type, model.ModelTypeEmbedding)
	gt.Equal(t, models[0].Provider, "ollama")
}

func newOpenAIServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.S(t, string(body)).Contains(`"stream":true`)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Bullet"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":" points"}}]}`,
		} {
			_, _ = w.Write([]byte("data: " + chunk + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.6]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		]}`))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"gpt-4o-mini","object":"model","owned_by":"openai"},
			{"id":"text-embedding-3-small","object":"model","owned_by":"openai"}
		]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIGenerateStream(t *testing.T) {
	server := newOpenAIServer(t)
	client := adapter.NewOpenAI("test-key", server.URL+"/v1")

	out, err := collect(t, client.GenerateStream(context.Background(), "system", []model.Message{
		{Role: model.RoleUser, Content: "summarize"},
		{Role: model.RoleAssistant, Content: "ok"},
		{Role: model.RoleUser, Content: "more"},
	}))
	gt.NoError(t, err)
	gt.Equal(t, out, "Bullet points")
}

func TestOpenAIEmbed(t *testing.T) {
	server := newOpenAIServer(t)
	client := adapter.NewOpenAI("test-key", server.URL+"/v1", adapter.WithOpenAIEmbeddingDimensions(2))

	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(2)
	gt.Equal(t, vectors[0][0], float32(0.1))
	gt.Equal(t, vectors[1][0], float32(0.5))
}

func TestOpenAIListModels(t *testing.T) {
	server := newOpenAIServer(t)
	client := adapter.NewOpenAI("test-key", server.URL+"/v1")

	models, err := client.ListModels(context.Background())
	gt.NoError(t, err)
	gt.A(t, models).Length(2)
	gt.Equal(t, models[0].Type, model.ModelTypeLLM)
	gt.Equal(t, models[1].Type, model.ModelTypeEmbedding)
}
