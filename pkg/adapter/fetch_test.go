package adapter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/docent/pkg/adapter"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc":
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			_, _ = w.Write([]byte("# Title\n\nSome content"))
		case "/large":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		doc, err := adapter.NewFetcher().Fetch(context.Background(), server.URL+"/doc")
		gt.NoError(t, err)
		gt.Equal(t, doc.Text, "# Title\n\nSome content")
		gt.Equal(t, doc.Format, "text/markdown")
		gt.Equal(t, doc.Source, server.URL+"/doc")
	})

	t.Run("non-success status", func(t *testing.T) {
		_, err := adapter.NewFetcher().Fetch(context.Background(), server.URL+"/missing")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrFetch))
	})

	t.Run("body too large", func(t *testing.T) {
		_, err := adapter.NewFetcher(adapter.WithMaxBodySize(10)).Fetch(context.Background(), server.URL+"/large")
		gt.True(t, errors.Is(err, model.ErrFetch))
	})

	t.Run("unreachable", func(t *testing.T) {
		unreachable := httptest.NewServer(http.NotFoundHandler())
		addr := unreachable.URL
		unreachable.Close()

		_, err := adapter.NewFetcher().Fetch(context.Background(), addr)
		gt.True(t, errors.Is(err, model.ErrFetch))
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, u := range []string{"", "file:///etc/passwd", "not a url", "http://"} {
			_, err := adapter.NewFetcher().Fetch(context.Background(), u)
			gt.True(t, errors.Is(err, model.ErrFetch))
		}
	})
}
