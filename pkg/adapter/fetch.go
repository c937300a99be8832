package adapter

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Fetcher retrieves the raw body of a URL as document text
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Document, error)
}

type httpFetcher struct {
	client  *http.Client
	maxSize int64
}

type FetcherOption func(*httpFetcher)

func WithFetchClient(client *http.Client) FetcherOption {
	return func(f *httpFetcher) {
		f.client = client
	}
}

func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *httpFetcher) {
		f.client = &http.Client{Timeout: d}
	}
}

// WithMaxBodySize bounds the number of bytes read from a response
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *httpFetcher) {
		f.maxSize = n
	}
}

func NewFetcher(opts ...FetcherOption) Fetcher {
	f := &httpFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		maxSize: 32 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (*model.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, model.WithKind(model.ErrFetch, goerr.New("invalid url", goerr.V("url", rawURL)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, model.WithKind(model.ErrFetch, goerr.Wrap(err, "failed to build request", goerr.V("url", rawURL)))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, model.WithKind(model.ErrFetch, goerr.Wrap(err, "failed to fetch url", goerr.V("url", rawURL)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.WithKind(model.ErrFetch, goerr.New("unexpected status code",
			goerr.V("url", rawURL),
			goerr.V("status", resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, model.WithKind(model.ErrFetch, goerr.Wrap(err, "failed to read response body", goerr.V("url", rawURL)))
	}
	if int64(len(body)) > f.maxSize {
		return nil, model.WithKind(model.ErrFetch, goerr.New("response body too large",
			goerr.V("url", rawURL),
			goerr.V("limit", f.maxSize)))
	}

	format := "text/plain"
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		format = mediaType
	}

	return &model.Document{
		ID:     "url-1",
		Text:   string(body),
		Source: rawURL,
		Format: format,
	}, nil
}
