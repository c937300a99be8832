package adapter

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Stager is the drop box for uploaded files. Put returns the path that is later passed to Open.
type Stager interface {
	// Put saves r under name. An existing file with the same name is overwritten.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Open reads a previously staged file
	Open(ctx context.Context, stagedPath string) (io.ReadCloser, error)
}

// storageClient implements Stager interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage stager. Staged paths look like gs://<bucket>/<prefix><name>.
func NewStorage(ctx context.Context, bucketName, prefix string) (Stager, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	key := path.Join(s.prefix, filepath.Base(name))
	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", goerr.Wrap(err, "failed to write to storage", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}

	return "gs://" + s.bucketName + "/" + key, nil
}

func (s *storageClient) Open(ctx context.Context, stagedPath string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(stagedPath, "gs://"+s.bucketName+"/")
	if !ok || key == "" {
		return nil, goerr.New("path is not in the staging bucket",
			goerr.V("path", stagedPath),
			goerr.V("bucket", s.bucketName))
	}

	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}
