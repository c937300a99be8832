package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/docent/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestLocalStager(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")

	stager, err := adapter.NewLocalStager(dir)
	gt.NoError(t, err)

	stagedPath, err := stager.Put(ctx, "report.pdf", strings.NewReader("first"))
	gt.NoError(t, err)
	gt.Equal(t, filepath.Base(stagedPath), "report.pdf")

	// last write wins
	stagedPath2, err := stager.Put(ctx, "report.pdf", strings.NewReader("second"))
	gt.NoError(t, err)
	gt.Equal(t, stagedPath2, stagedPath)

	r, err := stager.Open(ctx, stagedPath)
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "second")
}

func TestLocalStagerPathTraversal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stager, err := adapter.NewLocalStager(filepath.Join(dir, "uploads"))
	gt.NoError(t, err)

	stagedPath, err := stager.Put(ctx, "../../escape.pdf", strings.NewReader("data"))
	gt.NoError(t, err)
	gt.Equal(t, filepath.Dir(stagedPath), filepath.Join(dir, "uploads"))

	outside := filepath.Join(dir, "outside.txt")
	gt.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	_, err = stager.Open(ctx, outside)
	gt.Error(t, err)

	_, err = stager.Put(ctx, "", strings.NewReader("data"))
	gt.Error(t, err)
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestLocalStagerRemovesPartialFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stager, err := adapter.NewLocalStager(dir)
	gt.NoError(t, err)

	_, err = stager.Put(ctx, "partial.pdf", io.MultiReader(strings.NewReader("%PDF-1.4"), brokenReader{}))
	gt.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "partial.pdf"))
	gt.True(t, os.IsNotExist(err))
}

func TestStorageStager(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET is not set")
	}

	ctx := context.Background()
	stager, err := adapter.NewStorage(ctx, bucket, "docent-test/"+uuid.NewString())
	gt.NoError(t, err)

	stagedPath, err := stager.Put(ctx, "doc.pdf", strings.NewReader("pdf bytes"))
	gt.NoError(t, err)
	gt.S(t, stagedPath).Contains("gs://" + bucket + "/")

	r, err := stager.Open(ctx, stagedPath)
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "pdf bytes")

	_, err = stager.Open(ctx, "gs://other-bucket/doc.pdf")
	gt.Error(t, err)
}
