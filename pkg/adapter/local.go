package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

type localStager struct {
	dir string
}

// NewLocalStager stages files in a server-local directory, created on demand
func NewLocalStager(dir string) (Stager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve staging directory", goerr.V("dir", dir))
	}
	return &localStager{dir: abs}, nil
}

func (s *localStager) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", goerr.New("invalid file name", goerr.V("name", name))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create staging directory", goerr.V("dir", s.dir))
	}

	dst := filepath.Join(s.dir, base)
	f, err := os.Create(dst)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create staged file", goerr.V("path", dst))
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", goerr.Wrap(err, "failed to write staged file", goerr.V("path", dst))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", goerr.Wrap(err, "failed to close staged file", goerr.V("path", dst))
	}

	return dst, nil
}

func (s *localStager) Open(ctx context.Context, stagedPath string) (io.ReadCloser, error) {
	abs, err := filepath.Abs(stagedPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve staged path", goerr.V("path", stagedPath))
	}
	if !strings.HasPrefix(abs, s.dir+string(filepath.Separator)) {
		return nil, goerr.New("path is outside of the staging directory",
			goerr.V("path", stagedPath),
			goerr.V("dir", s.dir))
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open staged file", goerr.V("path", abs))
	}
	return f, nil
}
