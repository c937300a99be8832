package document

import (
	"context"
	"io"
	"path/filepath"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Upload stores r in the staging area and returns the path to pass to Summarize.
// An existing file with the same name is overwritten.
func (u *UseCase) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", goerr.Wrap(model.ErrInvalidRequest, "file name is required", goerr.V("filename", filename))
	}

	path, err := u.stager.Put(ctx, name, r)
	if err != nil {
		return "", goerr.Wrap(err, "failed to stage uploaded file", goerr.V("filename", name))
	}

	logging.From(ctx).Info("file uploaded", "path", path)
	return path, nil
}
