package adapter

import (
	"context"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// PDFReader extracts plain text from PDF documents
type PDFReader interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64, source string) (*model.Document, error)
}

type pdfReader struct{}

func NewPDFReader() PDFReader {
	return &pdfReader{}
}

// Extract concatenates page text in page order, one line break after each page
func (x *pdfReader) Extract(ctx context.Context, r io.ReaderAt, size int64, source string) (doc *model.Document, err error) {
	// the parser panics on some malformed input
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = model.WithKind(model.ErrExtraction,
				goerr.New("pdf parser panicked", goerr.V("panic", rec), goerr.V("source", source)))
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction,
			goerr.Wrap(err, "failed to open pdf", goerr.V("source", source)))
	}

	var text strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "pdf extraction canceled")
		}

		page := reader.Page(i)
		if !page.V.IsNull() {
			content, err := page.GetPlainText(nil)
			if err != nil {
				return nil, model.WithKind(model.ErrExtraction,
					goerr.Wrap(err, "failed to read pdf page", goerr.V("source", source), goerr.V("page", i)))
			}
			text.WriteString(strings.TrimSpace(content))
		}
		text.WriteString("\n")
	}

	return &model.Document{
		ID:     "pdf-1",
		Text:   text.String(),
		Source: source,
		Format: "pdf",
		Pages:  pages,
	}, nil
}
