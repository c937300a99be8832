package document

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"text/template"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/session"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

var summarizePromptTmpl = template.Must(template.New("summarize").Parse(summarizePromptRaw))

// SummaryResult is returned by Summarize and SummarizeURL
type SummaryResult struct {
	Summary   string          `json:"summary"`
	SessionID model.SessionID `json:"session_id"`
}

// Summarize extracts the staged PDF at path and starts a session with its summary
func (u *UseCase) Summarize(ctx context.Context, path string) (*SummaryResult, error) {
	if path == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "file_path is required")
	}

	doc, err := u.extractPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	return u.summarize(ctx, doc)
}

// SummarizeURL fetches rawURL and starts a session with a summary of the response body
func (u *UseCase) SummarizeURL(ctx context.Context, rawURL string) (*SummaryResult, error) {
	if rawURL == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "url is required")
	}

	doc, err := u.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return u.summarize(ctx, doc)
}

func (u *UseCase) extractPDF(ctx context.Context, path string) (*model.Document, error) {
	rc, err := u.stager.Open(ctx, path)
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction,
			goerr.Wrap(err, "failed to open staged file", goerr.V("path", path)))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, model.WithKind(model.ErrExtraction,
			goerr.Wrap(err, "failed to read staged file", goerr.V("path", path)))
	}

	return u.pdf.Extract(ctx, bytes.NewReader(data), int64(len(data)), path)
}

func (u *UseCase) summarize(ctx context.Context, doc *model.Document) (*SummaryResult, error) {
	storeID, err := u.binder.Bind(ctx, doc)
	if err != nil {
		return nil, err
	}

	agent, err := u.factory.Create(ctx, storeID)
	if err != nil {
		u.binder.Release(ctx, storeID)
		return nil, model.WithKind(model.ErrAgentCreation, err)
	}

	sessionID, err := u.registry.Create(ctx, agent, storeID, u.label)
	if err != nil {
		u.binder.Release(ctx, storeID)
		return nil, goerr.Wrap(err, "failed to register session", goerr.V("store_id", storeID))
	}

	var buf bytes.Buffer
	if err := summarizePromptTmpl.Execute(&buf, map[string]any{
		"StoreID": storeID,
		"Source":  doc.Source,
	}); err != nil {
		u.discard(ctx, sessionID, storeID)
		return nil, goerr.Wrap(err, "failed to execute summarize prompt template")
	}
	instruction := buf.String()

	var summary string
	err = u.registry.Do(ctx, sessionID, func(e *session.Entry) error {
		answer, err := RunTurn(ctx, e.Agent(), sessionID, e.History(), instruction)
		if err != nil {
			return err
		}
		e.Append(
			model.Turn{Role: model.RoleUser, Content: instruction},
			model.Turn{Role: model.RoleAssistant, Content: answer},
		)
		summary = answer
		return nil
	})
	if err != nil {
		u.discard(ctx, sessionID, storeID)
		return nil, err
	}

	logging.From(ctx).Info("document summarized",
		"session_id", sessionID,
		"store_id", storeID,
		"source", doc.Source,
	)
	return &SummaryResult{Summary: summary, SessionID: sessionID}, nil
}

// discard drops a session whose first turn failed. The registry releases the
// store on eviction; it is released here only if the session is already gone.
func (u *UseCase) discard(ctx context.Context, sessionID model.SessionID, storeID model.StoreID) {
	if err := u.registry.Delete(context.WithoutCancel(ctx), sessionID); err != nil {
		logging.From(ctx).Warn("failed to delete session", "session_id", sessionID, "error", err)
		u.binder.Release(ctx, storeID)
	}
}
