package document

import (
	"context"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/session"
	"github.com/m-mizutani/goerr/v2"
)

// ChatResult is returned by Chat
type ChatResult struct {
	Response string `json:"response"`
}

// Chat runs one turn in the session and appends the user message and the answer to its history
func (u *UseCase) Chat(ctx context.Context, sessionID model.SessionID, message string) (*ChatResult, error) {
	if sessionID == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "session_id is required")
	}
	if message == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "message is required", goerr.V("session_id", sessionID))
	}

	var response string
	err := u.registry.Do(ctx, sessionID, func(e *session.Entry) error {
		answer, err := RunTurn(ctx, e.Agent(), sessionID, e.History(), message)
		if err != nil {
			return err
		}
		e.Append(
			model.Turn{Role: model.RoleUser, Content: message},
			model.Turn{Role: model.RoleAssistant, Content: answer},
		)
		response = answer
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{Response: response}, nil
}

// Session returns a copy of the session
func (u *UseCase) Session(ctx context.Context, sessionID model.SessionID) (*model.Session, error) {
	return u.registry.Get(ctx, sessionID)
}

// DeleteSession removes the session. Its knowledge store is released by the registry's eviction hook.
func (u *UseCase) DeleteSession(ctx context.Context, sessionID model.SessionID) error {
	return u.registry.Delete(context.WithoutCancel(ctx), sessionID)
}
