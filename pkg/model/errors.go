package model

import "github.com/m-mizutani/goerr/v2"

var (
	ErrExtraction        = goerr.New("failed to extract content")
	ErrFetch             = goerr.New("failed to fetch content")
	ErrStoreRegistration = goerr.New("failed to register knowledge store")
	ErrInsertion         = goerr.New("failed to insert document")
	ErrAgentCreation     = goerr.New("failed to create agent")
	ErrSessionNotFound   = goerr.New("session not found")
	ErrTurnExecution     = goerr.New("failed to execute turn")
	ErrInvalidRequest    = goerr.New("invalid request")
)

type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string   { return e.kind.Error() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// WithKind tags cause with one of the error kinds above. errors.Is matches both.
func WithKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}
