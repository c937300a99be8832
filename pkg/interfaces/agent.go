package interfaces

import (
	"context"
	"iter"

	"github.com/m-mizutani/docent/pkg/model"
)

// Agent is a conversational agent bound to exactly one knowledge store.
// It keeps no conversation memory; history is passed in on every turn.
type Agent interface {
	StoreID() model.StoreID

	// CreateSession issues a new session identifier under a human-readable label
	CreateSession(ctx context.Context, label string) (model.SessionID, error)

	// Turn runs one exchange. The returned sequence is lazy and can be consumed once.
	Turn(ctx context.Context, sessionID model.SessionID, history []model.Turn, message string) iter.Seq2[model.Event, error]
}
