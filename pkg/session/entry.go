package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
)

// Entry is a registered session. Its methods are only valid inside Registry.Do.
type Entry struct {
	mu      sync.Mutex
	session *model.Session
	agent   interfaces.Agent
	closed  bool

	// guarded by Registry.mu
	elem     *list.Element
	lastUsed time.Time
}

// id is immutable after creation
func (e *Entry) id() model.SessionID { return e.session.ID }

func (e *Entry) Agent() interfaces.Agent { return e.agent }

// Session returns a copy of the session
func (e *Entry) Session() *model.Session { return e.session.Copy() }

// History returns a copy of the conversation history
func (e *Entry) History() []model.Turn {
	history := make([]model.Turn, len(e.session.History))
	copy(history, e.session.History)
	return history
}

// Append adds turns in order. Turns without a timestamp are stamped with the current time.
func (e *Entry) Append(turns ...model.Turn) {
	now := time.Now()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		e.session.History = append(e.session.History, t)
	}
	e.session.UpdatedAt = now
}
