package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new time-ordered SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

func (x SessionID) String() string { return string(x) }

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message of a conversation
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the conversation state bound to one knowledge store
type Session struct {
	ID        SessionID `json:"id"`
	Label     string    `json:"label"`
	StoreID   StoreID   `json:"store_id"`
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Copy returns a deep copy of the session
func (s *Session) Copy() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	dup.History = make([]Turn, len(s.History))
	copy(dup.History, s.History)
	return &dup
}

// Message is a role-tagged text passed to a language model
type Message struct {
	Role    Role
	Content string
}
