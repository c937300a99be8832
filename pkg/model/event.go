package model

import "time"

type EventType string

const (
	EventTurnStarted      EventType = "turn_started"
	EventToolExecuted     EventType = "tool_executed"
	EventContentDelta     EventType = "content_delta"
	EventMessageCompleted EventType = "message_completed"
	EventTurnCompleted    EventType = "turn_completed"
)

// Event is one element of a turn's event stream. Concrete types are
// *TurnStarted, *ToolExecuted, *ContentDelta, *MessageCompleted and *TurnCompleted.
type Event interface {
	Type() EventType
}

type TurnStarted struct {
	TurnID    string
	SessionID SessionID
	StartedAt time.Time
}

type ToolExecuted struct {
	TurnID string
	Tool   string
	Query  string
	Chunks int
}

type ContentDelta struct {
	TurnID string
	Role   Role
	Text   string
}

type MessageCompleted struct {
	TurnID  string
	Role    Role
	Content string
}

type TurnCompleted struct {
	TurnID      string
	CompletedAt time.Time
}

func (*TurnStarted) Type() EventType      { return EventTurnStarted }
func (*ToolExecuted) Type() EventType     { return EventToolExecuted }
func (*ContentDelta) Type() EventType     { return EventContentDelta }
func (*MessageCompleted) Type() EventType { return EventMessageCompleted }
func (*TurnCompleted) Type() EventType    { return EventTurnCompleted }
