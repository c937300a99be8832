package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestNewStoreID(t *testing.T) {
	id1 := model.NewStoreID()
	id2 := model.NewStoreID()

	gt.True(t, strings.HasPrefix(id1.String(), "vector-db-"))
	gt.Equal(t, len(id1.String()), len("vector-db-")+32)
	gt.NotEqual(t, id1, id2)
}

func TestNewSessionID(t *testing.T) {
	gt.NotEqual(t, model.NewSessionID(), model.NewSessionID())
}

func TestSessionCopy(t *testing.T) {
	s := &model.Session{
		ID:      model.NewSessionID(),
		StoreID: model.NewStoreID(),
		History: []model.Turn{{Role: model.RoleUser, Content: "hello"}},
	}

	dup := s.Copy()
	dup.History[0].Content = "changed"
	dup.History = append(dup.History, model.Turn{Role: model.RoleAssistant, Content: "hi"})

	gt.Equal(t, s.History[0].Content, "hello")
	gt.A(t, s.History).Length(1)
	gt.Equal(t, dup.StoreID, s.StoreID)

	var nilSession *model.Session
	gt.Nil(t, nilSession.Copy())
}

func TestWithKind(t *testing.T) {
	cause := goerr.New("backend down")
	err := goerr.Wrap(model.WithKind(model.ErrTurnExecution, cause), "failed to chat")

	gt.True(t, errors.Is(err, model.ErrTurnExecution))
	gt.True(t, errors.Is(err, cause))
	gt.False(t, errors.Is(err, model.ErrSessionNotFound))
	gt.S(t, err.Error()).Contains("backend down")

	gt.True(t, errors.Is(model.WithKind(model.ErrFetch, nil), model.ErrFetch))
}

func TestEventType(t *testing.T) {
	events := []model.Event{
		&model.TurnStarted{},
		&model.ToolExecuted{},
		&model.ContentDelta{},
		&model.MessageCompleted{},
		&model.TurnCompleted{},
	}
	types := map[model.EventType]bool{}
	for _, ev := range events {
		types[ev.Type()] = true
	}
	gt.Equal(t, len(types), 5)
}
