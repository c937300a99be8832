package agent

import (
	"bytes"
	"context"
	_ "embed"
	"iter"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/tool"
	"github.com/m-mizutani/docent/pkg/utils/chunk"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/turn.md
var turnPromptRaw string

var turnPromptTmpl = template.Must(template.New("turn").Parse(turnPromptRaw))

// Agent answers messages about one knowledge store. It keeps no conversation state.
type Agent struct {
	llm           interfaces.LLM
	registry      *tool.Registry
	storeID       model.StoreID
	modelID       string
	instructions  string
	historyBudget int
}

func (a *Agent) StoreID() model.StoreID { return a.storeID }

func (a *Agent) ModelID() string { return a.modelID }

// Instructions returns the system instructions given to the model
func (a *Agent) Instructions() string { return a.instructions }

func (a *Agent) CreateSession(ctx context.Context, label string) (model.SessionID, error) {
	id := model.NewSessionID()
	logging.From(ctx).Debug("session created",
		"session_id", id,
		"label", label,
		"store_id", a.storeID,
		"model", a.modelID,
	)
	return id, nil
}

type toolOutput struct {
	Tool    string
	Content string
}

// Turn retrieves context with every tool using the message as query, then streams the answer
func (a *Agent) Turn(ctx context.Context, sessionID model.SessionID, history []model.Turn, message string) iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		turnID := uuid.NewString()

		if !yield(&model.TurnStarted{TurnID: turnID, SessionID: sessionID, StartedAt: time.Now()}, nil) {
			return
		}
		if !yield(&model.MessageCompleted{TurnID: turnID, Role: model.RoleUser, Content: message}, nil) {
			return
		}

		var outputs []toolOutput
		for _, t := range a.registry.Tools() {
			result, err := t.Execute(ctx, message)
			if err != nil {
				yield(nil, goerr.Wrap(err, "tool execution failed",
					goerr.V("tool", t.Name()),
					goerr.V("session_id", sessionID)))
				return
			}
			if !yield(&model.ToolExecuted{TurnID: turnID, Tool: t.Name(), Query: message, Chunks: len(result.Chunks)}, nil) {
				return
			}
			outputs = append(outputs, toolOutput{Tool: t.Name(), Content: result.Content})
		}

		var buf bytes.Buffer
		if err := turnPromptTmpl.Execute(&buf, map[string]any{
			"Message": message,
			"Results": outputs,
		}); err != nil {
			yield(nil, goerr.Wrap(err, "failed to execute turn prompt template"))
			return
		}

		window := windowHistory(history, a.historyBudget)
		messages := make([]model.Message, 0, len(window)+1)
		for _, t := range window {
			messages = append(messages, model.Message{Role: t.Role, Content: t.Content})
		}
		messages = append(messages, model.Message{Role: model.RoleUser, Content: buf.String()})

		var answer strings.Builder
		for text, err := range a.llm.GenerateStream(ctx, a.instructions, messages) {
			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to generate answer",
					goerr.V("session_id", sessionID),
					goerr.V("model", a.modelID)))
				return
			}
			answer.WriteString(text)
			if !yield(&model.ContentDelta{TurnID: turnID, Role: model.RoleAssistant, Text: text}, nil) {
				return
			}
		}

		if answer.Len() > 0 {
			if !yield(&model.MessageCompleted{TurnID: turnID, Role: model.RoleAssistant, Content: answer.String()}, nil) {
				return
			}
		}
		yield(&model.TurnCompleted{TurnID: turnID, CompletedAt: time.Now()}, nil)
	}
}

// windowHistory fits history into budget estimated tokens. The first exchange
// (the document summary) is always kept; the oldest later exchanges go first.
func windowHistory(history []model.Turn, budget int) []model.Turn {
	if budget <= 0 || cost(history) <= budget || len(history) <= 2 {
		return history
	}

	head := history[:2]
	remaining := budget - cost(head)

	start := len(history)
	for start-2 >= 2 {
		c := cost(history[start-2 : start])
		if c > remaining {
			break
		}
		remaining -= c
		start -= 2
	}

	window := make([]model.Turn, 0, 2+len(history)-start)
	window = append(window, head...)
	return append(window, history[start:]...)
}

func cost(turns []model.Turn) int {
	n := 0
	for _, t := range turns {
		n += chunk.EstimateTokens(t.Content)
	}
	return n
}
