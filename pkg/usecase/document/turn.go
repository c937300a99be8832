package document

import (
	"context"
	"strings"

	"github.com/m-mizutani/docent/pkg/interfaces"
	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/docent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// NoContent is returned when a turn produced no assistant message or only whitespace
const NoContent = "No content was generated."

// RunTurn runs one turn and reduces its events to the assistant's answer. Only
// completed messages with the assistant role contribute, in arrival order.
func RunTurn(ctx context.Context, agent interfaces.Agent, sessionID model.SessionID, history []model.Turn, message string) (string, error) {
	logger := logging.From(logging.WithAttrs(ctx, "session_id", sessionID))

	var answer strings.Builder
	for ev, err := range agent.Turn(ctx, sessionID, history, message) {
		if err != nil {
			return "", model.WithKind(model.ErrTurnExecution,
				goerr.Wrap(err, "turn aborted", goerr.V("session_id", sessionID)))
		}

		switch v := ev.(type) {
		case *model.MessageCompleted:
			logger.Debug("turn event", "type", v.Type(), "role", v.Role, "length", len(v.Content))
			if v.Role == model.RoleAssistant {
				answer.WriteString(v.Content)
			}
		case *model.ToolExecuted:
			logger.Debug("turn event", "type", v.Type(), "tool", v.Tool, "chunks", v.Chunks)
		case *model.ContentDelta:
			logger.Debug("turn event", "type", v.Type(), "text", v.Text)
		case nil:
		default:
			logger.Debug("turn event", "type", v.Type())
		}
	}

	if strings.TrimSpace(answer.String()) == "" {
		return NoContent, nil
	}
	return answer.String(), nil
}
