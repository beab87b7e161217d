package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/karuna-es/karunabot/internal/genai"
	"github.com/karuna-es/karunabot/internal/models"
)

const missingAIReply = "Lo siento, el servicio de IA no esta configurado correctamente."

// Engine turns one inbound message into one reply. It owns the
// conversation logic: reset commands, menu presentation and selection, and
// the AI-backed conversational path with windowed history.
type Engine struct {
	flows    *FlowStore
	registry *Registry
	ai       genai.ClientInterface
}

// NewEngine assembles a conversation engine. The AI client may be nil, in
// which case conversational messages get a configuration error reply.
func NewEngine(flows *FlowStore, registry *Registry, ai genai.ClientInterface) *Engine {
	return &Engine{flows: flows, registry: registry, ai: ai}
}

// Handle processes one message from senderID and returns the reply text.
// Messages from the same sender are serialized on that sender's session;
// distinct senders run concurrently.
func (e *Engine) Handle(ctx context.Context, senderID, text string) (string, error) {
	text = strings.TrimSpace(text)

	session := e.registry.Acquire(senderID)
	defer session.Release()

	if models.IsResetKeyword(text) {
		session.Reset()
		slog.Debug("Engine.Handle: conversation reset", "sender", senderID)
		return models.ResetAcknowledgement, nil
	}

	active := e.flows.ActiveFlow()
	if active.HasMenu() {
		if !session.MenuShown() {
			session.MarkMenuShown()
			slog.Debug("Engine.Handle: presenting menu", "sender", senderID, "flow_id", active.ID)
			return RenderMenu(active.MenuConfig), nil
		}
		if reply, ok := SelectOption(active.MenuConfig, text); ok {
			slog.Debug("Engine.Handle: menu option selected", "sender", senderID, "flow_id", active.ID)
			return reply, nil
		}
		// Unrecognized input falls through to the conversational path.
	}

	return e.converse(ctx, session, senderID, text)
}

func (e *Engine) converse(ctx context.Context, session *Session, senderID, text string) (string, error) {
	session.AppendTurn(models.RoleUser, text)

	if e.ai == nil {
		slog.Warn("Engine.converse: no AI client configured", "sender", senderID)
		return missingAIReply, nil
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, models.MaxHistoryMessages+1)
	msgs = append(msgs, openai.SystemMessage(e.flows.ActivePrompt()))
	for _, turn := range session.History() {
		switch turn.Role {
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		default:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}

	reply, err := e.ai.GenerateWithMessages(ctx, msgs)
	if err != nil {
		// The failed exchange leaves no assistant turn so a retry
		// rebuilds the same context.
		slog.Error("Engine.converse: AI generation failed", "error", err, "sender", senderID)
		return models.AIFailureReply, nil
	}

	session.AppendTurn(models.RoleAssistant, reply)
	slog.Debug("Engine.converse: reply generated", "sender", senderID, "length", len(reply))
	return reply, nil
}
