// Package models defines the core data structures for KarunaBot.
//
// It includes flow and menu definitions, the persisted bot configuration
// document, inbound webhook event types, and the API response envelope
// shared across modules.
package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// FlowType defines how a flow produces replies.
type FlowType string

const (
	// FlowTypeIntelligent replies with AI-generated text from the flow's system prompt.
	FlowTypeIntelligent FlowType = "intelligent"
	// FlowTypeMenu replies with canned responses from a fixed option list.
	FlowTypeMenu FlowType = "menu"
)

// Conversation constants shared by the flow engine and its callers.
const (
	// MaxHistoryMessages bounds the per-sender conversation history (sliding window).
	MaxHistoryMessages = 20
	// TriggerSchedule is the sentinel the AI emits to signal scheduling intent.
	// It is intercepted before sending and never forwarded verbatim.
	TriggerSchedule = "TRIGGER_SCHEDULE"
	// ResetAcknowledgement is sent after a reset command clears the conversation.
	ResetAcknowledgement = "Conversacion reiniciada. Como puedo ayudarte?"
	// AIFailureReply is sent when the AI collaborator fails.
	AIFailureReply = "Disculpa, hubo un error tecnico. Puedes intentar de nuevo?"
	// SchedulePrompt replaces the trigger sentinel in outbound messages.
	SchedulePrompt = "Me encantaria ayudarte a agendar una cita. Por favor proporcioname tu nombre completo."
)

// ResetKeywords are the case-insensitive commands that clear a conversation.
var ResetKeywords = []string{"reset", "reiniciar", "limpiar"}

// IsResetKeyword reports whether text is a reset command. Matching is
// case-insensitive on the already-trimmed text.
func IsResetKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range ResetKeywords {
		if lower == kw {
			return true
		}
	}
	return false
}

// Error variables for better error handling and testability.
var (
	// ErrFlowNotFound indicates the referenced flow id does not exist.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrFlowExists indicates a custom flow id collides with an existing flow.
	ErrFlowExists = errors.New("flow id already exists")
	// ErrInvalidFlowID indicates a custom flow id fails the id pattern check.
	ErrInvalidFlowID = errors.New("flow id may only contain lowercase letters, numbers, and underscores")
	// ErrBuiltinFlow indicates an attempted mutation of a builtin flow.
	ErrBuiltinFlow = errors.New("builtin flows cannot be modified")
	// ErrEmptyRecipient indicates a send was attempted without a recipient.
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)

var flowIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateFlowID checks a custom flow id against the allowed pattern.
func ValidateFlowID(id string) error {
	if !flowIDPattern.MatchString(id) {
		return ErrInvalidFlowID
	}
	return nil
}

// MenuOption is a single selectable entry in a menu flow. Its 1-based
// position in the option list is the selection key.
type MenuOption struct {
	Label    string `json:"label"`
	Response string `json:"response"`
}

// MenuConfig describes the menu shown once per acknowledgement epoch.
type MenuConfig struct {
	WelcomeMessage string       `json:"welcome_message"`
	FooterMessage  string       `json:"footer_message"`
	Options        []MenuOption `json:"options"`
}

// Flow bundles an AI system prompt and optional menu, selectable as the
// active conversation behavior.
type Flow struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	SystemPrompt string      `json:"system_prompt"`
	IsBuiltin    bool        `json:"is_builtin"`
	FlowType     FlowType    `json:"flow_type"`
	MenuConfig   *MenuConfig `json:"menu_config,omitempty"`
	CreatedAt    time.Time   `json:"created_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at,omitempty"`
}

// HasMenu reports whether the flow carries a usable menu.
func (f *Flow) HasMenu() bool {
	return f.FlowType == FlowTypeMenu && f.MenuConfig != nil && len(f.MenuConfig.Options) > 0
}

// BotConfig is the single persisted configuration document.
//
// SystemPrompt caches the active flow's prompt as a read optimization; every
// mutation path must refresh it so it never diverges from the flow table.
type BotConfig struct {
	Blacklist    []string        `json:"blacklist"`
	ActiveFlowID string          `json:"active_flow_id"`
	SystemPrompt string          `json:"system_prompt"`
	CustomFlows  map[string]Flow `json:"custom_flows"`
	// CustomFlowOrder preserves insertion order for listing. Ids without a
	// matching CustomFlows entry are ignored on load.
	CustomFlowOrder []string `json:"custom_flow_order,omitempty"`
}

// ConversationMessage represents a single turn in a sender's history.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the envelope for all admin API responses.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response carrying a result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error creates an error API response.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
