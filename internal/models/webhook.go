// Package models: Meta WhatsApp Cloud API webhook payload types.
package models

import "encoding/json"

// WebhookObjectWhatsApp is the only top-level object type the pipeline processes.
const WebhookObjectWhatsApp = "whatsapp_business_account"

// MessageTypeText is the only inbound message type that carries a usable body.
const MessageTypeText = "text"

// WebhookPayload mirrors the provider-shaped JSON envelope delivered to the
// webhook endpoint.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one account-level entry in a webhook delivery.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange wraps the changed value of a subscribed field.
type WebhookChange struct {
	Field string             `json:"field"`
	Value WebhookChangeValue `json:"value"`
}

// WebhookChangeValue carries the actual messages and contacts of a change.
type WebhookChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WebhookMetadata   `json:"metadata"`
	Contacts         []WebhookContact  `json:"contacts,omitempty"`
	Messages         []WebhookMessage  `json:"messages,omitempty"`
	Statuses         []json.RawMessage `json:"statuses,omitempty"`
}

// WebhookMetadata identifies the receiving business phone number.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WebhookContact carries sender profile information.
type WebhookContact struct {
	WaID    string         `json:"wa_id"`
	Profile WebhookProfile `json:"profile"`
}

// WebhookProfile holds the sender's display name.
type WebhookProfile struct {
	Name string `json:"name"`
}

// WebhookMessage is a single inbound message inside a change value.
type WebhookMessage struct {
	From      string           `json:"from"`
	ID        string           `json:"id"`
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"`
	Text      *WebhookTextBody `json:"text,omitempty"`
}

// WebhookTextBody is the body of a text-type message.
type WebhookTextBody struct {
	Body string `json:"body"`
}

// InboundEvent is the distilled form of a webhook message handed to the
// pipeline. Text is empty when Type is not "text"; that is expected and
// short-circuits processing rather than erroring.
type InboundEvent struct {
	From          string
	MessageID     string
	Type          string
	Text          string
	ProfileName   string
	PhoneNumberID string
	Timestamp     string
}

// WebhookStatus is the acknowledgement body returned to the provider. The
// provider only retries on non-2xx, so every status acknowledges receipt.
type WebhookStatus string

const (
	// WebhookStatusAccepted means the event was queued for processing.
	WebhookStatusAccepted WebhookStatus = "accepted"
	// WebhookStatusIgnored means the top-level object type did not match.
	WebhookStatusIgnored WebhookStatus = "ignored"
	// WebhookStatusNoMessage means the payload carried no inbound message.
	WebhookStatusNoMessage WebhookStatus = "no_message"
	// WebhookStatusSkipped means the message carried no usable text.
	WebhookStatusSkipped WebhookStatus = "skipped"
	// WebhookStatusBlacklisted means the sender is blacklisted.
	WebhookStatusBlacklisted WebhookStatus = "blacklisted"
	// WebhookStatusGroupIgnored means the sender denotes a group conversation.
	WebhookStatusGroupIgnored WebhookStatus = "group_ignored"
	// WebhookStatusMalformed means the payload could not be parsed.
	WebhookStatusMalformed WebhookStatus = "malformed"
)

// ExtractInboundEvent pulls at most one InboundEvent from a webhook payload:
// the first message of the first change of the first entry. Payloads with
// multiple simultaneous messages are outside the provider's documented
// contract, so only the first is processed.
func (p *WebhookPayload) ExtractInboundEvent() *InboundEvent {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil
	}
	value := p.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil
	}
	msg := value.Messages[0]

	event := &InboundEvent{
		From:          msg.From,
		MessageID:     msg.ID,
		Type:          msg.Type,
		PhoneNumberID: value.Metadata.PhoneNumberID,
		Timestamp:     msg.Timestamp,
	}
	if msg.Type == MessageTypeText && msg.Text != nil {
		event.Text = msg.Text.Body
	}
	if len(value.Contacts) > 0 {
		event.ProfileName = value.Contacts[0].Profile.Name
	}
	return event
}
