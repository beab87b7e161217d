// Package pipeline connects the webhook intake to the conversation engine
// and outbound messaging. Webhook calls are acknowledged immediately;
// message processing runs in the background so the provider never waits on
// AI latency.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karuna-es/karunabot/internal/appointments"
	"github.com/karuna-es/karunabot/internal/flow"
	"github.com/karuna-es/karunabot/internal/messaging"
	"github.com/karuna-es/karunabot/internal/models"
)

const processTimeout = 2 * time.Minute

// Pipeline routes inbound webhook payloads through filtering, the
// conversation engine, and outbound delivery.
type Pipeline struct {
	engine    *flow.Engine
	blacklist *flow.BlacklistStore
	msg       messaging.Service
	recorder  appointments.Recorder
	wg        sync.WaitGroup
}

// NewPipeline assembles a message pipeline. recorder may be nil; scheduling
// signals are then discarded.
func NewPipeline(engine *flow.Engine, blacklist *flow.BlacklistStore, msg messaging.Service, recorder appointments.Recorder) *Pipeline {
	if recorder == nil {
		recorder = appointments.NoopRecorder{}
	}
	return &Pipeline{engine: engine, blacklist: blacklist, msg: msg, recorder: recorder}
}

// Accept classifies one raw webhook payload and, when it carries a
// processable text message, hands it to background processing. It returns
// quickly in all cases; the caller always acknowledges the webhook with
// success regardless of the returned status.
func (p *Pipeline) Accept(payload []byte) models.WebhookStatus {
	var wp models.WebhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		slog.Warn("Pipeline.Accept: malformed payload", "error", err)
		return models.WebhookStatusMalformed
	}
	if wp.Object != models.WebhookObjectWhatsApp {
		slog.Debug("Pipeline.Accept: ignoring non-whatsapp object", "object", wp.Object)
		return models.WebhookStatusIgnored
	}

	event := wp.ExtractInboundEvent()
	if event == nil {
		// Status callbacks and other non-message notifications land here.
		slog.Debug("Pipeline.Accept: no inbound message in payload")
		return models.WebhookStatusNoMessage
	}
	if event.Type != models.MessageTypeText || strings.TrimSpace(event.Text) == "" {
		slog.Debug("Pipeline.Accept: skipping non-text message", "sender", event.From, "type", event.Type)
		return models.WebhookStatusSkipped
	}
	if p.blacklist.Contains(event.From) {
		slog.Debug("Pipeline.Accept: dropping blacklisted sender", "sender", event.From)
		return models.WebhookStatusBlacklisted
	}
	if messaging.IsGroupSender(event.From) {
		slog.Debug("Pipeline.Accept: ignoring group message", "sender", event.From)
		return models.WebhookStatusGroupIgnored
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.process(event)
	}()
	return models.WebhookStatusAccepted
}

// process handles one accepted message end to end. Failures are logged and
// swallowed; the sender simply gets no reply for that message.
func (p *Pipeline) process(event *models.InboundEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if err := p.msg.MarkRead(ctx, event.MessageID); err != nil {
		slog.Warn("Pipeline.process: mark read failed", "error", err, "message_id", event.MessageID)
	}

	reply, err := p.engine.Handle(ctx, event.From, event.Text)
	if err != nil {
		slog.Error("Pipeline.process: engine failed", "error", err, "sender", event.From)
		return
	}
	if reply == "" {
		return
	}

	reply = p.interceptScheduleTrigger(ctx, event, reply)

	if _, err := p.msg.SendMessage(ctx, event.From, reply); err != nil {
		slog.Error("Pipeline.process: send failed", "error", err, "sender", event.From)
		return
	}
	slog.Debug("Pipeline.process: reply delivered", "sender", event.From)
}

// interceptScheduleTrigger replaces the scheduling sentinel with the
// human-facing scheduling prompt and records the lead. The sentinel is
// never delivered verbatim.
func (p *Pipeline) interceptScheduleTrigger(ctx context.Context, event *models.InboundEvent, reply string) string {
	if !strings.Contains(reply, models.TriggerSchedule) {
		return reply
	}
	if err := p.recorder.RecordLead(ctx, event.From, event.ProfileName); err != nil {
		slog.Warn("Pipeline.process: lead recording failed", "error", err, "sender", event.From)
	}
	slog.Info("Pipeline.process: scheduling intent detected", "sender", event.From)
	return models.SchedulePrompt
}

// Wait blocks until all in-flight background processing completes. It
// exists for orderly shutdown and tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
