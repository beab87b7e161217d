// Package appointments records scheduling leads and confirmed appointments
// raised during conversations. The production recorder appends rows to a
// Google Sheet over its REST API; a no-op recorder covers deployments
// without scheduling.
package appointments

import (
	"context"
	"log/slog"
)

// Details describes a confirmed appointment collected from a sender.
type Details struct {
	Name    string `json:"name" validate:"required"`
	Company string `json:"company"`
	Service string `json:"service"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

// Result identifies a recorded appointment.
type Result struct {
	MeetingRef string `json:"meeting_ref"`
	MeetLink   string `json:"meet_link,omitempty"`
}

// Recorder persists scheduling signals raised by the conversation pipeline.
type Recorder interface {
	// RecordAppointment stores a confirmed appointment and returns its
	// booking reference.
	RecordAppointment(ctx context.Context, details Details) (Result, error)
	// RecordLead stores a sender who expressed scheduling intent.
	RecordLead(ctx context.Context, sender, profileName string) error
}

// NoopRecorder discards all scheduling signals. It is used when no sheet
// backend is configured.
type NoopRecorder struct{}

// RecordAppointment implements Recorder by discarding the appointment.
func (NoopRecorder) RecordAppointment(_ context.Context, details Details) (Result, error) {
	slog.Debug("NoopRecorder.RecordAppointment: discarding appointment", "name", details.Name)
	return Result{}, nil
}

// RecordLead implements Recorder by discarding the lead.
func (NoopRecorder) RecordLead(_ context.Context, sender, _ string) error {
	slog.Debug("NoopRecorder.RecordLead: discarding lead", "sender", sender)
	return nil
}
