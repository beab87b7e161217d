package messaging

import (
	"context"
	"testing"
)

func TestNewTwilioServiceValidation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioService(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioService(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	if _, err := NewTwilioService(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("whatsapp:+15550000000")); err != nil {
		t.Errorf("expected service with full credentials, got %v", err)
	}
}

func TestTwilioValidateAndCanonicalizeRecipient(t *testing.T) {
	svc, err := NewTwilioService(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("whatsapp:+15550000000"))
	if err != nil {
		t.Fatalf("NewTwilioService failed: %v", err)
	}

	got, err := svc.ValidateAndCanonicalizeRecipient("52 1 55 1234 5678")
	if err != nil {
		t.Fatalf("canonicalization failed: %v", err)
	}
	if got != "+525512345678" {
		t.Errorf("expected E.164 with plus, got %q", got)
	}

	if _, err := svc.ValidateAndCanonicalizeRecipient(""); err == nil {
		t.Error("expected error for empty recipient")
	}

	if err := svc.MarkRead(context.Background(), "wamid.x"); err != nil {
		t.Errorf("MarkRead must be a no-op, got %v", err)
	}
}
