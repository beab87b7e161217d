package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		// Mexican webhook numbers carry an extra 1 after the country code.
		{"5215512345678", "525512345678"},
		{"525512345678", "525512345678"},
		{"+52 1 55 1234 5678", "525512345678"},
		{"+1 (416) 555-0199", "14165550199"},
		{"whatsapp:+525512345678", "525512345678"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhoneNumber(tt.input); got != tt.want {
			t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsGroupSender(t *testing.T) {
	if !IsGroupSender("1234567890-1234@g.us") {
		t.Error("expected group jid to be detected")
	}
	if IsGroupSender("525512345678") {
		t.Error("expected plain phone number to not be a group")
	}
}

func newTestMetaService(t *testing.T, handler http.HandlerFunc) *MetaService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewMetaService(
		WithAccessToken("test-token"),
		WithNumberID("123456789"),
		WithGraphBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("NewMetaService failed: %v", err)
	}
	return svc
}

func TestMetaSendMessage(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}
	svc := newTestMetaService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"messages":[{"id":"wamid.test123"}]}`)
	})

	id, err := svc.SendMessage(context.Background(), "5215512345678", "Hola")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if id != "wamid.test123" {
		t.Errorf("expected provider message id, got %q", id)
	}
	if gotPath != "/v21.0/123456789/messages" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
	if gotPayload["to"] != "525512345678" {
		t.Errorf("expected normalized recipient, got %v", gotPayload["to"])
	}
	text, _ := gotPayload["text"].(map[string]interface{})
	if text["body"] != "Hola" {
		t.Errorf("unexpected message body %v", text["body"])
	}
}

func TestMetaSendMessageRejected(t *testing.T) {
	svc := newTestMetaService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid token"}}`)
	})

	if _, err := svc.SendMessage(context.Background(), "525512345678", "Hola"); err == nil {
		t.Fatal("expected error on rejected send")
	}
}

func TestMetaSendMessageEmptyRecipient(t *testing.T) {
	svc := newTestMetaService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty recipient")
	})

	if _, err := svc.SendMessage(context.Background(), "", "Hola"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestMetaMarkRead(t *testing.T) {
	var gotPayload map[string]interface{}
	svc := newTestMetaService(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotPayload)
		io.WriteString(w, `{"success":true}`)
	})

	if err := svc.MarkRead(context.Background(), "wamid.abc"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if gotPayload["status"] != "read" {
		t.Errorf("expected read status payload, got %v", gotPayload["status"])
	}
	if gotPayload["message_id"] != "wamid.abc" {
		t.Errorf("unexpected message id %v", gotPayload["message_id"])
	}

	if err := svc.MarkRead(context.Background(), ""); err == nil {
		t.Error("expected error for empty message id")
	}
}

func TestNewMetaServiceValidation(t *testing.T) {
	if _, err := NewMetaService(WithNumberID("123")); err == nil {
		t.Error("expected error without access token")
	}
	if _, err := NewMetaService(WithAccessToken("tok")); err == nil {
		t.Error("expected error without number id")
	}
}
