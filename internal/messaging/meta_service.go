// Package messaging: Meta WhatsApp Cloud API transport.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/karuna-es/karunabot/internal/models"
)

// Defaults for the Meta Graph API transport.
const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultAPIVersion   = "v21.0"
	DefaultHTTPTimeout  = 30 * time.Second
)

// MetaOpts holds configuration options for the Meta transport.
type MetaOpts struct {
	AccessToken string
	NumberID    string
	APIVersion  string
	BaseURL     string
	HTTPClient  *http.Client
}

// MetaOption defines a configuration option for the Meta transport.
type MetaOption func(*MetaOpts)

// WithAccessToken sets the Graph API bearer token.
func WithAccessToken(token string) MetaOption {
	return func(o *MetaOpts) { o.AccessToken = token }
}

// WithNumberID sets the business phone number id.
func WithNumberID(id string) MetaOption {
	return func(o *MetaOpts) { o.NumberID = id }
}

// WithAPIVersion overrides the Graph API version.
func WithAPIVersion(version string) MetaOption {
	return func(o *MetaOpts) { o.APIVersion = version }
}

// WithGraphBaseURL overrides the Graph API base URL (used in tests).
func WithGraphBaseURL(url string) MetaOption {
	return func(o *MetaOpts) { o.BaseURL = url }
}

// WithHTTPClient injects the HTTP client (used in tests).
func WithHTTPClient(client *http.Client) MetaOption {
	return func(o *MetaOpts) { o.HTTPClient = client }
}

// MetaService implements Service using the Meta WhatsApp Business Cloud API.
type MetaService struct {
	token      string
	numberID   string
	baseURL    string
	httpClient *http.Client
}

// NewMetaService creates a Meta Cloud API transport.
func NewMetaService(opts ...MetaOption) (*MetaService, error) {
	cfg := MetaOpts{APIVersion: DefaultAPIVersion, BaseURL: DefaultGraphBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token must be provided")
	}
	if cfg.NumberID == "" {
		return nil, fmt.Errorf("phone number id must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	slog.Debug("MetaService initialized", "api_version", cfg.APIVersion, "number_id_suffix", suffix(cfg.NumberID))
	return &MetaService{
		token:      cfg.AccessToken,
		numberID:   cfg.NumberID,
		baseURL:    fmt.Sprintf("%s/%s/%s", cfg.BaseURL, cfg.APIVersion, cfg.NumberID),
		httpClient: cfg.HTTPClient,
	}, nil
}

// suffix returns the last four characters of an identifier for logging.
func suffix(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

// NormalizePhoneNumber strips non-digits and applies the Mexican numbering
// quirk: webhooks deliver 521XXXXXXXXXX (13 digits) but the send API expects
// 52XXXXXXXXXX (12 digits, without the 1 after the country code).
func NormalizePhoneNumber(phone string) string {
	digits := make([]byte, 0, len(phone))
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	normalized := string(digits)
	if len(normalized) == 13 && normalized[:3] == "521" {
		normalized = "52" + normalized[3:]
	}
	return normalized
}

// ValidateAndCanonicalizeRecipient normalizes the recipient phone number.
func (s *MetaService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	normalized := NormalizePhoneNumber(recipient)
	if normalized == "" {
		return "", models.ErrEmptyRecipient
	}
	return normalized, nil
}

// sendRequest posts a payload to the messages endpoint and decodes the reply.
func (s *MetaService) sendRequest(ctx context.Context, payload interface{}) (*http.Response, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, respBody, nil
}

// metaSendResponse is the subset of the Graph API send reply we consume.
type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendMessage sends a text message and returns the provider message id.
func (s *MetaService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return "", err
	}
	slog.Debug("MetaService SendMessage invoked", "to", canonical, "body_length", len(body))

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                canonical,
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        body,
		},
	}
	resp, respBody, err := s.sendRequest(ctx, payload)
	if err != nil {
		slog.Error("MetaService SendMessage request error", "error", err, "to", canonical)
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("MetaService SendMessage rejected", "status", resp.StatusCode, "to", canonical, "response", string(respBody))
		return "", fmt.Errorf("send to %s failed with status %d: %s", canonical, resp.StatusCode, string(respBody))
	}

	var parsed metaSendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 {
		// The send succeeded; a missing id only degrades logging.
		slog.Warn("MetaService SendMessage: could not extract message id", "to", canonical)
		return "", nil
	}
	slog.Info("MetaService message sent", "to", canonical, "message_id", parsed.Messages[0].ID)
	return parsed.Messages[0].ID, nil
}

// MarkRead marks an inbound message as read.
func (s *MetaService) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	resp, respBody, err := s.sendRequest(ctx, payload)
	if err != nil {
		slog.Error("MetaService MarkRead request error", "error", err, "message_id", messageID)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("MetaService MarkRead rejected", "status", resp.StatusCode, "message_id", messageID, "response", string(respBody))
		return fmt.Errorf("mark read failed with status %d", resp.StatusCode)
	}
	slog.Debug("MetaService message marked read", "message_id", messageID)
	return nil
}
