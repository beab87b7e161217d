package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Defaults for the Google Sheets recorder.
const (
	DefaultSheetsBaseURL    = "https://sheets.googleapis.com"
	DefaultAppointmentRange = "Citas!A:H"
	DefaultLeadRange        = "Leads!A:C"
	defaultSheetsTimeout    = 30 * time.Second
)

// SheetsOpts holds configurable options for the Google Sheets recorder.
type SheetsOpts struct {
	SpreadsheetID string
	AccessToken   string
	MeetLink      string
	BaseURL       string
	HTTPClient    *http.Client
}

// SheetsOption configures the Google Sheets recorder.
type SheetsOption func(*SheetsOpts)

// WithSpreadsheetID sets the target spreadsheet id.
func WithSpreadsheetID(id string) SheetsOption {
	return func(o *SheetsOpts) { o.SpreadsheetID = id }
}

// WithAccessToken sets the bearer token used for Sheets API calls.
func WithAccessToken(token string) SheetsOption {
	return func(o *SheetsOpts) { o.AccessToken = token }
}

// WithMeetLink sets the static meeting link attached to confirmations.
func WithMeetLink(link string) SheetsOption {
	return func(o *SheetsOpts) { o.MeetLink = link }
}

// WithSheetsBaseURL overrides the Sheets API base URL, mainly for tests.
func WithSheetsBaseURL(baseURL string) SheetsOption {
	return func(o *SheetsOpts) { o.BaseURL = baseURL }
}

// WithSheetsHTTPClient overrides the HTTP client, mainly for tests.
func WithSheetsHTTPClient(client *http.Client) SheetsOption {
	return func(o *SheetsOpts) { o.HTTPClient = client }
}

// SheetsRecorder appends appointments and leads as rows to a Google Sheet
// through the values.append REST endpoint.
type SheetsRecorder struct {
	spreadsheetID string
	accessToken   string
	meetLink      string
	baseURL       string
	client        *http.Client
}

// NewSheetsRecorder creates a recorder for the configured spreadsheet.
func NewSheetsRecorder(opts ...SheetsOption) (*SheetsRecorder, error) {
	var cfg SheetsOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSheetsBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultSheetsTimeout}
	}
	return &SheetsRecorder{
		spreadsheetID: cfg.SpreadsheetID,
		accessToken:   cfg.AccessToken,
		meetLink:      cfg.MeetLink,
		baseURL:       cfg.BaseURL,
		client:        cfg.HTTPClient,
	}, nil
}

// RecordAppointment appends a confirmed appointment row and returns the
// generated booking reference.
func (r *SheetsRecorder) RecordAppointment(ctx context.Context, details Details) (Result, error) {
	ref := uuid.NewString()
	row := []interface{}{
		time.Now().Format(time.RFC3339),
		ref,
		details.Name,
		details.Company,
		details.Service,
		details.Email,
		details.Phone,
		details.Date + " " + details.Time,
	}
	if err := r.appendRow(ctx, DefaultAppointmentRange, row); err != nil {
		slog.Error("SheetsRecorder.RecordAppointment: append failed", "error", err, "name", details.Name)
		return Result{}, fmt.Errorf("failed to record appointment: %w", err)
	}
	slog.Info("SheetsRecorder.RecordAppointment: appointment recorded", "meeting_ref", ref, "date", details.Date)
	return Result{MeetingRef: ref, MeetLink: r.meetLink}, nil
}

// RecordLead appends a scheduling-intent row.
func (r *SheetsRecorder) RecordLead(ctx context.Context, sender, profileName string) error {
	row := []interface{}{
		time.Now().Format(time.RFC3339),
		sender,
		profileName,
	}
	if err := r.appendRow(ctx, DefaultLeadRange, row); err != nil {
		slog.Error("SheetsRecorder.RecordLead: append failed", "error", err, "sender", sender)
		return fmt.Errorf("failed to record lead: %w", err)
	}
	slog.Info("SheetsRecorder.RecordLead: lead recorded", "sender", sender)
	return nil
}

func (r *SheetsRecorder) appendRow(ctx context.Context, valueRange string, row []interface{}) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		r.baseURL, r.spreadsheetID, url.PathEscape(valueRange))

	body, err := json.Marshal(map[string]interface{}{
		"values": [][]interface{}{row},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call sheets API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sheets API returned status %d: %s", resp.StatusCode, string(payload))
	}
	return nil
}
