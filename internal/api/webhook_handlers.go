package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/karuna-es/karunabot/internal/models"
)

// maxWebhookBodySize bounds webhook payload reads.
const maxWebhookBodySize = 1 << 20

// webhookHandler serves the WhatsApp webhook endpoint: GET performs the
// provider's subscription verification handshake, POST receives events.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhook(w, r)
	case http.MethodPost:
		s.receiveWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhook implements the hub.challenge echo handshake. The challenge
// is returned verbatim only when mode and token both match.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != s.verifyToken {
		slog.Warn("Server.verifyWebhook: verification failed", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Server.verifyWebhook: webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("Server.verifyWebhook: failed to write challenge", "error", err)
	}
}

// receiveWebhook hands the payload to the pipeline and acknowledges with
// 200 in every case. The provider retries on non-2xx, and retrying a
// payload we cannot process would only repeat the failure.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		slog.Warn("Server.receiveWebhook: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(string(models.WebhookStatusMalformed), nil))
		return
	}

	status := s.pipeline.Accept(payload)
	slog.Debug("Server.receiveWebhook: payload classified", "status", status)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(string(status), nil))
}
