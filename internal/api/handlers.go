// Package api provides HTTP handlers for KarunaBot admin endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/karuna-es/karunabot/internal/appointments"
	"github.com/karuna-es/karunabot/internal/flow"
	"github.com/karuna-es/karunabot/internal/models"
)

// promptRequest is the body for updating the active system prompt.
type promptRequest struct {
	SystemPrompt string `json:"system_prompt" validate:"required"`
}

// createFlowRequest is the body for creating a custom flow.
type createFlowRequest struct {
	ID           string             `json:"id" validate:"required"`
	Name         string             `json:"name" validate:"required"`
	Description  string             `json:"description"`
	SystemPrompt string             `json:"system_prompt" validate:"required"`
	FlowType     models.FlowType    `json:"flow_type" validate:"omitempty,oneof=intelligent menu"`
	MenuConfig   *models.MenuConfig `json:"menu_config"`
}

// updateFlowRequest is the body for partially updating a custom flow. Only
// provided fields change.
type updateFlowRequest struct {
	Name         *string            `json:"name"`
	Description  *string            `json:"description"`
	SystemPrompt *string            `json:"system_prompt"`
	FlowType     *models.FlowType   `json:"flow_type" validate:"omitempty,oneof=intelligent menu"`
	MenuConfig   *models.MenuConfig `json:"menu_config"`
}

// activateFlowRequest is the body for switching the active flow.
type activateFlowRequest struct {
	FlowID string `json:"flow_id" validate:"required"`
}

// blacklistRequest is the body for blacklist add and remove operations.
type blacklistRequest struct {
	Sender string `json:"sender" validate:"required"`
}

// sendMessageRequest is the body for direct outbound sends.
type sendMessageRequest struct {
	To   string `json:"to" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// decodeAndValidate decodes a JSON request body into dst and runs struct
// validation. It writes the error response itself and reports success.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Warn("Server.decodeAndValidate: failed to decode JSON", "error", err, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		slog.Warn("Server.decodeAndValidate: validation failed", "error", err, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return false
	}
	return true
}

// promptHandler serves the active system prompt (GET /api/prompt) and
// updates it (POST /api/prompt).
func (s *Server) promptHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
			"active_flow_id": s.flows.ActiveFlowID(),
			"system_prompt":  s.flows.ActivePrompt(),
		}))
	case http.MethodPost:
		var req promptRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
		if err := s.flows.SetSystemPrompt(req.SystemPrompt); err != nil {
			writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("System prompt updated", nil))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// flowsHandler lists flows (GET /api/flows) and creates custom flows
// (POST /api/flows).
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
			"flows":          s.flows.ListFlows(),
			"active_flow_id": s.flows.ActiveFlowID(),
		}))
	case http.MethodPost:
		var req createFlowRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
		def := models.Flow{
			ID:           req.ID,
			Name:         req.Name,
			Description:  req.Description,
			SystemPrompt: req.SystemPrompt,
			FlowType:     req.FlowType,
			MenuConfig:   req.MenuConfig,
		}
		if err := s.flows.CreateCustomFlow(def); err != nil {
			writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
			return
		}
		created, err := s.flows.GetFlow(req.ID)
		if err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load created flow"))
			return
		}
		writeJSONResponse(w, http.StatusCreated, models.Success(created))
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// flowByIDHandler serves GET, PUT, and DELETE on /api/flows/{id}.
func (s *Server) flowByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/flows/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		f, err := s.flows.GetFlow(id)
		if err != nil {
			writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(f))
	case http.MethodPut:
		var req updateFlowRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
		update := flow.FlowUpdate{
			Name:         req.Name,
			Description:  req.Description,
			SystemPrompt: req.SystemPrompt,
			FlowType:     req.FlowType,
			MenuConfig:   req.MenuConfig,
		}
		if err := s.flows.UpdateCustomFlow(id, update); err != nil {
			writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
			return
		}
		updated, err := s.flows.GetFlow(id)
		if err != nil {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load updated flow"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(updated))
	case http.MethodDelete:
		if err := s.flows.DeleteCustomFlow(id); err != nil {
			writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow deleted", map[string]string{
			"active_flow_id": s.flows.ActiveFlowID(),
		}))
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// activateFlowHandler switches the active flow (POST /api/flow/activate).
func (s *Server) activateFlowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req activateFlowRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.flows.SetActiveFlow(req.FlowID); err != nil {
		writeJSONResponse(w, flowErrorStatus(err), models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow activated", map[string]string{
		"active_flow_id": req.FlowID,
	}))
}

// blacklistHandler lists blacklisted senders (GET /api/blacklist).
func (s *Server) blacklistHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"blacklist": s.blacklist.List(),
	}))
}

// blacklistAddHandler adds a sender to the blacklist (POST /api/blacklist/add).
func (s *Server) blacklistAddHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req blacklistRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.blacklist.Add(req.Sender); err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Sender blacklisted", nil))
}

// blacklistRemoveHandler removes a sender from the blacklist
// (POST /api/blacklist/remove).
func (s *Server) blacklistRemoveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req blacklistRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.blacklist.Remove(req.Sender); err != nil {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Sender removed from blacklist", nil))
}

// appointmentsHandler books a confirmed appointment (POST /api/appointments)
// and sends the sender a confirmation with the booking reference.
func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var details appointments.Details
	if !s.decodeAndValidate(w, r, &details) {
		return
	}

	result, err := s.recorder.RecordAppointment(r.Context(), details)
	if err != nil {
		slog.Error("Server.appointmentsHandler: recording failed", "error", err, "name", details.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record appointment"))
		return
	}

	if to, err := s.msgService.ValidateAndCanonicalizeRecipient(details.Phone); err == nil {
		confirmation := fmt.Sprintf("Tu cita quedo agendada para el %s a las %s. Referencia: %s", details.Date, details.Time, result.MeetingRef)
		if result.MeetLink != "" {
			confirmation += "\nEnlace: " + result.MeetLink
		}
		if _, sendErr := s.msgService.SendMessage(r.Context(), to, confirmation); sendErr != nil {
			slog.Warn("Server.appointmentsHandler: confirmation send failed", "error", sendErr, "to", to)
		}
	}

	slog.Info("Server.appointmentsHandler: appointment recorded", "meeting_ref", result.MeetingRef)
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

// sendMessageHandler sends an outbound message directly (POST /v1/messages).
func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sendMessageRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.sendMessageHandler: recipient validation failed", "error", err, "original_to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	messageID, err := s.msgService.SendMessage(r.Context(), canonicalTo, req.Body)
	if err != nil {
		slog.Error("Server.sendMessageHandler: failed to send message", "error", err, "to", canonicalTo)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}

	slog.Info("Server.sendMessageHandler: message sent successfully", "to", canonicalTo)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", map[string]string{
		"message_id": messageID,
	}))
}

// healthHandler reports liveness (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// connectionStatusHandler reports messaging transport readiness
// (GET /api/connection-status).
func (s *Server) connectionStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"connected":      s.msgService != nil,
		"active_flow_id": s.flows.ActiveFlowID(),
	}))
}
