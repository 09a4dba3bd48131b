// Package api provides HTTP handlers for CaseFlow endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/CaseFlow/internal/flow"
	"github.com/BTreeMap/CaseFlow/internal/models"
	"github.com/BTreeMap/CaseFlow/internal/util"
)

// openConversationHandler handles POST /api/v1/conversations
func (s *Server) openConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.openConversationHandler: processing open request", "method", r.Method, "path", r.URL.Path)

	// The body is optional; an empty POST opens an untyped conversation.
	var req models.OpenConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		slog.Warn("Server.openConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state := models.NewConversationState(uuid.NewString())
	state.MessageType = req.MessageType

	if err := s.st.SaveConversation(state); err != nil {
		slog.Error("Server.openConversationHandler: save failed", "error", err, "reportID", state.ReportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to open conversation"))
		return
	}

	slog.Info("Server.openConversationHandler: conversation opened", "reportID", state.ReportID, "messageType", state.MessageType)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Conversation opened", state))
}

// messageHandler handles POST /api/v1/conversations/{id}/messages
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	reportID := r.PathValue("id")
	slog.Debug("Server.messageHandler: processing message", "reportID", reportID)

	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.messageHandler: validation failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	state, err := s.loadState(reportID, &req)
	if err != nil {
		slog.Error("Server.messageHandler: load state failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}

	escalationContext := map[string]string{}
	if req.CustomerClass != "" {
		escalationContext[flow.ContextKeyCustomerClass] = req.CustomerClass
	}

	rawReply := s.generateReply(r.Context(), state, req.Message)

	result, err := s.engine.Process(state, req.Message, rawReply, req.Tier, escalationContext)
	if err != nil {
		if errors.Is(err, models.ErrUnknownFlowType) || errors.Is(err, models.ErrUnknownTier) {
			slog.Warn("Server.messageHandler: configuration lookup failed", "error", err, "reportID", reportID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.messageHandler: pipeline failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	result.State.UpdatedAt = time.Now()
	if err := s.st.SaveConversation(result.State); err != nil {
		slog.Error("Server.messageHandler: save failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to persist conversation"))
		return
	}

	if result.ShouldEscalate {
		s.recordEscalation(r.Context(), reportID, result.Decision)
	}

	resp := models.MessageResponse{
		Success:        true,
		Extracted:      result.Extracted,
		NextMessages:   result.NextMessages,
		ShouldEscalate: result.ShouldEscalate,
		Response:       result.Response,
		Classification: result.Classification,
		Completion:     result.Completion,
		Escalation:     result.Decision,
		ConversationState: models.ConversationStateView{
			CurrentStep:   result.State.CurrentStep,
			ExtractedData: result.State.Sections,
			Status:        result.Completion.Status,
		},
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// loadState resolves the conversation state for a message: persisted state
// when available, otherwise a fresh one. Stateless callers may override the
// step and sections through the request.
func (s *Server) loadState(reportID string, req *models.MessageRequest) (models.ConversationState, error) {
	stored, err := s.st.GetConversation(reportID)
	if err != nil {
		return models.ConversationState{}, err
	}
	var state models.ConversationState
	if stored != nil {
		state = *stored
	} else {
		state = models.NewConversationState(reportID)
	}
	if req.MessageType != "" {
		state.MessageType = req.MessageType
	}
	if req.CurrentStep > 0 {
		state.CurrentStep = req.CurrentStep
	}
	if req.ExtractedData != nil {
		state.Sections = *req.ExtractedData
	}
	return state, nil
}

// generateReply asks the completion service for a prose reply grounded in the
// active step. Any failure falls back to an empty reply so the formatter can
// synthesize one from the step's prompts.
func (s *Server) generateReply(ctx context.Context, state models.ConversationState, message string) string {
	if s.gen == nil {
		return ""
	}
	def, err := s.engine.Flows().Get(state.MessageType)
	if err != nil {
		slog.Debug("Server.generateReply: no flow context yet, skipping completion", "messageType", state.MessageType)
		return ""
	}
	step := def.Step(state.CurrentStep)

	var sb strings.Builder
	sb.WriteString("You are a calm, professional intake assistant collecting details for a ")
	sb.WriteString(def.Type)
	sb.WriteString(" report. The current goal: ")
	sb.WriteString(step.Purpose)
	sb.WriteString(". Acknowledge what the customer shared, then ask for what is still needed:\n")
	for _, prompt := range step.Messages {
		sb.WriteString("- ")
		sb.WriteString(prompt)
		sb.WriteString("\n")
	}
	sb.WriteString("Keep the reply short and do not invent facts.")

	reply, err := s.gen.GenerateReply(ctx, sb.String(), message)
	if err != nil {
		slog.Warn("Server.generateReply: completion failed, using template fallback", "error", err, "reportID", state.ReportID)
		return ""
	}
	return reply
}

// recordEscalation persists the audit record and alerts the on-call reviewer.
// Both are best-effort; a lost alert must not fail the message request.
func (s *Server) recordEscalation(ctx context.Context, reportID string, decision models.EscalationDecision) {
	record := models.EscalationRecord{
		ID:              util.GenerateEscalationID(),
		ReportID:        reportID,
		Reason:          decision.Reason,
		RecommendedTier: decision.RecommendedTier,
		CreatedAt:       time.Now(),
	}
	if err := s.st.SaveEscalation(record); err != nil {
		slog.Error("Server.recordEscalation: save failed", "error", err, "reportID", reportID)
	}
	if err := s.notifier.NotifyEscalation(ctx, reportID, decision.Reason, decision.RecommendedTier); err != nil {
		slog.Error("Server.recordEscalation: notify failed", "error", err, "reportID", reportID)
	}
}

// getConversationHandler handles GET /api/v1/conversations/{id}
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("id")
	slog.Debug("Server.getConversationHandler: fetching conversation", "reportID", reportID)

	state, err := s.st.GetConversation(reportID)
	if err != nil {
		slog.Error("Server.getConversationHandler: load failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}

	completion := models.CompletionStatus{Status: models.ReportStatusIncomplete}
	if def, err := s.engine.Flows().Get(state.MessageType); err == nil {
		completion = flow.Completion(state, def)
	}

	escalations, err := s.st.ListEscalations(reportID)
	if err != nil {
		slog.Error("Server.getConversationHandler: list escalations failed", "error", err, "reportID", reportID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load escalations"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"conversation": state,
		"completion":   completion,
		"escalations":  escalations,
	}))
}

// listFlowsHandler handles GET /api/v1/flows
func (s *Server) listFlowsHandler(w http.ResponseWriter, r *http.Request) {
	types := s.engine.Flows().Types()
	summaries := make([]flow.Summary, 0, len(types))
	for _, flowType := range types {
		def, err := s.engine.Flows().Get(flowType)
		if err != nil {
			slog.Error("Server.listFlowsHandler: registry inconsistent", "error", err, "flowType", flowType)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Flow registry inconsistent"))
			return
		}
		summaries = append(summaries, flow.Summarize(def))
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summaries))
}

// getFlowHandler handles GET /api/v1/flows/{type}
func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	flowType := r.PathValue("type")
	def, err := s.engine.Flows().Get(flowType)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(fmt.Sprintf("Unknown flow type: %s", flowType)))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(def))
}

// listTiersHandler handles GET /api/v1/tiers
func (s *Server) listTiersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.engine.Policy().Tiers()))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
