package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rafi-backend/internal/middleware"
	"rafi-backend/internal/models"
)

type sessionService interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)
	Transcript(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.Message, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*models.SendMessageResponse, error)
}

type ConversationHandler struct {
	sessions sessionService
}

func NewConversationHandler(sessions sessionService) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversations, err := h.sessions.ListConversations(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	messages, err := h.sessions.Transcript(r.Context(), userID, conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// Start sends the first message of a new conversation.
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, nil)
}

// Send appends a message to an existing conversation.
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}
	h.send(w, r, &conversationID)
}

func (h *ConversationHandler) send(w http.ResponseWriter, r *http.Request, conversationID *uuid.UUID) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.sessions.SendMessage(r.Context(), userID, conversationID, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if conversationID == nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.sessions.DeleteConversation(r.Context(), userID, conversationID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
