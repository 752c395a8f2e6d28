package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"

	"rafi-backend/internal/middleware"
	"rafi-backend/internal/models"
	"rafi-backend/internal/services"
)

const (
	errMessageRequired   = "Message is required"
	errKeyNotConfigured  = "Gemini API key not configured"
	errUpstreamFailed    = "Failed to get response from AI"
	errInternalServerErr = "Internal server error"
)

type chatReplier interface {
	Configured() bool
	Reply(ctx context.Context, message string, history []*pb.Content) (string, error)
}

// ChatHandler is the stateless proxy between the browser and Gemini. Every
// response it writes carries the cross-origin headers.
type ChatHandler struct {
	chat   chatReplier
	logger *slog.Logger
}

func NewChatHandler(chat chatReplier, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	middleware.SetCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(r.Context(), "panic in chat handler", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errInternalServerErr})
		}
	}()

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to decode chat request", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errInternalServerErr})
		return
	}

	message, ok := req.Message.(string)
	if !ok || message == "" {
		writeJSON(w, http.StatusBadRequest, models.ChatError{Error: errMessageRequired})
		return
	}

	if !h.chat.Configured() {
		h.logger.ErrorContext(r.Context(), "GEMINI_API_KEY is not set")
		writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errKeyNotConfigured})
		return
	}

	history, err := services.CleanHistory(req.ConversationHistory)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "invalid conversation history", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errInternalServerErr})
		return
	}

	reply, err := h.chat.Reply(r.Context(), message, history)
	if err != nil {
		var upErr *services.UpstreamError
		switch {
		case errors.Is(err, services.ErrAPIKeyNotConfigured):
			h.logger.ErrorContext(r.Context(), "GEMINI_API_KEY is not set")
			writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errKeyNotConfigured})
		case errors.As(err, &upErr):
			writeJSON(w, http.StatusInternalServerError, models.UpstreamFailure{
				Error:   errUpstreamFailed,
				Details: upErr.Body,
				Status:  upErr.Status,
			})
		default:
			h.logger.ErrorContext(r.Context(), "error in chat handler", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.ChatError{Error: errInternalServerErr})
		}
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: reply})
}
