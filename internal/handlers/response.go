package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"rafi-backend/internal/middleware"
	"rafi-backend/internal/models"
	"rafi-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		replyErr      *services.ReplyError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validationErr.Fields, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.As(err, &replyErr):
		fields := map[string]string{}
		if replyErr.Result != nil && replyErr.Result.Conversation != nil {
			fields["conversation_id"] = replyErr.Result.Conversation.ID.String()
		}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, errorRespWithFields("AI_TIMEOUT", "AI request timed out", fields, r))
		case errors.Is(err, services.ErrAPIKeyNotConfigured):
			writeJSON(w, http.StatusInternalServerError, errorRespWithFields("CONFIG_ERROR", "Gemini API key not configured", fields, r))
		default:
			writeJSON(w, http.StatusBadGateway, errorRespWithFields("AI_ERROR", "Failed to get AI response", fields, r))
		}
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
