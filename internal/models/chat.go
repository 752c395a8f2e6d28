package models

import "encoding/json"

// ChatRequest is the payload accepted by the chat proxy endpoint. Message is
// left untyped so that a non-string value can be rejected explicitly.
type ChatRequest struct {
	Message             any             `json:"message"`
	ConversationHistory json.RawMessage `json:"conversationHistory"`
}

// ChatResponse is the success envelope of the chat proxy.
type ChatResponse struct {
	Response string `json:"response"`
}

// ChatError is the failure envelope of the chat proxy.
type ChatError struct {
	Error string `json:"error"`
}

// UpstreamFailure is returned when Gemini answered with a non-2xx status.
// Details is the raw upstream body and is always present, even when empty.
type UpstreamFailure struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Status  int    `json:"status"`
}
