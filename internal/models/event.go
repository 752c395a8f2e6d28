package models

import "github.com/google/uuid"

// Event types published on a user's update channel.
const (
	EventConversationCreated = "conversation_created"
	EventConversationDeleted = "conversation_deleted"
	EventMessageCreated      = "message_created"
)

// Event is pushed to connected clients over the update hub.
type Event struct {
	Type           string        `json:"type"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	Message        *Message      `json:"message,omitempty"`
}
