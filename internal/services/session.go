package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rafi-backend/internal/models"
)

// ReplyTimeout bounds a single proxy call made on behalf of a user.
const ReplyTimeout = 30 * time.Second

const titleMaxRunes = 50

type conversationStore interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type messageStore interface {
	Create(ctx context.Context, m *models.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}

type replier interface {
	Reply(ctx context.Context, message string, history []*pb.Content) (string, error)
}

// EventPublisher delivers conversation events to a user's live clients.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event models.Event)
}

// ReplyError wraps a failed proxy call. The user turn it refers to is
// already persisted.
type ReplyError struct {
	Result *models.SendMessageResponse
	Err    error
}

func (e *ReplyError) Error() string { return fmt.Sprintf("failed to get reply: %v", e.Err) }

func (e *ReplyError) Unwrap() error { return e.Err }

// SessionService runs the send-message flow: persist the user turn, ask the
// chat proxy, persist the reply.
type SessionService struct {
	conversations conversationStore
	messages      messageStore
	chat          replier
	events        EventPublisher
	logger        *slog.Logger
	replyTimeout  time.Duration
}

func NewSessionService(conversations conversationStore, messages messageStore, chat replier, events EventPublisher, logger *slog.Logger) *SessionService {
	if events == nil {
		events = noopPublisher{}
	}
	return &SessionService{
		conversations: conversations,
		messages:      messages,
		chat:          chat,
		events:        events,
		logger:        logger,
		replyTimeout:  ReplyTimeout,
	}
}

// ConversationTitle derives a title from the first message of a conversation.
func ConversationTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= titleMaxRunes {
		return firstMessage
	}
	return string(runes[:titleMaxRunes]) + "..."
}

func (s *SessionService) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}

func (s *SessionService) Transcript(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *SessionService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	deleted, err := s.conversations.Delete(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{Message: "Conversation not found"}
	}

	s.events.Publish(ctx, userID, models.Event{
		Type:           models.EventConversationDeleted,
		ConversationID: conversationID,
	})
	return nil
}

// SendMessage posts content into conversationID, or into a new conversation
// when conversationID is nil. Proxy failures are returned as *ReplyError and
// are not retried.
func (s *SessionService) SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*models.SendMessageResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Fields: map[string]string{"content": "Message is required"}}
	}

	var (
		conv    *models.Conversation
		history []*pb.Content
		err     error
	)

	if conversationID == nil {
		conv = &models.Conversation{UserID: userID, Title: ConversationTitle(content)}
		if err := s.conversations.Create(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		s.events.Publish(ctx, userID, models.Event{
			Type:           models.EventConversationCreated,
			ConversationID: conv.ID,
			Conversation:   conv,
		})
	} else {
		conv, err = s.owned(ctx, userID, *conversationID)
		if err != nil {
			return nil, err
		}
		prior, err := s.messages.ListByConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transcript: %w", err)
		}
		history = TurnsFromMessages(prior)
	}

	userMsg, err := s.appendMessage(ctx, userID, conv, models.RoleUser, content)
	if err != nil {
		return nil, err
	}
	result := &models.SendMessageResponse{Conversation: conv, UserMessage: userMsg}

	replyCtx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	reply, err := s.chat.Reply(replyCtx, content, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.WarnContext(ctx, "chat reply timed out", "conversation_id", conv.ID, "timeout", s.replyTimeout)
		} else {
			s.logger.ErrorContext(ctx, "chat reply failed", "conversation_id", conv.ID, "error", err)
		}
		return result, &ReplyError{Result: result, Err: err}
	}

	assistantMsg, err := s.appendMessage(ctx, userID, conv, models.RoleAssistant, reply)
	if err != nil {
		return result, err
	}
	result.AssistantMessage = assistantMsg
	return result, nil
}

func (s *SessionService) owned(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Conversation not found"}
		}
		return nil, err
	}
	return conv, nil
}

func (s *SessionService) appendMessage(ctx context.Context, userID uuid.UUID, conv *models.Conversation, role, content string) (*models.Message, error) {
	msg := &models.Message{ConversationID: conv.ID, Role: role, Content: content}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	if err := s.conversations.Touch(ctx, conv.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh conversation timestamp", "conversation_id", conv.ID, "error", err)
	} else {
		conv.UpdatedAt = msg.CreatedAt
	}

	s.events.Publish(ctx, userID, models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: conv.ID,
		Message:        msg,
	})
	return msg, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, uuid.UUID, models.Event) {}
