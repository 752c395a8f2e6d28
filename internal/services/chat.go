package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"rafi-backend/internal/models"
)

// FallbackReply is returned when Gemini succeeds without usable text.
const FallbackReply = "I couldn't generate a response."

// ErrAPIKeyNotConfigured is returned before any upstream call when no Gemini key is set.
var ErrAPIKeyNotConfigured = errors.New("gemini api key not configured")

const (
	roleUser  = "user"
	roleModel = "model"
)

var historyUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}

// chatGenerationConfig returns the fixed sampling settings sent with every request.
func chatGenerationConfig() *pb.GenerationConfig {
	return &pb.GenerationConfig{
		Temperature:     proto.Float32(0.9),
		TopP:            proto.Float32(1.0),
		TopK:            proto.Int32(64),
		MaxOutputTokens: proto.Int32(2048),
	}
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, req *pb.GenerateContentRequest) (*pb.GenerateContentResponse, error)
}

// ChatService shapes a message plus history into a Gemini request and
// extracts the reply. A nil generator means no API key was configured.
type ChatService struct {
	gemini            contentGenerator
	systemInstruction string
	logger            *slog.Logger
}

func NewChatService(gemini contentGenerator, systemInstruction string, logger *slog.Logger) *ChatService {
	return &ChatService{
		gemini:            gemini,
		systemInstruction: systemInstruction,
		logger:            logger,
	}
}

// Configured reports whether a Gemini client is available.
func (s *ChatService) Configured() bool {
	return s.gemini != nil
}

// Reply sends message with the given history and returns the generated text.
// History must already be cleaned.
func (s *ChatService) Reply(ctx context.Context, message string, history []*pb.Content) (string, error) {
	if !s.Configured() {
		return "", ErrAPIKeyNotConfigured
	}

	req := s.BuildRequest(message, history)

	s.logger.DebugContext(ctx, "sending to gemini", "turns", len(req.Contents), "system_instruction", req.SystemInstruction != nil)

	start := time.Now()
	resp, err := s.gemini.GenerateContent(ctx, req)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			s.logger.ErrorContext(ctx, "gemini api error",
				"status", upErr.Status,
				"body", upErr.Body,
				"turns", len(req.Contents),
			)
		}
		return "", err
	}

	if reason := resp.GetPromptFeedback().GetBlockReason(); reason != pb.GenerateContentResponse_PromptFeedback_BLOCK_REASON_UNSPECIFIED {
		s.logger.WarnContext(ctx, "gemini blocked the prompt", "reason", reason.String())
	}
	s.logger.InfoContext(ctx, "gemini call completed", "duration", time.Since(start), "candidates", len(resp.GetCandidates()))

	text := firstText(resp)
	if text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

// BuildRequest assembles contents for one call. An empty history starts a new
// conversation and carries the system instruction; a continuation never does.
func (s *ChatService) BuildRequest(message string, history []*pb.Content) *pb.GenerateContentRequest {
	req := &pb.GenerateContentRequest{GenerationConfig: chatGenerationConfig()}

	if len(history) == 0 {
		req.Contents = []*pb.Content{textContent(roleUser, message)}
		if s.systemInstruction != "" {
			req.SystemInstruction = textContent("", s.systemInstruction)
		}
		return req
	}

	contents := make([]*pb.Content, 0, len(history)+1)
	contents = append(contents, history...)
	req.Contents = append(contents, textContent(roleUser, message))
	return req
}

// CleanHistory decodes a raw conversationHistory value. Entries that are not
// Content objects, lack a role, or have no parts are dropped; parts of kept
// entries pass through as sent. An absent value yields no turns; anything
// other than an array, null included, is an error.
func CleanHistory(raw json.RawMessage) ([]*pb.Content, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if string(raw) == "null" {
		return nil, errors.New("conversationHistory is null")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("conversationHistory is not an array: %w", err)
	}

	turns := make([]*pb.Content, 0, len(entries))
	for _, entry := range entries {
		turn := &pb.Content{}
		if err := historyUnmarshal.Unmarshal(entry, turn); err != nil {
			continue
		}
		if turn.GetRole() == "" || len(turn.GetParts()) == 0 {
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// TurnsFromMessages converts a stored transcript into model turns.
func TurnsFromMessages(messages []*models.Message) []*pb.Content {
	turns := make([]*pb.Content, 0, len(messages))
	for _, m := range messages {
		role := roleModel
		if m.Role == models.RoleUser {
			role = roleUser
		}
		turns = append(turns, textContent(role, m.Content))
	}
	return turns
}

func textContent(role, text string) *pb.Content {
	return &pb.Content{
		Role:  role,
		Parts: []*pb.Part{{Data: &pb.Part_Text{Text: text}}},
	}
}
