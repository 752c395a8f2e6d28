package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/protobuf/proto"

	"rafi-backend/internal/logger"
	"rafi-backend/internal/models"
)

type stubGenerator struct {
	calls   int
	lastReq *pb.GenerateContentRequest
	resp    *pb.GenerateContentResponse
	err     error
}

func (s *stubGenerator) GenerateContent(ctx context.Context, req *pb.GenerateContentRequest) (*pb.GenerateContentResponse, error) {
	s.calls++
	s.lastReq = req
	return s.resp, s.err
}

func candidate(texts ...string) *pb.Candidate {
	parts := make([]*pb.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &pb.Part{Data: &pb.Part_Text{Text: text}})
	}
	return &pb.Candidate{Content: &pb.Content{Role: roleModel, Parts: parts}}
}

func textResponse(text string) *pb.GenerateContentResponse {
	return &pb.GenerateContentResponse{Candidates: []*pb.Candidate{candidate(text)}}
}

func assertContents(t *testing.T, got, want []*pb.Content) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d turns, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !proto.Equal(got[i], want[i]) {
			t.Errorf("turn %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBuildRequest_NewConversationCarriesSystemInstruction(t *testing.T) {
	s := NewChatService(&stubGenerator{}, "You are Rafi.", logger.Nop())

	req := s.BuildRequest("hi", nil)

	assertContents(t, req.GetContents(), []*pb.Content{textContent(roleUser, "hi")})
	if req.GetSystemInstruction() == nil {
		t.Fatal("expected system instruction on a new conversation")
	}
	if got := req.GetSystemInstruction().GetParts()[0].GetText(); got != "You are Rafi." {
		t.Errorf("unexpected system instruction %q", got)
	}
	if req.GetSystemInstruction().GetRole() != "" {
		t.Errorf("system instruction should not carry a role, got %q", req.GetSystemInstruction().GetRole())
	}
}

func TestBuildRequest_EmptyPersonaOmitsSystemInstruction(t *testing.T) {
	s := NewChatService(&stubGenerator{}, "", logger.Nop())

	if req := s.BuildRequest("hi", nil); req.GetSystemInstruction() != nil {
		t.Fatalf("expected no system instruction, got %v", req.GetSystemInstruction())
	}
}

func TestBuildRequest_ContinuationAppendsOneUserTurn(t *testing.T) {
	s := NewChatService(&stubGenerator{}, "You are Rafi.", logger.Nop())
	history := []*pb.Content{
		textContent(roleUser, "hello"),
		textContent(roleModel, "Hi there"),
	}

	req := s.BuildRequest("how are you?", history)

	assertContents(t, req.GetContents(), []*pb.Content{
		textContent(roleUser, "hello"),
		textContent(roleModel, "Hi there"),
		textContent(roleUser, "how are you?"),
	})
	if req.GetSystemInstruction() != nil {
		t.Fatal("system instruction must not be re-injected on continuation")
	}
	if len(history) != 2 {
		t.Fatal("history slice was modified")
	}
}

func TestBuildRequest_FixedGenerationConfig(t *testing.T) {
	s := NewChatService(&stubGenerator{}, "", logger.Nop())

	cfg := s.BuildRequest("hi", nil).GetGenerationConfig()
	if cfg.GetTemperature() != 0.9 || cfg.GetTopP() != 1.0 || cfg.GetTopK() != 64 || cfg.GetMaxOutputTokens() != 2048 {
		t.Fatalf("unexpected generation config %v", cfg)
	}
	if cfg.CandidateCount != nil {
		t.Errorf("candidate count should be left to the model default, got %d", cfg.GetCandidateCount())
	}
}

func TestCleanHistory(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []*pb.Content
		wantErr bool
	}{
		{"absent", "", nil, false},
		{"null", "null", nil, true},
		{"empty array", "[]", []*pb.Content{}, false},
		{
			"drops malformed entries",
			`[
				{"role":"user","parts":[{"text":"a"}]},
				{"parts":[{"text":"no role"}]},
				{"role":"","parts":[{"text":"empty role"}]},
				{"role":"model","parts":[]},
				{"role":"model"},
				{"role":"model","parts":"oops"},
				null,
				"string",
				42,
				{"role":"model","parts":[{"text":"b"}]}
			]`,
			[]*pb.Content{
				textContent(roleUser, "a"),
				textContent(roleModel, "b"),
			},
			false,
		},
		{"not an array", `{"role":"user"}`, nil, true},
		{"string", `"history"`, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CleanHistory(json.RawMessage(tc.raw))
			if (err != nil) != tc.wantErr {
				t.Fatalf("CleanHistory() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			assertContents(t, got, tc.want)
		})
	}
}

func TestCleanHistory_KeepsNonTextParts(t *testing.T) {
	raw := `[{"role":"user","parts":[
		{"text":"what is in this picture?"},
		{"inlineData":{"mimeType":"image/png","data":"aGVsbG8="}}
	]}]`

	got, err := CleanHistory(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0].GetParts()) != 2 {
		t.Fatalf("expected one turn with two parts, got %v", got)
	}
	blob := got[0].GetParts()[1].GetInlineData()
	if blob.GetMimeType() != "image/png" || string(blob.GetData()) != "hello" {
		t.Errorf("inline data was not preserved, got %v", got[0].GetParts()[1])
	}
}

func TestReply_MissingKeyNeverCallsUpstream(t *testing.T) {
	s := NewChatService(nil, "persona", logger.Nop())

	if s.Configured() {
		t.Fatal("service without a client must report itself unconfigured")
	}
	_, err := s.Reply(context.Background(), "hi", nil)
	if !errors.Is(err, ErrAPIKeyNotConfigured) {
		t.Fatalf("expected ErrAPIKeyNotConfigured, got %v", err)
	}
}

func TestReply_ReturnsFirstCandidateText(t *testing.T) {
	gen := &stubGenerator{resp: &pb.GenerateContentResponse{Candidates: []*pb.Candidate{
		candidate("first", "second"),
		candidate("other candidate"),
	}}}
	s := NewChatService(gen, "persona", logger.Nop())

	got, err := s.Reply(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first" {
		t.Errorf("expected %q, got %q", "first", got)
	}
	if gen.calls != 1 {
		t.Errorf("expected one upstream call, got %d", gen.calls)
	}
}

func TestReply_FallbackWhenNoText(t *testing.T) {
	responses := map[string]*pb.GenerateContentResponse{
		"no candidates": {},
		"nil content": {Candidates: []*pb.Candidate{
			{FinishReason: pb.Candidate_SAFETY},
		}},
		"no parts": {Candidates: []*pb.Candidate{
			{Content: &pb.Content{Role: roleModel}},
		}},
		"empty text": textResponse(""),
		"blocked prompt": {PromptFeedback: &pb.GenerateContentResponse_PromptFeedback{
			BlockReason: pb.GenerateContentResponse_PromptFeedback_SAFETY,
		}},
	}

	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			s := NewChatService(&stubGenerator{resp: resp}, "", logger.Nop())

			got, err := s.Reply(context.Background(), "hi", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != FallbackReply {
				t.Errorf("expected fallback, got %q", got)
			}
		})
	}
}

func TestReply_PropagatesUpstreamError(t *testing.T) {
	upErr := &UpstreamError{Status: 429, Body: `{"error":"quota"}`}
	s := NewChatService(&stubGenerator{err: upErr}, "", logger.Nop())

	_, err := s.Reply(context.Background(), "hi", nil)

	var got *UpstreamError
	if !errors.As(err, &got) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if got.Status != 429 || got.Body != `{"error":"quota"}` {
		t.Errorf("unexpected upstream error %+v", got)
	}
}

func TestTurnsFromMessages_MapsAssistantToModel(t *testing.T) {
	msgs := []*models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi!"},
	}

	assertContents(t, TurnsFromMessages(msgs), []*pb.Content{
		textContent(roleUser, "hello"),
		textContent(roleModel, "hi!"),
	})
}
