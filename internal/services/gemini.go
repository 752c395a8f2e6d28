package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gl "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// UpstreamError is returned when Gemini answers with a non-2xx status. Body
// is the raw response text.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini returned status %d", e.Status)
}

// The generated client retries 503s with backoff; a chat turn is attempted once.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// GeminiClient calls generateContent on a single model over the REST
// transport. It sets no deadline of its own; callers bound a request through
// its context.
type GeminiClient struct {
	client *gl.GenerativeClient
	model  string
}

// NewGeminiClient creates a client authenticated with apiKey. Extra options
// are applied after the key, e.g. option.WithEndpoint.
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)

	client, err := gl.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: fullModelName(model)}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// GenerateContent performs one generateContent call. req.Model is set to the
// client's model.
func (c *GeminiClient) GenerateContent(ctx context.Context, req *pb.GenerateContentRequest) (*pb.GenerateContentResponse, error) {
	req.Model = c.model

	resp, err := c.client.GenerateContent(ctx, req, noRetry)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &UpstreamError{Status: apiErr.Code, Body: apiErr.Body}
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	return resp, nil
}

func fullModelName(name string) string {
	if strings.ContainsRune(name, '/') {
		return name
	}
	return "models/" + name
}

// firstText returns the first candidate's first text part, or "".
func firstText(resp *pb.GenerateContentResponse) string {
	candidates := resp.GetCandidates()
	if len(candidates) == 0 {
		return ""
	}
	parts := candidates[0].GetContent().GetParts()
	if len(parts) == 0 {
		return ""
	}
	return parts[0].GetText()
}
