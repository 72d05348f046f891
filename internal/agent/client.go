package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"blood-report-agent/internal/chat"
)

const defaultModel = "gemini-2.5-flash-lite"

// GeminiClient implements the generation interfaces declared by the chat and
// insight packages on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Respond implements chat.Model. History turns are replayed as alternating
// user/model contents so follow-up questions resolve against prior context.
func (c *GeminiClient) Respond(ctx context.Context, system string, history []chat.Turn, message string) (string, error) {
	var contents []*genai.Content
	for _, t := range history {
		contents = append(contents,
			&genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: t.Message}}},
			&genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: t.Response}}},
		)
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: message}},
	})

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	})
	if err != nil {
		return "", classify(err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", chat.ErrBackendUnavailable)
	}
	return text, nil
}

// GenerateJSON implements insight.NarrativeModel: one prompt in, one JSON
// document out.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}},
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", classify(err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", chat.ErrBackendUnavailable)
	}
	return text, nil
}

// classify separates retryable backend trouble from client mistakes.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", chat.ErrBackendUnavailable, err)
		}
		return err
	}
	// Everything else at this point is transport-level: unreachable host,
	// reset connection, deadline hit.
	return fmt.Errorf("%w: %v", chat.ErrBackendUnavailable, err)
}
