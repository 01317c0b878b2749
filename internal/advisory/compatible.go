package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultCompatibleURL points at an OpenAI-compatible chat endpoint.
const DefaultCompatibleURL = "https://api.deepseek.com"

// CompatibleGenerator talks to any OpenAI-compatible /chat/completions
// endpoint over plain REST.
type CompatibleGenerator struct {
	client *resty.Client
	model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewCompatibleGenerator creates a REST client for baseURL.
func NewCompatibleGenerator(apiKey, model, baseURL string, timeout time.Duration) (*CompatibleGenerator, error) {
	if apiKey == "" {
		return nil, ErrUnavailable
	}
	if model == "" {
		model = "deepseek-chat"
	}
	if baseURL == "" {
		baseURL = DefaultCompatibleURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &CompatibleGenerator{client: client, model: model}, nil
}

func (g *CompatibleGenerator) Name() string { return ProviderCompatible }

func (g *CompatibleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	var apiErr chatErrorResponse

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    g.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("api returned status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
