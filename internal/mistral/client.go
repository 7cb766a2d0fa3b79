package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"propertysanta/engine/internal/egress"
	"propertysanta/engine/internal/llm"
)

const defaultBaseURL = "https://api.mistral.ai"
const maxErrorBodyBytes = 2048

// Client wraps the Mistral chat-completions API. Photos are sent as
// image_url parts carrying data URLs, which the Pixtral models accept.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout:   120 * time.Second,
			Transport: egress.NewPolicy(http.DefaultTransport, []string{"api.mistral.ai"}),
		},
	}
}

func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return llm.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	return statusError(resp)
}

func (c *Client) Chat(ctx context.Context, apiKey, model string, messages []llm.Message) (string, error) {
	profile := llm.ProfileFromContext(ctx)
	payload := chatCompletionRequest{
		Model:       model,
		Messages:    toMistralMessages(messages),
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxOutputTokens,
	}
	if profile.JSONOutput {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", err
	}
	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	content := extractContent(completion.Choices[0].Message.Content)
	if strings.TrimSpace(content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

func transportError(err error) error {
	if errors.Is(err, llm.ErrEgressBlocked) {
		return llm.ErrEgressBlocked
	}
	return err
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return llm.ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return llm.ErrRateLimited
	case resp.StatusCode >= 500:
		return llm.ErrUnavailable
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: mistral %s - %s", llm.ErrRejected, resp.Status, strings.TrimSpace(string(errorBody)))
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is a plain string for text-only turns and a list of
// parts when images are attached.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatResponseMessage `json:"message"`
}

type chatResponseMessage struct {
	Content json.RawMessage `json:"content"`
}

func toMistralMessages(messages []llm.Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		entry := chatMessage{Role: normalizeRole(msg.Role), Content: msg.Content}
		if len(msg.Images) > 0 {
			parts := make([]contentPart, 0, len(msg.Images)+1)
			if msg.Content != "" {
				parts = append(parts, contentPart{Type: "text", Text: msg.Content})
			}
			for _, img := range msg.Images {
				parts = append(parts, contentPart{Type: "image_url", ImageURL: img.DataURL()})
			}
			entry.Content = parts
		}
		result = append(result, entry)
	}
	return result
}

func normalizeRole(role string) string {
	switch strings.TrimSpace(role) {
	case llm.RoleAssistant, llm.RoleSystem:
		return strings.TrimSpace(role)
	default:
		return "user"
	}
}

func extractContent(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var builder strings.Builder
		for _, part := range parts {
			builder.WriteString(part.Text)
		}
		return builder.String()
	}
	return ""
}
