package anthropic

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

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultVersion    = "2023-06-01"
	defaultMaxTokens  = 2048
	maxErrorBodyBytes = 2048
)

// Client implements the Anthropic Messages API with base64 image blocks.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout:   180 * time.Second,
			Transport: egress.NewPolicy(http.DefaultTransport, []string{"api.anthropic.com"}),
		},
	}
}

func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	return statusError(resp)
}

func (c *Client) Chat(ctx context.Context, apiKey, model string, messages []llm.Message) (string, error) {
	profile := llm.ProfileFromContext(ctx)
	system, rest := llm.SplitSystem(messages)
	payload := messagesRequest{
		Model:       model,
		MaxTokens:   profile.MaxOutputTokens,
		Temperature: profile.Temperature,
		System:      system,
		Messages:    toMessages(rest),
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = defaultMaxTokens
	}
	if profile.JSONOutput {
		// Prefilling the assistant turn keeps the reply a bare JSON object.
		payload.Messages = append(payload.Messages, message{Role: "assistant", Content: []block{{Type: "text", Text: "{"}}})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req, apiKey)
	req.Header.Set("content-type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", err
	}
	var response messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}
	if response.StopReason == "refusal" {
		return "", fmt.Errorf("%w: refused", llm.ErrRejected)
	}
	text := extractText(response.Content)
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyResponse
	}
	if profile.JSONOutput && !strings.HasPrefix(strings.TrimSpace(text), "{") {
		text = "{" + text
	}
	return text, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", defaultVersion)
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
		return fmt.Errorf("%w: anthropic %s - %s", llm.ErrRejected, resp.Status, strings.TrimSpace(string(errorBody)))
	}
	return nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
}

func toMessages(messages []llm.Message) []message {
	out := make([]message, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "assistant"
		}
		blocks := make([]block, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			blocks = append(blocks, block{Type: "image", Source: &imageSource{Type: "base64", MediaType: img.MIMEType, Data: img.Base64()}})
		}
		if msg.Content != "" {
			blocks = append(blocks, block{Type: "text", Text: msg.Content})
		}
		out = append(out, message{Role: role, Content: blocks})
	}
	return out
}

func extractText(blocks []block) string {
	var buf strings.Builder
	for _, item := range blocks {
		if item.Type == "text" {
			buf.WriteString(item.Text)
		}
	}
	return buf.String()
}
