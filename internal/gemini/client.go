package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"propertysanta/engine/internal/egress"
	"propertysanta/engine/internal/llm"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com"
	maxErrorBodyBytes = 2048
)

// Client implements a minimal Gemini generateContent API wrapper with inline
// image support.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	transport := egress.NewPolicy(http.DefaultTransport, []string{"generativelanguage.googleapis.com"})
	return &Client{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout:   180 * time.Second,
			Transport: transport,
		},
	}
}

func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	u, err := url.Parse(c.baseURL + "/v1beta/models")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, llm.ErrEgressBlocked) {
			return llm.ErrEgressBlocked
		}
		return err
	}
	defer resp.Body.Close()
	return statusError(resp)
}

// Chat sends the messages (with any attached images) and returns the text of
// the first candidate.
func (c *Client) Chat(ctx context.Context, apiKey, model string, messages []llm.Message) (string, error) {
	profile := llm.ProfileFromContext(ctx)
	system, rest := llm.SplitSystem(messages)
	payload := generateRequest{
		Contents: toContents(rest),
		GenerationConfig: &generationConfig{
			Temperature:     profile.Temperature,
			TopP:            1,
			MaxOutputTokens: profile.MaxOutputTokens,
		},
	}
	if profile.JSONOutput {
		payload.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, llm.ErrEgressBlocked) {
			return "", llm.ErrEgressBlocked
		}
		return "", err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return "", err
	}
	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", llm.ErrRejected, response.PromptFeedback.BlockReason)
	}
	if len(response.Candidates) == 0 {
		return "", llm.ErrEmptyResponse
	}
	text := extractText(response.Candidates[0].Content.Parts)
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
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
		return fmt.Errorf("%w: gemini %s - %s", llm.ErrRejected, resp.Status, strings.TrimSpace(string(errorBody)))
	}
	return nil
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

func toContents(messages []llm.Message) []content {
	result := make([]content, 0, len(messages))
	for _, msg := range messages {
		parts := make([]part, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			parts = append(parts, part{InlineData: &inlineData{MIMEType: img.MIMEType, Data: img.Base64()}})
		}
		if msg.Content != "" {
			parts = append(parts, part{Text: msg.Content})
		}
		result = append(result, content{Role: mapRole(msg.Role), Parts: parts})
	}
	return result
}

func mapRole(role string) string {
	switch role {
	case llm.RoleAssistant, "model":
		return "model"
	default:
		return "user"
	}
}

func extractText(parts []part) string {
	var buf strings.Builder
	for _, p := range parts {
		buf.WriteString(p.Text)
	}
	return buf.String()
}
