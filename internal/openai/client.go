package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"propertysanta/engine/internal/egress"
	"propertysanta/engine/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client wraps the OpenAI chat completions API with image input support.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout:   180 * time.Second,
			Transport: egress.NewPolicy(http.DefaultTransport, []string{"api.openai.com"}),
		},
	}
}

func (c *Client) sdk(apiKey string) sdk.Client {
	return sdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(c.client),
		option.WithMaxRetries(0),
	)
}

func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	client := c.sdk(apiKey)
	if _, err := client.Models.List(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Chat sends the messages and returns the content of the first choice.
// Images travel as data URLs on the user message that carries them.
func (c *Client) Chat(ctx context.Context, apiKey, model string, messages []llm.Message) (string, error) {
	profile := llm.ProfileFromContext(ctx)
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    toMessages(messages),
		Temperature: sdk.Float(profile.Temperature),
	}
	if profile.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(profile.MaxOutputTokens))
	}
	if profile.JSONOutput {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		}
	}
	client := c.sdk(apiKey)
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: %s", llm.ErrRejected, choice.Message.Refusal)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func toMessages(messages []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, sdk.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, sdk.AssistantMessage(msg.Content))
		default:
			if len(msg.Images) == 0 {
				out = append(out, sdk.UserMessage(msg.Content))
				continue
			}
			parts := make([]sdk.ChatCompletionContentPartUnionParam, 0, len(msg.Images)+1)
			if msg.Content != "" {
				parts = append(parts, sdk.TextContentPart(msg.Content))
			}
			for _, img := range msg.Images {
				parts = append(parts, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{
					URL:    img.DataURL(),
					Detail: "high",
				}))
			}
			out = append(out, sdk.UserMessage(parts))
		}
	}
	return out
}

func mapError(err error) error {
	if errors.Is(err, llm.ErrEgressBlocked) {
		return llm.ErrEgressBlocked
	}
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return llm.ErrUnauthorized
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return llm.ErrRateLimited
	case apiErr.StatusCode >= 500:
		return llm.ErrUnavailable
	}
	return fmt.Errorf("%w: openai %d", llm.ErrRejected, apiErr.StatusCode)
}
