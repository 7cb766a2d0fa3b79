package llm

import (
	"context"
	"encoding/base64"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is an inline image attached to a message.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL renders the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Message is a chat message, optionally carrying images for vision models.
type Message struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Images  []Image `json:"images,omitempty"`
}

// Generator produces a single text completion for a message list. Provider
// clients are bound to an API key and model to satisfy it.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// SplitSystem separates system prompts from the conversational messages.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
