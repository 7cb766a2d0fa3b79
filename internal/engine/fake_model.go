package engine

import (
	"context"
	"fmt"
	"strings"

	"propertysanta/engine/internal/llm"
)

const (
	fakeNetworkMarker  = "[network-error]"
	fakeMismatchMarker = "[mismatch]"
	fakeRateMarker     = "[rate-limited]"
)

const fakeComparison = `{
  "sameRoom": true,
  "overallScore": 88,
  "manualComplianceScore": 92,
  "improvements": ["surfaces wiped", "floor cleared"],
  "requirementsMet": ["counters wiped", "floor mopped"],
  "missedRequirements": [],
  "reworkAreas": [],
  "qualityBreakdown": {"surfaceCleaning": 90, "detailWork": 85, "manualCompliance": 92},
  "recommendations": ["keep the same routine"]
}`

const fakeProgress = `{
  "manualCompliance": 60,
  "cleanlinessScore": 55,
  "requirementsMet": ["counters cleared"],
  "requirementsMissed": ["floor not mopped yet"],
  "nextSteps": ["mop the floor"],
  "acceptableProgress": true
}`

func newFakeModel() LLMClient {
	return &fakeModel{}
}

// fakeModel answers every purpose with canned content. Markers in the last
// user message select failure modes.
type fakeModel struct{}

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "network unavailable" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

func (f *fakeModel) ValidateKey(_ context.Context, apiKey string) error {
	if isInvalidKey(apiKey) {
		return llm.ErrUnauthorized
	}
	return nil
}

func (f *fakeModel) Chat(ctx context.Context, apiKey, _ string, messages []llm.Message) (string, error) {
	if isInvalidKey(apiKey) {
		return "", llm.ErrUnauthorized
	}
	prompt := lastUserMessage(messages)
	if strings.Contains(prompt, fakeNetworkMarker) {
		return "", fakeNetErr{}
	}
	if strings.Contains(prompt, fakeRateMarker) {
		return "", fmt.Errorf("%w: fake quota", llm.ErrRateLimited)
	}
	switch llm.ProfileFromContext(ctx).Purpose {
	case llm.PurposeComparison:
		if strings.Contains(prompt, fakeMismatchMarker) {
			return "These photos appear to show different rooms, so I cannot compare them.", nil
		}
		return fakeComparison, nil
	case llm.PurposeProgress:
		return fakeProgress, nil
	default:
		return fmt.Sprintf("You said: %s", strings.TrimSpace(prompt)), nil
	}
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func isInvalidKey(key string) bool {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "invalid") || strings.Contains(lower, "bad")
}
