package llm

import "context"

// Profile carries per-request generation preferences that provider clients
// translate into their own request options.
type Profile struct {
	Purpose         string
	Temperature     float64
	MaxOutputTokens int
	JSONOutput      bool
}

const (
	PurposeComparison = "comparison"
	PurposeProgress   = "progress"
	PurposeChat       = "chat"
)

const defaultMaxOutputTokens = 2048

type profileContextKey struct{}

// WithProfile stores a generation profile on the provided context.
func WithProfile(ctx context.Context, profile Profile) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, profileContextKey{}, profile)
}

// ProfileFromContext retrieves the generation profile, falling back to a
// deterministic text profile.
func ProfileFromContext(ctx context.Context) Profile {
	if ctx != nil {
		if profile, ok := ctx.Value(profileContextKey{}).(Profile); ok {
			if profile.MaxOutputTokens <= 0 {
				profile.MaxOutputTokens = defaultMaxOutputTokens
			}
			return profile
		}
	}
	return Profile{Purpose: PurposeChat, MaxOutputTokens: defaultMaxOutputTokens}
}
