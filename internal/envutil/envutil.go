package envutil

import (
	"os"
	"strings"
)

const DebugEnv = "PROPERTYSANTA_DEBUG"

func Bool(key string) bool {
	return ParseBool(os.Getenv(key))
}

func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// First returns the first non-blank value among keys and the key it came
// from.
func First(keys ...string) (string, string) {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value, key
		}
	}
	return "", ""
}
