package logging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var secretKeys = map[string]bool{
	"api_key":               true,
	"apikey":                true,
	"authorization":         true,
	"google_api_key":        true,
	"openai_api_key":        true,
	"anthropic_api_key":     true,
	"propertysanta_api_key": true,
	"token":                 true,
	"secret":                true,
}

// imageKeys hold base64 photo payloads; they are replaced by a size marker.
var imageKeys = map[string]bool{
	"image":        true,
	"image_base64": true,
	"photo":        true,
	"photo_base64": true,
	"before_image": true,
	"after_image":  true,
}

func RedactValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "bearer ") {
		return "Bearer " + mask(trimmed[7:])
	}
	return mask(trimmed)
}

// RedactJSON masks secret values and replaces image payloads in a JSON
// document. Non-JSON input is returned trimmed, as a JSON string.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if !gjson.ValidBytes(raw) {
		quoted, _ := json.Marshal(strings.TrimSpace(string(raw)))
		return quoted
	}
	out := []byte(raw)
	for _, edit := range collectEdits(gjson.ParseBytes(raw), "") {
		updated, err := sjson.SetBytes(out, edit.path, edit.value)
		if err != nil {
			continue
		}
		out = updated
	}
	return out
}

// RedactAny marshals v and redacts the result.
func RedactAny(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		quoted, _ := json.Marshal(fmt.Sprintf("%T", v))
		return quoted
	}
	return RedactJSON(raw)
}

type edit struct {
	path  string
	value string
}

func collectEdits(node gjson.Result, prefix string) []edit {
	var edits []edit
	switch {
	case node.IsObject():
		node.ForEach(func(key, value gjson.Result) bool {
			path := joinPath(prefix, escapePath(key.String()))
			lower := strings.ToLower(strings.TrimSpace(key.String()))
			switch {
			case secretKeys[lower] && value.Type == gjson.String:
				edits = append(edits, edit{path, RedactValue(value.String())})
			case imageKeys[lower] && value.Type == gjson.String:
				edits = append(edits, edit{path, imageMarker(value.String())})
			default:
				edits = append(edits, collectEdits(value, path)...)
			}
			return true
		})
	case node.IsArray():
		i := 0
		node.ForEach(func(_, value gjson.Result) bool {
			edits = append(edits, collectEdits(value, joinPath(prefix, fmt.Sprint(i)))...)
			i++
			return true
		})
	}
	return edits
}

func imageMarker(payload string) string {
	if idx := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && idx >= 0 {
		payload = payload[idx+1:]
	}
	return fmt.Sprintf("[image %d bytes]", base64.StdEncoding.DecodedLen(len(payload)))
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
