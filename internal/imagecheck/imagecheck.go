// Package imagecheck validates photo payloads before they leave the process.
package imagecheck

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"

	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/llm"
)

const (
	DefaultMinBytes = 75
	DefaultMaxBytes = 20 * 1024 * 1024
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Validator struct {
	MinBytes int
	MaxBytes int
}

func NewValidator(minBytes, maxBytes int) *Validator {
	if minBytes <= 0 {
		minBytes = DefaultMinBytes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MinBytes: minBytes, MaxBytes: maxBytes}
}

// Validate checks size bounds, sniffs the content type and decodes the whole
// image, so truncated bodies are caught here rather than by the model.
// Failures are *failure.Error of kind InvalidImage.
func (v *Validator) Validate(data []byte) (llm.Image, error) {
	if len(data) < v.MinBytes {
		return llm.Image{}, failure.New(failure.KindInvalidImage, "image is too small (%d bytes, minimum %d)", len(data), v.MinBytes)
	}
	if len(data) > v.MaxBytes {
		return llm.Image{}, failure.New(failure.KindInvalidImage, "image is too large (%d bytes, maximum %d)", len(data), v.MaxBytes)
	}
	mimeType := http.DetectContentType(data)
	if !supportedTypes[mimeType] {
		return llm.Image{}, failure.New(failure.KindInvalidImage, "unsupported image type %s", mimeType)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return llm.Image{}, failure.Wrap(failure.KindInvalidImage, err, "image could not be decoded")
	}
	return llm.Image{MIMEType: mimeType, Data: data}, nil
}

// DecodeBase64 decodes a base64 photo payload. A leading data URL prefix
// ("data:image/png;base64,") is tolerated.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, failure.New(failure.KindInvalidImage, "malformed data URL")
		}
		payload = payload[idx+1:]
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, failure.New(failure.KindInvalidImage, "empty image payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, failure.Wrap(failure.KindInvalidImage, err, "image payload is not valid base64")
	}
	return data, nil
}
