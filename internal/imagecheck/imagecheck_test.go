package imagecheck

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"propertysanta/engine/internal/failure"
)

func testPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8(x + y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateAcceptsPNG(t *testing.T) {
	v := NewValidator(0, 0)
	data := testPNG(t, 16)
	img, err := v.Validate(data)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %s", img.MIMEType)
	}
}

func TestValidateRejects(t *testing.T) {
	invalid := &failure.Error{Kind: failure.KindInvalidImage}
	v := NewValidator(0, 0)

	if _, err := v.Validate([]byte("tiny")); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image for tiny payload, got %v", err)
	}

	text := bytes.Repeat([]byte("not an image at all "), 20)
	if _, err := v.Validate(text); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image for text, got %v", err)
	}

	truncated := testPNG(t, 16)
	truncated = append([]byte{}, truncated[:20]...)
	truncated = append(truncated, bytes.Repeat([]byte{0}, 100)...)
	if _, err := v.Validate(truncated); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image for corrupt png, got %v", err)
	}

	small := NewValidator(10, 64)
	if _, err := small.Validate(testPNG(t, 16)); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image above max bytes, got %v", err)
	}
}

func TestDecodeBase64(t *testing.T) {
	data := testPNG(t, 4)
	encoded := base64.StdEncoding.EncodeToString(data)

	got, err := DecodeBase64(encoded)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("plain base64 decode failed: %v", err)
	}
	got, err = DecodeBase64("data:image/png;base64," + encoded)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("data URL decode failed: %v", err)
	}
	got, err = DecodeBase64(base64.RawStdEncoding.EncodeToString(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("unpadded decode failed: %v", err)
	}
	if _, err := DecodeBase64("data:image/png;base64"); failure.KindOf(err) != failure.KindInvalidImage {
		t.Fatalf("expected invalid image for malformed data URL, got %v", err)
	}
	if _, err := DecodeBase64("%%%"); failure.KindOf(err) != failure.KindInvalidImage {
		t.Fatalf("expected invalid image for bad base64, got %v", err)
	}
	if _, err := DecodeBase64("   "); failure.KindOf(err) != failure.KindInvalidImage {
		t.Fatalf("expected invalid image for empty payload, got %v", err)
	}
}

func TestValidateRejectsTruncatedBody(t *testing.T) {
	invalid := &failure.Error{Kind: failure.KindInvalidImage}
	v := NewValidator(0, 0)

	// The IHDR chunk ends at byte 33, so the header still decodes.
	full := testPNG(t, 64)
	truncated := append([]byte{}, full[:40]...)
	truncated = append(truncated, bytes.Repeat([]byte{0}, 80)...)
	if _, err := v.Validate(truncated); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image for truncated png body, got %v", err)
	}
}

func TestValidateRejectsGarbageWebP(t *testing.T) {
	invalid := &failure.Error{Kind: failure.KindInvalidImage}
	v := NewValidator(0, 0)

	data := append([]byte("RIFF\x64\x00\x00\x00WEBPVP8 "), bytes.Repeat([]byte{0xAB}, 120)...)
	if _, err := v.Validate(data); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid image for undecodable webp, got %v", err)
	}
}
