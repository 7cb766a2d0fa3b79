package logging

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestNewFileLoggerDisabled(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "engine", false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if fl.Enabled || fl.Path != "" {
		t.Fatalf("expected disabled logger, got %#v", fl)
	}
	fl.Logger.Info("ignored")
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewFileLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "engine", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	fl.Logger.Info("workflow.photo_accepted", "job_id", "job-1")
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(fl.Path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if gjson.Get(line, "msg").String() != "workflow.photo_accepted" || gjson.Get(line, "job_id").String() != "job-1" {
		t.Fatalf("unexpected log line %s", line)
	}
}

func TestRedactJSON(t *testing.T) {
	raw := json.RawMessage(`{"provider_id":"google","api_key":"AIzaSecretValue1234","event":{"image":"data:image/png;base64,AAAAAAAA","message":"kitchen after"},"items":[{"token":"abcdefgh"}]}`)
	got := RedactJSON(raw)
	if v := gjson.GetBytes(got, "api_key").String(); v != "****1234" {
		t.Fatalf("expected masked api key, got %q", v)
	}
	if v := gjson.GetBytes(got, "event.image").String(); v != "[image 6 bytes]" {
		t.Fatalf("expected image marker, got %q", v)
	}
	if v := gjson.GetBytes(got, "event.message").String(); v != "kitchen after" {
		t.Fatalf("expected message untouched, got %q", v)
	}
	if v := gjson.GetBytes(got, "items.0.token").String(); v != "****efgh" {
		t.Fatalf("expected nested token masked, got %q", v)
	}
	if v := gjson.GetBytes(got, "provider_id").String(); v != "google" {
		t.Fatalf("expected provider id untouched, got %q", v)
	}
}

func TestRedactJSONInvalid(t *testing.T) {
	got := RedactJSON(json.RawMessage(" not json "))
	if string(got) != `"not json"` {
		t.Fatalf("unexpected output %s", got)
	}
	if RedactJSON(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestRedactValue(t *testing.T) {
	if got := RedactValue("Bearer sk-abcdef"); got != "Bearer ****cdef" {
		t.Fatalf("unexpected bearer redaction %q", got)
	}
	if got := RedactValue("abc"); got != "****" {
		t.Fatalf("unexpected short redaction %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("short", 10) != "short" {
		t.Fatalf("expected unchanged")
	}
	got := Truncate("héllo world", 2)
	if got != "h...(truncated)" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func TestRedactAny(t *testing.T) {
	out := RedactAny(map[string]any{"job_id": "j1", "image": "aGVsbG8gd29ybGQ=", "api_key": "sk-1234567890"})
	if strings.Contains(string(out), "aGVsbG8") || strings.Contains(string(out), "sk-1234567890") {
		t.Fatalf("expected redaction, got %s", out)
	}
	if !strings.Contains(string(out), `"job_id":"j1"`) {
		t.Fatalf("expected job id kept, got %s", out)
	}
	if RedactAny(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
