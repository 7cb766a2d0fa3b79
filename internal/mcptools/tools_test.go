package mcptools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/summary"
	"propertysanta/engine/internal/workflow"
)

type fakeBackend struct {
	params   map[string]json.RawMessage
	response workflow.Response
	errInfo  *errinfo.ErrorInfo
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{params: map[string]json.RawMessage{}}
}

func (f *fakeBackend) record(method string, params json.RawMessage) *errinfo.ErrorInfo {
	f.params[method] = params
	return f.errInfo
}

func (f *fakeBackend) PropertiesList(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	if errInfo := f.record("PropertiesList", params); errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{"properties": []string{"villa"}}, nil
}

func (f *fakeBackend) ProvidersGetStatus(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{}, f.record("ProvidersGetStatus", params)
}

func (f *fakeBackend) IntentClassify(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{}, f.record("IntentClassify", params)
}

func (f *fakeBackend) JobStart(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	if errInfo := f.record("JobStart", params); errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{"job": map[string]any{"job_id": "job-1"}}, nil
}

func (f *fakeBackend) JobSendEvent(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	if errInfo := f.record("JobSendEvent", params); errInfo != nil {
		return nil, errInfo
	}
	return f.response, nil
}

func (f *fakeBackend) JobGetState(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{}, f.record("JobGetState", params)
}

func (f *fakeBackend) JobRedoRoom(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	if errInfo := f.record("JobRedoRoom", params); errInfo != nil {
		return nil, errInfo
	}
	return f.response, nil
}

func (f *fakeBackend) JobReset(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{}, f.record("JobReset", params)
}

func (f *fakeBackend) JobGetSummary(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	if errInfo := f.record("JobGetSummary", params); errInfo != nil {
		return nil, errInfo
	}
	return map[string]any{"summary": summary.Report{Text: "Cleaning Summary for Villa"}}, nil
}

func (f *fakeBackend) JobClose(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	return map[string]any{"archived": true}, f.record("JobClose", params)
}

func callTool(t *testing.T, handler server.ToolHandlerFunc, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("%s call failed: %v", name, err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("result content is not text")
	}
	return text.Text
}

func TestSendMessageReadsImagePath(t *testing.T) {
	b := newFakeBackend()
	b.response = workflow.Response{
		ReplyText:     "BEFORE photo of the KITCHEN received.",
		Phase:         workflow.PhaseBeforeRequested,
		PreviousPhase: workflow.PhaseManualExplained,
		PhaseChanged:  true,
		BeforeLog:     []string{"kitchen"},
		AfterLog:      []string{},
	}
	path := filepath.Join(t.TempDir(), "kitchen.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := callTool(t, wrapSend(b), "send_message", map[string]any{
		"job_id":     "job-1",
		"message":    "kitchen before",
		"image_path": path,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", textOf(t, result))
	}
	text := textOf(t, result)
	if !strings.HasPrefix(text, "BEFORE photo of the KITCHEN received.") {
		t.Fatalf("expected reply first, got %q", text)
	}
	if !strings.Contains(text, "phase: before_requested (was manual_explained)") || !strings.Contains(text, "before: kitchen") {
		t.Fatalf("expected status footer, got %q", text)
	}

	var sent map[string]any
	if err := json.Unmarshal(b.params["JobSendEvent"], &sent); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if sent["image_base64"] != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Fatalf("expected encoded image, got %v", sent["image_base64"])
	}
	if _, ok := sent["image_path"]; ok {
		t.Fatalf("image_path must not reach the engine")
	}
}

func TestSendMessageMissingImage(t *testing.T) {
	b := newFakeBackend()
	result := callTool(t, wrapSend(b), "send_message", map[string]any{
		"job_id":     "job-1",
		"image_path": filepath.Join(t.TempDir(), "missing.png"),
	})
	if !result.IsError {
		t.Fatalf("expected error result")
	}
	if _, called := b.params["JobSendEvent"]; called {
		t.Fatalf("engine should not be called when the image cannot be read")
	}
}

func TestRenderFailure(t *testing.T) {
	b := newFakeBackend()
	b.response = workflow.Response{
		ReplyText: "The photo analysis service is temporarily unavailable.",
		Phase:     workflow.PhaseAfterRequested,
		Failure:   &failure.Detail{Kind: failure.KindExternalService, Service: failure.ServiceNetworkError, Retryable: true},
	}
	result := callTool(t, wrapReply(b.JobRedoRoom, func(a RedoRoomArgs) any { return a }), "redo_room", map[string]any{
		"job_id":    "job-1",
		"room_type": "kitchen",
	})
	text := textOf(t, result)
	if !strings.Contains(text, "failure: external_service_error (network_error), retryable") {
		t.Fatalf("expected failure footer, got %q", text)
	}
	if !strings.Contains(string(b.params["JobRedoRoom"]), `"room_type":"kitchen"`) {
		t.Fatalf("unexpected params: %s", b.params["JobRedoRoom"])
	}
}

func TestEngineErrorsBecomeToolErrors(t *testing.T) {
	b := newFakeBackend()
	b.errInfo = errinfo.JobNotFound("job-9")
	result := callTool(t, wrapJSON(b.JobGetState, func(a JobArgs) any { return a }), "job_state", map[string]any{"job_id": "job-9"})
	if !result.IsError {
		t.Fatalf("expected error result")
	}
	if text := textOf(t, result); !strings.Contains(text, errinfo.CodeJobNotFound) || !strings.Contains(text, errinfo.ActionStartJob) {
		t.Fatalf("unexpected error text: %q", text)
	}
}

func TestSummaryRendersText(t *testing.T) {
	b := newFakeBackend()
	result := callTool(t, wrapSummary(b), "job_summary", map[string]any{"job_id": "job-1"})
	if text := textOf(t, result); text != "Cleaning Summary for Villa" {
		t.Fatalf("unexpected summary: %q", text)
	}
}

func TestStartJobPassesArguments(t *testing.T) {
	b := newFakeBackend()
	result := callTool(t, wrapJSON(b.JobStart, func(a StartJobArgs) any { return a }), "start_job", map[string]any{"property_id": "villa"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", textOf(t, result))
	}
	if !strings.Contains(textOf(t, result), `"job_id": "job-1"`) {
		t.Fatalf("expected indented job json, got %q", textOf(t, result))
	}
	if got := string(b.params["JobStart"]); got != `{"property_id":"villa"}` {
		t.Fatalf("unexpected params: %s", got)
	}
}

func TestRegisterAddsTools(t *testing.T) {
	s := server.NewMCPServer("propertysanta-test", "0.0.0", server.WithToolCapabilities(true))
	Register(s, newFakeBackend())
}
