package comparison

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/llm"
)

type fakeModel struct {
	reply    string
	err      error
	delay    time.Duration
	calls    int
	messages []llm.Message
	profile  llm.Profile
}

func (f *fakeModel) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.messages = messages
	f.profile = llm.ProfileFromContext(ctx)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func testPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for x := 0; x < 12; x++ {
		for y := 0; y < 12; y++ {
			img.Set(x, y, color.RGBA{shade, uint8(x * 9), uint8(y * 17), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

const goodReply = "Here is my assessment:\n```json\n{\n  \"sameRoom\": true,\n  \"overallScore\": 85,\n  \"manualComplianceScore\": 90,\n  \"improvements\": [\"dust removed\"],\n  \"requirementsMet\": [\"counters wiped\"],\n  \"missedRequirements\": [\"baseboards not cleaned\"],\n  \"reWorkAreas\": [\"baseboards\"],\n  \"qualityBreakdown\": {\"surfaceCleaning\": 90, \"detailWork\": 75, \"manualCompliance\": 90},\n  \"recommendations\": [\"clean baseboards\"]\n}\n```\nLet me know if you need more."

func TestCompareScoresFencedReply(t *testing.T) {
	model := &fakeModel{reply: goodReply}
	engine := New(model)
	res, err := engine.Compare(context.Background(), Request{
		RoomType:   "kitchen",
		ManualText: "Counters wiped\nBaseboards dusted",
		Before:     testPNG(t, 10),
		After:      testPNG(t, 200),
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.FinalScore != 87 || res.Grade != "A-" {
		t.Fatalf("unexpected score %d %s", res.FinalScore, res.Grade)
	}
	if len(res.ReworkAreas) != 1 || res.ReworkAreas[0] != "baseboards" {
		t.Fatalf("expected legacy reWorkAreas key to be read, got %v", res.ReworkAreas)
	}
	if res.Compliance.RequirementsMet != 1 || res.Compliance.TotalRequirements != 2 {
		t.Fatalf("unexpected compliance %#v", res.Compliance)
	}

	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}
	if len(model.messages) != 2 || model.messages[0].Role != llm.RoleSystem {
		t.Fatalf("expected system + user messages, got %#v", model.messages)
	}
	user := model.messages[1]
	if len(user.Images) != 2 || user.Images[0].MIMEType != "image/png" {
		t.Fatalf("expected both images attached, got %#v", user.Images)
	}
	if !strings.Contains(user.Content, "Counters wiped") || !strings.Contains(user.Content, "kitchen") {
		t.Fatalf("expected manual text in prompt")
	}
	if model.profile.Purpose != llm.PurposeComparison || !model.profile.JSONOutput || model.profile.Temperature != 0 {
		t.Fatalf("unexpected profile %#v", model.profile)
	}
}

func TestCompareRejectsInvalidImageWithoutCallingModel(t *testing.T) {
	model := &fakeModel{reply: goodReply}
	engine := New(model)
	_, err := engine.Compare(context.Background(), Request{
		RoomType: "kitchen",
		Before:   testPNG(t, 10),
		After:    []byte("not an image"),
	})
	if failure.KindOf(err) != failure.KindInvalidImage {
		t.Fatalf("expected invalid image, got %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be called for invalid images")
	}
}

func TestCompareProseOnlyReply(t *testing.T) {
	cases := []struct {
		reply string
		want  failure.Kind
	}{
		{"The room looks much cleaner, I would say about 85 out of 100.", failure.KindParse},
		{"These photos appear to show a different room, so I cannot grade them.", failure.KindComparisonMismatch},
		{"{\"sameRoom\": false, \"overallScore\": 0}", failure.KindComparisonMismatch},
		{"{\"overallScore\": \"high\", \"manualComplianceScore\": 90}", failure.KindParse},
		{"{\"overallScore\": 80, \"manualComplianceScore\": 90}", failure.KindParse},
		{"{\"overallScore\": 80, \"manualComplianceScore\": 90, \"qualityBreakdown\": {\"surfaceCleaning\": 1}}", failure.KindParse},
	}
	for _, tc := range cases {
		engine := New(&fakeModel{reply: tc.reply})
		res, err := engine.Compare(context.Background(), Request{
			RoomType: "kitchen",
			Before:   testPNG(t, 10),
			After:    testPNG(t, 200),
		})
		if failure.KindOf(err) != tc.want {
			t.Fatalf("%q: expected %s, got %v", tc.reply, tc.want, err)
		}
		if res.FinalScore != 0 || res.MeetsStandards {
			t.Fatalf("%q: expected no score, got %#v", tc.reply, res)
		}
	}
}

func TestCompareMapsModelErrors(t *testing.T) {
	engine := New(&fakeModel{err: llm.ErrRateLimited})
	_, err := engine.Compare(context.Background(), Request{RoomType: "kitchen", Before: testPNG(t, 1), After: testPNG(t, 2)})
	fe, ok := failure.As(err)
	if !ok || fe.Kind != failure.KindExternalService || fe.Service != failure.ServiceQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if !fe.Retryable() {
		t.Fatalf("quota errors should be retryable")
	}
}

func TestCompareTimeout(t *testing.T) {
	engine := New(&fakeModel{reply: goodReply, delay: time.Second}, WithTimeout(20*time.Millisecond))
	_, err := engine.Compare(context.Background(), Request{RoomType: "kitchen", Before: testPNG(t, 1), After: testPNG(t, 2)})
	fe, ok := failure.As(err)
	if !ok || fe.Service != failure.ServiceNetworkError {
		t.Fatalf("expected network error on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
}

func TestCompareWithoutModel(t *testing.T) {
	engine := New(nil)
	_, err := engine.Compare(context.Background(), Request{RoomType: "kitchen", Before: testPNG(t, 1), After: testPNG(t, 2)})
	fe, ok := failure.As(err)
	if !ok || fe.Service != failure.ServiceAuthFailure {
		t.Fatalf("expected auth failure without a model, got %v", err)
	}
}

func TestAssessProgress(t *testing.T) {
	model := &fakeModel{reply: `{"manualCompliance": 75.4, "requirementsMet": ["floor vacuumed"], "requirementsMissed": ["window sills"], "cleanlinessScore": 70, "nextSteps": ["dust window sills"], "acceptableProgress": true}`}
	engine := New(model)
	progress, err := engine.AssessProgress(context.Background(), ProgressRequest{RoomType: "bedroom", Photo: testPNG(t, 50)})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if progress.ManualCompliance != 75 || progress.CleanlinessScore != 70 || !progress.AcceptableProgress {
		t.Fatalf("unexpected progress %#v", progress)
	}
	if len(model.messages[1].Images) != 1 || model.profile.Purpose != llm.PurposeProgress {
		t.Fatalf("expected a single image progress request")
	}

	engine = New(&fakeModel{reply: "looks fine"})
	if _, err := engine.AssessProgress(context.Background(), ProgressRequest{RoomType: "bedroom", Photo: testPNG(t, 50)}); failure.KindOf(err) != failure.KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":{\"b\":\"}\"}}\n```", `{"a":{"b":"}"}}`, true},
		{"Sure! {not json} then {\"x\": [1,2]} trailing", `{"x": [1,2]}`, true},
		{"no braces here", "", false},
		{"{\"open\": 1", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractJSON(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractJSON(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
