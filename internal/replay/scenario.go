// Package replay drives a scripted cleaning job through the engine and checks
// each reply against the expectations written in the script.
package replay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/workflow"
)

const (
	ActionSend    = "send"
	ActionRedo    = "redo"
	ActionReset   = "reset"
	ActionSummary = "summary"
	ActionClose   = "close"
)

// Scenario is a replay script. Property is used when present; otherwise
// PropertyID must name a property known to the engine.
type Scenario struct {
	Name       string             `yaml:"name"`
	PropertyID string             `yaml:"property_id"`
	Property   *property.Property `yaml:"property"`
	JobID      string             `yaml:"job_id"`
	Steps      []Step             `yaml:"steps"`
}

type Step struct {
	Action    string `yaml:"action"`
	Message   string `yaml:"message"`
	Image     string `yaml:"image"`
	Synthetic bool   `yaml:"synthetic_image"`
	Room      string `yaml:"room"`
	Photo     string `yaml:"photo"`
	Expect    Expect `yaml:"expect"`
}

type Expect struct {
	Phase         string `yaml:"phase"`
	Failure       string `yaml:"failure"`
	Complete      *bool  `yaml:"complete"`
	ReplyContains string `yaml:"reply_contains"`
	ErrorCode     string `yaml:"error_code"`
}

// Backend is the engine surface a replay needs. *engine.Engine satisfies it.
type Backend interface {
	JobStart(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobSendEvent(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobRedoRoom(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobReset(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobGetSummary(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobClose(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
}

// Result is the outcome of one step.
type Result struct {
	Index    int
	Step     Step
	Response *workflow.Response
	Text     string
	Error    *errinfo.ErrorInfo
	Problems []string
}

func (r Result) Passed() bool { return len(r.Problems) == 0 }

// Report is a finished replay.
type Report struct {
	Scenario string
	JobID    string
	Results  []Result
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Load reads a scenario file. Image paths are resolved against the file's
// directory.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if sc.Property != nil && sc.PropertyID == "" {
		sc.PropertyID = sc.Property.ID
	}
	if strings.TrimSpace(sc.PropertyID) == "" {
		return Scenario{}, fmt.Errorf("%s: property_id or property is required", filepath.Base(path))
	}
	dir := filepath.Dir(path)
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Action == "" {
			step.Action = ActionSend
		}
		switch step.Action {
		case ActionSend, ActionRedo, ActionReset, ActionSummary, ActionClose:
		default:
			return Scenario{}, fmt.Errorf("step %d: unknown action %q", i+1, step.Action)
		}
		if step.Image != "" && !filepath.IsAbs(step.Image) {
			step.Image = filepath.Join(dir, step.Image)
		}
	}
	return sc, nil
}

// Run plays every step in order. A step whose expectations fail does not
// stop the replay.
func Run(ctx context.Context, b Backend, sc Scenario) (Report, error) {
	report := Report{Scenario: sc.Name}
	started, errInfo := b.JobStart(ctx, mustParams(map[string]any{"job_id": sc.JobID, "property_id": sc.PropertyID}))
	if errInfo != nil {
		return report, fmt.Errorf("start job: %s %s", errInfo.ErrorCode, errInfo.Detail)
	}
	payload, _ := started.(map[string]any)
	state, ok := payload["job"].(workflow.State)
	if !ok {
		return report, fmt.Errorf("start job: unexpected result %T", started)
	}
	report.JobID = state.JobID

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := runStep(ctx, b, report.JobID, step, i+1)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func runStep(ctx context.Context, b Backend, jobID string, step Step, index int) (Result, error) {
	res := Result{Index: index, Step: step}
	var (
		out     any
		errInfo *errinfo.ErrorInfo
	)
	switch step.Action {
	case ActionSend:
		params := map[string]any{
			"job_id":     jobID,
			"message":    step.Message,
			"room_type":  step.Room,
			"photo_type": step.Photo,
		}
		payload, err := stepImage(step, index)
		if err != nil {
			return res, err
		}
		if payload != "" {
			params["image_base64"] = payload
		}
		out, errInfo = b.JobSendEvent(ctx, mustParams(params))
	case ActionRedo:
		out, errInfo = b.JobRedoRoom(ctx, mustParams(map[string]any{"job_id": jobID, "room_type": step.Room}))
	case ActionReset:
		out, errInfo = b.JobReset(ctx, mustParams(map[string]any{"job_id": jobID}))
	case ActionSummary:
		out, errInfo = b.JobGetSummary(ctx, mustParams(map[string]any{"job_id": jobID}))
	case ActionClose:
		out, errInfo = b.JobClose(ctx, mustParams(map[string]any{"job_id": jobID}))
	}
	res.Error = errInfo
	if resp, ok := out.(workflow.Response); ok {
		res.Response = &resp
		res.Text = resp.ReplyText
	} else if out != nil {
		raw, _ := json.MarshalIndent(out, "", "  ")
		res.Text = string(raw)
	}
	res.Problems = check(step.Expect, res)
	return res, nil
}

func check(exp Expect, res Result) []string {
	var problems []string
	if res.Error != nil {
		if exp.ErrorCode != res.Error.ErrorCode {
			problems = append(problems, fmt.Sprintf("unexpected error %s: %s", res.Error.ErrorCode, res.Error.Detail))
		}
		return problems
	}
	if exp.ErrorCode != "" {
		problems = append(problems, fmt.Sprintf("expected error %s", exp.ErrorCode))
	}
	if exp.ReplyContains != "" && !strings.Contains(res.Text, exp.ReplyContains) {
		problems = append(problems, fmt.Sprintf("reply does not contain %q", exp.ReplyContains))
	}
	resp := res.Response
	if resp == nil {
		if exp.Phase != "" || exp.Failure != "" || exp.Complete != nil {
			problems = append(problems, "step returned no job response")
		}
		return problems
	}
	if exp.Phase != "" && string(resp.Phase) != exp.Phase {
		problems = append(problems, fmt.Sprintf("phase %s, expected %s", resp.Phase, exp.Phase))
	}
	switch {
	case exp.Failure == "" && resp.Failure != nil:
		problems = append(problems, fmt.Sprintf("unexpected failure %s", resp.Failure.Kind))
	case exp.Failure != "" && (resp.Failure == nil || string(resp.Failure.Kind) != exp.Failure):
		problems = append(problems, fmt.Sprintf("expected failure %s", exp.Failure))
	}
	if exp.Complete != nil && resp.IsJobComplete != *exp.Complete {
		problems = append(problems, fmt.Sprintf("complete=%t, expected %t", resp.IsJobComplete, *exp.Complete))
	}
	return problems
}

func stepImage(step Step, index int) (string, error) {
	switch {
	case step.Image != "":
		data, err := os.ReadFile(step.Image)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", index, err)
		}
		return base64.StdEncoding.EncodeToString(data), nil
	case step.Synthetic:
		return base64.StdEncoding.EncodeToString(syntheticPhoto(index)), nil
	}
	return "", nil
}

// syntheticPhoto is a small PNG that passes image validation. Each step gets
// distinct pixels.
func syntheticPhoto(seed int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{uint8(seed * 37), uint8(x * 15), uint8(y * 15), 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func mustParams(v map[string]any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
