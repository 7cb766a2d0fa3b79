package main

import (
	"strings"
	"testing"

	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/replay"
	"propertysanta/engine/internal/workflow"
)

func TestRenderReportCountsFailures(t *testing.T) {
	report := replay.Report{
		Scenario: "villa",
		JobID:    "job-1",
		Results: []replay.Result{
			{
				Index: 1,
				Step:  replay.Step{Action: replay.ActionSend, Message: "kitchen before", Synthetic: true},
				Text:  "BEFORE photo of the KITCHEN received.",
				Response: &workflow.Response{
					Phase:     workflow.PhaseBeforeRequested,
					BeforeLog: []string{"Kitchen"},
				},
			},
			{
				Index: 2,
				Step:  replay.Step{Action: replay.ActionSend, Message: "kitchen before", Synthetic: true},
				Response: &workflow.Response{
					Phase:   workflow.PhaseBeforeRequested,
					Failure: &failure.Detail{Kind: failure.KindDuplicateSubmission},
				},
				Problems: []string{"unexpected failure duplicate_submission"},
			},
		},
	}
	out := renderReport(report)
	for _, want := range []string{"job job-1", "BEFORE photo of the KITCHEN", "phase before_requested", "failure duplicate_submission", "1/2 steps passed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestStepInput(t *testing.T) {
	got := stepInput(replay.Step{Message: "hi", Room: "kitchen", Photo: "after", Synthetic: true})
	if got != `"hi" room=kitchen photo=after [photo]` {
		t.Fatalf("unexpected input line: %s", got)
	}
}
