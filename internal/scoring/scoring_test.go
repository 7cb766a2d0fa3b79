package scoring

import (
	"reflect"
	"testing"
)

func sampleRaw() RawComparison {
	return RawComparison{
		OverallScore:          85,
		ManualComplianceScore: 90,
		Improvements:          []string{"dust removed", "surfaces cleaned"},
		RequirementsMet:       []string{"Wiped all counters", "sink scrubbed"},
		MissedRequirements:    []string{"baseboards not cleaned"},
		ReworkAreas:           []string{"baseboards", "corner behind door"},
		QualityBreakdown:      QualityBreakdown{SurfaceCleaning: 90, DetailWork: 75, ManualCompliance: 90},
		Recommendations:       []string{"clean baseboards"},
	}
}

func TestScoreWeightedFinal(t *testing.T) {
	res := Score(sampleRaw(), "")
	// 0.3*85 + 0.4*90 + 0.3*85 = 25.5 + 36 + 25.5 = 87
	if res.FinalScore != 87 {
		t.Fatalf("expected final 87, got %d", res.FinalScore)
	}
	if res.Grade != "A-" || !res.MeetsStandards {
		t.Fatalf("unexpected grade %s meets=%v", res.Grade, res.MeetsStandards)
	}
}

func TestScoreIsPure(t *testing.T) {
	manual := "Wipe counters (5 min)\nClean sink\nMop floor"
	first := Score(sampleRaw(), manual)
	second := Score(sampleRaw(), manual)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results:\n%#v\n%#v", first, second)
	}
}

func TestGradeBoundaries(t *testing.T) {
	cases := map[int]string{
		100: "A+", 95: "A+", 94: "A", 90: "A", 89: "A-", 85: "A-",
		80: "B+", 79: "B", 75: "B", 74: "B-", 70: "B-", 69: "C+", 65: "C+",
		60: "C", 55: "C-", 50: "D+", 49: "D", 45: "D", 44: "F", 0: "F",
	}
	for score, want := range cases {
		if got := Grade(score); got != want {
			t.Fatalf("Grade(%d) = %s, want %s", score, got, want)
		}
	}
	if !MeetsStandards(80) || MeetsStandards(79) {
		t.Fatalf("expected the standards threshold at 80")
	}
}

func TestScoreExactlyEightyIsBPlus(t *testing.T) {
	raw := RawComparison{
		OverallScore:          80,
		ManualComplianceScore: 80,
		QualityBreakdown:      QualityBreakdown{SurfaceCleaning: 80, DetailWork: 80, ManualCompliance: 80},
	}
	res := Score(raw, "")
	if res.FinalScore != 80 || res.Grade != "B+" || !res.MeetsStandards {
		t.Fatalf("unexpected result %d %s %v", res.FinalScore, res.Grade, res.MeetsStandards)
	}
	raw.OverallScore = 77 // 23.1 + 32 + 24 = 79.1
	res = Score(raw, "")
	if res.FinalScore != 79 || res.Grade != "B" || res.MeetsStandards {
		t.Fatalf("unexpected result %d %s %v", res.FinalScore, res.Grade, res.MeetsStandards)
	}
}

func TestScoreClampsOutOfRangeValues(t *testing.T) {
	raw := RawComparison{
		OverallScore:          140,
		ManualComplianceScore: -20,
		QualityBreakdown:      QualityBreakdown{SurfaceCleaning: 200, DetailWork: 100, ManualCompliance: 100},
	}
	res := Score(raw, "")
	if res.OverallScore != 100 || res.ManualComplianceScore != 0 {
		t.Fatalf("expected clamped scores, got %d %d", res.OverallScore, res.ManualComplianceScore)
	}
	// 30 + 0 + 30
	if res.FinalScore != 60 {
		t.Fatalf("expected final 60, got %d", res.FinalScore)
	}
	if res.Improvements == nil || res.Advice == nil {
		t.Fatalf("expected non-nil slices")
	}
}

func TestComplianceFirstWordHeuristic(t *testing.T) {
	manual := "Wipe counters (5 min)\n\n  Clean sink - use descaler\nMop floor\nSpecial Instructions: No bleach"
	got := Compliance([]string{"wiped the counters", "Sink was cleaned"}, manual)
	if got.TotalRequirements != 4 {
		t.Fatalf("expected 4 non-empty lines, got %d", got.TotalRequirements)
	}
	want := []bool{true, true, false, false}
	for i, line := range got.Lines {
		if line.Met != want[i] {
			t.Fatalf("line %q: met=%v, want %v", line.Requirement, line.Met, want[i])
		}
	}
	if got.RequirementsMet != 2 || got.RequirementsMissed != 2 || got.CompliancePercentage != 50 {
		t.Fatalf("unexpected totals %#v", got)
	}
	if empty := Compliance(nil, ""); empty.TotalRequirements != 0 || empty.CompliancePercentage != 0 {
		t.Fatalf("expected empty breakdown, got %#v", empty)
	}
}

func TestAdvise(t *testing.T) {
	res := Score(sampleRaw(), "")
	types := []AdviceType{}
	for _, a := range res.Advice {
		types = append(types, a.Type)
	}
	want := []AdviceType{AdviceCritical, AdviceInfo, AdviceInfo}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("unexpected advice types %v", types)
	}

	low := Score(RawComparison{OverallScore: 40, ManualComplianceScore: 40}, "")
	if len(low.Advice) != 1 || low.Advice[0].Type != AdviceWarning {
		t.Fatalf("expected a single warning, got %#v", low.Advice)
	}

	high := Score(RawComparison{
		OverallScore:          95,
		ManualComplianceScore: 95,
		QualityBreakdown:      QualityBreakdown{SurfaceCleaning: 95, DetailWork: 95, ManualCompliance: 95},
	}, "")
	if len(high.Advice) != 1 || high.Advice[0].Type != AdviceSuccess {
		t.Fatalf("expected a single success, got %#v", high.Advice)
	}
}
