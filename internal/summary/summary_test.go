package summary

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateWithScores(t *testing.T) {
	report := Generate(Input{
		PropertyID:     "prop-1",
		PropertyName:   "Seaside Cottage",
		RoomsProcessed: 2,
		Rooms: []Room{
			{RoomType: "kitchen", OverallScore: 85, ManualComplianceScore: 90, FinalScore: 87, Grade: "A-"},
			{RoomType: "bathroom", OverallScore: 70, ManualComplianceScore: 75, FinalScore: 72, Grade: "B-"},
		},
		Version:     1,
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	a := report.Aggregates
	if a == nil {
		t.Fatalf("expected aggregates")
	}
	// (85+70)/2 = 77.5, (90+75)/2 = 82.5, (87+72)/2 = 79.5; math.Round rounds half away from zero.
	if a.MeanOverall != 78 || a.MeanCompliance != 83 || a.MeanFinal != 80 {
		t.Fatalf("unexpected means %#v", a)
	}
	if a.Grade != "B+" || !a.MeetsStandards {
		t.Fatalf("unexpected grade %s", a.Grade)
	}
	if a.TotalScore != 155 || a.MaxScore != 200 {
		t.Fatalf("unexpected totals %#v", a)
	}
	for _, want := range []string{"Seaside Cottage (prop-1)", "Rooms processed: 2", "- KITCHEN: 85/100 (compliance 90%)", "- BATHROOM: 70/100", "Overall average: 78/100 (compliance 83%)", PaymentNotice} {
		if !strings.Contains(report.Text, want) {
			t.Fatalf("expected %q in summary:\n%s", want, report.Text)
		}
	}
}

func TestGenerateWithoutScoresOmitsAggregates(t *testing.T) {
	report := Generate(Input{PropertyID: "prop-1", PropertyName: "Loft", RoomsProcessed: 0})
	if report.Aggregates != nil || report.PaymentNotice != "" {
		t.Fatalf("expected no aggregates, got %#v", report)
	}
	if strings.Contains(report.Text, "average") || strings.Contains(report.Text, "Payment") {
		t.Fatalf("unexpected aggregate text:\n%s", report.Text)
	}
	if report.Rooms == nil {
		t.Fatalf("expected empty rooms slice")
	}
}
