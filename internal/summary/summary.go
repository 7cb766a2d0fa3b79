// Package summary builds the final cross-room report for a completed job.
package summary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"propertysanta/engine/internal/scoring"
)

const PaymentNotice = "You will be paid by the property owner for this completed cleaning job. Payment is processed based on the quality scores achieved."

type Room struct {
	RoomType              string `json:"room_type"`
	OverallScore          int    `json:"overall_score"`
	ManualComplianceScore int    `json:"manual_compliance_score"`
	FinalScore            int    `json:"final_score"`
	Grade                 string `json:"grade"`
	Version               int    `json:"version"`
}

type Input struct {
	PropertyID     string
	PropertyName   string
	RoomsProcessed int
	Rooms          []Room
	Version        int
	GeneratedAt    time.Time
}

// Aggregates are present only when at least one room was scored.
type Aggregates struct {
	MeanOverall    int    `json:"mean_overall"`
	MeanCompliance int    `json:"mean_compliance"`
	MeanFinal      int    `json:"mean_final"`
	Grade          string `json:"grade"`
	MeetsStandards bool   `json:"meets_standards"`
	TotalScore     int    `json:"total_score"`
	MaxScore       int    `json:"max_score"`
}

type Report struct {
	PropertyID     string      `json:"property_id"`
	PropertyName   string      `json:"property_name"`
	RoomsProcessed int         `json:"rooms_processed"`
	Rooms          []Room      `json:"rooms"`
	Aggregates     *Aggregates `json:"aggregates,omitempty"`
	PaymentNotice  string      `json:"payment_notice,omitempty"`
	Version        int         `json:"version"`
	GeneratedAt    time.Time   `json:"generated_at"`
	Text           string      `json:"text"`
}

func Generate(in Input) Report {
	report := Report{
		PropertyID:     in.PropertyID,
		PropertyName:   in.PropertyName,
		RoomsProcessed: in.RoomsProcessed,
		Rooms:          append([]Room{}, in.Rooms...),
		Version:        in.Version,
		GeneratedAt:    in.GeneratedAt,
	}
	if n := len(in.Rooms); n > 0 {
		var overall, compliance, final int
		for _, r := range in.Rooms {
			overall += r.OverallScore
			compliance += r.ManualComplianceScore
			final += r.FinalScore
		}
		meanFinal := mean(final, n)
		report.Aggregates = &Aggregates{
			MeanOverall:    mean(overall, n),
			MeanCompliance: mean(compliance, n),
			MeanFinal:      meanFinal,
			Grade:          scoring.Grade(meanFinal),
			MeetsStandards: scoring.MeetsStandards(meanFinal),
			TotalScore:     overall,
			MaxScore:       n * 100,
		}
		report.PaymentNotice = PaymentNotice
	}
	report.Text = render(report)
	return report
}

func mean(total, n int) int {
	return int(math.Round(float64(total) / float64(n)))
}

func render(r Report) string {
	var b strings.Builder
	name := r.PropertyName
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(&b, "Property: %s", name)
	if r.PropertyID != "" {
		fmt.Fprintf(&b, " (%s)", r.PropertyID)
	}
	fmt.Fprintf(&b, "\nRooms processed: %d\n", r.RoomsProcessed)
	if len(r.Rooms) > 0 {
		b.WriteString("\nFinal scoring summary:\n")
		for _, room := range r.Rooms {
			fmt.Fprintf(&b, "- %s: %d/100 (compliance %d%%), final %d %s\n",
				strings.ToUpper(room.RoomType), room.OverallScore, room.ManualComplianceScore, room.FinalScore, room.Grade)
		}
	}
	if a := r.Aggregates; a != nil {
		fmt.Fprintf(&b, "\nOverall average: %d/100 (compliance %d%%)\n", a.MeanOverall, a.MeanCompliance)
		fmt.Fprintf(&b, "Average final score: %d (%s)\n", a.MeanFinal, a.Grade)
		fmt.Fprintf(&b, "Total score: %d/%d\n", a.TotalScore, a.MaxScore)
		b.WriteString("\nAll before and after photos are logged and scored.\n")
		b.WriteString("\nPayment information:\n" + r.PaymentNotice)
	}
	return strings.TrimRight(b.String(), "\n")
}
