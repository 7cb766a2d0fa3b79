// Package scoring turns a raw before/after comparison into a weighted score,
// a letter grade and a manual-compliance breakdown. Everything here is a pure
// function of its inputs.
package scoring

import (
	"math"
	"strings"
)

const (
	weightOverall    = 0.3
	weightCompliance = 0.4
	weightQuality    = 0.3

	StandardThreshold  = 80
	ExcellentThreshold = 90
)

// QualityBreakdown holds the per-aspect scores reported by the model.
type QualityBreakdown struct {
	SurfaceCleaning  float64 `json:"surface_cleaning"`
	DetailWork       float64 `json:"detail_work"`
	ManualCompliance float64 `json:"manual_compliance"`
}

func (q QualityBreakdown) mean() float64 {
	return (clamp(q.SurfaceCleaning) + clamp(q.DetailWork) + clamp(q.ManualCompliance)) / 3
}

// RawComparison is the validated model output for one room.
type RawComparison struct {
	OverallScore          float64          `json:"overall_score"`
	ManualComplianceScore float64          `json:"manual_compliance_score"`
	Improvements          []string         `json:"improvements"`
	RequirementsMet       []string         `json:"requirements_met"`
	MissedRequirements    []string         `json:"missed_requirements"`
	ReworkAreas           []string         `json:"rework_areas"`
	QualityBreakdown      QualityBreakdown `json:"quality_breakdown"`
	Recommendations       []string         `json:"recommendations"`
}

type RequirementCheck struct {
	Requirement string `json:"requirement"`
	Met         bool   `json:"met"`
}

// ComplianceBreakdown checks each manual line against the requirements the
// model reported as met. A line counts as met when any reported entry
// contains the line's first word, case-insensitively. This is a coarse
// heuristic, not exact matching.
type ComplianceBreakdown struct {
	TotalRequirements    int                `json:"total_requirements"`
	RequirementsMet      int                `json:"requirements_met"`
	RequirementsMissed   int                `json:"requirements_missed"`
	CompliancePercentage float64            `json:"compliance_percentage"`
	Lines                []RequirementCheck `json:"lines"`
}

type AdviceType string

const (
	AdviceCritical AdviceType = "critical"
	AdviceWarning  AdviceType = "warning"
	AdviceInfo     AdviceType = "info"
	AdviceSuccess  AdviceType = "success"
)

type Advice struct {
	Type        AdviceType `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Action      string     `json:"action"`
}

type Result struct {
	OverallScore          int                 `json:"overall_score"`
	ManualComplianceScore int                 `json:"manual_compliance_score"`
	Improvements          []string            `json:"improvements"`
	RequirementsMet       []string            `json:"requirements_met"`
	MissedRequirements    []string            `json:"missed_requirements"`
	ReworkAreas           []string            `json:"rework_areas"`
	QualityBreakdown      QualityBreakdown    `json:"quality_breakdown"`
	Recommendations       []string            `json:"recommendations"`
	FinalScore            int                 `json:"final_score"`
	Grade                 string              `json:"grade"`
	MeetsStandards        bool                `json:"meets_standards"`
	Compliance            ComplianceBreakdown `json:"compliance"`
	Advice                []Advice            `json:"advice"`
}

// Score computes the weighted result:
// final = round(0.3*overall + 0.4*compliance + 0.3*mean(quality breakdown)).
func Score(raw RawComparison, manualText string) Result {
	overall := clamp(raw.OverallScore)
	compliance := clamp(raw.ManualComplianceScore)
	final := int(math.Round(weightOverall*overall + weightCompliance*compliance + weightQuality*raw.QualityBreakdown.mean()))

	res := Result{
		OverallScore:          int(math.Round(overall)),
		ManualComplianceScore: int(math.Round(compliance)),
		Improvements:          nonNil(raw.Improvements),
		RequirementsMet:       nonNil(raw.RequirementsMet),
		MissedRequirements:    nonNil(raw.MissedRequirements),
		ReworkAreas:           nonNil(raw.ReworkAreas),
		QualityBreakdown: QualityBreakdown{
			SurfaceCleaning:  math.Round(clamp(raw.QualityBreakdown.SurfaceCleaning)),
			DetailWork:       math.Round(clamp(raw.QualityBreakdown.DetailWork)),
			ManualCompliance: math.Round(clamp(raw.QualityBreakdown.ManualCompliance)),
		},
		Recommendations: nonNil(raw.Recommendations),
		FinalScore:      final,
		Grade:           Grade(final),
		MeetsStandards:  MeetsStandards(final),
		Compliance:      Compliance(raw.RequirementsMet, manualText),
	}
	res.Advice = Advise(res)
	return res
}

// Grade maps a final score to a letter. Thresholds are inclusive lower bounds.
func Grade(score int) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "A-"
	case score >= 80:
		return "B+"
	case score >= 75:
		return "B"
	case score >= 70:
		return "B-"
	case score >= 65:
		return "C+"
	case score >= 60:
		return "C"
	case score >= 55:
		return "C-"
	case score >= 50:
		return "D+"
	case score >= 45:
		return "D"
	}
	return "F"
}

func MeetsStandards(score int) bool {
	return score >= StandardThreshold
}

func Compliance(requirementsMet []string, manualText string) ComplianceBreakdown {
	breakdown := ComplianceBreakdown{Lines: []RequirementCheck{}}
	met := make([]string, 0, len(requirementsMet))
	for _, m := range requirementsMet {
		met = append(met, strings.ToLower(m))
	}
	for _, line := range strings.Split(manualText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		check := RequirementCheck{Requirement: line, Met: lineMet(line, met)}
		breakdown.Lines = append(breakdown.Lines, check)
		breakdown.TotalRequirements++
		if check.Met {
			breakdown.RequirementsMet++
		}
	}
	breakdown.RequirementsMissed = breakdown.TotalRequirements - breakdown.RequirementsMet
	if breakdown.TotalRequirements > 0 {
		breakdown.CompliancePercentage = math.Round(float64(breakdown.RequirementsMet)/float64(breakdown.TotalRequirements)*1000) / 10
	}
	return breakdown
}

func lineMet(line string, met []string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	for _, m := range met {
		if strings.Contains(m, first) {
			return true
		}
	}
	return false
}

// Advise derives the deterministic recommendations for a scored room.
func Advise(res Result) []Advice {
	advice := []Advice{}
	if len(res.MissedRequirements) > 0 {
		advice = append(advice, Advice{
			Type:        AdviceCritical,
			Title:       "Manual requirements missed",
			Description: "The following manual requirements were not met: " + strings.Join(res.MissedRequirements, ", "),
			Action:      "Complete missed requirements before proceeding",
		})
	}
	if res.FinalScore < StandardThreshold {
		advice = append(advice, Advice{
			Type:        AdviceWarning,
			Title:       "Quality improvement needed",
			Description: "Current score is below the required standard of 80",
			Action:      "Review manual requirements and re-clean areas",
		})
	}
	for _, area := range res.ReworkAreas {
		advice = append(advice, Advice{
			Type:        AdviceInfo,
			Title:       "Area needing re-work",
			Description: "Focus on: " + area,
			Action:      "Clean this area according to the manual",
		})
	}
	if res.FinalScore >= ExcellentThreshold {
		advice = append(advice, Advice{
			Type:        AdviceSuccess,
			Title:       "Excellent work",
			Description: "Manual requirements were followed excellently",
			Action:      "Continue with the next room to the same standard",
		})
	}
	return advice
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
