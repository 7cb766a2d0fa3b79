package comparison

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/scoring"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// mismatchPhrases signal that the model judged the two photos as not
// comparable.
var mismatchPhrases = []string{
	"not the same room",
	"not the same area",
	"not the same",
	"different room",
	"different rooms",
	"different area",
	"different areas",
	"different location",
	"doesn't match",
	"does not match",
	"don't match",
	"do not match",
	"mismatch",
	"not comparable",
	"cannot be compared",
}

// ExtractJSON returns the first well-formed JSON object in text. Fenced code
// blocks are tried first, then objects embedded in prose.
func ExtractJSON(text string) (string, bool) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if obj, ok := firstObject(m[1]); ok {
			return obj, true
		}
	}
	return firstObject(text)
}

func firstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			candidate := text[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace finds the index of the brace closing the one at start, honouring
// JSON strings. It returns -1 when unbalanced.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func containsMismatch(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range mismatchPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// parseComparison decodes the model reply into a RawComparison. It never
// invents numbers: missing scores are a parse failure.
func parseComparison(text string) (scoring.RawComparison, error) {
	obj, ok := ExtractJSON(text)
	if !ok {
		if containsMismatch(text) {
			return scoring.RawComparison{}, failure.New(failure.KindComparisonMismatch, "model reported the photos are not comparable")
		}
		return scoring.RawComparison{}, failure.New(failure.KindParse, "model reply contains no JSON object")
	}
	doc := gjson.Parse(obj)
	if same := doc.Get("sameRoom"); same.Exists() && same.Type == gjson.False {
		return scoring.RawComparison{}, failure.New(failure.KindComparisonMismatch, "model reported the photos show different rooms")
	}
	overall := doc.Get("overallScore")
	compliance := doc.Get("manualComplianceScore")
	if overall.Type != gjson.Number || compliance.Type != gjson.Number {
		if containsMismatch(text) {
			return scoring.RawComparison{}, failure.New(failure.KindComparisonMismatch, "model reported the photos are not comparable")
		}
		return scoring.RawComparison{}, failure.New(failure.KindParse, "model reply is missing overallScore or manualComplianceScore")
	}
	quality := doc.Get("qualityBreakdown")
	if !quality.IsObject() {
		return scoring.RawComparison{}, failure.New(failure.KindParse, "model reply is missing qualityBreakdown")
	}
	for _, field := range []string{"surfaceCleaning", "detailWork", "manualCompliance"} {
		if quality.Get(field).Type != gjson.Number {
			return scoring.RawComparison{}, failure.New(failure.KindParse, "qualityBreakdown.%s is not a number", field)
		}
	}
	rework := doc.Get("reworkAreas")
	if !rework.Exists() {
		rework = doc.Get("reWorkAreas")
	}
	return scoring.RawComparison{
		OverallScore:          overall.Float(),
		ManualComplianceScore: compliance.Float(),
		Improvements:          stringList(doc.Get("improvements")),
		RequirementsMet:       stringList(doc.Get("requirementsMet")),
		MissedRequirements:    stringList(doc.Get("missedRequirements")),
		ReworkAreas:           stringList(rework),
		QualityBreakdown: scoring.QualityBreakdown{
			SurfaceCleaning:  quality.Get("surfaceCleaning").Float(),
			DetailWork:       quality.Get("detailWork").Float(),
			ManualCompliance: quality.Get("manualCompliance").Float(),
		},
		Recommendations: stringList(doc.Get("recommendations")),
	}, nil
}

func parseProgress(text string) (Progress, error) {
	obj, ok := ExtractJSON(text)
	if !ok {
		return Progress{}, failure.New(failure.KindParse, "model reply contains no JSON object")
	}
	doc := gjson.Parse(obj)
	compliance := doc.Get("manualCompliance")
	cleanliness := doc.Get("cleanlinessScore")
	if compliance.Type != gjson.Number || cleanliness.Type != gjson.Number {
		return Progress{}, failure.New(failure.KindParse, "model reply is missing manualCompliance or cleanlinessScore")
	}
	return Progress{
		ManualCompliance:   clampScore(compliance.Float()),
		CleanlinessScore:   clampScore(cleanliness.Float()),
		RequirementsMet:    stringList(doc.Get("requirementsMet")),
		RequirementsMissed: stringList(doc.Get("requirementsMissed")),
		NextSteps:          stringList(doc.Get("nextSteps")),
		AcceptableProgress: doc.Get("acceptableProgress").Bool(),
	}, nil
}

func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		s := strings.TrimSpace(item.String())
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}
