package comparison

import (
	"fmt"

	"propertysanta/engine/internal/llm"
)

const inspectorSystemPrompt = `You are a professional cleaning quality inspector for short-term rental properties.
You compare photos of the same room and grade the cleaning against the property's manual.
Only score what is visible in the photos. If the two photos do not show the same room or area, say so with "sameRoom": false.
Respond with a single JSON object and nothing else.`

const comparisonSchema = `{
  "sameRoom": true,
  "overallScore": 85,
  "manualComplianceScore": 90,
  "improvements": ["dust removed", "surfaces cleaned"],
  "requirementsMet": ["counters wiped", "floor mopped"],
  "missedRequirements": ["baseboards not cleaned"],
  "reworkAreas": ["baseboards"],
  "qualityBreakdown": {
    "surfaceCleaning": 90,
    "detailWork": 75,
    "manualCompliance": 90
  },
  "recommendations": ["clean baseboards", "check corners"]
}`

const progressSchema = `{
  "manualCompliance": 75,
  "requirementsMet": ["surfaces dusted", "floor vacuumed"],
  "requirementsMissed": ["baseboards", "window sills"],
  "cleanlinessScore": 70,
  "nextSteps": ["clean baseboards", "dust window sills"],
  "acceptableProgress": true
}`

func comparisonMessages(roomType, manualText string, before, after llm.Image) []llm.Message {
	if manualText == "" {
		manualText = "No specific manual requirements. Apply general professional cleaning standards."
	}
	text := fmt.Sprintf(`The first image is the BEFORE photo and the second image is the AFTER photo of a %s.

Manual requirements for %s:
%s

Compare the photos and report:
1. sameRoom: whether both photos show the same room or area
2. overallScore (0-100): overall cleanliness improvement
3. manualComplianceScore (0-100): how well the manual requirements were followed
4. improvements: each visible improvement
5. requirementsMet: manual requirements that were completed
6. missedRequirements: manual requirements that were not met
7. reworkAreas: areas that need re-work
8. qualityBreakdown: surfaceCleaning, detailWork and manualCompliance, each 0-100
9. recommendations: concrete next actions

Respond in this JSON format:
%s`, roomType, roomType, manualText, comparisonSchema)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: inspectorSystemPrompt},
		{Role: llm.RoleUser, Content: text, Images: []llm.Image{before, after}},
	}
}

func progressMessages(roomType, manualText string, photo llm.Image) []llm.Message {
	if manualText == "" {
		manualText = "No specific manual requirements. Apply general professional cleaning standards."
	}
	text := fmt.Sprintf(`This is an in-progress photo of a %s taken during cleaning.

Manual requirements for %s:
%s

Report:
1. manualCompliance (0-100) so far
2. requirementsMet and requirementsMissed
3. cleanlinessScore (0-100)
4. nextSteps: specific actions still needed
5. acceptableProgress: whether the progress is acceptable

Respond in this JSON format:
%s`, roomType, roomType, manualText, progressSchema)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: inspectorSystemPrompt},
		{Role: llm.RoleUser, Content: text, Images: []llm.Image{photo}},
	}
}
