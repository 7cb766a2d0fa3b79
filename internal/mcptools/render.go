package mcptools

import (
	"fmt"
	"strings"

	"propertysanta/engine/internal/summary"
	"propertysanta/engine/internal/workflow"
)

// RenderResponse renders a job response as the reply followed by a status
// footer.
func RenderResponse(resp workflow.Response) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.ReplyText))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "phase: %s", resp.Phase)
	if resp.PhaseChanged {
		fmt.Fprintf(&b, " (was %s)", resp.PreviousPhase)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "before: %s\n", listOrDash(resp.BeforeLog))
	fmt.Fprintf(&b, "after: %s\n", listOrDash(resp.AfterLog))
	if resp.CurrentRoom != "" {
		fmt.Fprintf(&b, "current room: %s\n", resp.CurrentRoom)
	}
	if resp.Score != nil {
		fmt.Fprintf(&b, "score: %s v%d %d/100 %s\n", resp.RoomType, resp.Score.Version, resp.Score.Result.FinalScore, resp.Score.Result.Grade)
	}
	for _, issue := range resp.Issues {
		fmt.Fprintf(&b, "issue: [%s] %s: %s\n", issue.Type, issue.Location, issue.Description)
	}
	if resp.Failure != nil {
		fmt.Fprintf(&b, "failure: %s", resp.Failure.Kind)
		if resp.Failure.Service != "" {
			fmt.Fprintf(&b, " (%s)", resp.Failure.Service)
		}
		if resp.Failure.Retryable {
			b.WriteString(", retryable")
		}
		b.WriteString("\n")
	}
	if resp.IsJobComplete {
		b.WriteString("job complete\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func summaryText(v any) string {
	switch report := v.(type) {
	case summary.Report:
		return report.Text
	case *summary.Report:
		if report != nil {
			return report.Text
		}
	}
	return ""
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
