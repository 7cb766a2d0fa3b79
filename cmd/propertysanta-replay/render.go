package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"propertysanta/engine/internal/replay"
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	replyStyle   = lipgloss.NewStyle().PaddingLeft(2)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

func renderReport(r replay.Report) string {
	var b strings.Builder
	title := r.Scenario
	if title == "" {
		title = "scenario"
	}
	fmt.Fprintf(&b, "%s (job %s)\n\n", stepStyle.Render(title), r.JobID)
	for _, res := range r.Results {
		b.WriteString(renderResult(res))
		b.WriteString("\n")
	}
	passed := len(r.Results) - r.Failed()
	summary := fmt.Sprintf("%d/%d steps passed", passed, len(r.Results))
	if r.Failed() > 0 {
		b.WriteString(failStyle.Render(summary))
	} else {
		b.WriteString(passStyle.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}

func renderResult(res replay.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", stepStyle.Render(fmt.Sprintf("#%d %s", res.Index, res.Step.Action)), userStyle.Render(stepInput(res.Step)))
	if res.Error != nil {
		b.WriteString(failureStyle.Render(fmt.Sprintf("  error %s: %s", res.Error.ErrorCode, res.Error.Detail)))
		b.WriteString("\n")
	} else if text := strings.TrimSpace(res.Text); text != "" {
		b.WriteString(replyStyle.Render(text))
		b.WriteString("\n")
	}
	if resp := res.Response; resp != nil {
		status := fmt.Sprintf("  phase %s | before %d | after %d", resp.Phase, len(resp.BeforeLog), len(resp.AfterLog))
		if resp.Score != nil {
			status += fmt.Sprintf(" | %s %d/100 %s", resp.RoomType, resp.Score.Result.FinalScore, resp.Score.Result.Grade)
		}
		b.WriteString(statusStyle.Render(status))
		b.WriteString("\n")
		if resp.Failure != nil {
			b.WriteString(failureStyle.Render("  failure " + string(resp.Failure.Kind)))
			b.WriteString("\n")
		}
	}
	if res.Passed() {
		b.WriteString(passStyle.Render("  ok"))
	} else {
		b.WriteString(failStyle.Render("  FAIL " + strings.Join(res.Problems, "; ")))
	}
	b.WriteString("\n")
	return b.String()
}

func stepInput(step replay.Step) string {
	parts := []string{}
	if step.Message != "" {
		parts = append(parts, fmt.Sprintf("%q", step.Message))
	}
	if step.Room != "" {
		parts = append(parts, "room="+step.Room)
	}
	if step.Photo != "" {
		parts = append(parts, "photo="+step.Photo)
	}
	if step.Image != "" || step.Synthetic {
		parts = append(parts, "[photo]")
	}
	return strings.Join(parts, " ")
}
