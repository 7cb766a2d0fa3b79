// Package conversation holds the bounded chat memory of a job and produces
// replies to text-only messages.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/property"
)

const defaultReplyTimeout = 30 * time.Second

type RoomScore struct {
	RoomType              string
	OverallScore          int
	ManualComplianceScore int
	FinalScore            int
	Grade                 string
}

// Snapshot is the read-only job state a reply may refer to.
type Snapshot struct {
	Property    property.Property
	Phase       string
	Before      []string
	After       []string
	CurrentRoom string
	Scores      []RoomScore
	History     []Entry
	SummaryText string
}

type Responder struct {
	model   llm.Generator
	timeout time.Duration
	logger  *slog.Logger
}

func NewResponder(model llm.Generator, timeout time.Duration, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Responder{model: model, timeout: timeout, logger: logger}
}

// Reply answers a text-only message. Deterministic helpers handle known
// requests; anything else goes to the model when one is configured, falling
// back to a canned reply when it fails. Replies never contain scores that are
// not in the snapshot.
func (r *Responder) Reply(ctx context.Context, snap Snapshot, message string) string {
	if reply, ok := Helper(snap, message); ok {
		return reply
	}
	if r.model == nil {
		return Fallback(snap, message)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	callCtx = llm.WithProfile(callCtx, llm.Profile{Purpose: llm.PurposeChat, Temperature: 0, MaxOutputTokens: 1024})
	reply, err := r.model.Generate(callCtx, promptMessages(snap, message))
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			r.logger.Warn("conversation.model_failed", "error", err.Error())
		}
		return Fallback(snap, message)
	}
	return strings.TrimSpace(reply)
}

// Helper answers the requests that have a deterministic reply.
func Helper(snap Snapshot, message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	if phase, ok := intent.IsBarePhase(lower); ok {
		room := snap.CurrentRoom
		if room == "" {
			room = "the current room"
		}
		return fmt.Sprintf("Ready for the %s %s photo. Please upload it now.", strings.ToUpper(room), strings.ToUpper(string(phase))), true
	}
	switch {
	case snap.SummaryText != "" && containsAny(lower, "summary", "total", "payment"):
		return snap.SummaryText, true
	case containsAny(lower, "status", "progress", "how far"):
		return ProgressStatus(snap), true
	case containsAny(lower, "next", "what now", "what should i do"):
		return NextSteps(snap), true
	case containsAny(lower, "score", "grade"):
		return ScoreInfo(snap), true
	case containsAny(lower, "manual", "requirements", "tasks"):
		return ManualInfo(snap), true
	}
	return "", false
}

func ProgressStatus(snap Snapshot) string {
	rooms := snap.Property.Rooms()
	var b strings.Builder
	name := snap.Property.Name
	if name == "" {
		name = snap.Property.ID
	}
	fmt.Fprintf(&b, "Current progress for %s\n", name)
	if snap.CurrentRoom != "" {
		fmt.Fprintf(&b, "Current room: %s\n", strings.ToUpper(snap.CurrentRoom))
	}
	fmt.Fprintf(&b, "Photos logged: %d/%d before, %d/%d after\n", len(snap.Before), len(rooms), len(snap.After), len(rooms))
	fmt.Fprintf(&b, "Status: %s", phaseStatus(snap.Phase))
	if len(snap.Scores) > 0 {
		fmt.Fprintf(&b, "\nRooms scored: %d", len(snap.Scores))
	}
	return b.String()
}

func phaseStatus(phase string) string {
	switch phase {
	case "initial", "manual_explained":
		return "ready to start, BEFORE photos needed"
	case "before_requested":
		return "taking BEFORE photos"
	case "after_requested":
		return "taking AFTER photos for scoring"
	case "completed":
		return "all rooms completed"
	}
	return phase
}

func NextSteps(snap Snapshot) string {
	rooms := snap.Property.Rooms()
	switch snap.Phase {
	case "initial", "manual_explained":
		return "Next: take a BEFORE photo of each room, starting with " + upperOr(snap.CurrentRoom, firstOr(rooms)) + "."
	case "before_requested":
		return fmt.Sprintf("Next: take the BEFORE photo for %s (%d/%d done).", upperOr(snap.CurrentRoom, "the next room"), len(snap.Before), len(rooms))
	case "after_requested":
		return fmt.Sprintf("Next: when %s is clean, take its AFTER photo to get a score (%d/%d done).", upperOr(snap.CurrentRoom, "the next room"), len(snap.After), len(rooms))
	case "completed":
		return "All done! Your cleaning job is complete and you will be paid by the property owner based on your quality scores."
	}
	return "Let me know what you would like to work on: photos, manual requirements or scores."
}

func ScoreInfo(snap Snapshot) string {
	if len(snap.Scores) == 0 {
		return "No scores yet. Take AFTER photos of cleaned rooms to get quality scores and grades."
	}
	var b strings.Builder
	b.WriteString("Scoring summary:")
	total := 0
	for _, s := range snap.Scores {
		fmt.Fprintf(&b, "\n- %s: final %d (%s), overall %d/100, compliance %d%%", strings.ToUpper(s.RoomType), s.FinalScore, s.Grade, s.OverallScore, s.ManualComplianceScore)
		total += s.FinalScore
	}
	fmt.Fprintf(&b, "\nAverage final score: %d", (total+len(snap.Scores)/2)/len(snap.Scores))
	return b.String()
}

func ManualInfo(snap Snapshot) string {
	room := snap.CurrentRoom
	if room == "" {
		room = firstOr(snap.Property.Rooms())
	}
	req, ok := property.ResolveManual(snap.Property, room)
	if !ok {
		return "Available rooms: " + strings.Join(snap.Property.Rooms(), ", ")
	}
	return req.KeyTasks()
}

var fallbackReplies = []string{
	"I'm here to help with your cleaning tasks. Send a photo with the room name and whether it's BEFORE or AFTER, or ask about your progress.",
	"Ready to help! I can guide you through the manual, log your photos and score your rooms. What would you like to do?",
	"I'm your cleaning assistant. Ask about the manual, your progress or your scores, or upload the next photo.",
	"Here to support your cleaning work. What would you like to tackle next?",
}

// Fallback is the deterministic reply used when no model answer is available.
func Fallback(snap Snapshot, message string) string {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "help", "what can you do"):
		return "I can guide you through the manual requirements, log BEFORE and AFTER photos, score each room and produce the final summary."
	case containsAny(lower, "start", "begin"):
		return NextSteps(snap)
	case containsAny(lower, "thank", "thanks"):
		return "You're welcome! " + NextSteps(snap)
	}
	return fallbackReplies[len(message)%len(fallbackReplies)]
}

func promptMessages(snap Snapshot, message string) []llm.Message {
	var b strings.Builder
	b.WriteString("You are PropertySanta, a friendly assistant guiding a cleaner through photographing each room before and after cleaning.\n")
	b.WriteString("Never mention internal workflow state names. Only use the scoring data below; if there is none, say so instead of inventing numbers.\n")
	b.WriteString("Always mention that the cleaner is paid by the property owner once the work is complete.\n\n")
	fmt.Fprintf(&b, "Property: %s\n", snap.Property.Name)
	fmt.Fprintf(&b, "Status: %s\n", phaseStatus(snap.Phase))
	fmt.Fprintf(&b, "Before photos logged: %s\n", joinOrNone(snap.Before))
	fmt.Fprintf(&b, "After photos logged: %s\n", joinOrNone(snap.After))
	if snap.CurrentRoom != "" {
		fmt.Fprintf(&b, "Current room: %s\n", snap.CurrentRoom)
	}
	b.WriteString("\nActual scoring data:\n")
	if len(snap.Scores) == 0 {
		b.WriteString("No scoring data available yet.\n")
	}
	for _, s := range snap.Scores {
		fmt.Fprintf(&b, "%s: %d/100 (manual compliance %d%%), final %d %s\n", s.RoomType, s.OverallScore, s.ManualComplianceScore, s.FinalScore, s.Grade)
	}
	b.WriteString("\nRoom tasks:\n")
	for _, rt := range snap.Property.RoomTasks {
		fmt.Fprintf(&b, "%s:\n", rt.RoomType)
		for i, task := range rt.Tasks {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, task.Description)
		}
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: strings.TrimSpace(b.String())}}
	history := snap.History
	if len(history) > PromptMemory {
		history = history[len(history)-PromptMemory:]
	}
	for _, entry := range history {
		role := llm.RoleUser
		if entry.Sender == SenderAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: entry.Message})
	}
	if n := len(history); n == 0 || history[n-1].Sender != SenderUser || history[n-1].Message != message {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	}
	return messages
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func upperOr(s, fallback string) string {
	if s == "" {
		return strings.ToUpper(fallback)
	}
	return strings.ToUpper(s)
}

func firstOr(rooms []string) string {
	if len(rooms) == 0 {
		return "the first room"
	}
	return rooms[0]
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
