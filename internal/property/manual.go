package property

import (
	"fmt"
	"strings"
)

// Requirements is the rubric for one room, extracted from the property
// manual.
type Requirements struct {
	RoomType            string
	EstimatedTime       string
	Tasks               []Task
	SpecialInstructions []string
	FragileItems        []string
}

// ResolveManual extracts the requirements for roomType. ok is false when the
// property has no such room.
func ResolveManual(p Property, roomType string) (Requirements, bool) {
	rt, ok := p.Room(roomType)
	if !ok {
		return Requirements{RoomType: NormalizeRoom(roomType)}, false
	}
	return Requirements{
		RoomType:            rt.RoomType,
		EstimatedTime:       rt.EstimatedTime,
		Tasks:               rt.Tasks,
		SpecialInstructions: rt.SpecialInstructions,
		FragileItems:        rt.FragileItems,
	}, true
}

// Text renders the rubric: one line per task, then the special instructions
// and fragile items on their own lines. Compliance scoring splits this text by
// line.
func (r Requirements) Text() string {
	lines := make([]string, 0, len(r.Tasks)+2)
	for _, task := range r.Tasks {
		desc := strings.TrimSpace(task.Description)
		if desc == "" {
			continue
		}
		line := desc
		if task.EstimatedTime != "" {
			line += " (" + task.EstimatedTime + ")"
		}
		if task.SpecialNotes != "" {
			line += " - " + task.SpecialNotes
		}
		lines = append(lines, line)
	}
	if len(r.SpecialInstructions) > 0 {
		lines = append(lines, "Special Instructions: "+strings.Join(r.SpecialInstructions, ", "))
	}
	if len(r.FragileItems) > 0 {
		lines = append(lines, "Fragile Items: "+strings.Join(r.FragileItems, ", "))
	}
	return strings.Join(lines, "\n")
}

// KeyTasks renders the requirements for display to the cleaner.
func (r Requirements) KeyTasks() string {
	if len(r.Tasks) == 0 && len(r.SpecialInstructions) == 0 {
		return "Follow the manual requirements for this room."
	}
	var b strings.Builder
	header := "Tasks for " + r.RoomType
	if r.EstimatedTime != "" {
		header += fmt.Sprintf(" (Estimated time: %s)", r.EstimatedTime)
	}
	b.WriteString(header + ":")
	for _, task := range r.Tasks {
		b.WriteString("\n- " + task.Description)
		if task.IsCompleted {
			b.WriteString(" (Completed)")
		}
	}
	if len(r.SpecialInstructions) > 0 {
		b.WriteString("\n\nSpecial Instructions:")
		for _, item := range r.SpecialInstructions {
			b.WriteString("\n- " + item)
		}
	}
	if len(r.FragileItems) > 0 {
		b.WriteString("\n\nFragile Items: " + strings.Join(r.FragileItems, ", "))
	}
	return b.String()
}
