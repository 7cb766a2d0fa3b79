package property

import (
	"fmt"
	"strings"
)

// Overview is the manual summary sent on the first interaction of a job.
func Overview(p Property) string {
	var b strings.Builder
	name := p.Name
	if name == "" {
		name = p.ID
	}
	fmt.Fprintf(&b, "Welcome to %s!", name)
	if p.Address != "" {
		fmt.Fprintf(&b, "\nAddress: %s", p.Address)
	}
	b.WriteString("\n\nManual overview:")
	for i, rt := range p.RoomTasks {
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.ToUpper(rt.RoomType))
		if rt.EstimatedTime != "" {
			fmt.Fprintf(&b, " (%s)", rt.EstimatedTime)
		}
		fmt.Fprintf(&b, ": %d task", len(rt.Tasks))
		if len(rt.Tasks) != 1 {
			b.WriteString("s")
		}
		if len(rt.SpecialInstructions) > 0 {
			fmt.Fprintf(&b, "; special instructions: %s", strings.Join(rt.SpecialInstructions, ", "))
		}
		if len(rt.FragileItems) > 0 {
			fmt.Fprintf(&b, "; fragile: %s", strings.Join(rt.FragileItems, ", "))
		}
	}
	b.WriteString("\n\nWe'll photograph every room BEFORE cleaning, then AFTER cleaning for scoring.")
	return b.String()
}
