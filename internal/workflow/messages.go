package workflow

import (
	"fmt"
	"strings"

	"propertysanta/engine/internal/comparison"
	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/scoring"
	"propertysanta/engine/internal/summary"
)

func upper(room string) string { return strings.ToUpper(room) }

func joinRooms(rooms []string) string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = upper(r)
	}
	return strings.Join(out, ", ")
}

func clarificationReply(room string, photo intent.PhotoType, rooms []string) string {
	switch {
	case room == intent.RoomUnknown && photo == intent.PhotoUnknown:
		return fmt.Sprintf("Which room is this, and is it a BEFORE or AFTER photo? Rooms in this property: %s.", joinRooms(rooms))
	case room == intent.RoomUnknown:
		return fmt.Sprintf("Got a %s photo. Which room is it? Rooms in this property: %s.", strings.ToUpper(string(photo)), joinRooms(rooms))
	default:
		return fmt.Sprintf("Is this %s photo a BEFORE or AFTER photo?", upper(room))
	}
}

func requestBefore(p property.Property, room string) string {
	req, _ := property.ResolveManual(p, room)
	return fmt.Sprintf("Please upload a BEFORE photo of the %s.\n\n%s", upper(room), req.KeyTasks())
}

func beforeAcceptedReply(c *Context, room string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BEFORE photo of the %s received.", upper(room))
	if missing := c.missingBefore(); len(missing) > 0 {
		b.WriteString("\n\n")
		b.WriteString(requestBefore(c.property, missing[0]))
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nAll BEFORE photos are in. Start cleaning, then upload an AFTER photo of each room, starting with the %s.", upper(c.currentRoom))
	return b.String()
}

// roomReport renders a scored room. Successive versions of the same room are
// diffed line by line, so each fact sits on its own line.
func roomReport(room string, res scoring.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d/100 (%s)\n", upper(room), res.FinalScore, res.Grade)
	fmt.Fprintf(&b, "Overall quality: %d/100\n", res.OverallScore)
	fmt.Fprintf(&b, "Manual compliance: %d/100\n", res.ManualComplianceScore)
	fmt.Fprintf(&b, "Meets standards: %s\n", yesNo(res.MeetsStandards))
	for _, item := range res.Improvements {
		fmt.Fprintf(&b, "Improved: %s\n", item)
	}
	for _, item := range res.RequirementsMet {
		fmt.Fprintf(&b, "Met: %s\n", item)
	}
	for _, item := range res.MissedRequirements {
		fmt.Fprintf(&b, "Missed: %s\n", item)
	}
	for _, item := range res.ReworkAreas {
		fmt.Fprintf(&b, "Rework: %s\n", item)
	}
	for _, item := range res.Recommendations {
		fmt.Fprintf(&b, "Tip: %s\n", item)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func afterAcceptedReply(c *Context, room string, version ScoreVersion, report *summary.Report) string {
	var b strings.Builder
	b.WriteString(version.Report)
	if version.Delta != nil && !version.Delta.Empty() {
		fmt.Fprintf(&b, "\nChanges since version %d:\n%s", version.Version-1, version.Delta.Changes())
	}
	for _, advice := range version.Result.Advice {
		if advice.Type == scoring.AdviceInfo {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", advice.Title, advice.Action)
	}
	if report != nil {
		b.WriteString("\n\nAll rooms are scored.\n\n")
		b.WriteString(report.Text)
		return b.String()
	}
	if c.currentRoom != "" {
		fmt.Fprintf(&b, "\n\nNext, upload an AFTER photo of the %s.", upper(c.currentRoom))
	}
	return b.String()
}

func progressReply(room string, p comparison.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Progress check for the %s: cleanliness %d/100, manual compliance %d/100.", upper(room), p.CleanlinessScore, p.ManualCompliance)
	if p.AcceptableProgress {
		b.WriteString(" Good progress so far.")
	} else {
		b.WriteString(" There is still work to do.")
	}
	if len(p.RequirementsMissed) > 0 {
		fmt.Fprintf(&b, "\nStill missing: %s", strings.Join(p.RequirementsMissed, ", "))
	}
	if len(p.NextSteps) > 0 {
		fmt.Fprintf(&b, "\nNext steps: %s", strings.Join(p.NextSteps, ", "))
	}
	b.WriteString("\nThis check is not recorded; upload the AFTER photo when the room is done.")
	return b.String()
}

func redoReply(room string, versions int) string {
	return fmt.Sprintf("Redo started for the %s. Please upload a new AFTER photo. The previous %d score version(s) are kept.", upper(room), versions)
}

// failureReply renders a failure for the cleaner. It never includes the
// underlying error text.
func failureReply(c *Context, fe *failure.Error, room string, photo intent.PhotoType) string {
	switch fe.Kind {
	case failure.KindInvalidImage:
		return "I couldn't process that photo. It may be corrupted, too small or too large, or in an unsupported format. Please upload it again as a JPEG or PNG."
	case failure.KindDuplicateSubmission:
		if photo == intent.PhotoAfter {
			return fmt.Sprintf("The %s already has an AFTER photo and score. Ask to redo the %s if you want it rescored.", upper(room), upper(room))
		}
		return fmt.Sprintf("I already have a BEFORE photo of the %s.%s", upper(room), nextHint(c))
	case failure.KindMissingPrerequisite:
		return fmt.Sprintf("I don't have a BEFORE photo of the %s yet. Please upload the %s BEFORE photo first, then the AFTER photo.", upper(room), upper(room))
	case failure.KindUnknownRoom:
		return fmt.Sprintf("%s is not part of this property. Rooms in this property: %s.", upper(room), joinRooms(c.property.Rooms()))
	case failure.KindJobCompleted:
		return "This job is already complete. Ask for the summary, or redo a room to have it rescored."
	case failure.KindInvalidTransition:
		return fmt.Sprintf("Let's finish the BEFORE photos first. Still needed: %s.", joinRooms(c.missingBefore()))
	case failure.KindComparisonMismatch, failure.KindParse:
		return fmt.Sprintf("I couldn't compare the BEFORE and AFTER photos of the %s. Make sure both show the same room from a similar angle, then upload the AFTER photo again.", upper(room))
	case failure.KindExternalService:
		switch fe.Service {
		case failure.ServiceQuotaExceeded:
			return "The photo analysis service has reached its usage limit. Please try again later."
		case failure.ServiceAuthFailure:
			return "The photo analysis service rejected our credentials. Please check the API key in settings."
		case failure.ServiceNetworkError:
			return "I couldn't reach the photo analysis service. Please check the connection and try again."
		default:
			return "The photo analysis service is having problems right now. Please try again in a few minutes."
		}
	}
	return "Something went wrong handling that photo. Please try again."
}

func nextHint(c *Context) string {
	switch {
	case c.phase == PhaseCompleted:
		return " All rooms are already scored."
	case c.currentRoom == "":
		return ""
	case !c.before.has(c.currentRoom):
		return fmt.Sprintf(" Next, upload a BEFORE photo of the %s.", upper(c.currentRoom))
	default:
		return fmt.Sprintf(" Next, upload an AFTER photo of the %s.", upper(c.currentRoom))
	}
}
