package workflow

import (
	"sort"
	"time"

	"propertysanta/engine/internal/conversation"
	"propertysanta/engine/internal/diff"
	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/scoring"
	"propertysanta/engine/internal/summary"
)

const (
	IssueMissedRequirement = "missed_requirement"
	IssueNeedsAttention    = "needs_attention"
)

// PhotoRef is an accepted photo held for the lifetime of the job. The bytes
// are only kept to pair a before photo with its after photo.
type PhotoRef struct {
	ID         string           `json:"id"`
	RoomType   string           `json:"room_type"`
	PhotoType  intent.PhotoType `json:"photo_type"`
	MIMEType   string           `json:"mime_type"`
	Size       int              `json:"size"`
	SHA256     string           `json:"sha256"`
	AcceptedAt time.Time        `json:"accepted_at"`
	Data       []byte           `json:"-"`
}

type Issue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// ScoreVersion is one scoring of a room. Versions after the first come from
// an explicit redo and carry the report delta against the previous version.
type ScoreVersion struct {
	Version  int            `json:"version"`
	Result   scoring.Result `json:"result"`
	Report   string         `json:"report"`
	Delta    *diff.Delta    `json:"delta,omitempty"`
	Issues   []Issue        `json:"issues"`
	ScoredAt time.Time      `json:"scored_at"`
}

type photoKey struct {
	room  string
	phase intent.PhotoType
}

// roomSet is an insertion-ordered set of room types.
type roomSet struct {
	order   []string
	present map[string]bool
}

func newRoomSet() roomSet {
	return roomSet{present: map[string]bool{}}
}

func (s *roomSet) add(room string) {
	if s.present[room] {
		return
	}
	s.present[room] = true
	s.order = append(s.order, room)
}

func (s *roomSet) remove(room string) {
	if !s.present[room] {
		return
	}
	delete(s.present, room)
	for i, r := range s.order {
		if r == room {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *roomSet) has(room string) bool { return s.present[room] }

func (s *roomSet) list() []string { return append([]string{}, s.order...) }

func (s *roomSet) len() int { return len(s.order) }

// Context is the state of one job. It is not safe for concurrent use; the
// Registry serialises access per job.
type Context struct {
	jobID       string
	property    property.Property
	phase       Phase
	before      roomSet
	after       roomSet
	photos      map[photoKey]PhotoRef
	scores      map[string][]ScoreVersion
	history     *conversation.History
	summaries   []summary.Report
	currentRoom string
	createdAt   time.Time
	updatedAt   time.Time
}

func NewContext(jobID string, p property.Property, historyLimit int, now time.Time) *Context {
	c := &Context{
		jobID:     jobID,
		property:  p,
		history:   conversation.NewHistory(historyLimit),
		createdAt: now,
	}
	c.clear(now)
	return c
}

func (c *Context) clear(now time.Time) {
	c.phase = PhaseInitial
	c.before = newRoomSet()
	c.after = newRoomSet()
	c.photos = map[photoKey]PhotoRef{}
	c.scores = map[string][]ScoreVersion{}
	c.history.Clear()
	c.summaries = nil
	c.currentRoom = c.nextRoom()
	c.updatedAt = now
}

func (c *Context) JobID() string { return c.jobID }
func (c *Context) Property() property.Property { return c.property }
func (c *Context) Phase() Phase { return c.phase }
func (c *Context) BeforeLog() []string { return c.before.list() }
func (c *Context) AfterLog() []string { return c.after.list() }
func (c *Context) CurrentRoom() string { return c.currentRoom }
func (c *Context) History() []conversation.Entry { return c.history.Entries() }

func (c *Context) Scores(room string) []ScoreVersion {
	return append([]ScoreVersion{}, c.scores[room]...)
}

func (c *Context) latestScore(room string) (ScoreVersion, bool) {
	versions := c.scores[room]
	if len(versions) == 0 {
		return ScoreVersion{}, false
	}
	return versions[len(versions)-1], true
}

func (c *Context) Summaries() []summary.Report {
	return append([]summary.Report{}, c.summaries...)
}

// LatestSummary returns the summary of the most recent completion.
func (c *Context) LatestSummary() (summary.Report, bool) {
	if len(c.summaries) == 0 {
		return summary.Report{}, false
	}
	return c.summaries[len(c.summaries)-1], true
}

// Photos lists accepted photos ordered by acceptance time.
func (c *Context) Photos() []PhotoRef {
	out := make([]PhotoRef, 0, len(c.photos))
	for _, ref := range c.photos {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AcceptedAt.Equal(out[j].AcceptedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AcceptedAt.Before(out[j].AcceptedAt)
	})
	return out
}

// nextRoom is the first room, in manual order, lacking a before photo, or
// failing that the first room lacking an after photo.
func (c *Context) nextRoom() string {
	rooms := c.property.Rooms()
	for _, room := range rooms {
		if !c.before.has(room) {
			return room
		}
	}
	for _, room := range rooms {
		if !c.after.has(room) {
			return room
		}
	}
	return ""
}

func (c *Context) missingBefore() []string {
	var out []string
	for _, room := range c.property.Rooms() {
		if !c.before.has(room) {
			out = append(out, room)
		}
	}
	return out
}

// coversAllWith reports whether set plus extra contains every property room.
func (c *Context) coversAllWith(set *roomSet, extra string) bool {
	for _, room := range c.property.Rooms() {
		if room != extra && !set.has(room) {
			return false
		}
	}
	return true
}

func (c *Context) scoreSummaries() []conversation.RoomScore {
	out := []conversation.RoomScore{}
	for _, room := range c.property.Rooms() {
		latest, ok := c.latestScore(room)
		if !ok {
			continue
		}
		out = append(out, conversation.RoomScore{
			RoomType:              room,
			OverallScore:          latest.Result.OverallScore,
			ManualComplianceScore: latest.Result.ManualComplianceScore,
			FinalScore:            latest.Result.FinalScore,
			Grade:                 latest.Result.Grade,
		})
	}
	return out
}

func (c *Context) snapshot() conversation.Snapshot {
	snap := conversation.Snapshot{
		Property:    c.property,
		Phase:       string(c.phase),
		Before:      c.before.list(),
		After:       c.after.list(),
		CurrentRoom: c.currentRoom,
		Scores:      c.scoreSummaries(),
		History:     c.history.Entries(),
	}
	if latest, ok := c.LatestSummary(); ok && c.phase == PhaseCompleted {
		snap.SummaryText = latest.Text
	}
	return snap
}

// State is the externally visible view of a job.
type State struct {
	JobID          string                    `json:"job_id"`
	PropertyID     string                    `json:"property_id"`
	PropertyName   string                    `json:"property_name"`
	Phase          Phase                     `json:"phase"`
	Rooms          []string                  `json:"rooms"`
	BeforeLog      []string                  `json:"before_log"`
	AfterLog       []string                  `json:"after_log"`
	CurrentRoom    string                    `json:"current_room,omitempty"`
	Scores         map[string][]ScoreVersion `json:"scores"`
	SummaryVersion int                       `json:"summary_version"`
	ChatLength     int                       `json:"chat_length"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func (c *Context) State() State {
	scores := make(map[string][]ScoreVersion, len(c.scores))
	for room, versions := range c.scores {
		scores[room] = append([]ScoreVersion{}, versions...)
	}
	return State{
		JobID:          c.jobID,
		PropertyID:     c.property.ID,
		PropertyName:   c.property.Name,
		Phase:          c.phase,
		Rooms:          c.property.Rooms(),
		BeforeLog:      c.before.list(),
		AfterLog:       c.after.list(),
		CurrentRoom:    c.currentRoom,
		Scores:         scores,
		SummaryVersion: len(c.summaries),
		ChatLength:     c.history.Len(),
		CreatedAt:      c.createdAt,
		UpdatedAt:      c.updatedAt,
	}
}
