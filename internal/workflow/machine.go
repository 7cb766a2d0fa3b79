package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"propertysanta/engine/internal/comparison"
	"propertysanta/engine/internal/conversation"
	"propertysanta/engine/internal/diff"
	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/scoring"
	"propertysanta/engine/internal/summary"
)

// Comparer is the photo analysis the machine depends on.
// *comparison.Engine satisfies it.
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request) (scoring.Result, error)
	AssessProgress(ctx context.Context, req comparison.ProgressRequest) (comparison.Progress, error)
	ValidatePhoto(data []byte) (llm.Image, error)
}

// Replier answers free-text chat. *conversation.Responder satisfies it.
type Replier interface {
	Reply(ctx context.Context, snap conversation.Snapshot, message string) string
}

// Event is one user turn: a message, optionally with a photo.
type Event struct {
	JobID             string `json:"job_id"`
	Message           string `json:"message,omitempty"`
	Image             []byte `json:"-"`
	ExplicitRoomType  string `json:"room_type,omitempty"`
	ExplicitPhotoType string `json:"photo_type,omitempty"`
}

// Response is the outcome of one event. Failures are reported in Failure and
// ReplyText; they never leave the job in a partial state.
type Response struct {
	ReplyText     string               `json:"reply_text"`
	Phase         Phase                `json:"phase"`
	PreviousPhase Phase                `json:"previous_phase"`
	PhaseChanged  bool                 `json:"phase_changed"`
	BeforeLog     []string             `json:"before_log"`
	AfterLog      []string             `json:"after_log"`
	CurrentRoom   string               `json:"current_room,omitempty"`
	Intent        *intent.Result       `json:"intent,omitempty"`
	RoomType      string               `json:"room_type,omitempty"`
	PhotoType     intent.PhotoType     `json:"photo_type,omitempty"`
	Photo         *PhotoRef            `json:"photo,omitempty"`
	Score         *ScoreVersion        `json:"score,omitempty"`
	Issues        []Issue              `json:"issues,omitempty"`
	Progress      *comparison.Progress `json:"progress,omitempty"`
	Summary       *summary.Report      `json:"summary,omitempty"`
	Failure       *failure.Detail      `json:"failure,omitempty"`
	IsJobComplete bool                 `json:"is_job_complete"`
}

type Machine struct {
	classifier *intent.Classifier
	comparer   Comparer
	replier    Replier
	now        func() time.Time
	logger     *slog.Logger
}

type MachineOption func(*Machine)

func WithClassifier(c *intent.Classifier) MachineOption {
	return func(m *Machine) {
		if c != nil {
			m.classifier = c
		}
	}
}

func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMachine(comparer Comparer, replier Replier, opts ...MachineOption) *Machine {
	m := &Machine{
		classifier: intent.NewClassifier(),
		comparer:   comparer,
		replier:    replier,
		now:        time.Now,
		logger:     logging.Nop(),
	}
	if m.replier == nil {
		m.replier = conversation.NewResponder(nil, 0, m.logger)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle processes one event against c. The first event of a job explains
// the manual before anything else.
func (m *Machine) Handle(ctx context.Context, c *Context, ev Event) Response {
	now := m.now()
	prev := c.phase
	intro := ""
	if c.phase == PhaseInitial {
		if err := c.transition(PhaseManualExplained); err == nil {
			intro = property.Overview(c.property)
			m.logger.Info("workflow.manual_explained", "job_id", c.jobID, "property_id", c.property.ID)
		}
	}

	userText := ev.Message
	if len(ev.Image) > 0 {
		userText = "[photo] " + ev.Message
	}
	c.history.Add(userText, conversation.SenderUser, now)

	var resp Response
	if len(ev.Image) > 0 {
		resp = m.handlePhoto(ctx, c, ev, now)
	} else {
		resp = m.handleText(ctx, c, ev, intro != "")
	}
	if intro != "" {
		resp.ReplyText = intro + "\n\n" + resp.ReplyText
	}
	c.history.Add(resp.ReplyText, conversation.SenderAssistant, now)
	c.updatedAt = now
	m.finish(c, &resp, prev)
	return resp
}

func (m *Machine) handleText(ctx context.Context, c *Context, ev Event, first bool) Response {
	if first {
		return Response{ReplyText: requestBefore(c.property, c.currentRoom)}
	}
	return Response{ReplyText: m.replier.Reply(ctx, c.snapshot(), ev.Message)}
}

func (m *Machine) handlePhoto(ctx context.Context, c *Context, ev Event, now time.Time) Response {
	res := m.classifier.WithRooms(c.property.Rooms()...).Classify(ev.Message)
	room, photo := intent.Resolve(res, ev.ExplicitRoomType, ev.ExplicitPhotoType)
	resp := Response{Intent: &res, RoomType: room, PhotoType: photo}

	if room == intent.RoomUnknown || room == "" || photo == intent.PhotoUnknown {
		m.logger.Info("workflow.clarification_needed", "job_id", c.jobID, "room_type", room, "photo_type", string(photo))
		resp.ReplyText = clarificationReply(room, photo, c.property.Rooms())
		return resp
	}
	if !c.property.HasRoom(room) {
		return m.fail(c, resp, failure.New(failure.KindUnknownRoom, "room %q is not in property %s", room, c.property.ID))
	}
	rt, _ := c.property.Room(room)
	room = rt.RoomType
	resp.RoomType = room

	switch photo {
	case intent.PhotoDuring:
		return m.handleProgress(ctx, c, ev, resp)
	case intent.PhotoBefore:
		if c.before.has(room) {
			return m.fail(c, resp, failure.New(failure.KindDuplicateSubmission, "before photo for %s already accepted", room))
		}
	case intent.PhotoAfter:
		if c.after.has(room) {
			return m.fail(c, resp, failure.New(failure.KindDuplicateSubmission, "after photo for %s already accepted", room))
		}
		if !c.before.has(room) {
			return m.fail(c, resp, failure.New(failure.KindMissingPrerequisite, "no before photo for %s", room))
		}
	}
	if c.phase == PhaseCompleted {
		return m.fail(c, resp, failure.New(failure.KindJobCompleted, "job %s is complete", c.jobID))
	}
	if photo == intent.PhotoBefore {
		return m.acceptBefore(c, ev, resp, now)
	}
	return m.acceptAfter(ctx, c, ev, resp, now)
}

func (m *Machine) acceptBefore(c *Context, ev Event, resp Response, now time.Time) Response {
	room := resp.RoomType
	next := PhaseBeforeRequested
	if c.coversAllWith(&c.before, room) {
		next = PhaseAfterRequested
	}
	if !isAllowedTransition(c.phase, next) {
		return m.fail(c, resp, failure.New(failure.KindInvalidTransition, "%s -> %s", c.phase, next))
	}
	img, err := m.comparer.ValidatePhoto(ev.Image)
	if err != nil {
		return m.fail(c, resp, asFailure(failure.KindInvalidImage, err))
	}

	ref := newPhotoRef(room, intent.PhotoBefore, img, now)
	c.photos[photoKey{room, intent.PhotoBefore}] = ref
	c.before.add(room)
	_ = c.transition(next)
	c.currentRoom = c.nextRoom()
	m.logger.Info("workflow.before_accepted", "job_id", c.jobID, "room_type", room, "photo_id", ref.ID, "phase", string(c.phase))

	resp.Photo = &ref
	resp.ReplyText = beforeAcceptedReply(c, room)
	return resp
}

func (m *Machine) acceptAfter(ctx context.Context, c *Context, ev Event, resp Response, now time.Time) Response {
	room := resp.RoomType
	if c.phase != PhaseAfterRequested {
		return m.fail(c, resp, failure.New(failure.KindInvalidTransition, "after photo for %s while %s", room, c.phase))
	}
	img, err := m.comparer.ValidatePhoto(ev.Image)
	if err != nil {
		return m.fail(c, resp, asFailure(failure.KindInvalidImage, err))
	}
	before, ok := c.photos[photoKey{room, intent.PhotoBefore}]
	if !ok {
		return m.fail(c, resp, failure.New(failure.KindMissingPrerequisite, "before photo for %s is not held", room))
	}

	manual, _ := property.ResolveManual(c.property, room)
	result, err := m.comparer.Compare(ctx, comparison.Request{
		RoomType:   room,
		ManualText: manual.Text(),
		Before:     before.Data,
		After:      ev.Image,
	})
	if err != nil {
		return m.fail(c, resp, asFailure(failure.KindExternalService, err))
	}

	next := PhaseAfterRequested
	if c.coversAllWith(&c.after, room) {
		next = PhaseCompleted
	}
	version := ScoreVersion{
		Version:  len(c.scores[room]) + 1,
		Result:   result,
		Report:   roomReport(room, result),
		Issues:   deriveIssues(room, result),
		ScoredAt: now,
	}
	if prev, ok := c.latestScore(room); ok {
		delta := diff.Lines(prev.Report, version.Report)
		version.Delta = &delta
	}

	ref := newPhotoRef(room, intent.PhotoAfter, img, now)
	c.photos[photoKey{room, intent.PhotoAfter}] = ref
	c.after.add(room)
	c.scores[room] = append(c.scores[room], version)
	_ = c.transition(next)
	c.currentRoom = c.nextRoom()
	m.logger.Info("workflow.after_scored", "job_id", c.jobID, "room_type", room, "version", version.Version, "final_score", result.FinalScore, "grade", result.Grade)

	var report *summary.Report
	if c.phase == PhaseCompleted {
		r := m.summarize(c, now)
		c.summaries = append(c.summaries, r)
		report = &r
		m.logger.Info("workflow.completed", "job_id", c.jobID, "summary_version", r.Version)
	}

	resp.Photo = &ref
	resp.Score = &version
	resp.Issues = version.Issues
	resp.Summary = report
	resp.ReplyText = afterAcceptedReply(c, room, version, report)
	return resp
}

// handleProgress grades a mid-clean photo. Nothing is recorded.
func (m *Machine) handleProgress(ctx context.Context, c *Context, ev Event, resp Response) Response {
	room := resp.RoomType
	manual, _ := property.ResolveManual(c.property, room)
	progress, err := m.comparer.AssessProgress(ctx, comparison.ProgressRequest{
		RoomType:   room,
		ManualText: manual.Text(),
		Photo:      ev.Image,
	})
	if err != nil {
		return m.fail(c, resp, asFailure(failure.KindExternalService, err))
	}
	resp.Progress = &progress
	resp.ReplyText = progressReply(room, progress)
	return resp
}

// Redo discards the after photo of room so it can be rescored. Earlier score
// versions are kept and the next score for the room becomes a new version.
func (m *Machine) Redo(c *Context, room string) Response {
	now := m.now()
	prev := c.phase
	resp := Response{RoomType: property.NormalizeRoom(room), PhotoType: intent.PhotoAfter}
	rt, ok := c.property.Room(room)
	switch {
	case !ok:
		resp = m.fail(c, resp, failure.New(failure.KindUnknownRoom, "room %q is not in property %s", room, c.property.ID))
	case !c.after.has(rt.RoomType):
		resp.RoomType = rt.RoomType
		resp = m.fail(c, resp, failure.New(failure.KindMissingPrerequisite, "no after photo for %s to redo", rt.RoomType))
	case !isAllowedTransition(c.phase, PhaseAfterRequested):
		resp = m.fail(c, resp, failure.New(failure.KindInvalidTransition, "%s -> %s", c.phase, PhaseAfterRequested))
	default:
		resp.RoomType = rt.RoomType
		c.after.remove(rt.RoomType)
		delete(c.photos, photoKey{rt.RoomType, intent.PhotoAfter})
		_ = c.transition(PhaseAfterRequested)
		c.currentRoom = rt.RoomType
		resp.ReplyText = redoReply(rt.RoomType, len(c.scores[rt.RoomType]))
		m.logger.Info("workflow.redo", "job_id", c.jobID, "room_type", rt.RoomType, "versions", len(c.scores[rt.RoomType]))
	}
	c.history.Add(resp.ReplyText, conversation.SenderAssistant, now)
	c.updatedAt = now
	m.finish(c, &resp, prev)
	return resp
}

// Reset returns the job to its initial phase, dropping photos, scores,
// summaries and chat history.
func (m *Machine) Reset(c *Context) {
	c.clear(m.now())
	m.logger.Info("workflow.reset", "job_id", c.jobID)
}

func (m *Machine) fail(c *Context, resp Response, fe *failure.Error) Response {
	level := slog.LevelInfo
	if fe.Kind == failure.KindExternalService || fe.Kind == failure.KindParse {
		level = slog.LevelWarn
	}
	m.logger.Log(context.Background(), level, "workflow.event_failed",
		"job_id", c.jobID, "kind", string(fe.Kind), "service", string(fe.Service), "room_type", resp.RoomType, "error", fe.Error())
	resp.Failure = fe.Detail()
	resp.ReplyText = failureReply(c, fe, resp.RoomType, resp.PhotoType)
	return resp
}

func (m *Machine) finish(c *Context, resp *Response, prev Phase) {
	resp.Phase = c.phase
	resp.PreviousPhase = prev
	resp.PhaseChanged = prev != c.phase
	resp.BeforeLog = c.before.list()
	resp.AfterLog = c.after.list()
	resp.CurrentRoom = c.currentRoom
	resp.IsJobComplete = c.phase == PhaseCompleted
}

func (m *Machine) summarize(c *Context, now time.Time) summary.Report {
	in := summary.Input{
		PropertyID:     c.property.ID,
		PropertyName:   c.property.Name,
		RoomsProcessed: c.after.len(),
		Version:        len(c.summaries) + 1,
		GeneratedAt:    now,
	}
	for _, room := range c.property.Rooms() {
		latest, ok := c.latestScore(room)
		if !ok {
			continue
		}
		in.Rooms = append(in.Rooms, summary.Room{
			RoomType:              room,
			OverallScore:          latest.Result.OverallScore,
			ManualComplianceScore: latest.Result.ManualComplianceScore,
			FinalScore:            latest.Result.FinalScore,
			Grade:                 latest.Result.Grade,
			Version:               latest.Version,
		})
	}
	return summary.Generate(in)
}

func deriveIssues(room string, res scoring.Result) []Issue {
	issues := []Issue{}
	for _, item := range res.MissedRequirements {
		issues = append(issues, Issue{Type: IssueMissedRequirement, Description: item, Location: room})
	}
	for _, area := range res.ReworkAreas {
		issues = append(issues, Issue{Type: IssueNeedsAttention, Description: area, Location: room})
	}
	return issues
}

func newPhotoRef(room string, photo intent.PhotoType, img llm.Image, now time.Time) PhotoRef {
	sum := sha256.Sum256(img.Data)
	return PhotoRef{
		ID:         uuid.NewString(),
		RoomType:   room,
		PhotoType:  photo,
		MIMEType:   img.MIMEType,
		Size:       len(img.Data),
		SHA256:     hex.EncodeToString(sum[:]),
		AcceptedAt: now,
		Data:       img.Data,
	}
}

// asFailure keeps a classified failure as is and classifies anything else
// under kind.
func asFailure(kind failure.Kind, err error) *failure.Error {
	if fe, ok := failure.As(err); ok {
		return fe
	}
	if kind == failure.KindExternalService {
		return failure.External(err)
	}
	return failure.Wrap(kind, err, "%s", kind)
}
