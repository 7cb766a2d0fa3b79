package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"propertysanta/engine/internal/conversation"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/summary"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	ErrNoSummary   = errors.New("job has no summary yet")
)

// JobRecord is everything persisted when a job is closed.
type JobRecord struct {
	JobID      string
	PropertyID string
	Phase      Phase
	Photos     []PhotoRef
	Scores     map[string][]ScoreVersion
	Summaries  []summary.Report
	CreatedAt  time.Time
	ClosedAt   time.Time
}

// Archiver persists closed jobs. *archive.Store satisfies it.
type Archiver interface {
	ArchiveJob(ctx context.Context, rec JobRecord) error
}

type job struct {
	mu     sync.Mutex
	ctx    *Context
	closed bool
}

// Registry owns every live job. The registry lock only guards the job map;
// each job has its own lock, so slow model calls on one job never block
// another.
type Registry struct {
	mu           sync.Mutex
	jobs         map[string]*job
	machine      *Machine
	properties   property.Source
	archiver     Archiver
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger
}

type RegistryOption func(*Registry)

func WithArchiver(a Archiver) RegistryOption {
	return func(r *Registry) { r.archiver = a }
}

func WithHistoryLimit(limit int) RegistryOption {
	return func(r *Registry) {
		if limit > 0 {
			r.historyLimit = limit
		}
	}
}

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(machine *Machine, properties property.Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		jobs:         map[string]*job{},
		machine:      machine,
		properties:   properties,
		historyLimit: conversation.DefaultHistoryLimit,
		now:          machine.now,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start creates a job for propertyID. An empty jobID gets a generated one.
func (r *Registry) Start(ctx context.Context, jobID, propertyID string) (State, error) {
	p, err := r.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return State{}, err
	}
	p, err = property.Normalize(p)
	if err != nil {
		return State{}, err
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; ok {
		return State{}, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}
	c := NewContext(jobID, p, r.historyLimit, r.now())
	r.jobs[jobID] = &job{ctx: c}
	r.logger.Info("workflow.job_started", "job_id", jobID, "property_id", p.ID, "rooms", len(p.RoomTasks))
	return c.State(), nil
}

// acquire returns the job locked; callers must unlock it.
func (r *Registry) acquire(jobID string) (*job, error) {
	r.mu.Lock()
	j, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j, nil
}

func (r *Registry) Send(ctx context.Context, ev Event) (Response, error) {
	j, err := r.acquire(ev.JobID)
	if err != nil {
		return Response{}, err
	}
	defer j.mu.Unlock()
	return r.machine.Handle(ctx, j.ctx, ev), nil
}

func (r *Registry) Redo(jobID, room string) (Response, error) {
	j, err := r.acquire(jobID)
	if err != nil {
		return Response{}, err
	}
	defer j.mu.Unlock()
	return r.machine.Redo(j.ctx, room), nil
}

func (r *Registry) Reset(jobID string) (State, error) {
	j, err := r.acquire(jobID)
	if err != nil {
		return State{}, err
	}
	defer j.mu.Unlock()
	r.machine.Reset(j.ctx)
	return j.ctx.State(), nil
}

func (r *Registry) State(jobID string) (State, error) {
	j, err := r.acquire(jobID)
	if err != nil {
		return State{}, err
	}
	defer j.mu.Unlock()
	return j.ctx.State(), nil
}

func (r *Registry) ChatHistory(jobID string) ([]conversation.Entry, error) {
	j, err := r.acquire(jobID)
	if err != nil {
		return nil, err
	}
	defer j.mu.Unlock()
	return j.ctx.History(), nil
}

// Summary returns the latest summary of a completed job. A job reopened by a
// redo has no summary until it completes again.
func (r *Registry) Summary(jobID string) (summary.Report, error) {
	j, err := r.acquire(jobID)
	if err != nil {
		return summary.Report{}, err
	}
	defer j.mu.Unlock()
	report, ok := j.ctx.LatestSummary()
	if !ok || j.ctx.phase != PhaseCompleted {
		return summary.Report{}, fmt.Errorf("%w: %s", ErrNoSummary, jobID)
	}
	return report, nil
}

// Close archives the job, when an archiver is configured, and forgets it. A
// failed archive leaves the job open.
func (r *Registry) Close(ctx context.Context, jobID string) error {
	j, err := r.acquire(jobID)
	if err != nil {
		return err
	}
	defer j.mu.Unlock()

	if r.archiver != nil {
		rec := JobRecord{
			JobID:      jobID,
			PropertyID: j.ctx.property.ID,
			Phase:      j.ctx.phase,
			Photos:     j.ctx.Photos(),
			Scores:     j.ctx.State().Scores,
			Summaries:  j.ctx.Summaries(),
			CreatedAt:  j.ctx.createdAt,
			ClosedAt:   r.now(),
		}
		if err := r.archiver.ArchiveJob(ctx, rec); err != nil {
			r.logger.Warn("workflow.archive_failed", "job_id", jobID, "error", err.Error())
			return err
		}
	}
	j.closed = true
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
	r.logger.Info("workflow.job_closed", "job_id", jobID)
	return nil
}

// Jobs lists live job IDs in sorted order.
func (r *Registry) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
