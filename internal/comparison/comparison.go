// Package comparison grades a before/after photo pair through an external
// vision model.
package comparison

import (
	"context"
	"log/slog"
	"time"

	"propertysanta/engine/internal/failure"
	"propertysanta/engine/internal/imagecheck"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/scoring"
)

const DefaultTimeout = 90 * time.Second

type Request struct {
	RoomType   string
	ManualText string
	Before     []byte
	After      []byte
}

type ProgressRequest struct {
	RoomType   string
	ManualText string
	Photo      []byte
}

// Progress is the single-photo assessment of a room mid-clean.
type Progress struct {
	ManualCompliance   int      `json:"manual_compliance"`
	CleanlinessScore   int      `json:"cleanliness_score"`
	RequirementsMet    []string `json:"requirements_met"`
	RequirementsMissed []string `json:"requirements_missed"`
	NextSteps          []string `json:"next_steps"`
	AcceptableProgress bool     `json:"acceptable_progress"`
}

type Engine struct {
	model     llm.Generator
	validator *imagecheck.Validator
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Engine)

func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithValidator(v *imagecheck.Validator) Option {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(model llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		model:     model,
		validator: imagecheck.NewValidator(0, 0),
		timeout:   DefaultTimeout,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compare validates both photos, asks the model for a structured comparison
// and scores it. Every failure is a *failure.Error; no score is produced
// unless the reply parsed cleanly.
func (e *Engine) Compare(ctx context.Context, req Request) (scoring.Result, error) {
	before, err := e.validator.Validate(req.Before)
	if err != nil {
		return scoring.Result{}, err
	}
	after, err := e.validator.Validate(req.After)
	if err != nil {
		return scoring.Result{}, err
	}

	text, err := e.generate(ctx, llm.PurposeComparison, comparisonMessages(req.RoomType, req.ManualText, before, after))
	if err != nil {
		fe := failure.External(err)
		e.logger.Warn("comparison.model_failed", "room_type", req.RoomType, "service", string(fe.Service), "error", err.Error())
		return scoring.Result{}, fe
	}

	raw, err := parseComparison(text)
	if err != nil {
		kind := failure.KindOf(err)
		if kind == failure.KindComparisonMismatch {
			e.logger.Info("comparison.mismatch", "room_type", req.RoomType, "reply", logging.Truncate(text, 500))
		} else {
			e.logger.Warn("comparison.parse_failed", "room_type", req.RoomType, "error", err.Error(), "reply", logging.Truncate(text, 500))
		}
		return scoring.Result{}, err
	}

	result := scoring.Score(raw, req.ManualText)
	e.logger.Debug("comparison.scored", "room_type", req.RoomType, "final_score", result.FinalScore, "grade", result.Grade)
	return result, nil
}

// AssessProgress grades a single in-progress photo. It is advisory only.
func (e *Engine) AssessProgress(ctx context.Context, req ProgressRequest) (Progress, error) {
	photo, err := e.validator.Validate(req.Photo)
	if err != nil {
		return Progress{}, err
	}
	text, err := e.generate(ctx, llm.PurposeProgress, progressMessages(req.RoomType, req.ManualText, photo))
	if err != nil {
		fe := failure.External(err)
		e.logger.Warn("comparison.progress_model_failed", "room_type", req.RoomType, "service", string(fe.Service), "error", err.Error())
		return Progress{}, fe
	}
	progress, err := parseProgress(text)
	if err != nil {
		e.logger.Warn("comparison.progress_parse_failed", "room_type", req.RoomType, "error", err.Error())
		return Progress{}, err
	}
	return progress, nil
}

// ValidatePhoto runs the image checks without calling the model.
func (e *Engine) ValidatePhoto(data []byte) (llm.Image, error) {
	return e.validator.Validate(data)
}

func (e *Engine) generate(ctx context.Context, purpose string, messages []llm.Message) (string, error) {
	if e.model == nil {
		return "", llm.ErrNotConfigured
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	callCtx = llm.WithProfile(callCtx, llm.Profile{Purpose: purpose, Temperature: 0, JSONOutput: true})
	text, err := e.model.Generate(callCtx, messages)
	if err != nil {
		return "", err
	}
	return text, nil
}
