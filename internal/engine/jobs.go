package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/imagecheck"
	"propertysanta/engine/internal/logging"
	"propertysanta/engine/internal/workflow"
)

type propertyInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Rooms   []string `json:"rooms"`
}

func requireJobID(jobID string) *errinfo.ErrorInfo {
	if strings.TrimSpace(jobID) == "" {
		return errinfo.ValidationFailed(errinfo.PhaseJob, "job_id is required")
	}
	return nil
}

func (e *Engine) PropertiesList(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	properties, err := e.properties.ListProperties(ctx)
	if err != nil {
		return nil, mapJobError("", err)
	}
	out := make([]propertyInfo, 0, len(properties))
	for _, p := range properties {
		info := propertyInfo{ID: p.ID, Name: p.Name, Address: p.Address, Rooms: []string{}}
		for _, rt := range p.RoomTasks {
			info.Rooms = append(info.Rooms, rt.RoomType)
		}
		out = append(out, info)
	}
	return map[string]any{"properties": out}, nil
}

func (e *Engine) JobStart(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID      string `json:"job_id"`
		PropertyID string `json:"property_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if strings.TrimSpace(req.PropertyID) == "" {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "property_id is required")
	}
	state, err := e.registry.Start(ctx, strings.TrimSpace(req.JobID), strings.TrimSpace(req.PropertyID))
	if err != nil {
		e.logger.Warn("job.start_failed", "job_id", req.JobID, "property_id", req.PropertyID, "error", err.Error())
		return nil, mapJobError(req.JobID, err)
	}
	e.logger.Info("job.started", "job_id", state.JobID, "property_id", state.PropertyID)
	return map[string]any{"job": state}, nil
}

func (e *Engine) JobSendEvent(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID       string `json:"job_id"`
		Message     string `json:"message"`
		ImageBase64 string `json:"image_base64"`
		RoomType    string `json:"room_type"`
		PhotoType   string `json:"photo_type"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	e.logger.Debug("job.send_event", "params", string(logging.RedactJSON(params)))
	ev := workflow.Event{
		JobID:             req.JobID,
		Message:           req.Message,
		ExplicitRoomType:  req.RoomType,
		ExplicitPhotoType: req.PhotoType,
	}
	if req.ImageBase64 != "" {
		data, err := imagecheck.DecodeBase64(req.ImageBase64)
		if err != nil {
			info := errinfo.ValidationFailed(errinfo.PhaseJob, err.Error())
			info.JobID = req.JobID
			info.Actions = []string{errinfo.ActionResubmit}
			return nil, info
		}
		ev.Image = data
	}
	if strings.TrimSpace(ev.Message) == "" && len(ev.Image) == 0 {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "message or image_base64 is required")
	}
	resp, err := e.registry.Send(ctx, ev)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	e.emitJobEvents(req.JobID, resp)
	return resp, nil
}

func (e *Engine) emitJobEvents(jobID string, resp workflow.Response) {
	if resp.PhaseChanged {
		e.emit(NotifyJobPhaseChanged, map[string]any{
			"job_id":         jobID,
			"phase":          resp.Phase,
			"previous_phase": resp.PreviousPhase,
			"current_room":   resp.CurrentRoom,
		})
	}
	if resp.Summary != nil {
		e.emit(NotifyJobCompleted, map[string]any{
			"job_id":  jobID,
			"summary": resp.Summary,
		})
	}
}

func (e *Engine) JobGetState(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	state, err := e.registry.State(req.JobID)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	return map[string]any{"job": state}, nil
}

func (e *Engine) JobGetChatHistory(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	history, err := e.registry.ChatHistory(req.JobID)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	return map[string]any{"messages": history}, nil
}

func (e *Engine) JobReset(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	before, err := e.registry.State(req.JobID)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	state, err := e.registry.Reset(req.JobID)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	if before.Phase != state.Phase {
		e.emit(NotifyJobPhaseChanged, map[string]any{
			"job_id":         req.JobID,
			"phase":          state.Phase,
			"previous_phase": before.Phase,
			"current_room":   state.CurrentRoom,
		})
	}
	return map[string]any{"job": state}, nil
}

func (e *Engine) JobRedoRoom(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID    string `json:"job_id"`
		RoomType string `json:"room_type"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	if strings.TrimSpace(req.RoomType) == "" {
		info := errinfo.ValidationFailed(errinfo.PhaseJob, "room_type is required")
		info.Subphase = errinfo.SubphaseRedo
		return nil, info
	}
	resp, err := e.registry.Redo(req.JobID, req.RoomType)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	e.emitJobEvents(req.JobID, resp)
	return resp, nil
}

// JobGetSummary returns the latest summary of a live job, falling back to
// the archive for closed ones.
func (e *Engine) JobGetSummary(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseSummary, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	report, err := e.registry.Summary(req.JobID)
	if err == nil {
		return map[string]any{"summary": report, "archived": false}, nil
	}
	if !errors.Is(err, workflow.ErrJobNotFound) || e.archive == nil {
		return nil, mapJobError(req.JobID, err)
	}
	archived, err := e.archive.LatestSummary(ctx, req.JobID)
	if err != nil {
		return nil, mapJobError(req.JobID, err)
	}
	return map[string]any{"summary": archived, "archived": true}, nil
}

func (e *Engine) JobClose(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	if err := e.registry.Close(ctx, req.JobID); err != nil {
		if errors.Is(err, workflow.ErrJobNotFound) {
			return nil, errinfo.JobNotFound(req.JobID)
		}
		info := errinfo.FileWriteFailed(errinfo.PhaseJob, err.Error())
		info.Subphase = errinfo.SubphaseArchive
		info.JobID = req.JobID
		info.Retryable = true
		info.Actions = []string{errinfo.ActionRetry}
		return nil, info
	}
	return map[string]any{"archived": e.archive != nil}, nil
}

func (e *Engine) IntentClassify(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		Message    string `json:"message"`
		PropertyID string `json:"property_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	classifier := e.classifier
	if req.PropertyID != "" {
		p, err := e.properties.GetProperty(ctx, req.PropertyID)
		if err != nil {
			return nil, mapJobError("", err)
		}
		rooms := make([]string, 0, len(p.RoomTasks))
		for _, rt := range p.RoomTasks {
			rooms = append(rooms, rt.RoomType)
		}
		classifier = classifier.WithRooms(rooms...)
	}
	return classifier.Classify(req.Message), nil
}

func (e *Engine) archiveUnavailable() *errinfo.ErrorInfo {
	info := errinfo.ValidationFailed(errinfo.PhaseJob, "archive is disabled")
	info.Subphase = errinfo.SubphaseArchive
	info.Actions = []string{errinfo.ActionOpenSettings}
	return info
}

func (e *Engine) ArchiveListJobs(ctx context.Context, _ json.RawMessage) (any, *errinfo.ErrorInfo) {
	if e.archive == nil {
		return nil, e.archiveUnavailable()
	}
	jobs, err := e.archive.Jobs(ctx)
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseJob, err.Error())
	}
	return map[string]any{"jobs": jobs}, nil
}

// ArchiveGetJob returns the issues and latest summary of a closed job, plus
// the score versions of room_type when one is given.
func (e *Engine) ArchiveGetJob(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		JobID    string `json:"job_id"`
		RoomType string `json:"room_type"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if errInfo := requireJobID(req.JobID); errInfo != nil {
		return nil, errInfo
	}
	if e.archive == nil {
		return nil, e.archiveUnavailable()
	}
	issues, err := e.archive.Issues(ctx, req.JobID)
	if err != nil {
		return nil, errinfo.FileReadFailed(errinfo.PhaseJob, err.Error())
	}
	result := map[string]any{"job_id": req.JobID, "issues": issues}
	if report, err := e.archive.LatestSummary(ctx, req.JobID); err == nil {
		result["summary"] = report
	}
	if room := strings.TrimSpace(req.RoomType); room != "" {
		scores, err := e.archive.Scores(ctx, req.JobID, strings.ToLower(room))
		if err != nil {
			return nil, errinfo.FileReadFailed(errinfo.PhaseJob, err.Error())
		}
		result["scores"] = scores
	}
	return result, nil
}

func (e *Engine) ArchiveGetPhoto(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
	var req struct {
		PhotoID string `json:"photo_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, errinfo.ValidationFailed(errinfo.PhaseJob, "invalid params")
	}
	if e.archive == nil {
		return nil, e.archiveUnavailable()
	}
	data, err := e.archive.PhotoData(ctx, req.PhotoID)
	if err != nil {
		return nil, mapJobError("", err)
	}
	return map[string]any{
		"photo_id":     req.PhotoID,
		"stored":       len(data) > 0,
		"image_base64": base64.StdEncoding.EncodeToString(data),
	}, nil
}
