package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"propertysanta/engine/internal/scoring"
	"propertysanta/engine/internal/summary"
	"propertysanta/engine/internal/workflow"
)

type JobInfo struct {
	JobID      string         `json:"job_id"`
	PropertyID string         `json:"property_id"`
	Phase      workflow.Phase `json:"phase"`
	CreatedAt  time.Time      `json:"created_at"`
	ClosedAt   time.Time      `json:"closed_at"`
}

type StoredScore struct {
	RoomType string         `json:"room_type"`
	Version  int            `json:"version"`
	Result   scoring.Result `json:"result"`
	Report   string         `json:"report"`
	ScoredAt time.Time      `json:"scored_at"`
}

// Jobs lists archived jobs, newest first.
func (s *Store) Jobs(ctx context.Context) ([]JobInfo, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT job_id, property_id, phase, created_at, closed_at FROM jobs ORDER BY closed_at DESC, job_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []JobInfo{}
	for rows.Next() {
		var info JobInfo
		var phase, created, closed string
		if err := rows.Scan(&info.JobID, &info.PropertyID, &phase, &created, &closed); err != nil {
			return nil, err
		}
		info.Phase = workflow.Phase(phase)
		info.CreatedAt = parseTime(created)
		info.ClosedAt = parseTime(closed)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Scores returns every archived score version for a room, oldest first.
func (s *Store) Scores(ctx context.Context, jobID, room string) ([]StoredScore, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT version, result_json, report, scored_at FROM scores
		WHERE job_id = ? AND room_type = ? ORDER BY version`, jobID, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StoredScore{}
	for rows.Next() {
		sc := StoredScore{RoomType: room}
		var raw, scored string
		if err := rows.Scan(&sc.Version, &raw, &sc.Report, &scored); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &sc.Result); err != nil {
			return nil, fmt.Errorf("decode score %s v%d: %w", room, sc.Version, err)
		}
		sc.ScoredAt = parseTime(scored)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) Issues(ctx context.Context, jobID string) ([]workflow.Issue, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT issue_type, description, room_type FROM issues WHERE job_id = ? ORDER BY rowid`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []workflow.Issue{}
	for rows.Next() {
		var issue workflow.Issue
		if err := rows.Scan(&issue.Type, &issue.Description, &issue.Location); err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func (s *Store) LatestSummary(ctx context.Context, jobID string) (summary.Report, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT report_json FROM summaries WHERE job_id = ? ORDER BY version DESC LIMIT 1`, jobID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return summary.Report{}, fmt.Errorf("%w: summary for %s", ErrNotFound, jobID)
	}
	if err != nil {
		return summary.Report{}, err
	}
	var report summary.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return summary.Report{}, err
	}
	return report, nil
}

// PhotoData returns the stored bytes of a photo; nil when photo data is not
// kept.
func (s *Store) PhotoData(ctx context.Context, photoID string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM photos WHERE photo_id = ?`, photoID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: photo %s", ErrNotFound, photoID)
	}
	return data, err
}
