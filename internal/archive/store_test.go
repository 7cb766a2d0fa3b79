package archive

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"propertysanta/engine/internal/intent"
	"propertysanta/engine/internal/scoring"
	"propertysanta/engine/internal/summary"
	"propertysanta/engine/internal/workflow"
)

func sampleRecord() workflow.JobRecord {
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	result := scoring.Score(scoring.RawComparison{OverallScore: 70, ManualComplianceScore: 60, MissedRequirements: []string{"Clean sink"}}, "Clean sink")
	return workflow.JobRecord{
		JobID:      "job-1",
		PropertyID: "villa",
		Phase:      workflow.PhaseCompleted,
		Photos: []workflow.PhotoRef{
			{ID: "p1", RoomType: "kitchen", PhotoType: intent.PhotoBefore, MIMEType: "image/png", Size: 3, SHA256: "abc", AcceptedAt: at, Data: []byte{1, 2, 3}},
			{ID: "p2", RoomType: "kitchen", PhotoType: intent.PhotoAfter, MIMEType: "image/png", Size: 3, SHA256: "def", AcceptedAt: at, Data: []byte{4, 5, 6}},
		},
		Scores: map[string][]workflow.ScoreVersion{
			"kitchen": {{
				Version:  1,
				Result:   result,
				Report:   "KITCHEN: 45/100 (F)\n",
				Issues:   []workflow.Issue{{Type: workflow.IssueMissedRequirement, Description: "Clean sink", Location: "kitchen"}},
				ScoredAt: at,
			}},
		},
		Summaries: []summary.Report{summary.Generate(summary.Input{PropertyID: "villa", RoomsProcessed: 1, Version: 1, GeneratedAt: at,
			Rooms: []summary.Room{{RoomType: "kitchen", FinalScore: result.FinalScore, Grade: result.Grade, Version: 1}}})},
		CreatedAt: at,
		ClosedAt:  at.Add(time.Hour),
	}
}

func TestArchiveJobRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	rec := sampleRecord()
	if err := store.ArchiveJob(ctx, rec); err != nil {
		t.Fatalf("archive: %v", err)
	}
	// Archiving the same job again replaces it.
	if err := store.ArchiveJob(ctx, rec); err != nil {
		t.Fatalf("re-archive: %v", err)
	}

	jobs, err := store.Jobs(ctx)
	if err != nil || len(jobs) != 1 || jobs[0].Phase != workflow.PhaseCompleted {
		t.Fatalf("jobs: %v %+v", err, jobs)
	}
	scores, err := store.Scores(ctx, "job-1", "kitchen")
	if err != nil || len(scores) != 1 {
		t.Fatalf("scores: %v %+v", err, scores)
	}
	if scores[0].Result.FinalScore != rec.Scores["kitchen"][0].Result.FinalScore {
		t.Fatalf("final score mismatch: %+v", scores[0].Result)
	}
	issues, err := store.Issues(ctx, "job-1")
	if err != nil || len(issues) != 1 || issues[0].Type != workflow.IssueMissedRequirement {
		t.Fatalf("issues: %v %+v", err, issues)
	}
	report, err := store.LatestSummary(ctx, "job-1")
	if err != nil || report.Version != 1 || !strings.Contains(report.Text, "KITCHEN") {
		t.Fatalf("summary: %v %+v", err, report)
	}
	data, err := store.PhotoData(ctx, "p2")
	if err != nil || len(data) != 3 || data[0] != 4 {
		t.Fatalf("photo data: %v %v", err, data)
	}
	if _, err := store.LatestSummary(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArchiveWithoutPhotoData(t *testing.T) {
	ctx := context.Background()
	store, err := Open(t.TempDir(), WithPhotoData(false))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.ArchiveJob(ctx, sampleRecord()); err != nil {
		t.Fatalf("archive: %v", err)
	}
	data, err := store.PhotoData(ctx, "p1")
	if err != nil || data != nil {
		t.Fatalf("expected no photo bytes, got %v %v", err, data)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	path := store.Path()
	store.Close()

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	if _, err := conn.Exec(`UPDATE schema_meta SET value = '99' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	conn.Close()

	if _, err := Open(dir); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("expected newer schema error, got %v", err)
	}
}
