// Package archive persists closed jobs to a local SQLite database: accepted
// photos, every score version, derived issues and summaries.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"propertysanta/engine/internal/workflow"
)

const (
	currentSchemaVersion = 2
	fileName             = "archive.db"
)

var ErrNotFound = errors.New("archive record not found")

type Store struct {
	conn       *sql.DB
	path       string
	keepPhotos bool
}

type Option func(*Store)

// WithPhotoData stores photo bytes alongside their metadata.
func WithPhotoData(keep bool) Option {
	return func(s *Store) { s.keepPhotos = keep }
}

func Open(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dataDir, fileName)
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &Store{conn: conn, path: path, keepPhotos: true}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) initSchema() error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	version, err := readSchemaVersion(tx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("archive schema version %d is newer than runtime version %d", version, currentSchemaVersion)
	}
	for version < currentSchemaVersion {
		if err := applyMigration(tx, version+1); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
		version++
		if _, err := tx.Exec(`INSERT INTO schema_meta(key, value) VALUES('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(version)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func readSchemaVersion(tx *sql.Tx) (int, error) {
	var text string
	err := tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", text, err)
	}
	return version, nil
}

func applyMigration(tx *sql.Tx, version int) error {
	var stmts []string
	switch version {
	case 1:
		stmts = []string{
			`CREATE TABLE jobs (
				job_id TEXT PRIMARY KEY,
				property_id TEXT NOT NULL,
				phase TEXT NOT NULL,
				created_at TEXT NOT NULL,
				closed_at TEXT NOT NULL
			)`,
			`CREATE TABLE photos (
				photo_id TEXT PRIMARY KEY,
				job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
				room_type TEXT NOT NULL,
				photo_type TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				sha256 TEXT NOT NULL,
				accepted_at TEXT NOT NULL,
				data BLOB
			)`,
			`CREATE TABLE scores (
				job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
				room_type TEXT NOT NULL,
				version INTEGER NOT NULL,
				final_score INTEGER NOT NULL,
				grade TEXT NOT NULL,
				result_json TEXT NOT NULL,
				report TEXT NOT NULL,
				scored_at TEXT NOT NULL,
				PRIMARY KEY (job_id, room_type, version)
			)`,
		}
	case 2:
		stmts = []string{
			`CREATE TABLE issues (
				job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
				room_type TEXT NOT NULL,
				version INTEGER NOT NULL,
				issue_type TEXT NOT NULL,
				description TEXT NOT NULL
			)`,
			`CREATE TABLE summaries (
				job_id TEXT NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				report_json TEXT NOT NULL,
				generated_at TEXT NOT NULL,
				PRIMARY KEY (job_id, version)
			)`,
			`CREATE INDEX idx_photos_job ON photos(job_id)`,
			`CREATE INDEX idx_issues_job ON issues(job_id)`,
		}
	default:
		return fmt.Errorf("unknown migration %d", version)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// ArchiveJob writes rec in a single transaction, replacing any earlier
// archive of the same job.
func (s *Store) ArchiveJob(ctx context.Context, rec workflow.JobRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, rec.JobID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO jobs(job_id, property_id, phase, created_at, closed_at) VALUES(?, ?, ?, ?, ?)`,
		rec.JobID, rec.PropertyID, string(rec.Phase), formatTime(rec.CreatedAt), formatTime(rec.ClosedAt)); err != nil {
		return err
	}
	for _, p := range rec.Photos {
		var data []byte
		if s.keepPhotos {
			data = p.Data
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO photos(photo_id, job_id, room_type, photo_type, mime_type, size, sha256, accepted_at, data)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, rec.JobID, p.RoomType, string(p.PhotoType), p.MIMEType, p.Size, p.SHA256, formatTime(p.AcceptedAt), data); err != nil {
			return fmt.Errorf("insert photo %s: %w", p.ID, err)
		}
	}
	for room, versions := range rec.Scores {
		for _, v := range versions {
			raw, err := json.Marshal(v.Result)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO scores(job_id, room_type, version, final_score, grade, result_json, report, scored_at)
				VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.JobID, room, v.Version, v.Result.FinalScore, v.Result.Grade, string(raw), v.Report, formatTime(v.ScoredAt)); err != nil {
				return fmt.Errorf("insert score %s v%d: %w", room, v.Version, err)
			}
			for _, issue := range v.Issues {
				if _, err := tx.ExecContext(ctx, `INSERT INTO issues(job_id, room_type, version, issue_type, description) VALUES(?, ?, ?, ?, ?)`,
					rec.JobID, issue.Location, v.Version, issue.Type, issue.Description); err != nil {
					return err
				}
			}
		}
	}
	for _, report := range rec.Summaries {
		raw, err := json.Marshal(report)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO summaries(job_id, version, report_json, generated_at) VALUES(?, ?, ?, ?)`,
			rec.JobID, report.Version, string(raw), formatTime(report.GeneratedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
