package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// ErrNotFound is returned when a mission id is not in the archive.
var ErrNotFound = errors.New("mission not archived")

// Store persists terminal missions and their inspected points in SQLite.
// The controller writes each mission exactly once, when it finishes.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS missions (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	status               TEXT NOT NULL,
	fail_reason          TEXT NOT NULL DEFAULT '',
	base_x               REAL NOT NULL,
	base_y               REAL NOT NULL,
	base_z               REAL NOT NULL,
	created_at           INTEGER NOT NULL,
	exploration_started  INTEGER NOT NULL,
	exploration_finished INTEGER NOT NULL,
	inspection_started   INTEGER NOT NULL,
	inspection_finished  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	mission_id  TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	z           REAL NOT NULL,
	detected_at  INTEGER NOT NULL,
	inspected_at INTEGER NOT NULL,
	reading      REAL NOT NULL,
	PRIMARY KEY (mission_id, id)
);
`

// Open opens (creating if needed) the archive at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// SQLite allows one writer; keep the pool at a single connection so
	// concurrent finalizations serialize instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordMission writes one mission and its points. Re-recording an id
// replaces the previous rows.
func (s *Store) RecordMission(ctx context.Context, m model.Mission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO missions
			(id, name, status, fail_reason, base_x, base_y, base_z,
			 created_at, exploration_started, exploration_finished,
			 inspection_started, inspection_finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Spec.Name, m.Status.String(), m.FailReason,
		m.Spec.Base.X, m.Spec.Base.Y, m.Spec.Base.Z,
		toUnix(m.CreatedAt), toUnix(m.ExplorationStarted), toUnix(m.ExplorationFinished),
		toUnix(m.InspectionStarted), toUnix(m.InspectionFinished))
	if err != nil {
		return fmt.Errorf("archive mission %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE mission_id = ?`, m.ID); err != nil {
		return fmt.Errorf("archive points reset %s: %w", m.ID, err)
	}
	for _, p := range m.Points {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO points (mission_id, id, x, y, z, detected_at, inspected_at, reading)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, p.ID, p.Position.X, p.Position.Y, p.Position.Z,
			toUnix(p.DetectedAt), toUnix(p.InspectedAt), p.Reading)
		if err != nil {
			return fmt.Errorf("archive point %s/%s: %w", m.ID, p.ID, err)
		}
	}
	return tx.Commit()
}

// MissionRecord is an archived mission row with its durations derived
// from the stored timestamps.
type MissionRecord struct {
	ID         string
	Name       string
	Status     string
	FailReason string
	Base       model.Position
	CreatedAt  time.Time

	ExplorationDuration time.Duration
	InspectionDuration  time.Duration

	Points []model.PointOfInterest
}

// Mission loads one archived mission with its points.
func (s *Store) Mission(ctx context.Context, id string) (MissionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, fail_reason, base_x, base_y, base_z,
		       created_at, exploration_started, exploration_finished,
		       inspection_started, inspection_finished
		FROM missions WHERE id = ?`, id)

	var rec MissionRecord
	var created, expStart, expEnd, insStart, insEnd int64
	err := row.Scan(&rec.ID, &rec.Name, &rec.Status, &rec.FailReason,
		&rec.Base.X, &rec.Base.Y, &rec.Base.Z,
		&created, &expStart, &expEnd, &insStart, &insEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return MissionRecord{}, ErrNotFound
	}
	if err != nil {
		return MissionRecord{}, fmt.Errorf("load mission %s: %w", id, err)
	}
	rec.CreatedAt = fromUnix(created)
	rec.ExplorationDuration = spanBetween(expStart, expEnd)
	rec.InspectionDuration = spanBetween(insStart, insEnd)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, x, y, z, detected_at, inspected_at, reading
		FROM points WHERE mission_id = ? ORDER BY detected_at, id`, id)
	if err != nil {
		return MissionRecord{}, fmt.Errorf("load points %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.PointOfInterest
		var detected, inspected int64
		if err := rows.Scan(&p.ID, &p.Position.X, &p.Position.Y, &p.Position.Z,
			&detected, &inspected, &p.Reading); err != nil {
			return MissionRecord{}, fmt.Errorf("scan point: %w", err)
		}
		p.DetectedAt = fromUnix(detected)
		p.InspectedAt = fromUnix(inspected)
		rec.Points = append(rec.Points, p)
	}
	if err := rows.Err(); err != nil {
		return MissionRecord{}, fmt.Errorf("iterate points: %w", err)
	}
	return rec, nil
}

// MissionIDs lists archived mission ids, newest first.
func (s *Store) MissionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM missions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mission id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func spanBetween(start, end int64) time.Duration {
	if start == 0 || end == 0 || end < start {
		return 0
	}
	return time.Duration(end - start)
}
