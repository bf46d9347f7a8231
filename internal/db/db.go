// Package db persists quality reports in a SQLite database so the history of
// a session survives restarts and can be queried after the run.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/rpc-quality-client/internal/client"
	"github.com/sweeney/rpc-quality-client/internal/quality"
)

// ErrNoReports is returned when a session has no stored report.
var ErrNoReports = errors.New("db: no reports for session")

type DB struct {
	*sql.DB
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas below are per connection.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RecordSession stores a session and the parameter set it runs with.
// Recording the same session twice is a no-op.
func (db *DB) RecordSession(id string, started time.Time, cfg client.Config) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = db.Exec(
		`INSERT OR IGNORE INTO sessions (session_id, started_at, config_json) VALUES (?, ?, ?)`,
		id, started.UTC().Format(time.RFC3339Nano), string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordReport stores a report with its overview, per-unit counts and bad
// chambers in a single transaction. It returns the new report ID.
func (db *DB) RecordReport(rep *client.Report) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO reports (session_id, checkpoint, final, events, elapsed_ms, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rep.SessionID, rep.Checkpoint, rep.Final, rep.Events, rep.Elapsed.Milliseconds(),
		rep.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report id: %w", err)
	}

	for _, r := range rep.Regions {
		for _, s := range quality.States {
			if _, err := tx.Exec(
				`INSERT INTO overview (report_id, region, state, fraction, count) VALUES (?, ?, ?, ?, ?)`,
				id, r.Region.String(), s.String(), r.Fractions[s-1], r.Counts.Of(s),
			); err != nil {
				return 0, fmt.Errorf("insert overview: %w", err)
			}
		}
	}

	for _, u := range rep.Units {
		for _, s := range quality.States {
			n := u.Counts.Of(s)
			if n == 0 {
				continue
			}
			if _, err := tx.Exec(
				`INSERT INTO unit_counts (report_id, unit, state, count) VALUES (?, ?, ?, ?)`,
				id, u.Unit.String(), s.String(), n,
			); err != nil {
				return 0, fmt.Errorf("insert unit counts: %w", err)
			}
		}
	}

	for _, c := range rep.BadChambers {
		if _, err := tx.Exec(
			`INSERT INTO bad_chambers (report_id, unit, x, y, state) VALUES (?, ?, ?, ?, ?)`,
			id, c.Unit.String(), c.X, c.Y, c.State.String(),
		); err != nil {
			return 0, fmt.Errorf("insert bad chamber: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Overview is a stored overview, indexed [region][state-1].
type Overview struct {
	ReportID   int64
	Checkpoint int
	Final      bool
	Events     int
	RecordedAt time.Time
	Fractions  [quality.NumRegions][quality.NumStates]float64
	Counts     [quality.NumRegions][quality.NumStates]int
}

// LatestOverview returns the most recent overview stored for a session.
func (db *DB) LatestOverview(sessionID string) (*Overview, error) {
	var (
		ov       Overview
		recorded string
	)
	err := db.QueryRow(
		`SELECT report_id, checkpoint, final, events, recorded_at FROM reports
		 WHERE session_id = ? ORDER BY report_id DESC LIMIT 1`, sessionID,
	).Scan(&ov.ReportID, &ov.Checkpoint, &ov.Final, &ov.Events, &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	if ov.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
		return nil, fmt.Errorf("parse recorded_at: %w", err)
	}

	rows, err := db.Query(`SELECT region, state, fraction, count FROM overview WHERE report_id = ?`, ov.ReportID)
	if err != nil {
		return nil, fmt.Errorf("query overview: %w", err)
	}
	defer rows.Close()

	regions := make(map[string]quality.Region, quality.NumRegions)
	for _, r := range quality.Regions {
		regions[r.String()] = r
	}
	states := make(map[string]quality.State, quality.NumStates)
	for _, s := range quality.States {
		states[s.String()] = s
	}

	for rows.Next() {
		var (
			region, state string
			fraction      float64
			count         int
		)
		if err := rows.Scan(&region, &state, &fraction, &count); err != nil {
			return nil, fmt.Errorf("scan overview: %w", err)
		}
		r, okR := regions[region]
		s, okS := states[state]
		if !okR || !okS {
			continue
		}
		ov.Fractions[r][s-1] = fraction
		ov.Counts[r][s-1] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overview: %w", err)
	}
	return &ov, nil
}

// ChamberRow is a stored non-Good chamber.
type ChamberRow struct {
	Unit  string
	X, Y  int
	State string
}

// BadChambers returns the non-Good chambers stored with a report.
func (db *DB) BadChambers(reportID int64) ([]ChamberRow, error) {
	rows, err := db.Query(
		`SELECT unit, x, y, state FROM bad_chambers WHERE report_id = ? ORDER BY rowid`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query bad chambers: %w", err)
	}
	defer rows.Close()

	var out []ChamberRow
	for rows.Next() {
		var c ChamberRow
		if err := rows.Scan(&c.Unit, &c.X, &c.Y, &c.State); err != nil {
			return nil, fmt.Errorf("scan bad chamber: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnitCounts returns the stored state counts of one unit for a report.
func (db *DB) UnitCounts(reportID int64, unit string) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT state, count FROM unit_counts WHERE report_id = ? AND unit = ?`, reportID, unit)
	if err != nil {
		return nil, fmt.Errorf("query unit counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan unit counts: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}
