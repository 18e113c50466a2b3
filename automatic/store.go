package automatic

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/domino14/salvo/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	dim         INTEGER NOT NULL,
	ships       TEXT NOT NULL,
	ordering    TEXT NOT NULL,
	termination TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trials (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	game_id    TEXT NOT NULL,
	seed       TEXT NOT NULL,
	turns      INTEGER NOT NULL,
	hits       INTEGER NOT NULL,
	misses     INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, game_id)
);
CREATE INDEX IF NOT EXISTS trials_run ON trials(run_id);
`

// Store keeps trial results in a sqlite database so runs with different
// settings can be compared later.
type Store struct {
	db *sql.DB
}

// RunSummary aggregates the trials of one run.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	Dim         int
	Ships       string
	Ordering    string
	Termination string
	Games       int
	MeanTurns   float64
	MinTurns    int
	MaxTurns    int
}

func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps :memory:
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trial schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func shipsText(ships []int) string {
	return strings.Join(lo.Map(ships, func(l int, _ int) string {
		return fmt.Sprint(l)
	}), ",")
}

// BeginRun registers a run and the settings its trials are played with.
func (s *Store) BeginRun(ctx context.Context, runID string, settings config.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, dim, ships, ordering, termination)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UnixMilli(), settings.Dim, shipsText(settings.Ships),
		settings.Ordering.String(), settings.Termination.String())
	return err
}

func (s *Store) AddResult(ctx context.Context, runID string, r TrialResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (run_id, game_id, seed, turns, hits, misses, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, r.GameID, base64.RawURLEncoding.EncodeToString(r.Seed),
		r.Turns, r.Hits, r.Misses, r.Elapsed.Milliseconds())
	return err
}

// Results lists the trials of a run in the order they were stored.
func (s *Store) Results(ctx context.Context, runID string) ([]TrialResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, seed, turns, hits, misses, elapsed_ms
		 FROM trials WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []TrialResult
	for rows.Next() {
		var r TrialResult
		var seed string
		var elapsedMs int64
		if err := rows.Scan(&r.GameID, &seed, &r.Turns, &r.Hits, &r.Misses, &elapsedMs); err != nil {
			return nil, err
		}
		if r.Seed, err = base64.RawURLEncoding.DecodeString(seed); err != nil {
			return nil, fmt.Errorf("trial %s: %w", r.GameID, err)
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// Runs summarizes every stored run, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.started_at, r.dim, r.ships, r.ordering, r.termination,
		        COUNT(t.game_id), COALESCE(AVG(t.turns), 0),
		        COALESCE(MIN(t.turns), 0), COALESCE(MAX(t.turns), 0)
		 FROM runs r LEFT JOIN trials t ON t.run_id = r.run_id
		 GROUP BY r.run_id
		 ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var startedMs int64
		if err := rows.Scan(&rs.RunID, &startedMs, &rs.Dim, &rs.Ships, &rs.Ordering,
			&rs.Termination, &rs.Games, &rs.MeanTurns, &rs.MinTurns, &rs.MaxTurns); err != nil {
			return nil, err
		}
		rs.StartedAt = time.UnixMilli(startedMs)
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}
