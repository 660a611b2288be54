package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/bindery/internal/trace"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const runColumns = `id, scenario, seq, status, trace_hash, event_count, error`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r      Run
		status string
	)
	if err := row.Scan(&r.ID, &r.Scenario, &r.Seq, &status, &r.TraceHash, &r.EventCount, &r.Error); err != nil {
		return Run{}, err
	}
	r.Status = Status(status)
	return r, nil
}

// ReadRun returns the run with the given ID, or an error wrapping
// ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	return s.readRunTx(ctx, s.db, id)
}

func (s *Store) readRunTx(ctx context.Context, q queryRower, id string) (Run, error) {
	r, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the runs of one scenario, or of every scenario when
// scenario is empty, oldest first.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run of scenario.
func (s *Store) LatestRun(ctx context.Context, scenario string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE scenario = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, scenario))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run of %s: %w", scenario, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run of %s: %w", scenario, err)
	}
	return r, nil
}

// ReadEvents returns the events of a run in sequence order, optionally
// restricted to some kinds.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) ReadEvents(ctx context.Context, runID string, kinds ...trace.Kind) ([]trace.Event, error) {
	query := `SELECT seq, kind, node, binding, detail FROM events WHERE run_id = ?`
	args := []any{runID}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(", ?", len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var (
			ev   trace.Event
			kind string
		)
		if err := rows.Scan(&ev.Seq, &kind, &ev.Node, &ev.Binding, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = trace.Kind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
