package store

import (
	"context"
	"fmt"

	"github.com/roach88/bindery/internal/trace"
)

// Status is the outcome of a run.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Run is one recorded application of bindings.
type Run struct {
	ID         string `json:"id" yaml:"id"`
	Scenario   string `json:"scenario" yaml:"scenario"`
	Seq        int64  `json:"seq" yaml:"seq"`
	Status     Status `json:"status" yaml:"status"`
	TraceHash  string `json:"trace_hash" yaml:"trace_hash"`
	EventCount int    `json:"event_count" yaml:"event_count"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// WriteRun stores a run and its events in one transaction. The trace hash
// and event count are computed from events. A run with Seq 0 is given the
// next sequence number.
//
// Writing a run ID that already exists is a no-op, so retrying a write is
// safe.
func (s *Store) WriteRun(ctx context.Context, run Run, events []trace.Event) (Run, error) {
	hash, err := trace.Hash(events)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	run.TraceHash = hash
	run.EventCount = len(events)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	if run.Seq == 0 {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
			return Run{}, fmt.Errorf("write run: next seq: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, seq, status, trace_hash, event_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.Seq, string(run.Status), run.TraceHash, run.EventCount, run.Error)
	if err != nil {
		return Run{}, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		existing, err := s.readRunTx(ctx, tx, run.ID)
		if err != nil {
			return Run{}, err
		}
		return existing, tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, kind, node, binding, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, run.ID, ev.Seq, string(ev.Kind), ev.Node, ev.Binding, ev.Detail); err != nil {
			return Run{}, fmt.Errorf("write event %d of run %s: %w", ev.Seq, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}

// DeleteRun removes a run and, by cascade, its events. Deleting a missing
// run is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
