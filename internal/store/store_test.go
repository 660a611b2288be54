package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/trace"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvents() []trace.Event {
	return []trace.Event{
		{Seq: 1, Kind: trace.KindBind, Node: "div"},
		{Seq: 2, Kind: trace.KindInit, Node: "div", Binding: "text"},
		{Seq: 3, Kind: trace.KindUpdate, Node: "div", Binding: "text", Detail: "hello"},
		{Seq: 4, Kind: trace.KindChildrenComplete, Node: "div"},
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := openTest(t)

	for _, table := range []string{"runs", "events"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, Run{ID: "r1", Scenario: "hello", Status: StatusPass}, sampleEvents())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "hello", run.Scenario)
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/trace.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := openTest(t)
	require.NotNil(t, s.DB())
	assert.NoError(t, s.DB().Ping())
}

func TestPragmas(t *testing.T) {
	s := openTest(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.want))
		})
	}
}

func TestWriteRun_ComputesHashAndCount(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	events := sampleEvents()

	run, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "hello", Status: StatusPass}, events)
	require.NoError(t, err)

	want, err := trace.Hash(events)
	require.NoError(t, err)
	assert.Equal(t, want, run.TraceHash)
	assert.Equal(t, 4, run.EventCount)
	assert.Equal(t, int64(1), run.Seq)

	stored, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, stored)
}

func TestWriteRun_AssignsSequence(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, Run{ID: "a", Scenario: "x", Status: StatusPass}, nil)
	require.NoError(t, err)
	second, err := s.WriteRun(ctx, Run{ID: "b", Scenario: "y", Status: StatusFail}, nil)
	require.NoError(t, err)
	explicit, err := s.WriteRun(ctx, Run{ID: "c", Scenario: "x", Seq: 10, Status: StatusPass}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, int64(10), explicit.Seq)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "hello", Status: StatusPass}, sampleEvents())
	require.NoError(t, err)

	again, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "other", Status: StatusError, Error: "boom"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, again, "rewrite returns the stored run")

	events, err := s.ReadEvents(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestWriteRun_InvalidStatus(t *testing.T) {
	s := openTest(t)
	_, err := s.WriteRun(context.Background(), Run{ID: "r1", Scenario: "x", Status: "maybe"}, nil)
	assert.Error(t, err)
}

func TestWriteRun_KeepsError(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "x", Status: StatusError, Error: "cyclic dependency: a, b"}, nil)
	require.NoError(t, err)

	run, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, run.Status)
	assert.Equal(t, "cyclic dependency: a, b", run.Error)
	assert.Equal(t, 0, run.EventCount)
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.ReadRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	for _, r := range []Run{
		{ID: "b", Scenario: "hello", Seq: 2, Status: StatusPass},
		{ID: "a", Scenario: "hello", Seq: 2, Status: StatusPass},
		{ID: "c", Scenario: "other", Seq: 1, Status: StatusFail},
		{ID: "d", Scenario: "hello", Seq: 3, Status: StatusPass},
	} {
		_, err := s.WriteRun(ctx, r, nil)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, runIDs(all))

	hello, err := s.ListRuns(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, runIDs(hello))
}

func TestLatestRun(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx, "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, r := range []Run{
		{ID: "a", Scenario: "hello", Status: StatusPass},
		{ID: "b", Scenario: "hello", Status: StatusFail},
		{ID: "c", Scenario: "other", Status: StatusPass},
	} {
		_, err := s.WriteRun(ctx, r, nil)
		require.NoError(t, err)
	}

	latest, err := s.LatestRun(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.Equal(t, StatusFail, latest.Status)
}

func TestReadEvents(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "hello", Status: StatusPass}, sampleEvents())
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, sampleEvents(), events)

	updates, err := s.ReadEvents(ctx, "r1", trace.KindUpdate, trace.KindInit)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, trace.KindInit, updates[0].Kind)
	assert.Equal(t, trace.KindUpdate, updates[1].Kind)
	assert.Equal(t, "hello", updates[1].Detail)

	none, err := s.ReadEvents(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, Run{ID: "r1", Scenario: "hello", Status: StatusPass}, sampleEvents())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, "r1"))
	require.NoError(t, s.DeleteRun(ctx, "r1"), "deleting twice is fine")

	_, err = s.ReadRun(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM events WHERE run_id = 'r1'").Scan(&count))
	assert.Zero(t, count)
}

func runIDs(runs []Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
