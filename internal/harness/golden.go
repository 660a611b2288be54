package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bindery/internal/trace"
)

// Snapshot encodes a scenario's trace as canonical JSON, the form golden
// files hold.
func Snapshot(name string, events []trace.Event) ([]byte, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = ev.Object()
	}
	return trace.MarshalCanonical(map[string]any{
		"scenario": name,
		"trace":    list,
	})
}

// GoldenPath returns where the golden trace of a scenario file lives: a
// golden directory beside it, named after the file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden stores the result's trace as the golden file at path.
func WriteGolden(path string, sc *Scenario, result *Result) error {
	data, err := Snapshot(sc.Name, result.Trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the result's trace equals the golden
// file at path.
func CompareGolden(path string, sc *Scenario, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := Snapshot(sc.Name, result.Trace)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return bytes.Equal(bytes.TrimSpace(want), got), nil
}

// AssertGolden compares a result's trace against
// {fixtureDir}/{name}.golden using goldie.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, fixtureDir string, sc *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(sc.Name, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return nil
}
