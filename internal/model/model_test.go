package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/reactive"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"vm.cue", FormatCUE},
		{"vm.json", FormatJSON},
		{"vm.yaml", FormatYAML},
		{"VM.YML", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatOf("vm.toml")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeFormat, le.Code)
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "vm.cue", `
#User: {
	name: string
	age:  int & >=0
}
user: #User & {name: "Ada", age: 36}
title:   "Hello"
ratio:   0.5
tags: ["a", "b"]
visible: *true | bool
`)
	data, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Hello", data["title"])
	assert.Equal(t, 0.5, data["ratio"])
	assert.Equal(t, true, data["visible"], "defaults are resolved")
	assert.Equal(t, []any{"a", "b"}, data["tags"])
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36}, data["user"])
	assert.NotContains(t, data, "#User", "definitions are not data")
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "vm.json", `{"name": "World", "count": 3, "nested": {"ok": false}}`)
	data, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":   "World",
		"count":  3,
		"nested": map[string]any{"ok": false},
	}, data)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "vm.yaml", "name: World\ncount: 3\nitems:\n  - x: 1\n")
	data, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":  "World",
		"count": 3,
		"items": []any{map[string]any{"x": 1}},
	}, data)
}

func TestLoad_EmptyYAML(t *testing.T) {
	data, err := Load(writeFile(t, "vm.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name, file, content, code string
	}{
		{"cue syntax", "vm.cue", "name: ", ErrCodeSyntax},
		{"cue incomplete", "vm.cue", "name: string\n", ErrCodeConcrete},
		{"json list", "vm.json", "[1, 2]", ErrCodeShape},
		{"yaml scalar", "vm.yaml", "just a string", ErrCodeShape},
		{"yaml syntax", "vm.yaml", "a: [1, 2", ErrCodeSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code, le.Error())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeRead, le.Code)
}

func TestLoadError_Position(t *testing.T) {
	_, err := Load(writeFile(t, "vm.cue", "a: 1\nb: string\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vm.cue:2:")
}

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"a": map[any]any{1: "one", "two": []any{map[any]any{"x": true}}},
	}
	want := map[string]any{
		"a": map[string]any{"1": "one", "two": []any{map[string]any{"x": true}}},
	}
	assert.Equal(t, want, Normalize(in))
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in   string
		path string
		want any
	}{
		{"name=Bob", "name", "Bob"},
		{"count=3", "count", 3},
		{"ok=false", "ok", false},
		{"ratio=0.25", "ratio", 0.25},
		{"user.name=Ada Lovelace", "user.name", "Ada Lovelace"},
		{"empty=", "empty", ""},
		{"list=[1, 2]", "list", []any{1, 2}},
		{"bad=[1, 2", "bad", "[1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			path, v, err := ParseAssignment(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.want, v)
		})
	}

	for _, bad := range []string{"novalue", "=3"} {
		_, _, err := ParseAssignment(bad)
		assert.Error(t, err, bad)
	}
}

func TestModel_WrapsLeaves(t *testing.T) {
	rt := reactive.NewRuntime()
	m := New(rt, map[string]any{
		"name": "World",
		"user": map[string]any{"age": 36},
	})

	assert.Equal(t, []string{"name", "user.age"}, m.Paths())

	name, ok := m.Data()["name"].(*reactive.Observable)
	require.True(t, ok)
	assert.Equal(t, "World", name.Peek())

	user, ok := m.Data()["user"].(map[string]any)
	require.True(t, ok, "nested structs stay plain maps")
	age, ok := m.Field("user.age")
	require.True(t, ok)
	assert.Same(t, age, user["age"])
}

func TestModel_SetReruns(t *testing.T) {
	rt := reactive.NewRuntime()
	m := New(rt, map[string]any{"count": 1})

	var seen []any
	field, _ := m.Field("count")
	c := rt.NewComputed(func() any {
		seen = append(seen, field.Get())
		return nil
	})
	defer c.Dispose()

	require.NoError(t, m.Set("count", 2))
	v, err := m.Get("count")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, []any{1, 2}, seen)

	assert.Error(t, m.Set("missing", 1))
	_, err = m.Get("missing")
	assert.Error(t, err)
}

func TestModel_ApplyAndSnapshot(t *testing.T) {
	rt := reactive.NewRuntime()
	m := New(rt, map[string]any{
		"name": "World",
		"user": map[string]any{"name": "Ada"},
	})

	require.NoError(t, m.Apply(map[string]any{"name": "Bob", "user.name": "Grace"}))
	assert.Equal(t, map[string]any{
		"name": "Bob",
		"user": map[string]any{"name": "Grace"},
	}, m.Snapshot())

	err := m.Apply(map[string]any{"a": 1, "zzz": 2})
	assert.ErrorContains(t, err, `"a"`, "paths apply in order")
}
