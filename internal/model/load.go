package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a view-model file.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Error codes for view-model loading.
const (
	ErrCodeFormat   = "E201" // Unsupported file extension
	ErrCodeRead     = "E202" // File could not be read
	ErrCodeSyntax   = "E203" // File does not parse
	ErrCodeShape    = "E204" // Top level is not a struct
	ErrCodeConcrete = "E205" // CUE value has unresolved fields
)

// LoadError reports a view-model that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported view-model file %s (want .cue, .json or .yaml)", path)}
}

// Load reads a view-model file. The top level must be a struct.
func Load(path string) (map[string]any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(data, format, path)
}

// Parse decodes view-model source. JSON goes through CUE, of which it is
// a subset, so both report errors with positions.
func Parse(data []byte, format Format, filename string) (map[string]any, error) {
	switch format {
	case FormatCUE, FormatJSON:
		return parseCUE(data, filename)
	case FormatYAML:
		return parseYAML(data)
	}
	return nil, &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unknown format %q", format)}
}

func parseCUE(data []byte, filename string) (map[string]any, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeSyntax, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeConcrete, err)
	}
	if v.Kind() != cue.StructKind {
		return nil, &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("view-model must be a struct, got %s", v.Kind()), Pos: v.Pos()}
	}
	var out map[string]any
	if err := v.Decode(&out); err != nil {
		return nil, cueError(ErrCodeSyntax, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// cueError keeps the first error of a CUE error list, with its position.
func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

func parseYAML(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	out, ok := Normalize(raw).(map[string]any)
	if !ok {
		return nil, &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("view-model must be a mapping, got %T", raw)}
	}
	return out, nil
}

// Normalize converts decoded YAML into the plain shapes the rest of the
// module expects: maps keyed by string and []any lists.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

// ParseAssignment splits "path=value" as given on the command line. The
// value is read as a YAML scalar, so numbers and booleans keep their type
// and anything else is a string.
func ParseAssignment(s string) (string, any, error) {
	path, raw, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", nil, fmt.Errorf("assignment %q must look like path=value", s)
	}
	if raw == "" {
		return path, "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return path, raw, nil
	}
	return path, Normalize(v), nil
}
