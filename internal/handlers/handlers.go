package handlers

import (
	"fmt"
	"strconv"

	"github.com/roach88/bindery/internal/binding"
	"github.com/roach88/bindery/internal/reactive"
)

// Register adds every stock handler to r.
func Register(r *binding.Registry) {
	r.Register("text", Text())
	r.Register("attr", Attr())
	r.Register("visible", Visible(false))
	r.Register("hidden", Visible(true))
	r.Register("css", CSS())
	r.Register("using", Using())
	r.Register("let", Let())
}

// valueOf reads the binding value, unwrapping a reactive value so the
// read is tracked.
func valueOf(a *binding.Args) any {
	return reactive.Unwrap(a.Value())
}

// truthy applies the usual loose truth rules: nil, false, zero and the
// empty string are false; anything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}

// textOf renders a value as text content. nil renders as nothing.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// fields unwraps a map binding value. Each entry is unwrapped as well, so
// reactive entries are tracked.
func fields(name string, v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s binding expects a map, got %T", name, v)
	}
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = reactive.Unwrap(item)
	}
	return out, nil
}
