// Package model loads view-models and makes them reactive.
//
// A view-model file is CUE, JSON or YAML whose top level is a struct. CUE
// values must be concrete; constraints and defaults are resolved before
// the data is handed out, so a file may carry a schema alongside its
// values.
//
// New turns every leaf field into an observable. Bindings reading a field
// track it, and Set reruns them.
package model
