// Package harness runs binding scenarios and checks their outcome.
//
// A scenario is a YAML file naming a document, a view-model (inline or
// from a .cue, .json or .yaml file), an expectation for the initial apply
// and a list of steps that change the view-model. Each run gets a fresh
// reactive runtime and engine with the stock handlers and the data-bind
// provider, so runs never share state and their traces are reproducible.
//
// # Checks
//
//   - expect.html: body content after a phase, whitespace trimmed
//   - expect.error: substring of the phase's error; without it the phase
//     must succeed
//   - assertions: trace_contains, trace_order, trace_count over the trace
//   - golden files: the canonical JSON trace, compared byte for byte
//
// Golden traces live in a golden directory beside the scenarios. Tests
// regenerate them with -update; the CLI with --update.
//
// # Recording
//
// WithStore writes every run and its trace to the trace store, so a later
// `bindery trace` can show what a scenario did.
package harness
