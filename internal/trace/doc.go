// Package trace records what the binding engine did.
//
// The engine emits an Event for every node it binds, every handler init
// and update run, every completion signal and every failure. A Recorder
// stamps events with a logical clock so traces are deterministic and can
// be compared against golden files or hashed.
//
// CRITICAL: event order comes from Clock.Next(), never wall-clock time.
package trace
