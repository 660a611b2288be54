// Package analysis checks a handler set without a document.
//
// The engine only detects an ordering cycle when every binding on it
// appears on one node. AnalyzeOrdering finds every cycle the After
// relation could produce, so a handler set can be validated before any
// markup uses it.
package analysis
