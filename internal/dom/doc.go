// Package dom holds the document-level primitives the binding engine
// builds on: the node-keyed side table with disposal callbacks, and small
// helpers over golang.org/x/net/html nodes.
//
// The side table never keeps a node alive. Entries are keyed by
// weak.Pointer and reclaimed by a runtime cleanup when the node is
// collected, or eagerly by CleanNode when a node is removed through the
// engine. Values stored in the table that reference their own node keep
// that node reachable until CleanNode runs.
package dom
