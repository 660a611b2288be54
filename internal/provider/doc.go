// Package provider discovers bindings in markup and evaluates their
// expressions.
//
// Bindings are declared in a data-bind attribute or in a start marker
// comment as a comma separated list of `name: expression` entries:
//
//	<span data-bind="text: name(), visible: count() > 0"></span>
//	<!-- ko using: address -->...<!-- /ko -->
//
// Expressions are risor code. Context names keep their leading dollar in
// markup ($data, $parent, $root, ...) and are rewritten to ctx_data,
// ctx_parent and so on before evaluation.
//
// Parsing is cached per binding string. Evaluation is not: every accessor
// call evaluates afresh against the context as it is at that moment, which
// is what lets reactive reads inside an expression register dependencies
// on whatever computed is running.
package provider
