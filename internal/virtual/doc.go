// Package virtual treats comment-marker pairs as containers.
//
// A start marker is a comment reading "ko" optionally followed by a
// binding expression; an end marker reads "/ko". The nodes strictly
// between a start marker and its matching end marker are the children of
// the virtual element:
//
//	<!-- ko text: name --><span></span><!-- /ko -->
//
// Tree exposes the same container operations for real elements and
// virtual elements so the binding engine never special-cases either.
package virtual
