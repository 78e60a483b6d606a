// Package diagerr defines the sentinel errors shared by every diagram
// engine. It exists as its own leaf package so that internal/diagram/graph
// and internal/diagram/sequence can return these errors without importing
// the top-level internal/diagram package, which imports them.
package diagerr

import "errors"

var (
	// ErrEmptySource means the source string, after comment stripping,
	// contained no meaningful content.
	ErrEmptySource = errors.New("diagram: empty source")

	// ErrMissingSequenceKeyword means the sequence engine was selected
	// but the first meaningful line was not "sequenceDiagram".
	ErrMissingSequenceKeyword = errors.New("diagram: sequence diagram missing 'sequenceDiagram' keyword")

	// ErrNoParticipants means a sequence source declared zero
	// participants and defined zero messages.
	ErrNoParticipants = errors.New("diagram: sequence diagram has no participants")

	// ErrMalformedSubgraph means an "end" line appeared with no
	// matching "subgraph" open on the stack. Per spec.md §7 this
	// check is optional; the graph parser is lenient and ignores a
	// stray "end" rather than returning this error (see DESIGN.md).
	// It is exported so callers and tests can still name the kind.
	ErrMalformedSubgraph = errors.New("diagram: unmatched 'end' without 'subgraph'")
)
