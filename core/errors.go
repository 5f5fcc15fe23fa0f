package core

// These errors are user errors, not internal errors.

import (
	"errors"
)

// ErrNotFlowchart occurs when a document's root element isn't a
// flowchart.
var ErrNotFlowchart = errors.New("Invalid flowchart file")

// StructuralError occurs when a flowchart is missing a required tag or
// has a tag where it shouldn't.
type StructuralError struct {
	// Parent is the name of the element that was searched.
	Parent string

	// Tag is the missing or unexpected tag.
	Tag string

	// Unexpected is true when Tag was found but isn't allowed.
	Unexpected bool
}

func (e *StructuralError) Error() string {
	if e.Unexpected {
		return `unexpected tag "` + e.Tag + `" in "` + e.Parent + `"`
	}
	return `could not find expected tag "` + e.Tag + `" in "` + e.Parent + `"`
}
