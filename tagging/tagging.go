// seehuhn.de/go/pdfstruct - tagged structure trees for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package tagging builds the structure tree of a document while its
// contents are being laid out.
//
// A [Context] owns the tagging state of one document.  A [Pointer] is a
// cursor into the structure tree, used to create and rearrange tags and to
// attach marked content, form XObjects and annotations.  Tags can be kept
// associated with an owner ("waiting"), which keeps them from being
// flushed when their pages are written.
//
// Layout engines usually do not know the final order of the structure
// elements at the time content is produced.  The [Builder] keeps a tree of
// [HintKey] values which mirrors the renderer tree and can be rearranged
// freely.  Structure elements are only created once content is drawn, and
// hints are released once they and all their neighbours are finished.
package tagging

import (
	"errors"

	"seehuhn.de/go/pdfstruct/pdf"
)

var (
	// ErrUnmappableRole is returned when a role cannot be mapped to a
	// standard role or to a role of a known domain-specific namespace.
	ErrUnmappableRole = errors.New("role cannot be mapped to a standard role")

	// ErrAtRoot is returned when an operation needs a structure element,
	// but the pointer is at the structure tree root.
	ErrAtRoot = errors.New("pointer is at the structure tree root")

	// ErrNoSuchKid is returned when a pointer is moved to a kid which does
	// not exist or is not a structure element.
	ErrNoSuchKid = errors.New("no such kid")

	// ErrNoPage is returned when marked content is added through a pointer
	// which has no page set.
	ErrNoPage = errors.New("no page set")
)

// Options control the behaviour of a [Context].
type Options struct {
	// Target is the PDF version which tagging rules and relation repair
	// are tuned for.  The zero value selects the version of the document.
	Target pdf.Version

	// ImmediateFlush causes structure elements to be flushed as soon as
	// their hints are released and all their content has been written.
	ImmediateFlush bool

	// MaxRoleMapSteps bounds the number of role map lookups when a role
	// is validated.  Zero selects structure.DefaultMaxRoleMapSteps.
	MaxRoleMapSteps int

	// Relations overrides entries of the default parent/child relation
	// table.
	Relations RelationTable
}
