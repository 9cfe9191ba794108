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

// Package structure implements the logical structure tree of tagged PDF
// files.
//
// A [Tree] consists of structure elements ([Element]) whose leaves are
// marked-content references and object references ([MCR]).  The
// [ParentTree] index maps content items back to the elements which own
// them.  Elements live in the object store of the document; once an element
// has been flushed it can no longer be read, and kid lists show a
// [Tombstone] in its place.
package structure

import (
	"errors"

	"seehuhn.de/go/pdfstruct/document"
)

var (
	// ErrCannotContainKids is returned when a structure element is added
	// below an inline-level or illustration element.
	ErrCannotContainKids = errors.New("inline-level and illustration elements cannot contain structure element kids")

	// ErrMissingStructParent is returned in strict mode when a content item
	// refers to an object which has no struct parent key.
	ErrMissingStructParent = errors.New("missing struct parent key")

	// ErrRebuildAfterFlush is returned when the parent tree index must be
	// rebuilt after parts of the structure tree have been flushed.
	ErrRebuildAfterFlush = errors.New("cannot rebuild parent tree after a partial flush")

	// ErrDuplicateMCID is returned when a marked-content identifier is
	// registered twice for the same content stream.
	ErrDuplicateMCID = errors.New("duplicate marked-content identifier")

	// ErrPageFlushed is returned when content is registered for a page which
	// has already been written.
	ErrPageFlushed = document.ErrPageFlushed

	// ErrObjectTargetFlushed is returned when an object reference points to
	// an object which has been flushed or does not exist.
	ErrObjectTargetFlushed = errors.New("target of object reference is flushed or missing")

	// ErrNotElement is returned when a content item is added to the
	// structure tree root.
	ErrNotElement = errors.New("only structure elements can be kids of the structure tree root")

	// ErrHasParent is returned when a structure element is added to the tree
	// while it is still attached somewhere else, or when the addition would
	// create a cycle.
	ErrHasParent = errors.New("structure element already has a parent")

	errUnknownPage = errors.New("page does not belong to the document")
	errUnknownForm = errors.New("form XObject does not belong to the document")
)
