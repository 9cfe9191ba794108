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

// Package layout is a small layout engine for tagged documents.
//
// Documents are given as a tree of [Box] values, usually obtained from
// HTML or Markdown input.  The [Engine] breaks the text into lines and
// pages, writes marked content to the page content streams and builds the
// structure tree through a [tagging.Builder].
package layout

import (
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
	"seehuhn.de/go/pdfstruct/tagging"
)

// Box is a node of the box tree.
//
// Boxes with text are drawn as a run of words, which may be broken across
// lines and pages.  Boxes with a height but no text are drawn as a
// placeholder rectangle.  All other boxes only group their kids.
type Box struct {
	// Props describe the tag of the box.  Boxes without properties, or with
	// an empty role, do not get a tag of their own.
	Props *tagging.Properties

	Text string

	// Height is the height of a placeholder rectangle, for example for an
	// image.
	Height float64

	// Break forces the box to start on a new line.
	Break bool

	// Row and Col give the position of a table cell.
	Row, Col int

	Kids []*Box

	key *tagging.HintKey
}

// NewBox returns a box with the given role and kids.
func NewBox(role pdf.Name, kids ...*Box) *Box {
	b := &Box{Kids: kids}
	if role != "" {
		b.Props = &tagging.Properties{Role: role}
	}
	return b
}

// TextBox returns a box which shows the given text.
func TextBox(role pdf.Name, text string) *Box {
	b := NewBox(role)
	b.Text = text
	return b
}

// Add appends kids to the box.
func (b *Box) Add(kids ...*Box) {
	b.Kids = append(b.Kids, kids...)
}

// Role returns the role of the box, or the empty name.
func (b *Box) Role() pdf.Name {
	if b.Props == nil {
		return ""
	}
	return b.Props.Role
}

// isInline reports whether the box continues the current line.
func (b *Box) isInline() bool {
	if b.Break {
		return false
	}
	role := b.Role()
	switch role {
	case "", "Artifact", "Lbl", "LBody":
		return true
	}
	return structure.ClassOf(role) == structure.Inline
}

// AccessibilityProperties implements [tagging.Accessible].
func (b *Box) AccessibilityProperties() *tagging.Properties {
	return b.Props
}

// HintKey implements [tagging.Node].
func (b *Box) HintKey() *tagging.HintKey {
	return b.key
}

// SetHintKey implements [tagging.Node].
func (b *Box) SetHintKey(k *tagging.HintKey) {
	b.key = k
}

// CellPosition implements [tagging.TableCell].
func (b *Box) CellPosition() (row, col int) {
	return b.Row, b.Col
}

var (
	_ tagging.Node      = (*Box)(nil)
	_ tagging.TableCell = (*Box)(nil)
)
