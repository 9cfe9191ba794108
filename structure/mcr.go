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

package structure

import (
	"errors"
	"fmt"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Kid is a kid of a structure element: an [*Element], an [*MCR] or a
// [Tombstone].
type Kid interface {
	isKid()
}

// Tombstone stands in for a structure element which has been flushed.
// The element can no longer be read or modified.
type Tombstone struct {
	Ref pdf.Reference
}

func (Tombstone) isKid() {}

// LeafKind distinguishes the three kinds of content item references.
type LeafKind int

// These are the possible leaf kinds.
const (
	// ContentItem is marked content in a page content stream.
	ContentItem LeafKind = iota

	// StreamItem is marked content in a form XObject.
	StreamItem

	// ObjectItem is a reference to a PDF object, for example an annotation.
	ObjectItem
)

func (k LeafKind) String() string {
	switch k {
	case ContentItem:
		return "MCR"
	case StreamItem:
		return "MCR/Stm"
	case ObjectItem:
		return "OBJR"
	default:
		return fmt.Sprintf("LeafKind(%d)", int(k))
	}
}

// MCR is a leaf of the structure tree, referring to marked content or to
// a PDF object.
type MCR struct {
	Kind LeafKind

	// MCID is the marked-content identifier (content and stream items).
	MCID pdf.Integer

	// Page is the page on which the content is shown.  This is required for
	// content items and optional otherwise.
	Page pdf.Reference

	// Stream is the form XObject which contains the marked content
	// (stream items only).
	Stream pdf.Reference

	// Obj is the referenced object (object items only).
	Obj pdf.Reference

	// Parent is the structure element which owns the leaf.
	// This is set when the leaf is added to an element.
	Parent *Element

	// ExplicitPage forces the leaf to be written as an MCR dictionary with
	// a Pg entry, even if the page agrees with the page of the parent.
	ExplicitPage bool
}

func (*MCR) isKid() {}

// NewContentItem returns a leaf for marked content in a page content stream.
func NewContentItem(page pdf.Reference, mcid pdf.Integer) *MCR {
	return &MCR{Kind: ContentItem, Page: page, MCID: mcid}
}

// NewStreamItem returns a leaf for marked content in a form XObject.
// The page is optional.
func NewStreamItem(stream pdf.Reference, mcid pdf.Integer, page pdf.Reference) *MCR {
	return &MCR{Kind: StreamItem, Stream: stream, MCID: mcid, Page: page}
}

// NewObjectItem returns a leaf for a PDF object.  The page is optional.
func NewObjectItem(obj pdf.Reference, page pdf.Reference) *MCR {
	return &MCR{Kind: ObjectItem, Obj: obj, Page: page}
}

// Role returns the role of the leaf, which is the role of its parent.
func (m *MCR) Role() (pdf.Name, error) {
	if m.Parent == nil {
		return "", errors.New("content item has no parent")
	}
	return m.Parent.Role()
}

func (m *MCR) String() string {
	switch m.Kind {
	case ContentItem:
		return fmt.Sprintf("MCID %d on %s", m.MCID, m.Page)
	case StreamItem:
		return fmt.Sprintf("MCID %d in %s", m.MCID, m.Stream)
	default:
		return fmt.Sprintf("OBJR %s", m.Obj)
	}
}

// encode returns the representation of the leaf inside the K entry of a
// structure element with page pg.
func (m *MCR) encode(pg pdf.Reference) pdf.Object {
	switch m.Kind {
	case ContentItem:
		if m.Page == pg && !m.ExplicitPage {
			return m.MCID
		}
		return pdf.Dict{
			"Type": pdf.Name("MCR"),
			"Pg":   m.Page,
			"MCID": m.MCID,
		}
	case StreamItem:
		res := pdf.Dict{
			"Type": pdf.Name("MCR"),
			"MCID": m.MCID,
			"Stm":  m.Stream,
		}
		if m.Page != 0 && (m.Page != pg || m.ExplicitPage) {
			res["Pg"] = m.Page
		}
		return res
	default:
		res := pdf.Dict{
			"Type": pdf.Name("OBJR"),
			"Obj":  m.Obj,
		}
		if m.Page != 0 && (m.Page != pg || m.ExplicitPage) {
			res["Pg"] = m.Page
		}
		return res
	}
}

// decodeKid interprets one entry of the K array of the element e, whose
// page is pg.
func (e *Element) decodeKid(obj pdf.Object, pg pdf.Reference) (Kid, error) {
	store := e.tree.Doc.Store
	switch obj := obj.(type) {
	case pdf.Integer:
		if obj < 0 {
			return nil, pdf.Malformed(e.Ref, fmt.Errorf("negative MCID %d", obj))
		}
		if pg == 0 {
			return nil, pdf.Malformed(e.Ref, fmt.Errorf("MCID %d without page", obj))
		}
		return &MCR{Kind: ContentItem, MCID: obj, Page: pg, Parent: e}, nil
	case pdf.Dict:
		return e.decodeLeaf(obj, pg)
	case pdf.Reference:
		val, err := store.Get(obj)
		if errors.Is(err, pdf.ErrFlushed) {
			return Tombstone{Ref: obj}, nil
		} else if err != nil {
			return nil, err
		}
		dict, err := pdf.GetDict(store, val)
		if err != nil {
			return nil, err
		}
		switch dict["Type"] {
		case pdf.Name("MCR"), pdf.Name("OBJR"):
			return e.decodeLeaf(dict, pg)
		}
		return &Element{tree: e.tree, Ref: obj}, nil
	default:
		return nil, pdf.Malformed(e.Ref, fmt.Errorf("unexpected kid %s", pdf.Format(obj)))
	}
}

func (e *Element) decodeLeaf(dict pdf.Dict, pg pdf.Reference) (Kid, error) {
	store := e.tree.Doc.Store
	m := &MCR{Parent: e, Page: pg}
	if ref, ok := dict["Pg"].(pdf.Reference); ok {
		m.Page = ref
		m.ExplicitPage = ref == pg
	}

	switch dict["Type"] {
	case pdf.Name("MCR"):
		mcid, err := pdf.GetInteger(store, dict["MCID"])
		if err != nil {
			return nil, err
		}
		if mcid < 0 {
			return nil, pdf.Malformed(e.Ref, fmt.Errorf("negative MCID %d", mcid))
		}
		m.MCID = mcid
		if stm, ok := dict["Stm"].(pdf.Reference); ok {
			m.Kind = StreamItem
			m.Stream = stm
		} else if m.Page == 0 {
			return nil, pdf.Malformed(e.Ref, fmt.Errorf("MCID %d without page", mcid))
		}
	case pdf.Name("OBJR"):
		obj, ok := dict["Obj"].(pdf.Reference)
		if !ok {
			return nil, pdf.Malformed(e.Ref, errors.New("OBJR without Obj"))
		}
		m.Kind = ObjectItem
		m.Obj = obj
	default:
		return nil, pdf.Malformed(e.Ref, fmt.Errorf("unexpected leaf type %v", dict["Type"]))
	}
	return m, nil
}

// kidObjects returns the entries of the K entry of dict as a slice.
func kidObjects(dict pdf.Dict) []pdf.Object {
	switch k := dict["K"].(type) {
	case nil:
		return nil
	case pdf.Array:
		return append([]pdf.Object(nil), k...)
	default:
		return []pdf.Object{k}
	}
}

// setKidObjects stores kids in the K entry of dict.  An empty list removes
// the entry, a single kid is stored without an array.
func setKidObjects(dict pdf.Dict, kids []pdf.Object) {
	switch len(kids) {
	case 0:
		delete(dict, "K")
	case 1:
		dict["K"] = kids[0]
	default:
		dict["K"] = pdf.Array(kids)
	}
}
