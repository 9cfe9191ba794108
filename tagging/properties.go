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

package tagging

import (
	"slices"

	"golang.org/x/text/language"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// Properties describe the tag which is created for a model element.
type Properties struct {
	// Role is the structure type.  An empty role marks an element which
	// does not get a tag of its own; the role "Artifact" marks content
	// which is excluded from the structure tree.
	Role pdf.Name

	// Namespace (optional) is the namespace of the role.
	Namespace *structure.Namespace

	// Lang (optional) is the natural language of the element.
	Lang language.Tag

	Alt        string
	ActualText string
	Expansion  string
	Title      string

	// Attributes are the attribute objects of the tag.
	Attributes []structure.Attribute
}

// Clone returns a copy of p.  The attribute values are shared.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	res := *p
	res.Attributes = slices.Clone(p.Attributes)
	return &res
}

// apply writes all properties except for role and namespace to e.
func (p *Properties) apply(e *structure.Element) error {
	if err := e.SetLang(p.Lang); err != nil {
		return err
	}
	if err := e.SetAlt(p.Alt); err != nil {
		return err
	}
	if err := e.SetActualText(p.ActualText); err != nil {
		return err
	}
	if err := e.SetExpansion(p.Expansion); err != nil {
		return err
	}
	if err := e.SetTitle(p.Title); err != nil {
		return err
	}
	return e.SetAttributes(p.Attributes)
}

// readProperties reads the properties of an existing structure element.
func readProperties(e *structure.Element) (*Properties, error) {
	var err error
	p := &Properties{}
	if p.Role, err = e.Role(); err != nil {
		return nil, err
	}
	if p.Namespace, err = e.Namespace(); err != nil {
		return nil, err
	}
	if p.Lang, err = e.Lang(); err != nil {
		return nil, err
	}
	if p.Alt, err = e.Alt(); err != nil {
		return nil, err
	}
	if p.ActualText, err = e.ActualText(); err != nil {
		return nil, err
	}
	if p.Expansion, err = e.Expansion(); err != nil {
		return nil, err
	}
	if p.Title, err = e.Title(); err != nil {
		return nil, err
	}
	if p.Attributes, err = e.Attributes(); err != nil {
		return nil, err
	}
	return p, nil
}

// Accessible is implemented by model elements which can be tagged.
// Implementations are used as map keys and must be comparable; pointer
// types are the usual choice.
type Accessible interface {
	AccessibilityProperties() *Properties
}

// Node is a node of the renderer tree of a layout engine.  The node stores
// the hint key which the [Builder] assigned to it.
type Node interface {
	Accessible
	HintKey() *HintKey
	SetHintKey(k *HintKey)
}

// TableCell is implemented by table cells which know their position in
// the table grid.
type TableCell interface {
	Accessible
	CellPosition() (row, col int)
}
