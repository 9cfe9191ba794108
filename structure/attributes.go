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
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Attribute is an attribute object of a structure element.
type Attribute struct {
	// Owner identifies the attribute owner, for example "Layout" or "Table".
	Owner pdf.Name

	// Values holds the attribute entries, without the O entry.
	Values pdf.Dict

	// Revision is the revision number of the attribute.
	Revision pdf.Integer
}

// Get returns the value of an attribute entry.
func (a Attribute) Get(key pdf.Name) pdf.Object {
	return a.Values[key]
}

// LayoutBBox returns a Layout attribute with the given bounding box.
func LayoutBBox(bbox rect.Rect) Attribute {
	return Attribute{
		Owner: "Layout",
		Values: pdf.Dict{
			"BBox": pdf.Array{
				pdf.Real(bbox.LLx), pdf.Real(bbox.LLy),
				pdf.Real(bbox.URx), pdf.Real(bbox.URy),
			},
		},
	}
}

// TableScope returns a Table attribute with the given Scope entry
// ("Row", "Column" or "Both").
func TableScope(scope pdf.Name) Attribute {
	return Attribute{
		Owner:  "Table",
		Values: pdf.Dict{"Scope": scope},
	}
}

// Attributes returns the attribute objects of the element.
//
// The A entry may hold a single attribute dictionary, or an array of
// dictionaries each optionally followed by a revision number.
func (e *Element) Attributes() ([]Attribute, error) {
	obj, err := e.get("A")
	if err != nil {
		return nil, err
	}
	store := e.tree.Doc.Store
	resolved, err := pdf.Resolve(store, obj)
	if err != nil {
		return nil, err
	}

	var entries pdf.Array
	switch x := resolved.(type) {
	case nil:
		return nil, nil
	case pdf.Array:
		entries = x
	default:
		entries = pdf.Array{x}
	}

	var res []Attribute
	for _, entry := range entries {
		entry, err := pdf.Resolve(store, entry)
		if err != nil {
			return nil, err
		}
		switch x := entry.(type) {
		case pdf.Integer:
			if len(res) > 0 {
				res[len(res)-1].Revision = x
			}
		case pdf.Dict:
			res = append(res, attributeFromDict(x))
		case *pdf.Stream:
			res = append(res, attributeFromDict(x.Dict))
		}
	}
	return res, nil
}

func attributeFromDict(dict pdf.Dict) Attribute {
	owner, _ := dict["O"].(pdf.Name)
	return Attribute{
		Owner:  owner,
		Values: dict.Clone("O"),
	}
}

// SetAttributes replaces the attribute objects of the element.
// A single attribute without revision number is stored as a dictionary,
// everything else as an array.
func (e *Element) SetAttributes(attrs []Attribute) error {
	if len(attrs) == 0 {
		return e.set("A", nil)
	}
	if len(attrs) == 1 && attrs[0].Revision == 0 {
		return e.set("A", attrs[0].asDict())
	}
	arr := make(pdf.Array, 0, len(attrs))
	for _, a := range attrs {
		arr = append(arr, a.asDict())
		if a.Revision != 0 {
			arr = append(arr, a.Revision)
		}
	}
	return e.set("A", arr)
}

// AddAttribute appends an attribute object to the element.
func (e *Element) AddAttribute(a Attribute) error {
	attrs, err := e.Attributes()
	if err != nil {
		return err
	}
	return e.SetAttributes(append(attrs, a))
}

// Attribute returns the first attribute of the element which has the given
// owner and contains the given key.
func (e *Element) Attribute(owner, key pdf.Name) (pdf.Object, error) {
	attrs, err := e.Attributes()
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Owner != owner {
			continue
		}
		if val := a.Values[key]; val != nil {
			return val, nil
		}
	}
	return nil, nil
}

func (a Attribute) asDict() pdf.Dict {
	dict := a.Values.Clone()
	if dict == nil {
		dict = pdf.Dict{}
	}
	dict["O"] = a.Owner
	return dict
}
