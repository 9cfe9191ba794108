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
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Element is a handle for a structure element.
//
// The element itself lives in the object store of the document.  Once the
// element has been flushed, all accessors return an error wrapping
// [pdf.ErrFlushed].
type Element struct {
	tree *Tree

	// Ref is the reference of the structure element dictionary.
	Ref pdf.Reference
}

func (*Element) isKid() {}

// Tree returns the structure tree the element belongs to.
func (e *Element) Tree() *Tree {
	return e.tree
}

// IsRoot reports whether e is the structure tree root.
func (e *Element) IsRoot() bool {
	return e.Ref == e.tree.Ref
}

// IsFlushed reports whether the element has been written to the output.
func (e *Element) IsFlushed() bool {
	return e.tree.Doc.Store.IsFlushed(e.Ref)
}

// Equal reports whether e and other refer to the same element.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Ref == other.Ref
}

func (e *Element) String() string {
	if e.IsRoot() {
		return "StructTreeRoot"
	}
	role, err := e.Role()
	if err != nil {
		return "StructElem " + e.Ref.String()
	}
	return string(role) + " " + e.Ref.String()
}

func (e *Element) dict() (pdf.Dict, error) {
	dict, err := pdf.GetDict(e.tree.Doc.Store, e.Ref)
	if err != nil {
		return nil, fmt.Errorf("structure element %s: %w", e.Ref, err)
	}
	if dict == nil {
		return nil, fmt.Errorf("structure element %s: %w", e.Ref, pdf.ErrMissing)
	}
	return dict, nil
}

func (e *Element) get(key pdf.Name) (pdf.Object, error) {
	dict, err := e.dict()
	if err != nil {
		return nil, err
	}
	return dict[key], nil
}

func (e *Element) set(key pdf.Name, val pdf.Object) error {
	dict, err := e.dict()
	if err != nil {
		return err
	}
	if val == nil {
		delete(dict, key)
	} else {
		dict[key] = val
	}
	return e.tree.Doc.Store.Put(e.Ref, dict)
}

// Role returns the structure type of the element.
func (e *Element) Role() (pdf.Name, error) {
	if e.IsRoot() {
		return "", nil
	}
	obj, err := e.get("S")
	if err != nil {
		return "", err
	}
	return pdf.GetName(e.tree.Doc.Store, obj)
}

// SetRole changes the structure type of the element.
func (e *Element) SetRole(role pdf.Name) error {
	if e.IsRoot() {
		return errors.New("cannot set the role of the structure tree root")
	}
	return e.set("S", role)
}

// Namespace returns the namespace of the element, or nil for the default
// namespace.
func (e *Element) Namespace() (*Namespace, error) {
	obj, err := e.get("NS")
	if err != nil {
		return nil, err
	}
	ref, ok := obj.(pdf.Reference)
	if !ok {
		return nil, nil
	}
	return e.tree.namespaceByRef(ref)
}

// SetNamespace sets the namespace of the element.  A nil namespace selects
// the default namespace.
func (e *Element) SetNamespace(ns *Namespace) error {
	if ns == nil {
		return e.set("NS", nil)
	}
	return e.set("NS", ns.Ref)
}

// Class returns the role class of the element, after role mapping.
// The structure tree root is reported as [Grouping].
func (e *Element) Class() (RoleClass, error) {
	if e.IsRoot() {
		return Grouping, nil
	}
	role, err := e.Role()
	if err != nil {
		return Unknown, err
	}
	ns, err := e.Namespace()
	if err != nil {
		return Unknown, err
	}
	return e.tree.Classify(role, ns), nil
}

// Page returns the page of the element, or 0 if no page is set.
func (e *Element) Page() (pdf.Reference, error) {
	obj, err := e.get("Pg")
	if err != nil {
		return 0, err
	}
	ref, _ := obj.(pdf.Reference)
	return ref, nil
}

// Lang returns the natural language of the element.
// If no language is set, [language.Und] is returned.
func (e *Element) Lang() (language.Tag, error) {
	s, err := e.TextProperty("Lang")
	if err != nil || s == "" {
		return language.Und, err
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, pdf.Malformed(e.Ref, err)
	}
	return tag, nil
}

// SetLang sets the natural language of the element.
// Setting [language.Und] removes the entry.
func (e *Element) SetLang(tag language.Tag) error {
	if tag == language.Und {
		return e.set("Lang", nil)
	}
	return e.set("Lang", pdf.TextString(tag.String()))
}

// TextProperty returns a text string entry of the element dictionary,
// for example "Alt" or "ActualText".
func (e *Element) TextProperty(key pdf.Name) (string, error) {
	obj, err := e.get(key)
	if err != nil {
		return "", err
	}
	s, err := pdf.GetString(e.tree.Doc.Store, obj)
	if err != nil {
		return "", err
	}
	return s.AsTextString(), nil
}

// SetTextProperty sets a text string entry of the element dictionary.
// The empty string removes the entry.
func (e *Element) SetTextProperty(key pdf.Name, value string) error {
	if key == "Phoneme" {
		if err := pdf.CheckVersion(e.tree.Doc.Store, "Phoneme", pdf.V2_0); err != nil {
			return err
		}
	}
	if value == "" {
		return e.set(key, nil)
	}
	return e.set(key, pdf.TextString(value))
}

// Alt returns the alternate description of the element.
func (e *Element) Alt() (string, error) { return e.TextProperty("Alt") }

// SetAlt sets the alternate description of the element.
func (e *Element) SetAlt(s string) error { return e.SetTextProperty("Alt", s) }

// ActualText returns the replacement text of the element.
func (e *Element) ActualText() (string, error) { return e.TextProperty("ActualText") }

// SetActualText sets the replacement text of the element.
func (e *Element) SetActualText(s string) error { return e.SetTextProperty("ActualText", s) }

// Expansion returns the expanded form of an abbreviation.
func (e *Element) Expansion() (string, error) { return e.TextProperty("E") }

// SetExpansion sets the expanded form of an abbreviation.
func (e *Element) SetExpansion(s string) error { return e.SetTextProperty("E", s) }

// Title returns the title of the element.
func (e *Element) Title() (string, error) { return e.TextProperty("T") }

// SetTitle sets the title of the element.
func (e *Element) SetTitle(s string) error { return e.SetTextProperty("T", s) }

// PhoneticAlphabet returns the phonetic alphabet used by the Phoneme entry.
func (e *Element) PhoneticAlphabet() (pdf.Name, error) {
	obj, err := e.get("PhoneticAlphabet")
	if err != nil {
		return "", err
	}
	return pdf.GetName(e.tree.Doc.Store, obj)
}

// SetPhoneticAlphabet sets the phonetic alphabet used by the Phoneme entry,
// for example "ipa".  This requires PDF 2.0.
func (e *Element) SetPhoneticAlphabet(alphabet pdf.Name) error {
	if err := pdf.CheckVersion(e.tree.Doc.Store, "PhoneticAlphabet", pdf.V2_0); err != nil {
		return err
	}
	if alphabet == "" {
		return e.set("PhoneticAlphabet", nil)
	}
	return e.set("PhoneticAlphabet", alphabet)
}

// References returns the structure elements listed in the Ref entry.
func (e *Element) References() ([]*Element, error) {
	obj, err := e.get("Ref")
	if err != nil {
		return nil, err
	}
	arr, err := pdf.GetArray(e.tree.Doc.Store, obj)
	if err != nil {
		return nil, err
	}
	var res []*Element
	for _, o := range arr {
		if ref, ok := o.(pdf.Reference); ok {
			res = append(res, e.tree.Element(ref))
		}
	}
	return res, nil
}

// AddReference appends an element to the Ref entry.  This requires
// PDF 2.0.
func (e *Element) AddReference(target *Element) error {
	if err := pdf.CheckVersion(e.tree.Doc.Store, "Ref", pdf.V2_0); err != nil {
		return err
	}
	obj, err := e.get("Ref")
	if err != nil {
		return err
	}
	arr, _ := obj.(pdf.Array)
	arr = append(arr, target.Ref)
	return e.set("Ref", arr)
}

// ID returns the element identifier, or the empty string.
func (e *Element) ID() (string, error) {
	obj, err := e.get("ID")
	if err != nil {
		return "", err
	}
	s, err := pdf.GetString(e.tree.Doc.Store, obj)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// AssignID gives the element a new, unique identifier and returns it.
// If the element already has an identifier, this is returned instead.
// Identifiers are listed in the ID tree of the structure tree root.
func (e *Element) AssignID() (string, error) {
	id, err := e.ID()
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	err = e.set("ID", pdf.String(id))
	if err != nil {
		return "", err
	}
	e.tree.ids[id] = e.Ref
	return id, nil
}

// Parent returns the parent of the element.  For the structure tree root
// and for elements which are not attached, nil is returned.  If the parent
// has been flushed, an error wrapping [pdf.ErrFlushed] is returned.
func (e *Element) Parent() (*Element, error) {
	if e.IsRoot() {
		return nil, nil
	}
	obj, err := e.get("P")
	if err != nil {
		return nil, err
	}
	ref, ok := obj.(pdf.Reference)
	if !ok {
		return nil, nil
	}
	if ref != e.tree.Ref && e.tree.Doc.Store.IsFlushed(ref) {
		return nil, fmt.Errorf("parent of %s: %w", e.Ref, pdf.ErrFlushed)
	}
	return e.tree.Element(ref), nil
}

// Kids returns the kids of the element, in order.
// Flushed structure elements are represented by a [Tombstone].
func (e *Element) Kids() ([]Kid, error) {
	dict, err := e.dict()
	if err != nil {
		return nil, err
	}
	pg, _ := dict["Pg"].(pdf.Reference)
	objs := kidObjects(dict)
	res := make([]Kid, 0, len(objs))
	for _, obj := range objs {
		kid, err := e.decodeKid(obj, pg)
		if err != nil {
			return nil, err
		}
		res = append(res, kid)
	}
	return res, nil
}

// NumKids returns the number of kids of the element.
func (e *Element) NumKids() (int, error) {
	dict, err := e.dict()
	if err != nil {
		return 0, err
	}
	return len(kidObjects(dict)), nil
}

// IndexOf returns the position of the structure element kid among the kids
// of e, or -1 if kid is not a kid of e.
func (e *Element) IndexOf(kid pdf.Reference) (int, error) {
	dict, err := e.dict()
	if err != nil {
		return -1, err
	}
	for i, obj := range kidObjects(dict) {
		if obj == kid {
			return i, nil
		}
	}
	return -1, nil
}

// AddKid inserts kid at the given position.  If index is negative or
// larger than the number of kids, the kid is appended.
//
// Structure element kids are rejected under inline-level and illustration
// elements.  Content items are registered in the parent tree index; the
// structure tree root cannot hold content items.
func (e *Element) AddKid(index int, kid Kid) error {
	dict, err := e.dict()
	if err != nil {
		return err
	}
	kids := kidObjects(dict)
	if index < 0 || index > len(kids) {
		index = len(kids)
	}

	var obj pdf.Object
	switch kid := kid.(type) {
	case *Element:
		class, err := e.Class()
		if err != nil {
			return err
		}
		if !class.CanContainElements() {
			return fmt.Errorf("add %s to %s: %w", kid, e, ErrCannotContainKids)
		}
		kidDict, err := kid.dict()
		if err != nil {
			return err
		}
		if kid.IsRoot() || kidDict["P"] != nil {
			return fmt.Errorf("add %s to %s: %w", kid, e, ErrHasParent)
		}
		for a := e; a != nil; {
			if a.Ref == kid.Ref {
				return fmt.Errorf("add %s below itself: %w", kid, ErrHasParent)
			}
			a, err = a.Parent()
			if err != nil {
				// a flushed ancestor cannot be the unattached kid
				break
			}
		}
		kidDict["P"] = e.Ref
		err = e.tree.Doc.Store.Put(kid.Ref, kidDict)
		if err != nil {
			return err
		}
		obj = kid.Ref

	case *MCR:
		if e.IsRoot() {
			return ErrNotElement
		}
		pg, _ := dict["Pg"].(pdf.Reference)
		if kid.Kind == ContentItem && kid.Page == 0 {
			kid.Page = pg
		}
		if kid.Kind == ContentItem && kid.Page == 0 {
			return fmt.Errorf("MCID %d: %w", kid.MCID, errUnknownPage)
		}
		kid.Parent = e
		err := e.tree.Index.Register(kid)
		if err != nil {
			kid.Parent = nil
			return err
		}
		if pg == 0 && kid.Kind == ContentItem {
			pg = kid.Page
			dict["Pg"] = pg
		}
		obj = kid.encode(pg)

	case Tombstone:
		if e.IsRoot() {
			return ErrNotElement
		}
		obj = kid.Ref

	default:
		return fmt.Errorf("unsupported kid type %T", kid)
	}

	kids = slices.Insert(kids, index, obj)
	setKidObjects(dict, kids)
	return e.tree.Doc.Store.Put(e.Ref, dict)
}

// RemoveKid removes the kid at the given position and returns it.
// Content items are unregistered from the parent tree index.
func (e *Element) RemoveKid(index int) (Kid, error) {
	dict, err := e.dict()
	if err != nil {
		return nil, err
	}
	kids := kidObjects(dict)
	if index < 0 || index >= len(kids) {
		return nil, fmt.Errorf("kid index %d out of range [0, %d)", index, len(kids))
	}
	pg, _ := dict["Pg"].(pdf.Reference)
	kid, err := e.decodeKid(kids[index], pg)
	if err != nil {
		return nil, err
	}

	switch kid := kid.(type) {
	case *MCR:
		e.tree.Index.Unregister(kid)
	case *Element:
		kidDict, err := kid.dict()
		if err == nil {
			delete(kidDict, "P")
			err = e.tree.Doc.Store.Put(kid.Ref, kidDict)
		}
		if err != nil {
			return nil, err
		}
	}

	kids = slices.Delete(kids, index, index+1)
	setKidObjects(dict, kids)
	err = e.tree.Doc.Store.Put(e.Ref, dict)
	if err != nil {
		return nil, err
	}
	return kid, nil
}

// Dissolve removes e from the tree and puts its kids in its place among the
// kids of its parent.  Content items are written with an explicit page.
// The parent tree index is updated in place, so content on pages which
// have already been flushed keeps its entries.  The element is deleted
// from the store, and the former parent is returned.
//
// Nothing is changed if the kids cannot be moved, for example because one
// of them has been flushed.
func (e *Element) Dissolve() (*Element, error) {
	if e.IsRoot() {
		return nil, errors.New("cannot dissolve the structure tree root")
	}
	parent, err := e.Parent()
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%s is not attached to the tree", e)
	}
	dict, err := e.dict()
	if err != nil {
		return nil, err
	}
	parentDict, err := parent.dict()
	if err != nil {
		return nil, err
	}
	err = e.tree.Index.ensureScanned()
	if err != nil {
		return nil, err
	}

	pg, _ := dict["Pg"].(pdf.Reference)
	parentPg, _ := parentDict["Pg"].(pdf.Reference)
	setPg := false

	objs := kidObjects(dict)
	moved := make([]pdf.Object, 0, len(objs))
	var elemRefs []pdf.Reference
	var elemDicts []pdf.Dict
	for _, obj := range objs {
		kid, err := e.decodeKid(obj, pg)
		if err != nil {
			return nil, err
		}
		switch kid := kid.(type) {
		case Tombstone:
			return nil, fmt.Errorf("dissolve %s: kid %s: %w", e, kid.Ref, pdf.ErrFlushed)
		case *Element:
			kidDict, err := kid.dict()
			if err != nil {
				return nil, err
			}
			elemRefs = append(elemRefs, kid.Ref)
			elemDicts = append(elemDicts, kidDict)
			moved = append(moved, kid.Ref)
		case *MCR:
			if parent.IsRoot() {
				return nil, fmt.Errorf("dissolve %s: %w", e, ErrNotElement)
			}
			if parentPg == 0 && kid.Kind == ContentItem {
				parentPg = kid.Page
				setPg = true
			}
			kid.ExplicitPage = kid.Page != 0
			moved = append(moved, kid.encode(parentPg))
		}
	}
	if len(elemRefs) > 0 {
		class, err := parent.Class()
		if err != nil {
			return nil, err
		}
		if !class.CanContainElements() {
			return nil, fmt.Errorf("dissolve %s: %w", e, ErrCannotContainKids)
		}
	}
	kids := kidObjects(parentDict)
	idx := slices.Index(kids, pdf.Object(e.Ref))
	if idx < 0 {
		return nil, fmt.Errorf("%s is not a kid of %s", e, parent)
	}

	store := e.tree.Doc.Store
	kids = slices.Replace(kids, idx, idx+1, moved...)
	setKidObjects(parentDict, kids)
	if setPg {
		parentDict["Pg"] = parentPg
	}
	err = store.Put(parent.Ref, parentDict)
	if err != nil {
		return nil, err
	}
	for i, ref := range elemRefs {
		elemDicts[i]["P"] = parent.Ref
		err := store.Put(ref, elemDicts[i])
		if err != nil {
			return nil, err
		}
	}
	e.tree.Index.reparent(e, parent)
	if id, ok := dict["ID"].(pdf.String); ok && e.tree.ids[string(id)] == e.Ref {
		delete(e.tree.ids, string(id))
	}
	store.Delete(e.Ref)
	return parent, nil
}

// Flush writes the element to the output.  After this, the element can no
// longer be read or changed, and kid lists show a [Tombstone] instead.
// Unflushed descendants can no longer navigate to the flushed element.
func (e *Element) Flush() error {
	if e.IsRoot() {
		return errors.New("cannot flush the structure tree root")
	}
	if e.IsFlushed() {
		return nil
	}
	err := e.tree.Index.ensureScanned()
	if err != nil {
		return err
	}
	err = e.tree.Doc.Store.Flush(e.Ref)
	if err != nil {
		return err
	}
	e.tree.Index.partial = true
	return nil
}
