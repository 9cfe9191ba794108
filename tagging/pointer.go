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
	"errors"
	"fmt"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// Pointer is a cursor into the structure tree of a [Context].
//
// New kids are inserted at the position set by [Pointer.SetNextIndex], or
// appended if no position is set.  The position is reset after each
// insertion.
type Pointer struct {
	ctx       *Context
	current   *structure.Element
	page      *document.Page
	ns        *structure.Namespace
	nextIndex int
}

// Clone returns an independent copy of the pointer.
func (p *Pointer) Clone() *Pointer {
	q := *p
	return &q
}

// Current returns the structure element the pointer is positioned at.
func (p *Pointer) Current() *structure.Element {
	return p.current
}

// Role returns the role of the current element.
// At the structure tree root, the empty name is returned.
func (p *Pointer) Role() (pdf.Name, error) {
	return p.current.Role()
}

func (p *Pointer) moveTo(e *structure.Element) {
	p.current = e
	p.nextIndex = -1
}

// MoveToRoot moves the pointer to the structure tree root.
func (p *Pointer) MoveToRoot() {
	p.moveTo(p.ctx.Tree.Root())
}

// MoveToParent moves the pointer to the parent of the current element.
func (p *Pointer) MoveToParent() error {
	if p.current.IsRoot() {
		return ErrAtRoot
	}
	parent, err := p.current.Parent()
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%s is not attached to the tree", p.current)
	}
	p.moveTo(parent)
	return nil
}

// MoveToKid moves the pointer to the kid with the given index.
// The kid must be a structure element.
func (p *Pointer) MoveToKid(index int) error {
	kids, err := p.current.Kids()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(kids) {
		return fmt.Errorf("kid %d of %s: %w", index, p.current, ErrNoSuchKid)
	}
	switch kid := kids[index].(type) {
	case *structure.Element:
		p.moveTo(kid)
		return nil
	case structure.Tombstone:
		return fmt.Errorf("kid %d of %s: %w", index, p.current, pdf.ErrFlushed)
	default:
		return fmt.Errorf("kid %d of %s is a content item: %w", index, p.current, ErrNoSuchKid)
	}
}

// MoveToKidRole moves the pointer to the n-th kid (counting from 0) which
// has the given role.
func (p *Pointer) MoveToKidRole(n int, role pdf.Name) error {
	kids, err := p.current.Kids()
	if err != nil {
		return err
	}
	for _, kid := range kids {
		e, ok := kid.(*structure.Element)
		if !ok {
			continue
		}
		r, err := e.Role()
		if err != nil {
			return err
		}
		if r != role {
			continue
		}
		if n == 0 {
			p.moveTo(e)
			return nil
		}
		n--
	}
	return fmt.Errorf("%q kid of %s: %w", role, p.current, ErrNoSuchKid)
}

// SetPage sets the page which new marked content belongs to.
func (p *Pointer) SetPage(page *document.Page) {
	p.page = page
}

// Page returns the page set by [Pointer.SetPage].
func (p *Pointer) Page() *document.Page {
	return p.page
}

// SetNamespace sets the namespace of tags created by [Pointer.AddTag].
func (p *Pointer) SetNamespace(ns *structure.Namespace) {
	p.ns = ns
}

// SetNextIndex sets the position at which the next kid is inserted.
// A negative index appends.
func (p *Pointer) SetNextIndex(index int) {
	p.nextIndex = index
}

func (p *Pointer) takeIndex() int {
	idx := p.nextIndex
	p.nextIndex = -1
	return idx
}

// AddTag creates a new structure element with the given role below the
// current element and moves the pointer to it.
func (p *Pointer) AddTag(role pdf.Name) error {
	props := &Properties{Role: role, Namespace: p.ns}
	e, err := p.ctx.createTag(p.current, p.nextIndex, props, "")
	if err != nil {
		return err
	}
	p.moveTo(e)
	return nil
}

// AddTagFor moves the pointer to the tag of a model element.
//
// If a is associated with a waiting tag whose parent is the current
// element, the pointer moves there.  Otherwise a new tag is created from
// the properties of a.  If keepConnected is set, the new tag is associated
// with a until [Context.RemoveWaiting] is called.
func (p *Pointer) AddTagFor(a Accessible, keepConnected bool) error {
	if e := p.ctx.waiting[a]; e != nil && !e.IsFlushed() {
		parent, err := e.Parent()
		if err == nil && parent != nil && parent.Equal(p.current) {
			p.moveTo(e)
			return nil
		}
	}

	e, err := p.ctx.createTag(p.current, p.nextIndex, a.AccessibilityProperties(), "")
	if err != nil {
		return err
	}
	if keepConnected {
		p.ctx.assignWaiting(e, a)
	}
	p.moveTo(e)
	return nil
}

// RemoveTag removes the current element from the tree.  Its kids take its
// place in the parent, and the pointer moves to the parent.
func (p *Pointer) RemoveTag() error {
	if p.current.IsRoot() {
		return ErrAtRoot
	}
	parent, err := p.ctx.spliceOut(p.current)
	if err != nil {
		return err
	}
	p.moveTo(parent)
	return nil
}

// MoveTag moves the current element to the position of dst.  Afterwards,
// p points to the former parent of the element.
func (p *Pointer) MoveTag(dst *Pointer) error {
	e := p.current
	if e.IsRoot() {
		return ErrAtRoot
	}
	for a := dst.current; a != nil && !a.IsRoot(); {
		if a.Equal(e) {
			return errors.New("cannot move a tag below itself")
		}
		var err error
		a, err = a.Parent()
		if err != nil {
			return err
		}
	}
	class, err := dst.current.Class()
	if err != nil {
		return err
	}
	if !class.CanContainElements() {
		return fmt.Errorf("move %s to %s: %w", e, dst.current, structure.ErrCannotContainKids)
	}

	parent, err := e.Parent()
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%s is not attached to the tree", e)
	}
	idx, err := parent.IndexOf(e.Ref)
	if err != nil {
		return err
	}
	_, err = parent.RemoveKid(idx)
	if err != nil {
		return err
	}

	index := dst.takeIndex()
	if dst.current.Equal(parent) && index > idx {
		index--
	}
	err = dst.current.AddKid(index, e)
	if err != nil {
		return err
	}
	p.moveTo(parent)
	return nil
}

// AddMarkedContent allocates a marked-content identifier on the current
// page and adds a content item for it below the current element.  The
// returned MCID must be used for the BDC operator.
func (p *Pointer) AddMarkedContent() (pdf.Integer, error) {
	if p.page == nil {
		return 0, ErrNoPage
	}
	mcid := p.page.NextMCID()
	err := p.current.AddKid(p.takeIndex(), structure.NewContentItem(p.page.Ref, mcid))
	if err != nil {
		return 0, err
	}
	return mcid, nil
}

// AddStreamContent allocates a marked-content identifier in a form
// XObject and adds a content item for it below the current element.  The form is
// given a struct parent key if it has none.
func (p *Pointer) AddStreamContent(f *document.Form) (pdf.Integer, error) {
	if p.current.IsRoot() {
		return 0, structure.ErrNotElement
	}
	if !f.StructParents.IsSet() {
		f.StructParents.Set(p.ctx.Doc.NextStructParentIndex())
	}
	var pg pdf.Reference
	if p.page != nil {
		pg = p.page.Ref
	}
	mcid := f.NextMCID()
	err := p.current.AddKid(p.takeIndex(), structure.NewStreamItem(f.Ref, mcid, pg))
	if err != nil {
		return 0, err
	}
	return mcid, nil
}

// AddAnnotation adds an object reference to an annotation below the
// current element.  The annotation is given a struct parent key if it has
// none.
func (p *Pointer) AddAnnotation(annot pdf.Reference) error {
	if p.current.IsRoot() {
		return structure.ErrNotElement
	}
	store := p.ctx.Doc.Store
	dict, err := pdf.GetDict(store, annot)
	if err != nil || dict == nil {
		return fmt.Errorf("annotation %s: %w", annot, structure.ErrObjectTargetFlushed)
	}
	if _, ok := dict["StructParent"].(pdf.Integer); !ok {
		dict["StructParent"] = p.ctx.Doc.NextStructParentIndex()
		err = store.Put(annot, dict)
		if err != nil {
			return err
		}
	}

	pg, _ := dict["P"].(pdf.Reference)
	if pg == 0 && p.page != nil {
		pg = p.page.Ref
	}
	return p.current.AddKid(p.takeIndex(), structure.NewObjectItem(annot, pg))
}

// KidsRoles returns the roles of the kids of the current element.
// Content items are reported as "MCR" or "OBJR", flushed elements as the
// empty name.
func (p *Pointer) KidsRoles() ([]pdf.Name, error) {
	kids, err := p.current.Kids()
	if err != nil {
		return nil, err
	}
	res := make([]pdf.Name, len(kids))
	for i, kid := range kids {
		switch kid := kid.(type) {
		case *structure.Element:
			res[i], err = kid.Role()
			if err != nil {
				return nil, err
			}
		case *structure.MCR:
			if kid.Kind == structure.ObjectItem {
				res[i] = "OBJR"
			} else {
				res[i] = "MCR"
			}
		}
	}
	return res, nil
}

// SetRole changes the role of the current element.
func (p *Pointer) SetRole(role pdf.Name) error {
	if p.current.IsRoot() {
		return ErrAtRoot
	}
	ns, err := p.current.Namespace()
	if err != nil {
		return err
	}
	err = p.ctx.ValidateRole(role, ns)
	if err != nil {
		return err
	}
	return p.current.SetRole(role)
}

// Properties returns the properties of the current element.
func (p *Pointer) Properties() (*Properties, error) {
	if p.current.IsRoot() {
		return nil, ErrAtRoot
	}
	return readProperties(p.current)
}

// SetProperties overwrites the properties of the current element.
// Role and namespace are not changed.
func (p *Pointer) SetProperties(props *Properties) error {
	if p.current.IsRoot() {
		return ErrAtRoot
	}
	return props.apply(p.current)
}
