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
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/numtree"
	"seehuhn.de/go/pdfstruct/pdf"
)

// Tree is the structure tree of a document.
type Tree struct {
	// Doc is the document the tree belongs to.
	Doc *document.Document

	// Ref is the reference of the structure tree root dictionary.
	Ref pdf.Reference

	// Index maps content items to their structure elements.
	Index *ParentTree

	// BalancedParentTree selects a balanced number tree with Kids and Limits
	// for the parent tree.  By default a single Nums array is written.
	BalancedParentTree bool

	log zerolog.Logger

	namespaces []*Namespace
	nsByURI    map[string]*Namespace
	nsByRef    map[pdf.Reference]*Namespace

	ids map[string]pdf.Reference
}

// NewTree creates a new, empty structure tree for doc and registers it in
// the document catalog.
func NewTree(doc *document.Document) (*Tree, error) {
	ref := doc.Store.Alloc()
	err := doc.Store.Put(ref, pdf.Dict{
		"Type": pdf.Name("StructTreeRoot"),
	})
	if err != nil {
		return nil, err
	}
	t := newTree(doc, ref)
	doc.StructTreeRoot = ref
	return t, nil
}

// OpenTree returns the structure tree whose root dictionary is stored
// under ref.  The parent tree index is built on first use.
func OpenTree(doc *document.Document, ref pdf.Reference) (*Tree, error) {
	root, err := pdf.GetDict(doc.Store, ref)
	if err != nil {
		return nil, err
	}
	if tp, _ := root["Type"].(pdf.Name); tp != "StructTreeRoot" {
		return nil, pdf.Malformed(ref, fmt.Errorf("expected StructTreeRoot, got %q", tp))
	}
	t := newTree(doc, ref)

	nsList, err := pdf.GetArray(doc.Store, root["Namespaces"])
	if err != nil {
		return nil, err
	}
	for _, obj := range nsList {
		if nsRef, ok := obj.(pdf.Reference); ok {
			if _, err := t.namespaceByRef(nsRef); err != nil {
				t.log.Warn().Err(err).Stringer("ref", nsRef).Msg("skipping malformed namespace")
			}
		}
	}
	if next, err := pdf.GetInteger(doc.Store, root["ParentTreeNextKey"]); err == nil && next > 0 {
		doc.ReserveStructParentIndex(next - 1)
	}
	doc.StructTreeRoot = ref
	return t, nil
}

func newTree(doc *document.Document, ref pdf.Reference) *Tree {
	t := &Tree{
		Doc:     doc,
		Ref:     ref,
		log:     doc.Log.With().Str("component", "structure").Logger(),
		nsByURI: make(map[string]*Namespace),
		nsByRef: make(map[pdf.Reference]*Namespace),
		ids:     make(map[string]pdf.Reference),
	}
	t.Index = newParentTree(t)
	return t
}

// Root returns the structure tree root as an element handle.
// The root has no role and no parent.
func (t *Tree) Root() *Element {
	return &Element{tree: t, Ref: t.Ref}
}

// Element returns a handle for the structure element stored under ref.
func (t *Tree) Element(ref pdf.Reference) *Element {
	return &Element{tree: t, Ref: ref}
}

func (t *Tree) rootDict() (pdf.Dict, error) {
	return pdf.GetDict(t.Doc.Store, t.Ref)
}

// NewElement creates a new structure element with the given role.
// The element is not yet part of the tree; use [Element.AddKid] to attach
// it.
func (t *Tree) NewElement(role pdf.Name) (*Element, error) {
	ref := t.Doc.Store.Alloc()
	err := t.Doc.Store.Put(ref, pdf.Dict{
		"Type": pdf.Name("StructElem"),
		"S":    role,
	})
	if err != nil {
		return nil, err
	}
	return &Element{tree: t, Ref: ref}, nil
}

// Finalize writes the parent tree, the role map, the namespaces and the ID
// tree to the structure tree root.  The tree should not be modified after
// this.
func (t *Tree) Finalize() error {
	root, err := t.rootDict()
	if err != nil {
		return err
	}
	store := t.Doc.Store

	entries, err := t.Index.Finalize()
	if err != nil {
		return err
	}
	var ptRef pdf.Reference
	if t.BalancedParentTree {
		ptRef, err = numtree.Write(store, entries.All())
	} else {
		ptRef, err = numtree.WriteFlat(store, entries.All())
	}
	if err != nil {
		return err
	}
	root["ParentTree"] = ptRef

	nextKey := t.Doc.StructParentNextKey()
	if m := entries.Max(); m >= nextKey {
		nextKey = m + 1
	}
	root["ParentTreeNextKey"] = nextKey

	if len(t.namespaces) > 0 {
		nsList := make(pdf.Array, len(t.namespaces))
		for i, ns := range t.namespaces {
			nsList[i] = ns.Ref
		}
		root["Namespaces"] = nsList
	}

	if len(t.ids) > 0 {
		names := pdf.Array{}
		for _, id := range slices.Sorted(maps.Keys(t.ids)) {
			names = append(names, pdf.TextString(id), t.ids[id])
		}
		idTree := store.Alloc()
		err = store.Put(idTree, pdf.Dict{"Names": names})
		if err != nil {
			return err
		}
		root["IDTree"] = idTree
	}

	err = store.Put(t.Ref, root)
	if err != nil {
		return err
	}
	t.Index.dirty = false
	return nil
}

// Walk calls fn for every structure element which can be reached from the
// root, in depth-first order.  Flushed elements are skipped.  If fn returns
// false, the kids of the element are not visited.
func (t *Tree) Walk(fn func(e *Element, depth int) bool) error {
	var walk func(e *Element, depth int) error
	walk = func(e *Element, depth int) error {
		kids, err := e.Kids()
		if err != nil {
			return err
		}
		for _, kid := range kids {
			child, ok := kid.(*Element)
			if !ok {
				continue
			}
			if fn(child, depth) {
				err := walk(child, depth+1)
				if err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(t.Root(), 0)
}
