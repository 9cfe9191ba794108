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
	"slices"

	"github.com/rs/zerolog"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Copy copies the parts of the structure tree src which belong to the
// given pages into the structure tree dst.
//
// The pages must already have been copied, for example using
// [document.Document.ImportPages]; pageMap maps source page references to
// destination page references and copier must be the copier used to copy
// the pages.  Only structure elements which are ancestors of content items
// on the copied pages are copied.  The top-level elements are inserted
// into the destination root at position insertAt, in their original
// order; a negative insertAt appends them.
//
// Object references are only kept if the referenced object has been copied
// and is linked to a page.  The parent tree index of dst is rebuilt
// afterwards.
func Copy(dst, src *Tree, copier *pdf.Copier, pageMap map[pdf.Reference]pdf.Reference, insertAt int) error {
	if dst.Index.IsPartial() {
		return ErrRebuildAfterFlush
	}
	err := src.Index.ensureScanned()
	if err != nil {
		return err
	}

	c := &treeCopier{
		dst:     dst,
		src:     src,
		copier:  copier,
		pageMap: pageMap,
		toCopy:  make(map[pdf.Reference]bool),
		pending: make(map[pdf.Reference]pdf.Array),
		log:     dst.log.With().Str("component", "copy").Logger(),
	}

	// collect the content items on the copied pages
	var leaves []*MCR
	for _, p := range src.Doc.Pages() {
		if _, ok := pageMap[p.Ref]; ok {
			leaves = append(leaves, src.Index.PageLeaves(p.Ref)...)
		}
	}
	for _, m := range src.Index.PageLeaves(0) {
		switch m.Kind {
		case StreamItem:
			if _, ok := copier.Lookup(m.Stream); ok {
				leaves = append(leaves, m)
			}
		case ObjectItem:
			if _, ok := copier.Lookup(m.Obj); ok {
				leaves = append(leaves, m)
			}
		}
	}

	// find all ancestors of these items, up to the root
	tops := make(map[pdf.Reference]bool)
	for _, m := range leaves {
		var chain []*Element
		e := m.Parent
		attached := false
		for e != nil && !e.IsRoot() {
			if c.toCopy[e.Ref] {
				attached = true
				break
			}
			chain = append(chain, e)
			parent, err := e.Parent()
			if err != nil {
				return err
			}
			if parent != nil && parent.IsRoot() {
				tops[e.Ref] = true
				attached = true
				break
			}
			e = parent
		}
		if !attached {
			continue
		}
		for _, e := range chain {
			c.toCopy[e.Ref] = true
		}
	}

	// copy the top-level elements, in document order
	srcRoot, err := src.rootDict()
	if err != nil {
		return err
	}
	var newTops []pdf.Object
	for _, obj := range kidObjects(srcRoot) {
		ref, ok := obj.(pdf.Reference)
		if !ok || !tops[ref] {
			continue
		}
		newRef, err := c.copyElement(ref, dst.Ref)
		if err != nil {
			return err
		}
		newTops = append(newTops, newRef)
	}
	err = c.fixReferences()
	if err != nil {
		return err
	}

	dstRoot, err := dst.rootDict()
	if err != nil {
		return err
	}
	kids := kidObjects(dstRoot)
	if insertAt < 0 || insertAt > len(kids) {
		insertAt = len(kids)
	}
	kids = slices.Insert(kids, insertAt, newTops...)
	setKidObjects(dstRoot, kids)
	err = dst.Doc.Store.Put(dst.Ref, dstRoot)
	if err != nil {
		return err
	}

	err = mergeRoleMaps(dst, src)
	if err != nil {
		return err
	}

	return dst.Index.Invalidate()
}

type treeCopier struct {
	dst, src *Tree
	copier   *pdf.Copier
	pageMap  map[pdf.Reference]pdf.Reference
	toCopy   map[pdf.Reference]bool
	pending  map[pdf.Reference]pdf.Array
	log      zerolog.Logger
}

func (c *treeCopier) copyElement(srcRef, dstParent pdf.Reference) (pdf.Reference, error) {
	srcStore := c.src.Doc.Store
	dstStore := c.dst.Doc.Store

	dict, err := pdf.GetDict(srcStore, srcRef)
	if err != nil {
		return 0, err
	}
	newDict, err := c.copier.CopyDict(dict, "K", "P", "Pg", "Obj", "NS", "Ref", "ID")
	if err != nil {
		return 0, err
	}
	newRef := dstStore.Alloc()
	c.copier.Redirect(srcRef, newRef)
	newDict["P"] = dstParent

	var dstPg pdf.Reference
	if srcPg, ok := dict["Pg"].(pdf.Reference); ok {
		dstPg = c.pageMap[srcPg]
		if dstPg != 0 {
			newDict["Pg"] = dstPg
		}
	}

	if nsRef, ok := dict["NS"].(pdf.Reference); ok {
		srcNS, err := c.src.namespaceByRef(nsRef)
		if err == nil {
			var dstNS *Namespace
			dstNS, err = c.dst.Namespace(srcNS.URI)
			if err == nil {
				newDict["NS"] = dstNS.Ref
			}
		}
		if err != nil {
			c.log.Warn().Err(err).Stringer("element", srcRef).Msg("dropping namespace")
		}
	}

	if id, ok := dict["ID"].(pdf.String); ok {
		if _, used := c.dst.ids[string(id)]; !used {
			newDict["ID"] = id
			c.dst.ids[string(id)] = newRef
		}
	}

	if refs, ok := dict["Ref"].(pdf.Array); ok {
		c.pending[newRef] = refs
	}

	var newKids []pdf.Object
	for _, obj := range kidObjects(dict) {
		switch obj := obj.(type) {
		case pdf.Integer:
			if dstPg != 0 {
				newKids = append(newKids, obj)
			}
		case pdf.Dict:
			if leaf := c.copyLeaf(obj, dstPg); leaf != nil {
				newKids = append(newKids, leaf)
			}
		case pdf.Reference:
			val, err := srcStore.Get(obj)
			if errors.Is(err, pdf.ErrFlushed) {
				continue
			} else if err != nil {
				return 0, err
			}
			kidDict, _ := val.(pdf.Dict)
			switch kidDict["Type"] {
			case pdf.Name("MCR"), pdf.Name("OBJR"):
				if leaf := c.copyLeaf(kidDict, dstPg); leaf != nil {
					newKids = append(newKids, leaf)
				}
				continue
			}
			if !c.toCopy[obj] {
				continue
			}
			newKid, err := c.copyElement(obj, newRef)
			if err != nil {
				return 0, err
			}
			newKids = append(newKids, newKid)
		}
	}
	setKidObjects(newDict, newKids)

	err = dstStore.Put(newRef, newDict)
	if err != nil {
		return 0, err
	}
	return newRef, nil
}

// copyLeaf copies an MCR or OBJR dictionary.  If the content item does
// not belong to a copied page or object, nil is returned.
func (c *treeCopier) copyLeaf(dict pdf.Dict, parentPg pdf.Reference) pdf.Object {
	res := pdf.Dict{"Type": dict["Type"]}
	pg := parentPg
	if srcPg, ok := dict["Pg"].(pdf.Reference); ok {
		pg = c.pageMap[srcPg]
		if pg == 0 {
			return nil
		}
		res["Pg"] = pg
	}

	switch dict["Type"] {
	case pdf.Name("MCR"):
		mcid, ok := dict["MCID"].(pdf.Integer)
		if !ok {
			return nil
		}
		res["MCID"] = mcid
		if stm, ok := dict["Stm"].(pdf.Reference); ok {
			newStm, ok := c.copier.Lookup(stm)
			if !ok {
				return nil
			}
			res["Stm"] = newStm
		} else if pg == 0 {
			return nil
		}
		return res

	case pdf.Name("OBJR"):
		obj, ok := dict["Obj"].(pdf.Reference)
		if !ok {
			return nil
		}
		newObj, ok := c.copier.Lookup(obj)
		if !ok {
			c.log.Debug().Stringer("object", obj).Msg("dropping reference to object which was not copied")
			return nil
		}
		store := c.dst.Doc.Store
		target, err := pdf.GetDict(store, newObj)
		if err != nil || target == nil {
			return nil
		}
		if _, onPage := target["P"].(pdf.Reference); !onPage {
			c.log.Debug().Stringer("object", newObj).Msg("dropping reference to object without page")
			return nil
		}
		target["StructParent"] = c.dst.Doc.NextStructParentIndex()
		if err := store.Put(newObj, target); err != nil {
			return nil
		}
		res["Obj"] = newObj
		return res
	}
	return nil
}

// fixReferences translates the Ref entries of the copied elements.
// References to elements which were not copied are dropped.
func (c *treeCopier) fixReferences() error {
	store := c.dst.Doc.Store
	for newRef, refs := range c.pending {
		var res pdf.Array
		for _, obj := range refs {
			ref, ok := obj.(pdf.Reference)
			if !ok {
				continue
			}
			if translated, ok := c.copier.Lookup(ref); ok {
				res = append(res, translated)
			}
		}
		if len(res) == 0 {
			continue
		}
		dict, err := pdf.GetDict(store, newRef)
		if err != nil {
			return err
		}
		dict["Ref"] = res
		err = store.Put(newRef, dict)
		if err != nil {
			return err
		}
	}
	return nil
}

// mergeRoleMaps adds the role map entries of src which are missing in dst.
func mergeRoleMaps(dst, src *Tree) error {
	srcMap, err := src.RoleMap()
	if err != nil {
		return err
	}
	dstMap, err := dst.RoleMap()
	if err != nil {
		return err
	}
	for role, target := range srcMap {
		if _, exists := dstMap[role]; exists {
			continue
		}
		err := dst.AddRoleMapping(role, target)
		if err != nil {
			return err
		}
	}
	return nil
}
