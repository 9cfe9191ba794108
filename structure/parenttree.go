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
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"seehuhn.de/go/pdfstruct/numtree"
	"seehuhn.de/go/pdfstruct/pdf"
)

// ParentTree is the index from content items to structure elements.
//
// Content items are kept in one bucket per page until the page is
// committed.  Committing a page moves its entries into a map of finished
// parent tree entries and drops the references to the leaves, so that the
// corresponding structure elements can be flushed.  The serialized number
// tree is only built by [ParentTree.Finalize].
//
// On first use, the index is populated by a scan of the whole structure
// tree.  After structural changes made behind the back of the index (for
// example by [Copy]), the index must be rebuilt using
// [ParentTree.Invalidate].  This is impossible once parts of the tree have
// been flushed.
type ParentTree struct {
	tree *Tree
	log  zerolog.Logger

	pages     map[pdf.Reference]*pageBucket
	committed map[pdf.Integer]pdf.Object
	sorted    *numtree.Sorted

	scanned bool
	partial bool
	dirty   bool
}

type pageBucket struct {
	content map[pdf.Integer]*MCR
	streams map[pdf.Reference]map[pdf.Integer]*MCR
	objects map[pdf.Integer]*MCR
}

func newParentTree(t *Tree) *ParentTree {
	return &ParentTree{
		tree:      t,
		log:       t.log.With().Str("component", "parenttree").Logger(),
		pages:     make(map[pdf.Reference]*pageBucket),
		committed: make(map[pdf.Integer]pdf.Object),
	}
}

func (pt *ParentTree) bucket(page pdf.Reference) *pageBucket {
	b := pt.pages[page]
	if b == nil {
		b = &pageBucket{
			content: make(map[pdf.Integer]*MCR),
			streams: make(map[pdf.Reference]map[pdf.Integer]*MCR),
			objects: make(map[pdf.Integer]*MCR),
		}
		pt.pages[page] = b
	}
	return b
}

// IsPartial reports whether parts of the structure tree have been flushed.
func (pt *ParentTree) IsPartial() bool {
	return pt.partial
}

// IsDirty reports whether the index changed since the last call to
// [Tree.Finalize].
func (pt *ParentTree) IsDirty() bool {
	return pt.dirty
}

// Register adds a content item to the index.  The Parent field of m must
// be set.
//
// Pages without a struct parent key are given a new key.  Form XObjects
// and annotations without a key cause an error in strict mode; otherwise a
// new key is assigned and a warning is logged.
func (pt *ParentTree) Register(m *MCR) error {
	err := pt.ensureScanned()
	if err != nil {
		return err
	}
	return pt.register(m)
}

func (pt *ParentTree) register(m *MCR) error {
	if m.Parent == nil {
		return errors.New("content item has no parent")
	}
	doc := pt.tree.Doc

	switch m.Kind {
	case ContentItem:
		page := doc.PageByRef(m.Page)
		if page == nil {
			return fmt.Errorf("%s: %w", m.Page, errUnknownPage)
		}
		if page.IsFlushed() {
			return fmt.Errorf("register %s: %w", m, ErrPageFlushed)
		}
		b := pt.bucket(m.Page)
		if _, dup := b.content[m.MCID]; dup {
			return fmt.Errorf("register %s: %w", m, ErrDuplicateMCID)
		}
		if key, ok := page.StructParents.Get(); ok {
			doc.ReserveStructParentIndex(key)
		} else {
			page.StructParents.Set(doc.NextStructParentIndex())
		}
		page.ReserveMCID(m.MCID)
		b.content[m.MCID] = m

	case StreamItem:
		form := doc.FormByRef(m.Stream)
		if form == nil {
			return fmt.Errorf("%s: %w", m.Stream, errUnknownForm)
		}
		if form.IsFlushed() {
			return fmt.Errorf("register %s: %w", m, pdf.ErrFlushed)
		}
		if pt.streamLeaf(m.Stream, m.MCID) != nil {
			return fmt.Errorf("register %s: %w", m, ErrDuplicateMCID)
		}
		if key, ok := form.StructParents.Get(); ok {
			doc.ReserveStructParentIndex(key)
		} else if doc.Strict {
			return fmt.Errorf("form %s: %w", m.Stream, ErrMissingStructParent)
		} else {
			key := doc.NextStructParentIndex()
			form.StructParents.Set(key)
			pt.log.Warn().Stringer("form", m.Stream).Int64("key", int64(key)).
				Msg("form XObject without struct parent key, assigned a new key")
		}
		form.ReserveMCID(m.MCID)
		b := pt.bucket(m.Page)
		leaves := b.streams[m.Stream]
		if leaves == nil {
			leaves = make(map[pdf.Integer]*MCR)
			b.streams[m.Stream] = leaves
		}
		leaves[m.MCID] = m

	case ObjectItem:
		store := doc.Store
		dict, err := pdf.GetDict(store, m.Obj)
		if err != nil || dict == nil {
			return fmt.Errorf("register %s: %w", m, ErrObjectTargetFlushed)
		}
		key, hasKey := dict["StructParent"].(pdf.Integer)
		if hasKey {
			doc.ReserveStructParentIndex(key)
		} else if doc.Strict {
			return fmt.Errorf("object %s: %w", m.Obj, ErrMissingStructParent)
		} else {
			key = doc.NextStructParentIndex()
			dict["StructParent"] = key
			err := store.Put(m.Obj, dict)
			if err != nil {
				return err
			}
			pt.log.Warn().Stringer("object", m.Obj).Int64("key", int64(key)).
				Msg("object without struct parent key, assigned a new key")
		}
		if old := pt.objectLeaf(key); old != nil && old.Obj != m.Obj {
			return fmt.Errorf("register %s: struct parent key %d is used by %s", m, key, old.Obj)
		}
		pt.bucket(m.Page).objects[key] = m

	default:
		return fmt.Errorf("unknown leaf kind %d", m.Kind)
	}

	pt.dirty = true
	pt.sorted = nil
	return nil
}

// Unregister removes a content item from the index.  If the last content
// item of a form XObject is removed, the struct parent key of the form is
// dropped as well.
func (pt *ParentTree) Unregister(m *MCR) {
	if err := pt.ensureScanned(); err != nil {
		pt.log.Warn().Err(err).Msg("cannot unregister content item")
		return
	}
	pt.dirty = true
	pt.sorted = nil

	switch m.Kind {
	case ContentItem:
		if b := pt.pages[m.Page]; b != nil {
			delete(b.content, m.MCID)
		}

	case StreamItem:
		for _, b := range pt.pages {
			leaves := b.streams[m.Stream]
			if leaves == nil {
				continue
			}
			delete(leaves, m.MCID)
			if len(leaves) == 0 {
				delete(b.streams, m.Stream)
			}
		}
		if !pt.streamInUse(m.Stream) {
			if form := pt.tree.Doc.FormByRef(m.Stream); form != nil && !form.IsFlushed() {
				form.StructParents.Clear()
			}
		}

	case ObjectItem:
		for _, b := range pt.pages {
			for key, leaf := range b.objects {
				if leaf.Obj == m.Obj {
					delete(b.objects, key)
				}
			}
		}
	}
}

// reparent hands all content items owned by from over to the element to.
// This covers live pages as well as committed entries.
func (pt *ParentTree) reparent(from, to *Element) {
	move := func(leaves map[pdf.Integer]*MCR) {
		for _, m := range leaves {
			if m.Parent.Equal(from) {
				m.Parent = to
			}
		}
	}
	for _, b := range pt.pages {
		move(b.content)
		for _, leaves := range b.streams {
			move(leaves)
		}
		move(b.objects)
	}
	for key, val := range pt.committed {
		switch val := val.(type) {
		case pdf.Reference:
			if val == from.Ref {
				pt.committed[key] = to.Ref
			}
		case pdf.Array:
			for i, obj := range val {
				if obj == from.Ref {
					val[i] = to.Ref
				}
			}
		}
	}
	pt.dirty = true
	pt.sorted = nil
}

func (pt *ParentTree) streamLeaf(stm pdf.Reference, mcid pdf.Integer) *MCR {
	for _, b := range pt.pages {
		if m := b.streams[stm][mcid]; m != nil {
			return m
		}
	}
	return nil
}

func (pt *ParentTree) streamInUse(stm pdf.Reference) bool {
	for _, b := range pt.pages {
		if len(b.streams[stm]) > 0 {
			return true
		}
	}
	return false
}

func (pt *ParentTree) objectLeaf(key pdf.Integer) *MCR {
	for _, b := range pt.pages {
		if m := b.objects[key]; m != nil {
			return m
		}
	}
	return nil
}

// ContentMCRs returns the content items of the page content stream, sorted
// by marked-content identifier.
func (pt *ParentTree) ContentMCRs(page pdf.Reference) []*MCR {
	if err := pt.ensureScanned(); err != nil {
		return nil
	}
	b := pt.pages[page]
	if b == nil {
		return nil
	}
	res := make([]*MCR, 0, len(b.content))
	for _, mcid := range slices.Sorted(maps.Keys(b.content)) {
		res = append(res, b.content[mcid])
	}
	return res
}

// PageLeaves returns all content items registered for the page: marked
// content of the page content stream in MCID order, followed by marked
// content in form XObjects and by object references.
func (pt *ParentTree) PageLeaves(page pdf.Reference) []*MCR {
	res := pt.ContentMCRs(page)
	b := pt.pages[page]
	if b == nil {
		return res
	}
	for _, stm := range slices.Sorted(maps.Keys(b.streams)) {
		leaves := b.streams[stm]
		for _, mcid := range slices.Sorted(maps.Keys(leaves)) {
			res = append(res, leaves[mcid])
		}
	}
	for _, key := range slices.Sorted(maps.Keys(b.objects)) {
		res = append(res, b.objects[key])
	}
	return res
}

// NextMCID returns one more than the largest marked-content identifier
// registered for the page, or 0 if there is none.
func (pt *ParentTree) NextMCID(page pdf.Reference) pdf.Integer {
	leaves := pt.ContentMCRs(page)
	if len(leaves) == 0 {
		return 0
	}
	return leaves[len(leaves)-1].MCID + 1
}

// ElementByMCID returns the structure element which owns the marked content
// with the given identifier on the given page.  If there is no such
// element, nil is returned.
func (pt *ParentTree) ElementByMCID(page pdf.Reference, mcid pdf.Integer) (*Element, error) {
	if err := pt.ensureScanned(); err != nil {
		return nil, err
	}
	if b := pt.pages[page]; b != nil {
		if m := b.content[mcid]; m != nil {
			return m.Parent, nil
		}
	}
	p := pt.tree.Doc.PageByRef(page)
	if p == nil {
		return nil, nil
	}
	key, ok := p.StructParents.Get()
	if !ok {
		return nil, nil
	}
	return pt.committedArrayEntry(key, mcid), nil
}

// ElementByStreamMCID returns the structure element which owns the marked
// content with the given identifier in a form XObject.
func (pt *ParentTree) ElementByStreamMCID(stm pdf.Reference, mcid pdf.Integer) (*Element, error) {
	if err := pt.ensureScanned(); err != nil {
		return nil, err
	}
	if m := pt.streamLeaf(stm, mcid); m != nil {
		return m.Parent, nil
	}
	form := pt.tree.Doc.FormByRef(stm)
	if form == nil {
		return nil, nil
	}
	key, ok := form.StructParents.Get()
	if !ok {
		return nil, nil
	}
	return pt.committedArrayEntry(key, mcid), nil
}

// ElementByStructParent returns the structure element which owns the
// object with the given struct parent key.
func (pt *ParentTree) ElementByStructParent(key pdf.Integer) (*Element, error) {
	if err := pt.ensureScanned(); err != nil {
		return nil, err
	}
	if m := pt.objectLeaf(key); m != nil {
		return m.Parent, nil
	}
	val, ok := pt.committedSorted().Get(key)
	if !ok {
		return nil, nil
	}
	if ref, ok := val.(pdf.Reference); ok {
		return pt.tree.Element(ref), nil
	}
	return nil, nil
}

func (pt *ParentTree) committedSorted() *numtree.Sorted {
	if pt.sorted == nil {
		pt.sorted = numtree.FromMap(pt.committed)
	}
	return pt.sorted
}

func (pt *ParentTree) committedArrayEntry(key, mcid pdf.Integer) *Element {
	val, ok := pt.committedSorted().Get(key)
	if !ok {
		return nil
	}
	arr, ok := val.(pdf.Array)
	if !ok || mcid < 0 || int(mcid) >= len(arr) {
		return nil
	}
	ref, ok := arr[mcid].(pdf.Reference)
	if !ok {
		return nil
	}
	return pt.tree.Element(ref)
}

// CommitPage moves the entries of a page into the finished part of the
// index.  This is called just before the page is flushed.  After this, the
// index no longer holds references to the content items of the page.
func (pt *ParentTree) CommitPage(page pdf.Reference) error {
	err := pt.ensureScanned()
	if err != nil {
		return err
	}
	b := pt.pages[page]
	delete(pt.pages, page)
	pt.partial = true
	if b == nil {
		return nil
	}
	err = pt.addEntries(pt.committed, page, b)
	if err != nil {
		return err
	}
	pt.dirty = true
	pt.sorted = nil
	return nil
}

// addEntries adds the parent tree entries for one page bucket to dst.
func (pt *ParentTree) addEntries(dst map[pdf.Integer]pdf.Object, page pdf.Reference, b *pageBucket) error {
	doc := pt.tree.Doc
	if len(b.content) > 0 {
		p := doc.PageByRef(page)
		if p == nil {
			return fmt.Errorf("%s: %w", page, errUnknownPage)
		}
		key, ok := p.StructParents.Get()
		if !ok {
			return fmt.Errorf("page %s: %w", page, ErrMissingStructParent)
		}
		mergeArray(dst, key, b.content)
	}
	for _, stm := range slices.Sorted(maps.Keys(b.streams)) {
		form := doc.FormByRef(stm)
		if form == nil {
			return fmt.Errorf("%s: %w", stm, errUnknownForm)
		}
		key, ok := form.StructParents.Get()
		if !ok {
			return fmt.Errorf("form %s: %w", stm, ErrMissingStructParent)
		}
		mergeArray(dst, key, b.streams[stm])
	}
	for key, m := range b.objects {
		dst[key] = m.Parent.Ref
	}
	return nil
}

// mergeArray stores the owners of the given leaves in the array at dst[key],
// so that the array position equals the MCID.  Missing positions are null.
func mergeArray(dst map[pdf.Integer]pdf.Object, key pdf.Integer, leaves map[pdf.Integer]*MCR) {
	arr, _ := dst[key].(pdf.Array)
	for mcid, m := range leaves {
		for pdf.Integer(len(arr)) <= mcid {
			arr = append(arr, nil)
		}
		arr[mcid] = m.Parent.Ref
	}
	dst[key] = arr
}

// Finalize returns all parent tree entries, from committed and from live
// pages, sorted by key.
func (pt *ParentTree) Finalize() (*numtree.Sorted, error) {
	err := pt.ensureScanned()
	if err != nil {
		return nil, err
	}
	all := make(map[pdf.Integer]pdf.Object, len(pt.committed))
	for key, val := range pt.committed {
		if arr, ok := val.(pdf.Array); ok {
			val = slices.Clone(arr)
		}
		all[key] = val
	}
	for _, page := range slices.Sorted(maps.Keys(pt.pages)) {
		err := pt.addEntries(all, page, pt.pages[page])
		if err != nil {
			return nil, err
		}
	}
	return numtree.FromMap(all), nil
}

// Invalidate discards the index.  It is rebuilt by a full scan of the
// structure tree on next use.  This fails with [ErrRebuildAfterFlush] once
// parts of the tree have been flushed.
func (pt *ParentTree) Invalidate() error {
	if pt.partial {
		return ErrRebuildAfterFlush
	}
	pt.pages = make(map[pdf.Reference]*pageBucket)
	pt.committed = make(map[pdf.Integer]pdf.Object)
	pt.sorted = nil
	pt.scanned = false
	pt.dirty = true
	return nil
}

// ensureScanned populates the index from the structure tree, if this has
// not been done yet.  Malformed content items are skipped with a warning.
func (pt *ParentTree) ensureScanned() error {
	if pt.scanned {
		return nil
	}
	pt.scanned = true

	seen := map[pdf.Reference]bool{pt.tree.Ref: true}
	todo := []*Element{pt.tree.Root()}
	for len(todo) > 0 {
		e := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		dict, err := e.dict()
		if err != nil {
			pt.log.Warn().Err(err).Msg("skipping unreadable structure element")
			continue
		}
		if id, ok := dict["ID"].(pdf.String); ok && !e.IsRoot() {
			pt.tree.ids[string(id)] = e.Ref
		}
		pg, _ := dict["Pg"].(pdf.Reference)

		kids := kidObjects(dict)
		var elems []*Element
		for _, obj := range kids {
			kid, err := e.decodeKid(obj, pg)
			if err != nil {
				pt.log.Warn().Err(err).Stringer("parent", e.Ref).Msg("skipping malformed kid")
				continue
			}
			switch kid := kid.(type) {
			case *Element:
				if seen[kid.Ref] {
					pt.log.Warn().Stringer("element", kid.Ref).Msg("structure element visited twice")
					continue
				}
				seen[kid.Ref] = true
				elems = append(elems, kid)
			case *MCR:
				if e.IsRoot() {
					pt.log.Warn().Msg("skipping content item below the structure tree root")
					continue
				}
				err := pt.register(kid)
				if err != nil {
					pt.log.Warn().Err(err).Stringer("parent", e.Ref).Msg("skipping content item")
				}
			}
		}
		for i := len(elems) - 1; i >= 0; i-- {
			todo = append(todo, elems[i])
		}
	}
	return nil
}
