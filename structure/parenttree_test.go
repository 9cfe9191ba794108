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
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/numtree"
	"seehuhn.de/go/pdfstruct/pdf"
)

// buildParagraph creates a paragraph with n marked-content sequences on
// the given page.
func buildParagraph(t *testing.T, tree *Tree, page *document.Page, n int) *Element {
	t.Helper()
	p := addElement(t, tree.Root(), "P")
	for range n {
		err := p.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
		if err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestCommitPage(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := buildParagraph(t, tree, page, 3)

	key, ok := page.StructParents.Get()
	if !ok {
		t.Fatal("page has no struct parent key")
	}
	err := tree.Index.CommitPage(page.Ref)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := tree.Index.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	val, _ := entries.Get(pdf.Integer(key))
	want := pdf.Array{x.Ref, x.Ref, x.Ref}
	if d := cmp.Diff(want, val); d != "" {
		t.Errorf("parent tree entry mismatch (-want +got):\n%s", d)
	}

	// lookups still work from the committed entries
	e, err := tree.Index.ElementByMCID(page.Ref, 2)
	if err != nil || e == nil || e.Ref != x.Ref {
		t.Errorf("ElementByMCID() = %v, %v", e, err)
	}
}

func TestCommitPageWithGap(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := buildParagraph(t, tree, page, 3)

	_, err := x.RemoveKid(1)
	if err != nil {
		t.Fatal(err)
	}
	err = tree.Index.CommitPage(page.Ref)
	if err != nil {
		t.Fatal(err)
	}

	key, _ := page.StructParents.Get()
	entries, err := tree.Index.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	val, _ := entries.Get(pdf.Integer(key))
	want := pdf.Array{x.Ref, nil, x.Ref}
	if d := cmp.Diff(want, val); d != "" {
		t.Errorf("parent tree entry mismatch (-want +got):\n%s", d)
	}
}

func TestDuplicateMCID(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := buildParagraph(t, tree, page, 1)

	err := x.AddKid(-1, NewContentItem(page.Ref, 0))
	if !errors.Is(err, ErrDuplicateMCID) {
		t.Errorf("expected ErrDuplicateMCID, got %v", err)
	}
	if n, _ := x.NumKids(); n != 1 {
		t.Errorf("element has %d kids after failed AddKid", n)
	}
	if next := tree.Index.NextMCID(page.Ref); next != 1 {
		t.Errorf("NextMCID() = %d", next)
	}
}

func TestFlushedPage(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := buildParagraph(t, tree, page, 1)

	err := tree.Index.CommitPage(page.Ref)
	if err != nil {
		t.Fatal(err)
	}
	err = doc.FlushPage(page)
	if err != nil {
		t.Fatal(err)
	}
	err = x.AddKid(-1, NewContentItem(page.Ref, 5))
	if !errors.Is(err, ErrPageFlushed) {
		t.Errorf("expected ErrPageFlushed, got %v", err)
	}
}

func TestStrictMissingStructParent(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, &document.Options{Strict: true})
	page := doc.AddPage()
	annot, err := doc.AddAnnotation(page, "Link", rect.Rect{URx: 10, URy: 10})
	if err != nil {
		t.Fatal(err)
	}
	form := doc.NewForm(rect.Rect{URx: 10, URy: 10})

	link := addElement(t, tree.Root(), "Link")
	err = link.AddKid(-1, NewObjectItem(annot, page.Ref))
	if !errors.Is(err, ErrMissingStructParent) {
		t.Errorf("expected ErrMissingStructParent, got %v", err)
	}
	err = link.AddKid(-1, NewStreamItem(form.Ref, 0, page.Ref))
	if !errors.Is(err, ErrMissingStructParent) {
		t.Errorf("expected ErrMissingStructParent, got %v", err)
	}
	if n, _ := link.NumKids(); n != 0 {
		t.Errorf("element has %d kids after failed AddKid", n)
	}

	// with an explicit key, the same operations succeed
	dict, _ := pdf.GetDict(doc.Store, annot)
	dict["StructParent"] = doc.NextStructParentIndex()
	if err := doc.Store.Put(annot, dict); err != nil {
		t.Fatal(err)
	}
	form.StructParents.Set(doc.NextStructParentIndex())

	err = link.AddKid(-1, NewObjectItem(annot, page.Ref))
	if err != nil {
		t.Error(err)
	}
	err = link.AddKid(-1, NewStreamItem(form.Ref, 0, page.Ref))
	if err != nil {
		t.Error(err)
	}
}

func TestStreamItems(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	form := doc.NewForm(rect.Rect{URx: 10, URy: 10})
	form.StructParents.Set(doc.NextStructParentIndex())

	fig := addElement(t, tree.Root(), "Figure")
	err := fig.AddKid(-1, NewStreamItem(form.Ref, form.NextMCID(), page.Ref))
	if err != nil {
		t.Fatal(err)
	}
	err = fig.AddKid(-1, NewStreamItem(form.Ref, 0, page.Ref))
	if !errors.Is(err, ErrDuplicateMCID) {
		t.Errorf("expected ErrDuplicateMCID, got %v", err)
	}

	e, err := tree.Index.ElementByStreamMCID(form.Ref, 0)
	if err != nil || e == nil || e.Ref != fig.Ref {
		t.Errorf("ElementByStreamMCID() = %v, %v", e, err)
	}

	_, err = fig.RemoveKid(0)
	if err != nil {
		t.Fatal(err)
	}
	if form.StructParents.IsSet() {
		t.Error("struct parent key of unused form was kept")
	}
}

func TestObjectItems(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	annot, _ := doc.AddAnnotation(page, "Link", rect.Rect{URx: 10, URy: 10})
	dict, _ := pdf.GetDict(doc.Store, annot)
	key := doc.NextStructParentIndex()
	dict["StructParent"] = key
	if err := doc.Store.Put(annot, dict); err != nil {
		t.Fatal(err)
	}

	link := addElement(t, tree.Root(), "Link")
	err := link.AddKid(-1, NewObjectItem(annot, page.Ref))
	if err != nil {
		t.Fatal(err)
	}

	e, err := tree.Index.ElementByStructParent(key)
	if err != nil || e == nil || e.Ref != link.Ref {
		t.Errorf("ElementByStructParent() = %v, %v", e, err)
	}

	entries, err := tree.Index.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	val, _ := entries.Get(key)
	if val != link.Ref {
		t.Errorf("parent tree entry %d is %v", key, val)
	}
}

func TestParentTreeRoundTrip(t *testing.T) {
	for _, balanced := range []bool{false, true} {
		doc, tree := newTestTree(t, pdf.V1_7, nil)
		tree.BalancedParentTree = balanced
		var pages []*document.Page
		var paras []*Element
		for range 70 {
			page := doc.AddPage()
			pages = append(pages, page)
			paras = append(paras, buildParagraph(t, tree, page, 2))
		}

		err := tree.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		if tree.Index.IsDirty() {
			t.Error("index dirty after Finalize")
		}

		want, err := tree.Index.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		root, _ := pdf.GetDict(doc.Store, tree.Ref)
		got, err := numtree.Read(doc.Store, root["ParentTree"])
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(want, got); d != "" {
			t.Errorf("balanced=%t: parent tree mismatch (-want +got):\n%s", balanced, d)
		}
		if root["ParentTreeNextKey"] != pdf.Integer(70) {
			t.Errorf("ParentTreeNextKey = %v", root["ParentTreeNextKey"])
		}

		// a fresh handle rebuilds the same index from the tree
		tree2, err := OpenTree(doc, tree.Ref)
		if err != nil {
			t.Fatal(err)
		}
		for i, page := range pages {
			e, err := tree2.Index.ElementByMCID(page.Ref, 1)
			if err != nil || e == nil || e.Ref != paras[i].Ref {
				t.Errorf("page %d: ElementByMCID() = %v, %v", i, e, err)
			}
		}
	}
}

func TestInvalidate(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := buildParagraph(t, tree, page, 2)

	// change the tree behind the back of the index
	dict, _ := pdf.GetDict(doc.Store, x.Ref)
	dict["K"] = pdf.Integer(1)
	if err := doc.Store.Put(x.Ref, dict); err != nil {
		t.Fatal(err)
	}

	err := tree.Index.Invalidate()
	if err != nil {
		t.Fatal(err)
	}
	e, _ := tree.Index.ElementByMCID(page.Ref, 0)
	if e != nil {
		t.Errorf("stale entry for MCID 0: %v", e)
	}
	e, _ = tree.Index.ElementByMCID(page.Ref, 1)
	if e == nil || e.Ref != x.Ref {
		t.Errorf("missing entry for MCID 1: %v", e)
	}

	err = tree.Index.CommitPage(page.Ref)
	if err != nil {
		t.Fatal(err)
	}
	if !tree.Index.IsPartial() {
		t.Error("index not partial after CommitPage")
	}
	err = tree.Index.Invalidate()
	if !errors.Is(err, ErrRebuildAfterFlush) {
		t.Errorf("expected ErrRebuildAfterFlush, got %v", err)
	}
}

func TestInvalidateAfterElementFlush(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	sect := addElement(t, tree.Root(), "Sect")
	err := sect.Flush()
	if err != nil {
		t.Fatal(err)
	}
	err = tree.Index.Invalidate()
	if !errors.Is(err, ErrRebuildAfterFlush) {
		t.Errorf("expected ErrRebuildAfterFlush, got %v", err)
	}
}

func TestScanSkipsMalformedLeaves(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	x := addElement(t, tree.Root(), "P")

	dict, _ := pdf.GetDict(doc.Store, x.Ref)
	dict["Pg"] = page.Ref
	dict["K"] = pdf.Array{
		pdf.Integer(0),
		pdf.Dict{"Type": pdf.Name("MCR")}, // no MCID
		pdf.Integer(1),
	}
	if err := doc.Store.Put(x.Ref, dict); err != nil {
		t.Fatal(err)
	}

	tree2, err := OpenTree(doc, tree.Ref)
	if err != nil {
		t.Fatal(err)
	}
	leaves := tree2.Index.ContentMCRs(page.Ref)
	var mcids []pdf.Integer
	for _, m := range leaves {
		mcids = append(mcids, m.MCID)
	}
	if d := cmp.Diff([]pdf.Integer{0, 1}, mcids); d != "" {
		t.Errorf("MCIDs mismatch (-want +got):\n%s", d)
	}
}
