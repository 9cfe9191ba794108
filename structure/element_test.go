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
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
)

func newTestTree(t *testing.T, v pdf.Version, opt *document.Options) (*document.Document, *Tree) {
	t.Helper()
	doc := document.New(v, opt)
	tree, err := NewTree(doc)
	if err != nil {
		t.Fatal(err)
	}
	return doc, tree
}

func addElement(t *testing.T, parent *Element, role pdf.Name) *Element {
	t.Helper()
	e, err := parent.Tree().NewElement(role)
	if err != nil {
		t.Fatal(err)
	}
	err = parent.AddKid(-1, e)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestKidsNormalization(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	p := addElement(t, tree.Root(), "P")

	dict, _ := pdf.GetDict(doc.Store, p.Ref)
	if _, hasK := dict["K"]; hasK {
		t.Error("empty element has K entry")
	}

	err := p.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
	if err != nil {
		t.Fatal(err)
	}
	dict, _ = pdf.GetDict(doc.Store, p.Ref)
	if dict["K"] != pdf.Integer(0) {
		t.Errorf("single kid stored as %v", dict["K"])
	}
	if dict["Pg"] != page.Ref {
		t.Errorf("element page is %v, want %v", dict["Pg"], page.Ref)
	}

	err = p.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
	if err != nil {
		t.Fatal(err)
	}
	dict, _ = pdf.GetDict(doc.Store, p.Ref)
	if d := cmp.Diff(pdf.Array{pdf.Integer(0), pdf.Integer(1)}, dict["K"]); d != "" {
		t.Errorf("K mismatch (-want +got):\n%s", d)
	}

	for range 2 {
		_, err = p.RemoveKid(0)
		if err != nil {
			t.Fatal(err)
		}
	}
	dict, _ = pdf.GetDict(doc.Store, p.Ref)
	if _, hasK := dict["K"]; hasK {
		t.Error("K entry not removed with the last kid")
	}
}

func TestContentItemOnOtherPage(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page1 := doc.AddPage()
	page2 := doc.AddPage()
	p := addElement(t, tree.Root(), "P")

	err := p.AddKid(-1, NewContentItem(page1.Ref, page1.NextMCID()))
	if err != nil {
		t.Fatal(err)
	}
	err = p.AddKid(-1, NewContentItem(page2.Ref, page2.NextMCID()))
	if err != nil {
		t.Fatal(err)
	}

	kids, err := p.Kids()
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 {
		t.Fatalf("got %d kids", len(kids))
	}
	second, ok := kids[1].(*MCR)
	if !ok || second.Page != page2.Ref || second.MCID != 0 {
		t.Errorf("unexpected second kid %v", kids[1])
	}

	dict, _ := pdf.GetDict(doc.Store, p.Ref)
	arr := dict["K"].(pdf.Array)
	mcr, ok := arr[1].(pdf.Dict)
	if !ok || mcr["Type"] != pdf.Name("MCR") || mcr["Pg"] != page2.Ref {
		t.Errorf("content on another page not stored as MCR dictionary: %v", arr[1])
	}
}

func TestInlineCannotContainElements(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()
	span := addElement(t, tree.Root(), "Span")
	inner, _ := tree.NewElement("Span")

	err := span.AddKid(-1, inner)
	if !errors.Is(err, ErrCannotContainKids) {
		t.Errorf("expected ErrCannotContainKids, got %v", err)
	}

	// marked content is fine
	err = span.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
	if err != nil {
		t.Error(err)
	}

	// role mapping is taken into account
	err = tree.AddRoleMapping("Picture", "Figure")
	if err != nil {
		t.Fatal(err)
	}
	pic := addElement(t, tree.Root(), "Picture")
	if err := pic.AddKid(-1, inner); !errors.Is(err, ErrCannotContainKids) {
		t.Errorf("expected ErrCannotContainKids, got %v", err)
	}

	if err := tree.Root().AddKid(-1, NewContentItem(page.Ref, page.NextMCID())); !errors.Is(err, ErrNotElement) {
		t.Errorf("expected ErrNotElement, got %v", err)
	}
}

func TestAddKidAttached(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	a := addElement(t, tree.Root(), "Sect")
	b := addElement(t, tree.Root(), "Sect")
	x := addElement(t, a, "P")

	err := b.AddKid(-1, x)
	if !errors.Is(err, ErrHasParent) {
		t.Errorf("expected ErrHasParent, got %v", err)
	}
	err = x.AddKid(-1, x)
	if !errors.Is(err, ErrHasParent) {
		t.Errorf("expected ErrHasParent, got %v", err)
	}
	err = x.AddKid(-1, tree.Root())
	if !errors.Is(err, ErrHasParent) {
		t.Errorf("expected ErrHasParent, got %v", err)
	}

	// the top of a detached subtree cannot go below its own descendants
	top, err := tree.NewElement("Div")
	if err != nil {
		t.Fatal(err)
	}
	mid := addElement(t, top, "Div")
	err = mid.AddKid(-1, top)
	if !errors.Is(err, ErrHasParent) {
		t.Errorf("expected ErrHasParent, got %v", err)
	}
	err = top.AddKid(-1, top)
	if !errors.Is(err, ErrHasParent) {
		t.Errorf("expected ErrHasParent, got %v", err)
	}

	kids, err := a.Kids()
	if err != nil {
		t.Fatal(err)
	}
	sameElement := cmp.Comparer(func(a, b *Element) bool { return a.Equal(b) })
	if d := cmp.Diff([]Kid{x}, kids, sameElement); d != "" {
		t.Errorf("kids of a changed (-want +got):\n%s", d)
	}
	if n, _ := b.NumKids(); n != 0 {
		t.Errorf("b has %d kids", n)
	}
	parent, err := x.Parent()
	if err != nil {
		t.Fatal(err)
	}
	if !parent.Equal(a) {
		t.Errorf("parent of x is %v, want %v", parent, a)
	}

	// after detaching, x can be added elsewhere
	if _, err := a.RemoveKid(0); err != nil {
		t.Fatal(err)
	}
	if err := b.AddKid(-1, x); err != nil {
		t.Error(err)
	}
}

func TestDissolve(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page1 := doc.AddPage()
	page2 := doc.AddPage()
	sect := addElement(t, tree.Root(), "Sect")
	first := addElement(t, sect, "P")
	span := addElement(t, sect, "Span")
	last := addElement(t, sect, "P")
	for _, page := range []*document.Page{page1, page2} {
		err := span.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
		if err != nil {
			t.Fatal(err)
		}
	}
	id, err := span.AssignID()
	if err != nil {
		t.Fatal(err)
	}

	err = tree.Index.CommitPage(page1.Ref)
	if err != nil {
		t.Fatal(err)
	}
	err = doc.FlushPage(page1)
	if err != nil {
		t.Fatal(err)
	}

	parent, err := span.Dissolve()
	if err != nil {
		t.Fatal(err)
	}
	if !parent.Equal(sect) {
		t.Errorf("got parent %v, want %v", parent, sect)
	}
	if doc.Store.Has(span.Ref) {
		t.Error("dissolved element still in the store")
	}
	if _, used := tree.ids[id]; used {
		t.Error("identifier of the dissolved element still listed")
	}

	kids, err := sect.Kids()
	if err != nil {
		t.Fatal(err)
	}
	want := []Kid{
		first,
		&MCR{Kind: ContentItem, Page: page1.Ref, MCID: 0, Parent: sect, ExplicitPage: true},
		&MCR{Kind: ContentItem, Page: page2.Ref, MCID: 0, Parent: sect},
		last,
	}
	sameElement := cmp.Comparer(func(a, b *Element) bool { return a.Equal(b) })
	if d := cmp.Diff(want, kids, sameElement); d != "" {
		t.Errorf("kids mismatch (-want +got):\n%s", d)
	}

	for _, page := range []*document.Page{page1, page2} {
		owner, err := tree.Index.ElementByMCID(page.Ref, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !owner.Equal(sect) {
			t.Errorf("owner of MCID 0 on %s is %v, want %v", page.Ref, owner, sect)
		}
	}
}

func TestDissolveRefused(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	page := doc.AddPage()

	// content cannot move to the structure tree root
	p := addElement(t, tree.Root(), "P")
	err := p.AddKid(-1, NewContentItem(page.Ref, page.NextMCID()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Dissolve(); !errors.Is(err, ErrNotElement) {
		t.Errorf("expected ErrNotElement, got %v", err)
	}

	// elements cannot move below an inline-level element
	outer := addElement(t, tree.Root(), "Sect")
	div := addElement(t, outer, "Div")
	addElement(t, div, "P")
	err = outer.SetRole("Span")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := div.Dissolve(); !errors.Is(err, ErrCannotContainKids) {
		t.Errorf("expected ErrCannotContainKids, got %v", err)
	}

	if n, _ := p.NumKids(); n != 1 {
		t.Errorf("P has %d kids after failed dissolve", n)
	}
	if !doc.Store.Has(div.Ref) {
		t.Error("element deleted after failed dissolve")
	}
	if _, err := tree.Root().Dissolve(); err == nil {
		t.Error("dissolved the structure tree root")
	}
}

func TestFlushedElement(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	sect := addElement(t, tree.Root(), "Sect")
	p := addElement(t, sect, "P")

	err := sect.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if !sect.IsFlushed() {
		t.Error("element not flushed")
	}

	kids, err := tree.Root().Kids()
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]Kid{Tombstone{Ref: sect.Ref}}, kids); d != "" {
		t.Errorf("kids mismatch (-want +got):\n%s", d)
	}

	_, err = p.Parent()
	if !errors.Is(err, pdf.ErrFlushed) {
		t.Errorf("expected ErrFlushed, got %v", err)
	}
	other, _ := tree.NewElement("P")
	err = sect.AddKid(-1, other)
	if !errors.Is(err, pdf.ErrFlushed) {
		t.Errorf("expected ErrFlushed, got %v", err)
	}
}

func TestFailedFlushKeepsIndex(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	e, err := tree.NewElement("P")
	if err != nil {
		t.Fatal(err)
	}
	doc.Store.Delete(e.Ref)

	err = e.Flush()
	if !errors.Is(err, pdf.ErrMissing) {
		t.Errorf("expected ErrMissing, got %v", err)
	}
	if tree.Index.IsPartial() {
		t.Error("index marked partial after a failed flush")
	}
	if err := tree.Index.Invalidate(); err != nil {
		t.Error(err)
	}
}

func TestParent(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	sect := addElement(t, tree.Root(), "Sect")
	p := addElement(t, sect, "P")

	parent, err := p.Parent()
	if err != nil {
		t.Fatal(err)
	}
	if !parent.Equal(sect) {
		t.Errorf("wrong parent %v", parent)
	}
	parent, err = sect.Parent()
	if err != nil || !parent.IsRoot() {
		t.Errorf("parent of top-level element: %v, %v", parent, err)
	}
	parent, err = tree.Root().Parent()
	if err != nil || parent != nil {
		t.Errorf("parent of root: %v, %v", parent, err)
	}

	idx, err := tree.Root().IndexOf(sect.Ref)
	if err != nil || idx != 0 {
		t.Errorf("IndexOf() = %d, %v", idx, err)
	}
}

func TestProperties(t *testing.T) {
	_, tree := newTestTree(t, pdf.V2_0, nil)
	e := addElement(t, tree.Root(), "Figure")

	check := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	check(e.SetAlt("A red circle"))
	check(e.SetActualText("Grüße"))
	check(e.SetExpansion("for example"))
	check(e.SetTitle("Figure 1"))
	check(e.SetLang(language.French))
	check(e.SetTextProperty("Phoneme", "ʃɛʁ"))
	check(e.SetPhoneticAlphabet("ipa"))

	alt, _ := e.Alt()
	actual, _ := e.ActualText()
	exp, _ := e.Expansion()
	title, _ := e.Title()
	lang, _ := e.Lang()
	alphabet, _ := e.PhoneticAlphabet()
	got := []any{alt, actual, exp, title, lang.String(), alphabet}
	want := []any{"A red circle", "Grüße", "for example", "Figure 1", "fr", pdf.Name("ipa")}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", d)
	}

	check(e.SetAlt(""))
	alt, _ = e.Alt()
	if alt != "" {
		t.Errorf("Alt not removed: %q", alt)
	}
}

func TestPhonemeNeedsPDF2(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	e := addElement(t, tree.Root(), "Span")
	var verErr *pdf.VersionError
	if err := e.SetTextProperty("Phoneme", "x"); !errors.As(err, &verErr) {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestAttributes(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	e := addElement(t, tree.Root(), "TH")

	err := e.AddAttribute(TableScope("Column"))
	if err != nil {
		t.Fatal(err)
	}
	dict, _ := pdf.GetDict(doc.Store, e.Ref)
	if _, isDict := dict["A"].(pdf.Dict); !isDict {
		t.Errorf("single attribute stored as %T", dict["A"])
	}

	bbox := LayoutBBox(rect.Rect{LLx: 1, LLy: 2, URx: 3, URy: 4})
	bbox.Revision = 2
	err = e.AddAttribute(bbox)
	if err != nil {
		t.Fatal(err)
	}

	attrs, err := e.Attributes()
	if err != nil {
		t.Fatal(err)
	}
	want := []Attribute{TableScope("Column"), bbox}
	if d := cmp.Diff(want, attrs); d != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", d)
	}

	scope, err := e.Attribute("Table", "Scope")
	if err != nil || scope != pdf.Name("Column") {
		t.Errorf("Attribute() = %v, %v", scope, err)
	}
}

func TestAssignID(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V1_7, nil)
	e := addElement(t, tree.Root(), "Note")

	id, err := e.AssignID()
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty ID")
	}
	again, _ := e.AssignID()
	if again != id {
		t.Errorf("ID changed from %q to %q", id, again)
	}

	err = tree.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	root, _ := pdf.GetDict(doc.Store, tree.Ref)
	idTree, err := pdf.GetDict(doc.Store, root["IDTree"])
	if err != nil {
		t.Fatal(err)
	}
	want := pdf.Array{pdf.String(id), e.Ref}
	if d := cmp.Diff(want, idTree["Names"]); d != "" {
		t.Errorf("ID tree mismatch (-want +got):\n%s", d)
	}
}

func TestWarningLogged(t *testing.T) {
	buf := &bytes.Buffer{}
	log := zerolog.New(buf)
	doc, tree := newTestTree(t, pdf.V1_7, &document.Options{Logger: &log})
	page := doc.AddPage()
	annot, err := doc.AddAnnotation(page, "Link", rect.Rect{URx: 10, URy: 10})
	if err != nil {
		t.Fatal(err)
	}

	link := addElement(t, tree.Root(), "Link")
	err = link.AddKid(-1, NewObjectItem(annot, page.Ref))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("assigned a new key")) {
		t.Errorf("no warning logged: %q", buf.String())
	}
	dict, _ := pdf.GetDict(doc.Store, annot)
	if _, ok := dict["StructParent"].(pdf.Integer); !ok {
		t.Error("struct parent key not stored in the annotation")
	}
}
