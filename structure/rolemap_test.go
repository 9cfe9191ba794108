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

	"seehuhn.de/go/pdfstruct/pdf"
)

func TestRoleClasses(t *testing.T) {
	cases := []struct {
		role pdf.Name
		want RoleClass
	}{
		{"Document", Grouping},
		{"Sect", Grouping},
		{"P", Block},
		{"H1", Block},
		{"H12", Block},
		{"TR", Unknown},
		{"Span", Inline},
		{"Link", Inline},
		{"Figure", Illustration},
		{"Formula", Illustration},
		{"Unknown", Unknown},
	}
	for _, c := range cases {
		if got := ClassOf(c.role); got != c.want {
			t.Errorf("ClassOf(%q) = %s, want %s", c.role, got, c.want)
		}
	}
}

func TestIsStandardRole(t *testing.T) {
	cases := []struct {
		role pdf.Name
		ns   string
		want bool
	}{
		{"P", "", true},
		{"P", NamespacePDF1, true},
		{"P", NamespacePDF2, true},
		{"H7", NamespacePDF2, true},
		{"H7", NamespacePDF1, false},
		{"H0", NamespacePDF2, false},
		{"H01", NamespacePDF2, false},
		{"Title", NamespacePDF2, true},
		{"Title", NamespacePDF1, false},
		{"Chapter", "", false},
	}
	for _, c := range cases {
		if got := IsStandardRole(c.role, c.ns); got != c.want {
			t.Errorf("IsStandardRole(%q, %q) = %t", c.role, c.ns, got)
		}
	}
}

func TestRoleMapTransitive(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	if err := tree.AddRoleMapping("Chapter", "Section"); err != nil {
		t.Fatal(err)
	}
	if err := tree.AddRoleMapping("Section", "Sect"); err != nil {
		t.Fatal(err)
	}

	role, ns, ok := tree.ResolveRole("Chapter", nil, 0)
	if !ok || role != "Sect" || ns != nil {
		t.Errorf("ResolveRole() = %q, %v, %t", role, ns, ok)
	}
	if c := tree.Classify("Chapter", nil); c != Grouping {
		t.Errorf("Classify() = %s", c)
	}
}

func TestRoleMapCycle(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	if err := tree.AddRoleMapping("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := tree.AddRoleMapping("B", "A"); err != nil {
		t.Fatal(err)
	}

	m := tree.NewRoleMapper("A", nil)
	for i := range 10 {
		if !m.ShouldMapToStandard() {
			t.Fatal("cyclic role considered standard")
		}
		if !m.Step() {
			t.Fatalf("step %d: no change", i)
		}
		want := pdf.Name("B")
		if i%2 == 1 {
			want = "A"
		}
		if m.Role != want {
			t.Fatalf("step %d: role %q, want %q", i, m.Role, want)
		}
	}

	_, _, ok := tree.ResolveRole("A", nil, 50)
	if ok {
		t.Error("cyclic role map resolved")
	}
	if c := tree.Classify("A", nil); c != Unknown {
		t.Errorf("Classify() = %s", c)
	}
}

func TestRoleMapMissing(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	m := tree.NewRoleMapper("Chapter", nil)
	if m.Step() {
		t.Error("Step() changed an unmapped role")
	}
	if m.Role != "Chapter" {
		t.Errorf("role changed to %q", m.Role)
	}
}

func TestNamespaceMapping(t *testing.T) {
	_, tree := newTestTree(t, pdf.V2_0, nil)
	ns2, err := tree.Namespace(NamespacePDF2)
	if err != nil {
		t.Fatal(err)
	}
	custom, err := tree.Namespace("http://example.com/ns")
	if err != nil {
		t.Fatal(err)
	}
	err = custom.AddRoleMapping("Para", "P", ns2)
	if err != nil {
		t.Fatal(err)
	}
	err = custom.AddRoleMapping("Box", "Div", nil)
	if err != nil {
		t.Fatal(err)
	}

	m := tree.NewRoleMapper("Para", custom)
	if !m.ShouldMapToStandard() {
		t.Fatal("custom role considered standard")
	}
	if !m.Step() {
		t.Fatal("Step() did not change the role")
	}
	if m.Role != "P" || m.NS != ns2 {
		t.Errorf("got %q in %v", m.Role, m.NS)
	}
	if !m.IsStandard() {
		t.Error("P not standard in the PDF 2.0 namespace")
	}

	role, ns, ok := tree.ResolveRole("Box", custom, 0)
	if !ok || role != "Div" || ns != nil {
		t.Errorf("ResolveRole() = %q, %v, %t", role, ns, ok)
	}

	// custom namespaces do not fall back to the root role map
	if err := tree.AddRoleMapping("Note2", "Note"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := tree.ResolveRole("Note2", custom, 0); ok {
		t.Error("custom namespace used the root role map")
	}
	pdf1, _ := tree.Namespace(NamespacePDF1)
	if role, _, ok := tree.ResolveRole("Note2", pdf1, 0); !ok || role != "Note" {
		t.Errorf("PDF 1.7 namespace: ResolveRole() = %q, %t", role, ok)
	}

	same, _ := tree.Namespace(NamespacePDF2)
	if same != ns2 {
		t.Error("namespace created twice")
	}
}

func TestMathMLNotMapped(t *testing.T) {
	_, tree := newTestTree(t, pdf.V2_0, nil)
	mathML, err := tree.Namespace(NamespaceMathML)
	if err != nil {
		t.Fatal(err)
	}
	m := tree.NewRoleMapper("mi", mathML)
	if m.ShouldMapToStandard() {
		t.Error("MathML role needs mapping")
	}
	role, ns, ok := tree.ResolveRole("mi", mathML, 0)
	if !ok || role != "mi" || ns != mathML {
		t.Errorf("ResolveRole() = %q, %v, %t", role, ns, ok)
	}
}

func TestNamespaceNeedsPDF2(t *testing.T) {
	_, tree := newTestTree(t, pdf.V1_7, nil)
	_, err := tree.Namespace(NamespacePDF2)
	var verErr *pdf.VersionError
	if !errors.As(err, &verErr) {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestNamespacesReloaded(t *testing.T) {
	doc, tree := newTestTree(t, pdf.V2_0, nil)
	custom, err := tree.Namespace("http://example.com/ns")
	if err != nil {
		t.Fatal(err)
	}
	if err := custom.AddRoleMapping("Para", "P", nil); err != nil {
		t.Fatal(err)
	}
	e := addElement(t, tree.Root(), "Para")
	if err := e.SetNamespace(custom); err != nil {
		t.Fatal(err)
	}
	if err := tree.Finalize(); err != nil {
		t.Fatal(err)
	}

	tree2, err := OpenTree(doc, tree.Ref)
	if err != nil {
		t.Fatal(err)
	}
	class, err := tree2.Element(e.Ref).Class()
	if err != nil {
		t.Fatal(err)
	}
	if class != Block {
		t.Errorf("class %s, want Block", class)
	}
}
