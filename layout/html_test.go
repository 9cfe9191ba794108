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

package layout

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// boxOutline lists the roles of all boxes which have a role, indented by
// depth.  Boxes without a role do not add a level.
func boxOutline(root *Box) []string {
	var res []string
	var walk func(b *Box, depth int)
	walk = func(b *Box, depth int) {
		if role := b.Role(); role != "" {
			res = append(res, strings.Repeat("  ", depth)+string(role))
			depth++
		}
		for _, kid := range b.Kids {
			walk(kid, depth)
		}
	}
	walk(root, 0)
	return res
}

// findBox returns the first box with the given role, in depth-first order.
func findBox(root *Box, role pdf.Name) *Box {
	if root.Role() == role {
		return root
	}
	for _, kid := range root.Kids {
		if b := findBox(kid, role); b != nil {
			return b
		}
	}
	return nil
}

// boxText returns all text below b.
func boxText(b *Box) string {
	var parts []string
	if b.Text != "" {
		parts = append(parts, b.Text)
	}
	for _, kid := range b.Kids {
		if s := boxText(kid); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

const testHTML = `<!DOCTYPE html>
<html lang="de">
<head><title>ignored</title><style>p { color: red }</style></head>
<body>
<h1 title="Intro">Hallo</h1>
<p>Ein <em>kurzer <b>fetter</b></em> Text.</p>
<div hidden>versteckt</div>
<p data-role="Note">Notiz</p>
<ol start="3"><li>drei</li><li>vier</li></ol>
<table>
<thead><tr><th scope="col">A</th><th>B</th></tr></thead>
<tbody><tr><td colspan="2">breit</td></tr></tbody>
</table>
<img alt="Logo" height="25">
</body>
</html>
`

func TestParseHTML(t *testing.T) {
	root, err := ParseHTML(strings.NewReader(testHTML))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Document",
		"  H1",
		"  P",
		"    Span",
		"  Artifact",
		"  Note",
		"  L",
		"    LI",
		"      Lbl",
		"      LBody",
		"    LI",
		"      Lbl",
		"      LBody",
		"  Table",
		"    THead",
		"      TR",
		"        TH",
		"        TH",
		"    TD",
		"  Figure",
	}
	if d := cmp.Diff(want, boxOutline(root)); d != "" {
		t.Errorf("outline (-want +got):\n%s", d)
	}

	if root.Props.Lang.String() != "de" {
		t.Errorf("document language: got %v", root.Props.Lang)
	}
	if h1 := findBox(root, "H1"); h1.Props.Title != "Intro" {
		t.Errorf("H1 title: got %q", h1.Props.Title)
	}
	if s := boxText(findBox(root, "Span")); s != "kurzer fetter" {
		t.Errorf("span text: got %q", s)
	}
	if s := boxText(findBox(root, "Lbl")); s != "3." {
		t.Errorf("first label: got %q", s)
	}

	fig := findBox(root, "Figure")
	if fig.Props.Alt != "Logo" || fig.Height != 25 {
		t.Errorf("figure: got alt %q, height %g", fig.Props.Alt, fig.Height)
	}

	th := findBox(root, "TH")
	wantTH := []structure.Attribute{
		{Owner: "Table", Values: pdf.Dict{"Scope": pdf.Name("Column")}},
	}
	if d := cmp.Diff(wantTH, th.Props.Attributes); d != "" {
		t.Errorf("TH attributes (-want +got):\n%s", d)
	}

	td := findBox(root, "TD")
	if td.Row != 1 || td.Col != 0 {
		t.Errorf("TD position: got (%d, %d)", td.Row, td.Col)
	}
	wantTD := []structure.Attribute{
		{Owner: "Table", Values: pdf.Dict{"ColSpan": pdf.Integer(2)}},
	}
	if d := cmp.Diff(wantTD, td.Props.Attributes); d != "" {
		t.Errorf("TD attributes (-want +got):\n%s", d)
	}
}

func TestParseHTMLPre(t *testing.T) {
	root, err := ParseHTML(strings.NewReader("<pre>line one\n\nline two\n</pre>"))
	if err != nil {
		t.Fatal(err)
	}
	pre := findBox(root, "P")
	if pre == nil || len(pre.Kids) != 2 {
		t.Fatalf("unexpected box tree %v", boxOutline(root))
	}
	if pre.Kids[0].Text != "line one" || pre.Kids[0].Break {
		t.Errorf("first line: got %q, break %t", pre.Kids[0].Text, pre.Kids[0].Break)
	}
	if pre.Kids[1].Text != "line two" || !pre.Kids[1].Break {
		t.Errorf("second line: got %q, break %t", pre.Kids[1].Text, pre.Kids[1].Break)
	}
}

func TestIsInline(t *testing.T) {
	cases := []struct {
		box  *Box
		want bool
	}{
		{TextBox("", "x"), true},
		{NewBox("Span"), true},
		{NewBox("Artifact"), true},
		{NewBox("Lbl"), true},
		{NewBox("P"), false},
		{NewBox("Figure"), false},
		{NewBox("Table"), false},
		{&Box{Break: true}, false},
	}
	for _, c := range cases {
		if got := c.box.isInline(); got != c.want {
			t.Errorf("%q: got %t, want %t", c.box.Role(), got, c.want)
		}
	}
}
