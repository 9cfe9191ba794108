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
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

var htmlRoles = map[atom.Atom]pdf.Name{
	atom.P:          "P",
	atom.H1:         "H1",
	atom.H2:         "H2",
	atom.H3:         "H3",
	atom.H4:         "H4",
	atom.H5:         "H5",
	atom.H6:         "H6",
	atom.Div:        "Div",
	atom.Header:     "Div",
	atom.Footer:     "Div",
	atom.Nav:        "Div",
	atom.Figure:     "Div",
	atom.Main:       "Part",
	atom.Section:    "Sect",
	atom.Aside:      "Sect",
	atom.Article:    "Art",
	atom.Blockquote: "BlockQuote",
	atom.Pre:        "P",
	atom.Caption:    "Caption",
	atom.Figcaption: "Caption",
	atom.Thead:      "THead",
	atom.Tfoot:      "TFoot",
	atom.Code:       "Code",
	atom.A:          "Link",
	atom.Q:          "Quote",
	atom.Em:         "Span",
	atom.I:          "Span",
	atom.Strong:     "Span",
	atom.B:          "Span",
	atom.Span:       "Span",
	atom.Small:      "Span",
	atom.Mark:       "Span",
}

// ParseHTML reads an HTML document and converts its body into a box tree.
// The root of the tree has the role "Document".
//
// The attribute data-role overrides the role of an element; hidden
// elements become artifacts.  The attributes lang, title and alt are
// copied to the tags.
func ParseHTML(r io.Reader) (*Box, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	root := NewBox("Document")
	p := &htmlParser{}
	p.convertKids(doc, root)
	return root, nil
}

type htmlParser struct {
	inline int
	pre    int
	table  *htmlTable
}

type htmlTable struct {
	row, col  int
	inSection bool
}

func (p *htmlParser) convertKids(n *html.Node, parent *Box) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.convert(c, parent)
	}
}

func (p *htmlParser) convert(n *html.Node, parent *Box) {
	switch n.Type {
	case html.TextNode:
		p.addText(n.Data, parent)
		return
	case html.ElementNode:
		// handled below
	default:
		p.convertKids(n, parent)
		return
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template:
		return
	case atom.Html, atom.Body:
		if tag, ok := langAttr(n); ok && parent.Props != nil {
			parent.Props.Lang = tag
		}
		p.convertKids(n, parent)
		return
	case atom.Br:
		parent.Add(&Box{Break: true})
		return
	case atom.Hr:
		hr := TextBox("Artifact", "* * *")
		hr.Break = true
		parent.Add(hr)
		return
	case atom.Ul, atom.Ol:
		parent.Add(p.list(n))
		return
	case atom.Img:
		parent.Add(p.image(n))
		return
	}

	var box *Box
	switch n.DataAtom {
	case atom.Table:
		box = p.newBox(n, "Table")
		saved := p.table
		p.table = &htmlTable{}
		p.convertKids(n, box)
		p.table = saved
	case atom.Thead, atom.Tfoot:
		box = p.newBox(n, htmlRoles[n.DataAtom])
		if t := p.table; t != nil {
			t.inSection = true
			p.convertKids(n, box)
			t.inSection = false
		} else {
			p.convertKids(n, box)
		}
	case atom.Tr:
		var role pdf.Name
		if p.table != nil && p.table.inSection {
			role = "TR"
		}
		box = p.newBox(n, role)
		box.Break = true
		if t := p.table; t != nil {
			t.col = 0
			p.convertKids(n, box)
			t.row++
		} else {
			p.convertKids(n, box)
		}
	case atom.Td, atom.Th:
		box = p.cell(n)
	default:
		box = p.newBox(n, htmlRoles[n.DataAtom])
		if n.DataAtom == atom.Pre {
			p.pre++
			defer func() { p.pre-- }()
		}
		inline := box.Role() != "" && structure.ClassOf(box.Role()) == structure.Inline
		if inline {
			p.inline++
		}
		p.convertKids(n, box)
		if inline {
			p.inline--
		}
	}
	parent.Add(box)
}

// newBox returns a box for an HTML element.  Within inline elements,
// nested elements do not get tags of their own.
func (p *htmlParser) newBox(n *html.Node, role pdf.Name) *Box {
	if r := attr(n, "data-role"); r != "" {
		role = pdf.Name(r)
	}
	if _, hidden := attrOK(n, "hidden"); hidden || attr(n, "aria-hidden") == "true" {
		role = "Artifact"
	}
	if p.inline > 0 && role != "Artifact" {
		role = ""
	}
	box := NewBox(role)
	if box.Props == nil {
		return box
	}
	if tag, ok := langAttr(n); ok {
		box.Props.Lang = tag
	}
	box.Props.Title = attr(n, "title")
	return box
}

func (p *htmlParser) addText(data string, parent *Box) {
	if p.pre > 0 {
		for i, line := range strings.Split(data, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			b := TextBox("", line)
			b.Break = i > 0
			parent.Add(b)
		}
		return
	}
	text := strings.Join(strings.Fields(data), " ")
	if text != "" {
		parent.Add(TextBox("", text))
	}
}

func (p *htmlParser) list(n *html.Node) *Box {
	box := p.newBox(n, "L")
	ordered := n.DataAtom == atom.Ol
	num := 1
	if s, err := strconv.Atoi(attr(n, "start")); err == nil {
		num = s
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			p.convert(c, box)
			continue
		}
		label := "•"
		if ordered {
			label = strconv.Itoa(num) + "."
			num++
		}
		item := p.newBox(c, "LI")
		body := NewBox("LBody")
		item.Add(TextBox("Lbl", label), body)
		p.convertKids(c, body)
		box.Add(item)
	}
	return box
}

func (p *htmlParser) image(n *html.Node) *Box {
	box := p.newBox(n, "Figure")
	box.Height = 40
	if h, err := strconv.ParseFloat(attr(n, "height"), 64); err == nil && h > 0 {
		box.Height = h
	}
	if box.Props != nil {
		box.Props.Alt = attr(n, "alt")
	}
	return box
}

func (p *htmlParser) cell(n *html.Node) *Box {
	role := pdf.Name("TD")
	if n.DataAtom == atom.Th {
		role = "TH"
	}
	box := p.newBox(n, role)
	span := 1
	if s, err := strconv.Atoi(attr(n, "colspan")); err == nil && s > 1 {
		span = s
	}
	if t := p.table; t != nil {
		box.Row, box.Col = t.row, t.col
		t.col += span
	}
	if box.Props != nil {
		var values pdf.Dict
		switch attr(n, "scope") {
		case "row":
			values = pdf.Dict{"Scope": pdf.Name("Row")}
		case "col":
			values = pdf.Dict{"Scope": pdf.Name("Column")}
		}
		if span > 1 {
			if values == nil {
				values = pdf.Dict{}
			}
			values["ColSpan"] = pdf.Integer(span)
		}
		if values != nil {
			box.Props.Attributes = append(box.Props.Attributes,
				structure.Attribute{Owner: "Table", Values: values})
		}
	}
	p.convertKids(n, box)
	return box
}

func attr(n *html.Node, key string) string {
	val, _ := attrOK(n, key)
	return val
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func langAttr(n *html.Node) (language.Tag, bool) {
	val := attr(n, "lang")
	if val == "" {
		return language.Und, false
	}
	tag, err := language.Parse(val)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
