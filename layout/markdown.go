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
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// ParseMarkdown converts a Markdown document into a box tree.  Tables
// use the GitHub syntax.  The root of the tree has the role "Document".
func ParseMarkdown(source []byte) *Box {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(source))

	root := NewBox("Document")
	p := &mdParser{src: source}
	p.convertKids(doc, root)
	return root
}

type mdParser struct {
	src    []byte
	inline int
	row    int
}

func (p *mdParser) convertKids(n ast.Node, parent *Box) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		p.convert(c, parent)
	}
}

func (p *mdParser) newBox(role pdf.Name) *Box {
	if p.inline > 0 {
		role = ""
	}
	return NewBox(role)
}

func (p *mdParser) convert(n ast.Node, parent *Box) {
	var box *Box
	switch n := n.(type) {
	case *ast.Text:
		s := string(n.Segment.Value(p.src))
		if s = strings.TrimSpace(s); s != "" {
			parent.Add(TextBox("", s))
		}
		if n.HardLineBreak() {
			parent.Add(&Box{Break: true})
		}
		return
	case *ast.String:
		if s := strings.TrimSpace(string(n.Value)); s != "" {
			parent.Add(TextBox("", s))
		}
		return
	case *ast.HTMLBlock, *ast.RawHTML:
		return
	case *ast.ThematicBreak:
		hr := TextBox("Artifact", "* * *")
		hr.Break = true
		parent.Add(hr)
		return

	case *ast.Heading:
		box = p.newBox(pdf.Name(fmt.Sprintf("H%d", n.Level)))
	case *ast.Paragraph:
		box = p.newBox("P")
	case *ast.TextBlock:
		box = NewBox("")
	case *ast.Blockquote:
		box = p.newBox("BlockQuote")
	case *ast.FencedCodeBlock:
		box = p.codeBlock(n.Lines())
	case *ast.CodeBlock:
		box = p.codeBlock(n.Lines())
	case *ast.List:
		box = p.list(n)
	case *ast.Image:
		box = p.newBox("Figure")
		box.Height = 40
		if box.Props != nil {
			box.Props.Alt = p.plainText(n)
			box.Props.Title = string(n.Title)
		}
		parent.Add(box)
		return
	case *ast.AutoLink:
		box = p.newBox("Link")
		box.Add(TextBox("", string(n.Label(p.src))))
		parent.Add(box)
		return
	case *ast.Link:
		box = p.newBox("Link")
		if box.Props != nil {
			box.Props.Title = string(n.Title)
		}
	case *ast.Emphasis:
		box = p.newBox("Span")
	case *ast.CodeSpan:
		box = p.newBox("Code")

	case *east.Table:
		box = p.newBox("Table")
		p.row = 0
	case *east.TableHeader:
		// the header row keeps its row group
		head := p.newBox("THead")
		tr := p.newBox("TR")
		tr.Break = true
		head.Add(tr)
		p.cells(n, tr, "TH")
		p.row++
		parent.Add(head)
		return
	case *east.TableRow:
		box = NewBox("")
		box.Break = true
		p.cells(n, box, "TD")
		p.row++
		parent.Add(box)
		return

	default:
		p.convertKids(n, parent)
		return
	}

	inline := box.Role() != "" && structure.ClassOf(box.Role()) == structure.Inline
	if inline {
		p.inline++
	}
	p.convertKids(n, box)
	if inline {
		p.inline--
	}
	parent.Add(box)
}

func (p *mdParser) codeBlock(lines *text.Segments) *Box {
	box := p.newBox("P")
	code := p.newBox("Code")
	for i := range lines.Len() {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(p.src)), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b := TextBox("", line)
		b.Break = true
		code.Add(b)
	}
	box.Add(code)
	return box
}

func (p *mdParser) list(n *ast.List) *Box {
	box := p.newBox("L")
	num := n.Start
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		label := "•"
		if n.IsOrdered() {
			label = strconv.Itoa(num) + "."
			num++
		}
		item := p.newBox("LI")
		body := p.newBox("LBody")
		item.Add(TextBox("Lbl", label), body)
		p.convertKids(c, body)
		box.Add(item)
	}
	return box
}

// cells converts the cells of a table row.
func (p *mdParser) cells(row ast.Node, parent *Box, role pdf.Name) {
	col := 0
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*east.TableCell); !ok {
			continue
		}
		cell := p.newBox(role)
		cell.Row, cell.Col = p.row, col
		col++
		p.convertKids(c, cell)
		parent.Add(cell)
	}
}

// plainText returns the text content of the descendants of n.
func (p *mdParser) plainText(n ast.Node) string {
	var parts []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			parts = append(parts, string(c.Segment.Value(p.src)))
		case *ast.String:
			parts = append(parts, string(c.Value))
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
