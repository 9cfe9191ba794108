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

package document

import (
	"bytes"
	"fmt"
	"strconv"

	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/optional"
	"seehuhn.de/go/pdfstruct/pdf"
)

const fontName pdf.Name = "F1"

// Page is a page of a [Document].
type Page struct {
	contentStream

	// Ref is the reference of the page dictionary.
	Ref pdf.Reference

	// MediaBox is the visible area of the page.
	MediaBox rect.Rect

	// StructParents is the key of the page in the parent tree.
	StructParents optional.Int

	doc      *Document
	annots   []pdf.Reference
	xobjects map[pdf.Name]pdf.Reference
	flushed  bool
}

// IsFlushed reports whether the page has been written to the output.
func (p *Page) IsFlushed() bool {
	return p.flushed
}

// Annotations returns the references of the annotations on the page.
func (p *Page) Annotations() []pdf.Reference {
	return p.annots
}

// DrawForm paints the form XObject f with its origin at (x, y).
func (p *Page) DrawForm(f *Form, x, y float64) {
	if p.xobjects == nil {
		p.xobjects = make(map[pdf.Name]pdf.Reference)
	}
	var name pdf.Name
	for n, ref := range p.xobjects {
		if ref == f.Ref {
			name = n
		}
	}
	if name == "" {
		name = pdf.Name("Fm" + strconv.Itoa(len(p.xobjects)))
		p.xobjects[name] = f.Ref
	}
	fmt.Fprintf(&p.buf, "q 1 0 0 1 %s %s cm %s Do Q\n", num(x), num(y), pdf.Format(name))
}

// Forms returns the references of all form XObjects used on the page.
func (p *Page) Forms() []pdf.Reference {
	var res []pdf.Reference
	for _, ref := range p.xobjects {
		res = append(res, ref)
	}
	return res
}

// Form is a form XObject, a content stream which can be painted onto pages.
type Form struct {
	contentStream

	Ref  pdf.Reference
	BBox rect.Rect

	// StructParents is the key of the form in the parent tree.
	StructParents optional.Int

	doc     *Document
	flushed bool
}

// IsFlushed reports whether the form has been written to the output.
func (f *Form) IsFlushed() bool {
	return f.flushed
}

// contentStream collects the operators of a content stream, together with
// the marked-content identifiers used in the stream.
type contentStream struct {
	buf      bytes.Buffer
	nextMCID pdf.Integer
	depth    int
	usesText bool
}

// NextMCID returns a new marked-content identifier for this stream.
// The returned values are strictly increasing.
func (c *contentStream) NextMCID() pdf.Integer {
	mcid := c.nextMCID
	c.nextMCID++
	return mcid
}

// PeekMCID returns the value the next call to NextMCID will return.
func (c *contentStream) PeekMCID() pdf.Integer {
	return c.nextMCID
}

// ReserveMCID makes sure that mcid is never returned by NextMCID.
func (c *contentStream) ReserveMCID(mcid pdf.Integer) {
	if mcid >= c.nextMCID {
		c.nextMCID = mcid + 1
	}
}

// BeginMarkedContent starts a marked-content sequence with the given tag and
// marked-content identifier.  The identifier is reserved.
func (c *contentStream) BeginMarkedContent(tag pdf.Name, mcid pdf.Integer) {
	c.ReserveMCID(mcid)
	fmt.Fprintf(&c.buf, "%s <</MCID %d>> BDC\n", pdf.Format(tag), mcid)
	c.depth++
}

// BeginArtifact starts a marked-content sequence for content which is not
// part of the logical structure.
func (c *contentStream) BeginArtifact() {
	c.buf.WriteString("/Artifact BMC\n")
	c.depth++
}

// EndMarkedContent ends the innermost marked-content sequence.
func (c *contentStream) EndMarkedContent() {
	if c.depth == 0 {
		return
	}
	c.buf.WriteString("EMC\n")
	c.depth--
}

// ShowText draws a line of text with its baseline starting at (x, y).
func (c *contentStream) ShowText(x, y, size float64, text string) {
	c.usesText = true
	fmt.Fprintf(&c.buf, "BT %s %s Tf %s %s Td %s Tj ET\n",
		pdf.Format(fontName), num(size), num(x), num(y), pdf.Format(pdf.String(text)))
}

// Rectangle fills the given rectangle.
func (c *contentStream) Rectangle(r rect.Rect) {
	fmt.Fprintf(&c.buf, "%s %s %s %s re f\n",
		num(r.LLx), num(r.LLy), num(r.URx-r.LLx), num(r.URy-r.LLy))
}

// Content returns the content stream data written so far.
func (c *contentStream) Content() []byte {
	return c.buf.Bytes()
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
