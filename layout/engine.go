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
	"unicode/utf8"

	"github.com/rs/zerolog"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/tagging"
)

// Options control the page layout.  Zero values select the defaults.
type Options struct {
	// FontSize is the size of all text, in PDF units.  The default is 10.
	FontSize float64

	// BaseLineSkip is the distance between consecutive baselines.  The
	// default is 1.2 times the font size.
	BaseLineSkip float64

	TopMargin    float64 // default 36
	RightMargin  float64 // default 50
	BottomMargin float64 // default 36
	LeftMargin   float64 // default 50

	// NoPageLabels suppresses the page numbers at the bottom of each page.
	NoPageLabels bool

	// KeepPages keeps finished pages, and the structure elements on them,
	// in memory until the document is closed.
	KeepPages bool
}

// Engine lays out box trees into the pages of a tagged document.
type Engine struct {
	ctx *tagging.Context
	doc *document.Document
	b   *tagging.Builder
	ptr *tagging.Pointer
	log zerolog.Logger
	opt Options

	page   *document.Page
	pageNo int

	// x is the end of the content on the current line, y is the top of the
	// current line.
	x, y     float64
	lineUsed bool

	minX, maxX float64
	noWrap     bool

	table *tableState
}

type tableState struct {
	left     float64
	colWidth float64
	row      int
}

// NewEngine returns a layout engine which writes into the document of ctx.
// If opt is nil, default options are used.
func NewEngine(ctx *tagging.Context, opt *Options) *Engine {
	var o Options
	if opt != nil {
		o = *opt
	}
	if o.FontSize <= 0 {
		o.FontSize = 10
	}
	if o.BaseLineSkip <= 0 {
		o.BaseLineSkip = 1.2 * o.FontSize
	}
	setDefault(&o.TopMargin, 36)
	setDefault(&o.RightMargin, 50)
	setDefault(&o.BottomMargin, 36)
	setDefault(&o.LeftMargin, 50)

	paper := ctx.Doc.PageSize
	return &Engine{
		ctx:  ctx,
		doc:  ctx.Doc,
		b:    ctx.Builder(),
		ptr:  ctx.NewPointer(),
		log:  ctx.Doc.Log.With().Str("component", "layout").Logger(),
		opt:  o,
		minX: paper.LLx + o.LeftMargin,
		maxX: paper.URx - o.RightMargin,
	}
}

func setDefault(x *float64, val float64) {
	if *x <= 0 {
		*x = val
	}
}

// Pages returns the number of pages started so far.
func (e *Engine) Pages() int {
	return e.pageNo
}

// Layout lays out the box tree rooted at root, starting on a new page.
// The last page is written before Layout returns.
func (e *Engine) Layout(root *Box) error {
	err := e.layout(root)
	if err != nil {
		return err
	}
	return e.closePage()
}

func (e *Engine) layout(box *Box) error {
	k := e.b.KeyFor(box)
	kids := make([]*tagging.HintKey, len(box.Kids))
	for i, kid := range box.Kids {
		kids[i] = e.b.KeyFor(kid)
	}
	e.b.AddKids(k, kids, -1)

	role := box.Role()
	isCell := e.table != nil && (role == "TD" || role == "TH")
	block := !box.isInline() && !isCell

	if block {
		if err := e.lineBreak(); err != nil {
			return err
		}
	}

	savedTable := e.table
	savedMin, savedMax, savedWrap := e.minX, e.maxX, e.noWrap
	switch {
	case role == "Table":
		e.table = &tableState{
			left:     e.minX,
			colWidth: (e.maxX - e.minX) / float64(numCols(box)),
			row:      -1,
		}
	case isCell:
		t := e.table
		if box.Row != t.row {
			if err := e.lineBreak(); err != nil {
				return err
			}
			t.row = box.Row
		}
		e.minX = t.left + float64(box.Col)*t.colWidth
		e.maxX = e.minX + t.colWidth - e.width(" ")
		e.x = e.minX
		e.noWrap = true
	}

	var err error
	switch {
	case box.Text != "":
		err = e.drawText(k, box.Text)
	case box.Height > 0:
		err = e.drawBlock(k, box.Height)
	}
	for _, kid := range box.Kids {
		if err != nil {
			break
		}
		err = e.layout(kid)
	}

	e.table = savedTable
	if isCell {
		// the next cell of the row starts after this one
		e.minX, e.maxX, e.noWrap = savedMin, savedMax, savedWrap
		e.lineUsed = true
	}
	if err == nil && block {
		err = e.lineBreak()
	}
	if err != nil {
		return err
	}

	e.b.Finish(k)
	return nil
}

// numCols returns the number of table columns used by the cells below box.
func numCols(box *Box) int {
	n := 1
	var walk func(b *Box)
	walk = func(b *Box) {
		switch b.Role() {
		case "TD", "TH":
			n = max(n, b.Col+1)
			return
		case "Table":
			if b != box {
				return
			}
		}
		for _, kid := range b.Kids {
			walk(kid)
		}
	}
	walk(box)
	return n
}

// width estimates the width of a string.  Glyphs are assumed to be half as
// wide as the font size.
func (e *Engine) width(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * 0.5 * e.opt.FontSize
}

// drawText shows the words of text, starting on the current line.  If the
// text does not fit, it continues on the next line, unless line breaking
// is disabled.
func (e *Engine) drawText(k *tagging.HintKey, text string) error {
	space := e.width(" ")

	var seg []string
	var x0, w float64
	flush := func() error {
		if len(seg) == 0 {
			return nil
		}
		err := e.show(k, x0, strings.Join(seg, " "), w)
		seg = seg[:0]
		return err
	}

	for _, word := range strings.Fields(text) {
		ww := e.width(word)
		if len(seg) == 0 {
			if err := e.ensurePage(); err != nil {
				return err
			}
			x0 = e.x
			if e.lineUsed {
				x0 += space
				if x0+ww > e.maxX {
					if e.noWrap {
						e.log.Debug().Str("word", word).Msg("text truncated")
						break
					}
					if err := e.newLine(); err != nil {
						return err
					}
					x0 = e.x
				}
			}
			seg = append(seg, word)
			w = ww
			continue
		}

		if x0+w+space+ww > e.maxX {
			if e.noWrap {
				e.log.Debug().Str("word", word).Msg("text truncated")
				break
			}
			if err := flush(); err != nil {
				return err
			}
			if err := e.newLine(); err != nil {
				return err
			}
			x0 = e.x
			seg = append(seg, word)
			w = ww
			continue
		}
		seg = append(seg, word)
		w += space + ww
	}
	return flush()
}

// show draws one line segment of text for k.
func (e *Engine) show(k *tagging.HintKey, x float64, line string, w float64) error {
	fs := e.opt.FontSize
	baseline := e.y - fs
	err := e.beginContent(k)
	if err != nil {
		return err
	}
	e.page.ShowText(x, baseline, fs, line)
	e.page.EndMarkedContent()

	e.b.NoteArea(k, rect.Rect{
		LLx: x,
		LLy: baseline - 0.2*fs,
		URx: x + w,
		URy: baseline + 0.8*fs,
	})
	e.x = x + w
	e.lineUsed = true
	return nil
}

// drawBlock draws a placeholder rectangle of the given height, on a line
// of its own.
func (e *Engine) drawBlock(k *tagging.HintKey, height float64) error {
	if err := e.lineBreak(); err != nil {
		return err
	}
	if err := e.ensurePage(); err != nil {
		return err
	}
	if e.y-height < e.bottom() && e.y < e.top() {
		if err := e.newPage(); err != nil {
			return err
		}
	}

	width := min(1.5*height, e.maxX-e.minX)
	r := rect.Rect{LLx: e.minX, LLy: e.y - height, URx: e.minX + width, URy: e.y}
	err := e.beginContent(k)
	if err != nil {
		return err
	}
	e.page.Rectangle(r)
	e.page.EndMarkedContent()
	e.b.NoteArea(k, r)

	e.y = r.LLy - (e.opt.BaseLineSkip - e.opt.FontSize)
	e.x = e.minX
	e.lineUsed = false
	return nil
}

// beginContent starts a marked-content sequence for k on the current page.
// Content of artifacts, and content outside of all tags, is marked as an
// artifact.
func (e *Engine) beginContent(k *tagging.HintKey) error {
	ok, err := e.b.AddTag(k, e.ptr)
	if err != nil {
		return err
	}
	if ok && e.ptr.Current().IsRoot() {
		e.log.Warn().Stringer("hint", k).Msg("content outside of all tags, marked as artifact")
		ok = false
	}
	if !ok {
		e.page.BeginArtifact()
		return nil
	}

	role, err := e.ptr.Role()
	if err != nil {
		return err
	}
	mcid, err := e.ptr.AddMarkedContent()
	if err != nil {
		return err
	}
	e.page.BeginMarkedContent(role, mcid)
	return nil
}
