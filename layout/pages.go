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
)

func (e *Engine) top() float64 {
	return e.doc.PageSize.URy - e.opt.TopMargin
}

func (e *Engine) bottom() float64 {
	return e.doc.PageSize.LLy + e.opt.BottomMargin
}

// ensurePage makes sure that there is room for a line of text on the
// current page.
func (e *Engine) ensurePage() error {
	if e.page == nil || e.y-e.opt.BaseLineSkip < e.bottom() {
		return e.newPage()
	}
	return nil
}

// lineBreak ends the current line, if anything has been drawn on it.
func (e *Engine) lineBreak() error {
	if e.lineUsed {
		return e.newLine()
	}
	e.x = e.minX
	return nil
}

func (e *Engine) newLine() error {
	e.y -= e.opt.BaseLineSkip
	e.x = e.minX
	e.lineUsed = false
	if e.page != nil && e.y-e.opt.BaseLineSkip < e.bottom() {
		return e.newPage()
	}
	return nil
}

// newPage finishes the current page and starts a new one.
func (e *Engine) newPage() error {
	err := e.closePage()
	if err != nil {
		return err
	}

	e.page = e.doc.AddPage()
	e.pageNo++
	e.ptr.SetPage(e.page)
	e.y = e.top()
	e.x = e.minX
	e.lineUsed = false
	return nil
}

// closePage draws the page label, releases all finished hints and writes
// the page together with all structure elements which are complete.
// With KeepPages, the page is left in memory.
func (e *Engine) closePage() error {
	page := e.page
	if page == nil {
		return nil
	}

	if !e.opt.NoPageLabels {
		label := fmt.Sprintf("- %d -", e.pageNo)
		paper := page.MediaBox
		x := (paper.LLx + paper.URx - e.width(label)) / 2
		y := paper.LLy + e.opt.BottomMargin/2
		page.BeginArtifact()
		page.ShowText(x, y, e.opt.FontSize, label)
		page.EndMarkedContent()
	}

	n := e.b.ReleaseAllFinished()
	e.log.Debug().Int("page", e.pageNo).Int("released", n).Msg("page done")

	e.page = nil
	if e.opt.KeepPages {
		return nil
	}
	return e.ctx.FlushPage(page)
}
