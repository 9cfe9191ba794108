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
	"fmt"

	"seehuhn.de/go/pdfstruct/pdf"
)

// ImportPages appends copies of the given pages of src to d.
//
// Page contents, the form XObjects painted on the pages and the page
// annotations are copied.  Struct parent keys are not copied; the structure
// tree copier assigns new keys where needed.
//
// The returned copier remembers the mapping of source objects to copies,
// and the returned map takes source page references to the references
// of the new pages.
func (d *Document) ImportPages(src *Document, pages []*Page) (*pdf.Copier, map[pdf.Reference]pdf.Reference, error) {
	copier := pdf.NewCopier(d.Store, src.Store)
	pageMap := make(map[pdf.Reference]pdf.Reference, len(pages))

	// Redirect all pages first, so that annotations which point to other
	// imported pages are linked correctly.
	newPages := make([]*Page, len(pages))
	for i, p := range pages {
		if p.flushed {
			return nil, nil, fmt.Errorf("import %s: %w", p.Ref, ErrPageFlushed)
		}
		np := d.AddPage()
		np.MediaBox = p.MediaBox
		np.buf.Write(p.buf.Bytes())
		np.usesText = p.usesText
		np.nextMCID = p.nextMCID
		copier.Redirect(p.Ref, np.Ref)
		pageMap[p.Ref] = np.Ref
		newPages[i] = np
	}

	for i, p := range pages {
		np := newPages[i]

		for name, ref := range p.xobjects {
			newRef, ok := copier.Lookup(ref)
			if !ok {
				f := src.forms[ref]
				if f == nil || f.flushed {
					return nil, nil, fmt.Errorf("import form %s: %w", ref, pdf.ErrFlushed)
				}
				nf := d.NewForm(f.BBox)
				nf.buf.Write(f.buf.Bytes())
				nf.usesText = f.usesText
				nf.nextMCID = f.nextMCID
				copier.Redirect(ref, nf.Ref)
				newRef = nf.Ref
			}
			if np.xobjects == nil {
				np.xobjects = make(map[pdf.Name]pdf.Reference)
			}
			np.xobjects[name] = newRef
		}

		for _, annot := range p.annots {
			newRef, err := copier.CopyExcept(annot, "StructParent")
			if err != nil {
				return nil, nil, err
			}
			np.annots = append(np.annots, newRef)
		}
	}

	return copier, pageMap, nil
}
