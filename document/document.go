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

// Package document provides a minimal PDF document writer for tagged PDF.
//
// A [Document] owns the object store, the list of pages, form XObjects and
// annotations.  It hands out the counters which tagged PDF requires: marked
// content identifiers per content stream, and struct parent keys for the
// parent tree.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/xmp"

	"seehuhn.de/go/pdfstruct/pdf"
)

var (
	// ErrPageFlushed is returned when a page is modified after it has been
	// written to the output.
	ErrPageFlushed = errors.New("page has been flushed")

	errClosed = errors.New("document is closed")
)

// Options control the behaviour of a [Document].
type Options struct {
	// Strict makes missing struct parent keys on object references and form
	// XObjects a hard error instead of a warning.
	Strict bool

	// Logger receives warnings about recovered problems.
	// If this is nil, messages are discarded.
	Logger *zerolog.Logger

	// Output, if set, receives the PDF file.
	Output io.Writer

	// PageSize is the default media box for new pages.
	// If this is zero, A4 is used.
	PageSize rect.Rect

	// Title is written to the document metadata.
	Title string

	// Lang is the natural language of the document.
	Lang language.Tag
}

// Document is a PDF document which is being written.
type Document struct {
	// Store holds the objects of the document.
	Store *pdf.Store

	// Strict is copied from [Options.Strict].
	Strict bool

	// Log is the logger of the document.
	Log zerolog.Logger

	Title    string
	Lang     language.Tag
	PageSize rect.Rect

	// StructTreeRoot, if non-zero, is written to the document catalog.
	StructTreeRoot pdf.Reference

	pagesRef pdf.Reference
	fontRef  pdf.Reference
	pages    []*Page
	byRef    map[pdf.Reference]*Page
	forms    map[pdf.Reference]*Form

	nextStructParent pdf.Integer
	closed           bool
}

// New creates a new document.
func New(v pdf.Version, opt *Options) *Document {
	if opt == nil {
		opt = &Options{}
	}
	log := zerolog.Nop()
	if opt.Logger != nil {
		log = *opt.Logger
	}
	pageSize := opt.PageSize
	if pageSize.IsZero() {
		pageSize = A4
	}

	store := pdf.NewStore(v, opt.Output)
	d := &Document{
		Store:    store,
		Strict:   opt.Strict,
		Log:      log,
		Title:    opt.Title,
		Lang:     opt.Lang,
		PageSize: pageSize,
		pagesRef: store.Alloc(),
		byRef:    make(map[pdf.Reference]*Page),
		forms:    make(map[pdf.Reference]*Form),
	}
	return d
}

// Create creates a new document which is written to the named file.
func Create(fileName string, v pdf.Version, opt *Options) (*Document, error) {
	fd, err := os.Create(fileName)
	if err != nil {
		return nil, err
	}
	o := Options{}
	if opt != nil {
		o = *opt
	}
	o.Output = fd
	return New(v, &o), nil
}

// Version returns the PDF version of the document.
func (d *Document) Version() pdf.Version {
	return d.Store.Version
}

// AddPage appends a new, empty page to the document.
func (d *Document) AddPage() *Page {
	p := &Page{
		Ref:      d.Store.Alloc(),
		MediaBox: d.PageSize,
		doc:      d,
	}
	d.pages = append(d.pages, p)
	d.byRef[p.Ref] = p
	return p
}

// Pages returns the pages of the document, in order.
func (d *Document) Pages() []*Page {
	return slices.Clone(d.pages)
}

// PageByRef returns the page with the given reference, or nil if there is
// no such page.
func (d *Document) PageByRef(ref pdf.Reference) *Page {
	return d.byRef[ref]
}

// MovePage moves the page at index from to index to.
// Structure trees which depend on page order must be rebuilt after this.
func (d *Document) MovePage(from, to int) error {
	if from < 0 || from >= len(d.pages) || to < 0 || to >= len(d.pages) {
		return fmt.Errorf("page index out of range: %d -> %d", from, to)
	}
	p := d.pages[from]
	d.pages = slices.Delete(d.pages, from, from+1)
	d.pages = slices.Insert(d.pages, to, p)
	return nil
}

// NewForm creates a new form XObject with the given bounding box.
func (d *Document) NewForm(bbox rect.Rect) *Form {
	f := &Form{
		Ref:  d.Store.Alloc(),
		BBox: bbox,
		doc:  d,
	}
	d.forms[f.Ref] = f
	return f
}

// FormByRef returns the form XObject with the given reference, or nil.
func (d *Document) FormByRef(ref pdf.Reference) *Form {
	return d.forms[ref]
}

// NextStructParentIndex returns a new, unused struct parent key.
func (d *Document) NextStructParentIndex() pdf.Integer {
	k := d.nextStructParent
	d.nextStructParent++
	return k
}

// ReserveStructParentIndex makes sure that the key k is never returned by
// [Document.NextStructParentIndex].
func (d *Document) ReserveStructParentIndex(k pdf.Integer) {
	if k >= d.nextStructParent {
		d.nextStructParent = k + 1
	}
}

// StructParentNextKey returns the smallest struct parent key which has not
// been handed out yet.
func (d *Document) StructParentNextKey() pdf.Integer {
	return d.nextStructParent
}

// AddAnnotation adds an annotation of the given subtype to the page.
// The annotation dictionary is stored in the document and can be modified
// until the page is flushed.
func (d *Document) AddAnnotation(p *Page, subtype pdf.Name, r rect.Rect) (pdf.Reference, error) {
	if p.flushed {
		return 0, ErrPageFlushed
	}
	ref := d.Store.Alloc()
	annot := pdf.Dict{
		"Type":    pdf.Name("Annot"),
		"Subtype": subtype,
		"Rect":    rectObject(r),
		"P":       p.Ref,
	}
	err := d.Store.Put(ref, annot)
	if err != nil {
		return 0, err
	}
	p.annots = append(p.annots, ref)
	return ref, nil
}

// FlushPage writes the page, its content stream and its annotations to the
// output.  After this, the page can no longer be modified.
func (d *Document) FlushPage(p *Page) error {
	if p.flushed {
		return nil
	}
	if d.closed {
		return errClosed
	}

	contentRef := d.Store.Alloc()
	err := d.Store.Put(contentRef, &pdf.Stream{Data: bytes.Clone(p.buf.Bytes())})
	if err != nil {
		return err
	}

	dict := pdf.Dict{
		"Type":      pdf.Name("Page"),
		"Parent":    d.pagesRef,
		"MediaBox":  rectObject(p.MediaBox),
		"Contents":  contentRef,
		"Resources": d.resources(p.usesText, p.xobjects),
	}
	if key, ok := p.StructParents.Get(); ok {
		dict["StructParents"] = key
	}
	if len(p.annots) > 0 {
		annots := make(pdf.Array, len(p.annots))
		for i, ref := range p.annots {
			annots[i] = ref
		}
		dict["Annots"] = annots
		if d.Store.Version >= pdf.V1_5 && d.StructTreeRoot != 0 {
			dict["Tabs"] = pdf.Name("S")
		}
	}
	err = d.Store.Put(p.Ref, dict)
	if err != nil {
		return err
	}

	toFlush := append([]pdf.Reference{p.Ref, contentRef}, p.annots...)
	for _, ref := range toFlush {
		err := d.Store.Flush(ref)
		if err != nil {
			return err
		}
	}

	p.flushed = true
	p.buf = bytes.Buffer{}
	return nil
}

func (d *Document) flushForm(f *Form) error {
	if f.flushed {
		return nil
	}
	dict := pdf.Dict{
		"Type":      pdf.Name("XObject"),
		"Subtype":   pdf.Name("Form"),
		"BBox":      rectObject(f.BBox),
		"Resources": d.resources(f.usesText, nil),
	}
	if key, ok := f.StructParents.Get(); ok {
		dict["StructParents"] = key
	}
	err := d.Store.Put(f.Ref, &pdf.Stream{Dict: dict, Data: bytes.Clone(f.buf.Bytes())})
	if err != nil {
		return err
	}
	err = d.Store.Flush(f.Ref)
	if err != nil {
		return err
	}
	f.flushed = true
	f.buf = bytes.Buffer{}
	return nil
}

func (d *Document) resources(usesText bool, xobjects map[pdf.Name]pdf.Reference) pdf.Dict {
	res := pdf.Dict{}
	if usesText {
		if d.fontRef == 0 {
			d.fontRef = d.Store.Alloc()
			_ = d.Store.Put(d.fontRef, pdf.Dict{
				"Type":     pdf.Name("Font"),
				"Subtype":  pdf.Name("Type1"),
				"BaseFont": pdf.Name("Helvetica"),
				"Encoding": pdf.Name("WinAnsiEncoding"),
			})
		}
		res["Font"] = pdf.Dict{fontName: d.fontRef}
	}
	if len(xobjects) > 0 {
		xobj := pdf.Dict{}
		for name, ref := range xobjects {
			xobj[name] = ref
		}
		res["XObject"] = xobj
	}
	return res
}

// Close writes all remaining pages, the page tree and the document catalog,
// and then closes the output.
func (d *Document) Close() error {
	if d.closed {
		return errClosed
	}

	// forms are flushed first, so that pages which use them see their
	// final references
	for _, ref := range slices.Sorted(maps.Keys(d.forms)) {
		err := d.flushForm(d.forms[ref])
		if err != nil {
			return err
		}
	}
	for _, p := range d.pages {
		err := d.FlushPage(p)
		if err != nil {
			return err
		}
	}

	kids := make(pdf.Array, len(d.pages))
	for i, p := range d.pages {
		kids[i] = p.Ref
	}
	err := d.Store.Put(d.pagesRef, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": pdf.Integer(len(d.pages)),
	})
	if err != nil {
		return err
	}

	catalog := pdf.Dict{
		"Type":  pdf.Name("Catalog"),
		"Pages": d.pagesRef,
	}
	if d.StructTreeRoot != 0 {
		catalog["StructTreeRoot"] = d.StructTreeRoot
		catalog["MarkInfo"] = pdf.Dict{"Marked": pdf.Bool(true)}
	}
	if d.Lang != language.Und {
		catalog["Lang"] = pdf.TextString(d.Lang.String())
	}
	trailer := pdf.Dict{}
	if d.Title != "" {
		info := d.Store.Alloc()
		err = d.Store.Put(info, pdf.Dict{"Title": pdf.TextString(d.Title)})
		if err != nil {
			return err
		}
		trailer["Info"] = info

		metaRef, err := d.writeMetadata()
		if err != nil {
			return err
		}
		if metaRef != 0 {
			catalog["Metadata"] = metaRef
			catalog["ViewerPreferences"] = pdf.Dict{"DisplayDocTitle": pdf.Bool(true)}
		}
	}
	catalogRef := d.Store.Alloc()
	err = d.Store.Put(catalogRef, catalog)
	if err != nil {
		return err
	}
	trailer["Root"] = catalogRef

	d.closed = true
	return d.Store.Close(trailer)
}

// writeMetadata writes an XMP metadata stream which carries the document
// title.  Files older than PDF 1.4 get no metadata stream.
func (d *Document) writeMetadata() (pdf.Reference, error) {
	if err := pdf.CheckVersion(d.Store, "XMP metadata", pdf.V1_4); err != nil {
		d.Log.Debug().Err(err).Msg("skipping metadata stream")
		return 0, nil
	}

	packet := xmp.NewPacket()
	dc := &xmp.DublinCore{}
	dc.Title.Set(d.Lang, d.Title)
	err := packet.Set(dc)
	if err != nil {
		return 0, err
	}
	buf := &bytes.Buffer{}
	err = packet.Write(buf, nil)
	if err != nil {
		return 0, err
	}

	ref := d.Store.Alloc()
	err = d.Store.Put(ref, &pdf.Stream{
		Dict: pdf.Dict{
			"Type":    pdf.Name("Metadata"),
			"Subtype": pdf.Name("XML"),
		},
		Data: buf.Bytes(),
	})
	if err != nil {
		return 0, err
	}
	return ref, nil
}

func rectObject(r rect.Rect) pdf.Array {
	return pdf.Array{pdf.Real(r.LLx), pdf.Real(r.LLy), pdf.Real(r.URx), pdf.Real(r.URy)}
}
