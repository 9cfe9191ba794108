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

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

func (a *app) newTreeCmd() *cobra.Command {
	var leaves, parentTree bool
	cmd := &cobra.Command{
		Use:   "tree input",
		Short: "Show the structure tree of a laid out document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.render(args[0], nil, true)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			p := &treePrinter{
				w:      cmd.OutOrStdout(),
				style:  asciiStyle,
				leaves: leaves,
				pages:  pageNumbers(job.doc),
			}
			if f, ok := p.w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				p.style = unicodeStyle
			}
			err = p.printTree(job.ctx.Tree)
			if err != nil {
				return err
			}
			if parentTree {
				return p.printParentTree(job.doc, job.ctx.Tree)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&leaves, "leaves", false, "show marked content and object references")
	cmd.Flags().BoolVar(&parentTree, "parent-tree", false, "show the content items of every page")
	return cmd
}

type treeStyle struct {
	branch, last, pipe, space string
}

var (
	unicodeStyle = treeStyle{"├── ", "└── ", "│   ", "    "}
	asciiStyle   = treeStyle{"|-- ", "`-- ", "|   ", "    "}
)

type treePrinter struct {
	w      io.Writer
	style  treeStyle
	leaves bool
	pages  map[pdf.Reference]int
}

func pageNumbers(doc *document.Document) map[pdf.Reference]int {
	res := make(map[pdf.Reference]int)
	for i, p := range doc.Pages() {
		res[p.Ref] = i + 1
	}
	return res
}

func (p *treePrinter) printTree(tree *structure.Tree) error {
	fmt.Fprintln(p.w, "StructTreeRoot")
	return p.printKids(tree.Root(), "")
}

func (p *treePrinter) printKids(e *structure.Element, prefix string) error {
	kids, err := e.Kids()
	if err != nil {
		return err
	}
	if !p.leaves {
		kids = elementsOnly(kids)
	}
	for i, kid := range kids {
		branch, indent := p.style.branch, p.style.pipe
		if i == len(kids)-1 {
			branch, indent = p.style.last, p.style.space
		}

		label, err := p.label(kid)
		if err != nil {
			return err
		}
		fmt.Fprintln(p.w, prefix+branch+label)

		if child, ok := kid.(*structure.Element); ok {
			err := p.printKids(child, prefix+indent)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func elementsOnly(kids []structure.Kid) []structure.Kid {
	var res []structure.Kid
	for _, kid := range kids {
		switch kid.(type) {
		case *structure.Element, structure.Tombstone:
			res = append(res, kid)
		}
	}
	return res
}

func (p *treePrinter) label(kid structure.Kid) (string, error) {
	switch kid := kid.(type) {
	case *structure.Element:
		return elementLabel(kid)
	case *structure.MCR:
		return p.leafLabel(kid), nil
	case structure.Tombstone:
		return fmt.Sprintf("(written: %s)", kid.Ref), nil
	default:
		return fmt.Sprintf("%v", kid), nil
	}
}

func elementLabel(e *structure.Element) (string, error) {
	role, err := e.Role()
	if err != nil {
		return "", err
	}
	parts := []string{string(role)}

	lang, err := e.Lang()
	if err != nil {
		return "", err
	}
	if lang != language.Und {
		parts = append(parts, "lang="+lang.String())
	}
	alt, err := e.Alt()
	if err != nil {
		return "", err
	}
	if alt != "" {
		parts = append(parts, fmt.Sprintf("alt=%q", alt))
	}
	title, err := e.Title()
	if err != nil {
		return "", err
	}
	if title != "" {
		parts = append(parts, fmt.Sprintf("title=%q", title))
	}
	return strings.Join(parts, " "), nil
}

func (p *treePrinter) leafLabel(m *structure.MCR) string {
	page := ""
	if n, ok := p.pages[m.Page]; ok {
		page = fmt.Sprintf(", page %d", n)
	}
	switch m.Kind {
	case structure.ContentItem:
		return fmt.Sprintf("MCID %d%s", m.MCID, page)
	case structure.StreamItem:
		return fmt.Sprintf("MCID %d in %s%s", m.MCID, m.Stream, page)
	default:
		return fmt.Sprintf("OBJR %s%s", m.Obj, page)
	}
}

// printParentTree lists the content items of all pages, together with the
// roles of the structure elements they belong to.
func (p *treePrinter) printParentTree(doc *document.Document, tree *structure.Tree) error {
	for i, page := range doc.Pages() {
		key, _ := page.StructParents.Get()
		fmt.Fprintf(p.w, "page %d (StructParents %d)\n", i+1, key)
		for _, m := range tree.Index.PageLeaves(page.Ref) {
			role, err := m.Role()
			if err != nil {
				return err
			}
			fmt.Fprintf(p.w, "%s%s -> %s\n", p.style.space, p.leafLabel(m), role)
		}
	}
	return nil
}
