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
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/layout"
	"seehuhn.de/go/pdfstruct/structure"
	"seehuhn.de/go/pdfstruct/tagging"
)

func (a *app) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build input output.pdf",
		Short: "Lay out an HTML or Markdown file into a tagged PDF file",
		Long: `Lay out an HTML or Markdown file into a tagged PDF file.

Files ending in .md or .markdown are read as Markdown, all other files
as HTML.  The HTML attribute data-role sets the structure role of an
element; custom roles need an entry in the role map.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.build(args[0], args[1])
		},
	}
	flags := cmd.Flags()
	flags.Bool("strict", false, "fail on objects without a struct parent key")
	flags.String("title", "", "document title")
	flags.String("lang", "", "document language, for example en-GB")
	flags.String("paper", "a4", "paper size (a4, a5, letter, legal)")
	flags.Float64("font-size", 10, "font size in PDF units")
	flags.Bool("immediate-flush", true, "write structure elements as early as possible")
	return cmd
}

func (a *app) build(input, output string) error {
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	job, err := a.render(input, out, false)
	if err == nil {
		err = job.ctx.Close()
	}
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if closeErr != nil {
		return closeErr
	}

	a.log.Info().
		Str("output", output).
		Int("pages", job.engine.Pages()).
		Msg("tagged PDF written")
	return nil
}

// job is a document which has been laid out.
type job struct {
	doc    *document.Document
	ctx    *tagging.Context
	engine *layout.Engine
}

// render lays out the input file.  If out is nil, nothing is written.
// With keep, all pages and structure elements stay in memory.
func (a *app) render(input string, out io.Writer, keep bool) (*job, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	var root *layout.Box
	if isMarkdown(input) {
		root = layout.ParseMarkdown(data)
	} else {
		root, err = layout.ParseHTML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
	}
	return a.renderBox(root, out, keep)
}

func (a *app) renderBox(root *layout.Box, out io.Writer, keep bool) (*job, error) {
	cfg := a.cfg
	paper, err := cfg.paperSize()
	if err != nil {
		return nil, err
	}

	lang := cfg.lang
	if root.Props != nil && cfg.Lang == "" {
		lang = root.Props.Lang
	}
	logger := a.log
	doc := document.New(cfg.version, &document.Options{
		Strict:   cfg.Strict,
		Logger:   &logger,
		Output:   out,
		PageSize: paper,
		Title:    cfg.Title,
		Lang:     lang,
	})

	tree, err := structure.NewTree(doc)
	if err != nil {
		return nil, err
	}
	err = cfg.applyRoleMap(tree)
	if err != nil {
		return nil, err
	}

	ctx := tagging.NewContext(tree, &tagging.Options{
		ImmediateFlush: cfg.Immediate && !keep,
	})
	e := layout.NewEngine(ctx, &layout.Options{
		FontSize:  cfg.FontSize,
		KeepPages: keep,
	})
	err = e.Layout(root)
	if err != nil {
		return nil, err
	}

	a.log.Debug().Int("pages", e.Pages()).Msg("layout done")
	return &job{doc: doc, ctx: ctx, engine: e}, nil
}
