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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

type config struct {
	Verbose bool   `mapstructure:"verbose"`
	Target  string `mapstructure:"target"`
	RoleMap string `mapstructure:"role-map"`

	Strict    bool    `mapstructure:"strict"`
	Title     string  `mapstructure:"title"`
	Lang      string  `mapstructure:"lang"`
	Paper     string  `mapstructure:"paper"`
	FontSize  float64 `mapstructure:"font-size"`
	Immediate bool    `mapstructure:"immediate-flush"`

	version pdf.Version
	lang    language.Tag
}

var errPaper = errors.New("unknown paper size")

var paperSizes = map[string]rect.Rect{
	"a4":     document.A4,
	"a5":     document.A5,
	"letter": document.Letter,
	"legal":  document.Legal,
}

func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Target == "" {
		cfg.Target = "1.7"
	}
	ver, err := pdf.ParseVersion(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", cfg.Target, err)
	}
	cfg.version = ver

	cfg.lang = language.Und
	if cfg.Lang != "" {
		tag, err := language.Parse(cfg.Lang)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", cfg.Lang, err)
		}
		cfg.lang = tag
	}
	return cfg, nil
}

// paperSize returns the page size selected by the configuration.
func (cfg *config) paperSize() (rect.Rect, error) {
	name := strings.ToLower(cfg.Paper)
	if name == "" {
		name = "a4"
	}
	r, ok := paperSizes[name]
	if !ok {
		return rect.Rect{}, fmt.Errorf("%q: %w", cfg.Paper, errPaper)
	}
	return r, nil
}

// readRoleMap reads a role map from a YAML file.  The file contains a
// mapping from custom roles to their targets, for example
//
//	Chapter: Sect
//	Aside: Note
func readRoleMap(fname string) (map[pdf.Name]pdf.Name, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return parseRoleMap(data)
}

func parseRoleMap(data []byte) (map[pdf.Name]pdf.Name, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid role map: %w", err)
	}
	res := make(map[pdf.Name]pdf.Name, len(raw))
	for role, target := range raw {
		if role == "" || target == "" {
			return nil, fmt.Errorf("invalid role map entry %q: %q", role, target)
		}
		res[pdf.Name(role)] = pdf.Name(target)
	}
	return res, nil
}

// applyRoleMap adds the role map from the configuration to tree.
func (cfg *config) applyRoleMap(tree *structure.Tree) error {
	if cfg.RoleMap == "" {
		return nil
	}
	m, err := readRoleMap(cfg.RoleMap)
	if err != nil {
		return err
	}
	for role, target := range m {
		if err := tree.AddRoleMapping(role, target); err != nil {
			return err
		}
	}
	return nil
}

// isMarkdown reports whether the input file name looks like Markdown.
func isMarkdown(fname string) bool {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".md", ".markdown", ".mdown":
		return true
	}
	return false
}
