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

package structure

import (
	"strconv"
	"strings"

	"seehuhn.de/go/pdfstruct/pdf"
)

// RoleClass describes which kinds of kids a structure element may have.
type RoleClass int

// These are the possible role classes.
const (
	Unknown RoleClass = iota
	Grouping
	Block
	Inline
	Illustration
)

func (c RoleClass) String() string {
	switch c {
	case Grouping:
		return "grouping"
	case Block:
		return "block"
	case Inline:
		return "inline"
	case Illustration:
		return "illustration"
	default:
		return "unknown"
	}
}

// CanContainElements reports whether elements of this class may have
// structure elements as kids.
func (c RoleClass) CanContainElements() bool {
	return c != Inline && c != Illustration
}

var roleClasses = map[pdf.Name]RoleClass{
	"Document":         Grouping,
	"DocumentFragment": Grouping,
	"Part":             Grouping,
	"Art":              Grouping,
	"Sect":             Grouping,
	"Div":              Grouping,
	"Aside":            Grouping,
	"BlockQuote":       Grouping,
	"Caption":          Grouping,
	"TOC":              Grouping,
	"TOCI":             Grouping,
	"Index":            Grouping,
	"NonStruct":        Grouping,
	"Private":          Grouping,
	"FENote":           Grouping,

	"P":     Block,
	"H":     Block,
	"H1":    Block,
	"H2":    Block,
	"H3":    Block,
	"H4":    Block,
	"H5":    Block,
	"H6":    Block,
	"Title": Block,
	"Sub":   Block,
	"L":     Block,
	"Lbl":   Block,
	"LI":    Block,
	"LBody": Block,
	"Table": Block,

	"Span":      Inline,
	"Quote":     Inline,
	"Note":      Inline,
	"Reference": Inline,
	"BibEntry":  Inline,
	"Code":      Inline,
	"Link":      Inline,
	"Annot":     Inline,
	"Ruby":      Inline,
	"Warichu":   Inline,
	"Em":        Inline,
	"Strong":    Inline,

	"Figure":  Illustration,
	"Formula": Illustration,
	"Form":    Illustration,
}

// ClassOf returns the class of a standard structure role.
// Roles which are not standard, or which have no class (like table rows),
// are reported as [Unknown].
func ClassOf(role pdf.Name) RoleClass {
	if c, ok := roleClasses[role]; ok {
		return c
	}
	if IsHeading(role) {
		return Block
	}
	return Unknown
}

var standard17 = newRoleSet(
	"Document", "Part", "Art", "Sect", "Div", "BlockQuote", "Caption",
	"TOC", "TOCI", "Index", "NonStruct", "Private",
	"P", "H", "H1", "H2", "H3", "H4", "H5", "H6",
	"L", "LI", "Lbl", "LBody",
	"Table", "TR", "TH", "TD", "THead", "TBody", "TFoot",
	"Span", "Quote", "Note", "Reference", "BibEntry", "Code", "Link", "Annot",
	"Ruby", "RB", "RT", "RP", "Warichu", "WT", "WP",
	"Figure", "Formula", "Form",
)

var standard20 = newRoleSet(
	"Document", "DocumentFragment", "Part", "Sect", "Div", "Aside", "NonStruct",
	"P", "H", "Title", "FENote", "Sub",
	"Lbl", "Span", "Em", "Strong", "Link", "Annot", "Form",
	"Ruby", "RB", "RT", "RP", "Warichu", "WT", "WP",
	"L", "LI", "LBody",
	"Table", "TR", "TH", "TD", "THead", "TBody", "TFoot",
	"Caption", "Figure", "Formula", "Artifact",
)

type roleSet map[pdf.Name]struct{}

func newRoleSet(roles ...pdf.Name) roleSet {
	res := make(roleSet, len(roles))
	for _, r := range roles {
		res[r] = struct{}{}
	}
	return res
}

func (s roleSet) has(role pdf.Name) bool {
	_, ok := s[role]
	return ok
}

// IsHeading reports whether role is a numbered heading "H" followed by a
// positive integer without leading zeros.
func IsHeading(role pdf.Name) bool {
	s, ok := strings.CutPrefix(string(role), "H")
	if !ok || s == "" || s[0] == '0' {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// IsStandardRole reports whether role is a standard structure type in the
// namespace with the given URI.  The empty URI denotes the default
// namespace.
func IsStandardRole(role pdf.Name, nsURI string) bool {
	switch nsURI {
	case "", NamespacePDF1:
		return standard17.has(role)
	case NamespacePDF2:
		return standard20.has(role) || IsHeading(role)
	default:
		return false
	}
}
