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

package tagging

import (
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// A RelationTable lists parent/child role combinations which are not
// allowed, together with the role to use for the child instead.  The
// outer key is the parent role, the inner key is the child role.  All
// numbered headings are listed under the role "Hn".
type RelationTable map[pdf.Name]map[pdf.Name]pdf.Name

func (t RelationTable) lookup(parent, child pdf.Name) pdf.Name {
	return t[parent][child]
}

func (t RelationTable) set(parent, child, role pdf.Name) {
	m := t[parent]
	if m == nil {
		m = make(map[pdf.Name]pdf.Name)
		t[parent] = m
	}
	m[child] = role
}

func (t RelationTable) merge(other RelationTable) {
	for parent, m := range other {
		for child, role := range m {
			t.set(parent, child, role)
		}
	}
}

var relations17 = RelationTable{
	"Hn": {"P": "Span"},
	"P":  {"P": "Span"},
}

var relations20 = RelationTable{
	"Document": {"Span": "P"},
	"Sect":     {"Span": "P"},
	"Part":     {"Span": "P"},
	"Div":      {"Span": "P"},
	"TOC":      {"P": "TOCI"},
	"L":        {"P": "LI"},
}

// Parents with these roles are looked through when the parent of a new
// kid is determined.
var transparentRoles = map[pdf.Name]bool{
	"NonStruct": true,
	"Div":       true,
	"Private":   true,
}

func defaultRelations(target pdf.Version, overrides RelationTable) RelationTable {
	t := make(RelationTable)
	t.merge(relations17)
	if target >= pdf.V2_0 {
		t.merge(relations20)
	}
	t.merge(overrides)
	return t
}

// OverrideRelation sets the role which is used for a child with role child
// below a parent with role parent.  An empty role removes the entry.
func (b *Builder) OverrideRelation(parent, child, role pdf.Name) {
	if role == "" {
		delete(b.relations[relationRole(parent)], relationRole(child))
		return
	}
	b.relations.set(relationRole(parent), relationRole(child), role)
}

func relationRole(role pdf.Name) pdf.Name {
	if structure.IsHeading(role) {
		return "Hn"
	}
	return role
}

// relationParent returns the normalized standard role of the nearest
// ancestor of k (or k itself) which is accessible and not transparent.
func (b *Builder) relationParent(k *HintKey) pdf.Name {
	for p := k; p != nil; p = b.parents[p] {
		if !p.accessible {
			continue
		}
		role := b.standardRole(p)
		if role == "" || transparentRoles[role] {
			continue
		}
		return relationRole(role)
	}
	return ""
}

// relationKids returns the keys below k (or k itself) whose roles are
// checked against the parent of k.  Transparent keys and keys with
// transparent roles are looked through.
func (b *Builder) relationKids(k *HintKey) []*HintKey {
	var res []*HintKey
	for _, a := range b.accessibleSelf(k) {
		if transparentRoles[b.standardRole(a)] {
			for _, kid := range b.kids[a] {
				res = append(res, b.relationKids(kid)...)
			}
			continue
		}
		res = append(res, a)
	}
	return res
}

// repairRelations changes the roles of newly added kids of parent, where
// the combination of roles is not allowed.
func (b *Builder) repairRelations(parent *HintKey, added []*HintKey) {
	parentRole := b.relationParent(parent)
	if parentRole == "" {
		return
	}
	for _, k := range added {
		for _, a := range b.relationKids(k) {
			if ns := a.Properties().Namespace; ns != nil && ns.URI != structure.NamespacePDF1 && ns.URI != structure.NamespacePDF2 {
				continue
			}
			role := b.relations.lookup(parentRole, relationRole(b.standardRole(a)))
			if role == "" || role == a.role {
				continue
			}
			b.log.Warn().Stringer("hint", a).Str("parent", string(parentRole)).Str("role", string(role)).Msg("role changed to fit parent")
			a.role = role
			if a.elem != nil && !a.elem.IsFlushed() {
				if err := a.elem.SetRole(role); err != nil {
					b.log.Error().Err(err).Stringer("hint", a).Msg("cannot update tag")
				}
			}
		}
	}
}
