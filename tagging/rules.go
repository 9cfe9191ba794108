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
	"maps"
	"slices"

	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// A Rule is consulted when a hint with a given role is finished.  Rules
// may rearrange the hint tree around the key.  If OnFinish returns false,
// the key stays open.
type Rule interface {
	OnFinish(b *Builder, k *HintKey) bool
}

// RuleFunc is a function which implements [Rule].
type RuleFunc func(b *Builder, k *HintKey) bool

// OnFinish implements the [Rule] interface.
func (f RuleFunc) OnFinish(b *Builder, k *HintKey) bool {
	return f(b, k)
}

// RegisterRule adds a rule for the given role.  Rules are looked up by the
// declared role of a key first, and by its standard role if no rules are
// registered for the declared role.
func (b *Builder) RegisterRule(role pdf.Name, r Rule) {
	b.rules[role] = append(b.rules[role], r)
}

func (b *Builder) registerDefaultRules() {
	b.RegisterRule("Table", RuleFunc(tableRule))
	b.RegisterRule("TH", RuleFunc(headerCellRule))
	b.RegisterRule("Figure", RuleFunc(figureRule))
	if b.ctx.opt.Target < pdf.V1_5 {
		for _, role := range []pdf.Name{"THead", "TBody", "TFoot"} {
			b.RegisterRule(role, RuleFunc(flattenRule))
		}
	}
}

func (b *Builder) rulesFor(k *HintKey) []Rule {
	p := k.Properties()
	if p == nil {
		return nil
	}
	if rules, ok := b.rules[p.Role]; ok {
		return rules
	}
	if std := b.standardRole(k); std != "" {
		return b.rules[std]
	}
	return nil
}

// standardRole returns the standard role which the declared role of k maps
// to, or the empty name.
func (b *Builder) standardRole(k *HintKey) pdf.Name {
	p := k.Properties()
	if p == nil || p.Role == "" {
		return ""
	}
	role, ns, ok := b.ctx.Tree.ResolveRole(p.Role, p.Namespace, b.ctx.opt.MaxRoleMapSteps)
	if !ok || (ns != nil && ns.URI == structure.NamespaceMathML) {
		return ""
	}
	return role
}

// ownProperties makes sure that k has a private copy of its properties
// and returns it.
func (k *HintKey) ownProperties() *Properties {
	if k.props == nil {
		k.props = k.Properties().Clone()
		if k.props == nil {
			k.props = &Properties{}
		}
	}
	return k.props
}

// tableRule groups the cells of a table into rows.  Cells which know their
// position are sorted by row and column; all other cells go into the first
// row.  Captions come first, then other content, the header, the body and
// the footer.  If the table has a header or footer, the rows are wrapped in
// a TBody group for PDF 1.5 and newer.
func tableRule(b *Builder, k *HintKey) bool {
	var caption, other, head, foot []*HintKey
	rows := make(map[int]map[int]*HintKey)
	var unindexed []*HintKey

	for _, a := range b.AccessibleKids(k) {
		switch b.standardRole(a) {
		case "Caption":
			caption = append(caption, a)
		case "THead":
			head = append(head, a)
		case "TFoot":
			foot = append(foot, a)
		case "TD", "TH":
			cell, ok := a.owner.(TableCell)
			if !ok {
				unindexed = append(unindexed, a)
				continue
			}
			row, col := cell.CellPosition()
			if rows[row] == nil {
				rows[row] = make(map[int]*HintKey)
			}
			if _, dup := rows[row][col]; dup {
				unindexed = append(unindexed, a)
				continue
			}
			rows[row][col] = a
		default:
			other = append(other, a)
		}
	}
	if len(rows) == 0 && len(unindexed) == 0 {
		return true
	}

	// take the table apart
	var dummies []*HintKey
	for _, kid := range slices.Clone(b.kids[k]) {
		b.walk(kid, func(d *HintKey) {
			if !d.accessible {
				dummies = append(dummies, d)
			}
		})
	}
	for _, group := range [][]*HintKey{caption, other, head, foot, unindexed} {
		for _, a := range group {
			b.detach(a)
		}
	}
	for _, cells := range rows {
		for _, a := range cells {
			b.detach(a)
		}
	}
	for _, d := range slices.Backward(dummies) {
		b.detach(d)
		if len(b.kids[d]) == 0 {
			delete(b.live, d)
			d.finished = true
		}
	}

	var body *HintKey
	if (len(head) > 0 || len(foot) > 0) && b.ctx.opt.Target >= pdf.V1_5 {
		body = b.NewGroup("TBody")
	} else {
		body = b.NewDummy()
	}

	var rowKeys []*HintKey
	for i, row := range slices.Sorted(maps.Keys(rows)) {
		cols := rows[row]
		var cells []*HintKey
		for _, col := range slices.Sorted(maps.Keys(cols)) {
			cells = append(cells, cols[col])
		}
		if i == 0 {
			cells = append(cells, unindexed...)
		}
		tr := b.NewGroup("TR")
		b.addKids(tr, cells, -1, true)
		rowKeys = append(rowKeys, tr)
	}
	if len(rowKeys) == 0 {
		tr := b.NewGroup("TR")
		b.addKids(tr, unindexed, -1, true)
		rowKeys = append(rowKeys, tr)
	}
	b.addKids(body, rowKeys, -1, true)

	var kids []*HintKey
	kids = append(kids, caption...)
	kids = append(kids, other...)
	kids = append(kids, head...)
	kids = append(kids, body)
	kids = append(kids, foot...)
	b.addKids(k, kids, -1, true)

	for _, tr := range rowKeys {
		tr.finished = true
	}
	body.finished = true
	return true
}

// headerCellRule gives header cells a column scope, unless a scope has
// been set explicitly.  The scope "None" suppresses the default and is
// removed.
func headerCellRule(b *Builder, k *HintKey) bool {
	props := k.ownProperties()
	explicit := false
	for i, a := range props.Attributes {
		if a.Owner != "Table" {
			continue
		}
		scope, ok := a.Values["Scope"]
		if !ok {
			continue
		}
		explicit = true
		if scope == pdf.Name("None") {
			values := a.Values.Clone("Scope")
			props.Attributes[i].Values = values
			if len(values) == 0 {
				props.Attributes = slices.Delete(props.Attributes, i, i+1)
			}
		}
		break
	}
	if !explicit {
		props.Attributes = append(props.Attributes, structure.TableScope("Column"))
	}
	b.syncTag(k)
	return true
}

// figureRule sets the Layout BBox of a figure to the union of the areas
// painted for the figure and its descendants.
func figureRule(b *Builder, k *HintKey) bool {
	if p := k.Properties(); p != nil {
		for _, a := range p.Attributes {
			if a.Owner == "Layout" && a.Get("BBox") != nil {
				return true
			}
		}
	}

	var bbox rect.Rect
	found := false
	b.walk(k, func(d *HintKey) {
		for _, r := range d.areas {
			if r.IsZero() {
				continue
			}
			if !found {
				bbox = r
				found = true
				continue
			}
			bbox.LLx = min(bbox.LLx, r.LLx)
			bbox.LLy = min(bbox.LLy, r.LLy)
			bbox.URx = max(bbox.URx, r.URx)
			bbox.URy = max(bbox.URy, r.URy)
		}
	})
	if !found {
		return true
	}

	props := k.ownProperties()
	props.Attributes = append(props.Attributes, structure.LayoutBBox(bbox))
	b.syncTag(k)
	return true
}

// flattenRule replaces a table section by its rows.  Table sections need
// PDF 1.5.
func flattenRule(b *Builder, k *HintKey) bool {
	if b.Parent(k) == nil {
		return false
	}
	b.ReplaceKid(k, b.Kids(k))
	return true
}
