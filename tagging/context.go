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
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"seehuhn.de/go/pdfstruct/document"
	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

// Context holds the tagging state of one document.
//
// A Context is not safe for concurrent use.
type Context struct {
	// Tree is the structure tree which is being built.
	Tree *structure.Tree

	// Doc is the document which contains the tree.
	Doc *document.Document

	opt Options
	log zerolog.Logger

	// waiting tags, indexed both ways
	waiting   map[any]*structure.Element
	waitingBy map[pdf.Reference]any

	builder *Builder
}

// NewContext returns a new tagging context for the given structure tree.
// If opt is nil, default options are used.
func NewContext(tree *structure.Tree, opt *Options) *Context {
	var o Options
	if opt != nil {
		o = *opt
	}
	if o.Target == 0 {
		o.Target = tree.Doc.Version()
	}
	if o.MaxRoleMapSteps <= 0 {
		o.MaxRoleMapSteps = structure.DefaultMaxRoleMapSteps
	}
	return &Context{
		Tree:      tree,
		Doc:       tree.Doc,
		opt:       o,
		log:       tree.Doc.Log.With().Str("component", "tagging").Logger(),
		waiting:   make(map[any]*structure.Element),
		waitingBy: make(map[pdf.Reference]any),
	}
}

// Target returns the PDF version which tagging rules are tuned for.
func (c *Context) Target() pdf.Version {
	return c.opt.Target
}

// Builder returns the hint tree builder of the context.
func (c *Context) Builder() *Builder {
	if c.builder == nil {
		c.builder = newBuilder(c)
	}
	return c.builder
}

// NewPointer returns a new pointer, positioned at the structure tree root.
func (c *Context) NewPointer() *Pointer {
	return &Pointer{
		ctx:       c,
		current:   c.Tree.Root(),
		nextIndex: -1,
	}
}

// ValidateRole checks that role can be mapped to a standard role, or to a
// role of a known domain-specific namespace.
func (c *Context) ValidateRole(role pdf.Name, ns *structure.Namespace) error {
	if role == "" {
		return fmt.Errorf("empty role: %w", ErrUnmappableRole)
	}
	if _, _, ok := c.Tree.ResolveRole(role, ns, c.opt.MaxRoleMapSteps); !ok {
		return fmt.Errorf("%q: %w", role, ErrUnmappableRole)
	}
	return nil
}

// createTag creates a new structure element for props below parent, at
// the given position.  If role is non-empty, it is used instead of the
// role in props.
func (c *Context) createTag(parent *structure.Element, index int, props *Properties, role pdf.Name) (*structure.Element, error) {
	if props == nil {
		return nil, errors.New("missing accessibility properties")
	}
	if role == "" {
		role = props.Role
	}
	err := c.ValidateRole(role, props.Namespace)
	if err != nil {
		return nil, err
	}

	e, err := c.Tree.NewElement(role)
	if err != nil {
		return nil, err
	}
	if props.Namespace != nil {
		err = e.SetNamespace(props.Namespace)
	}
	if err == nil {
		err = props.apply(e)
	}
	if err == nil {
		err = parent.AddKid(index, e)
	}
	if err != nil {
		c.Doc.Store.Delete(e.Ref)
		return nil, err
	}
	return e, nil
}

// AssignWaiting associates the current tag of p with owner.  Waiting tags
// are not flushed, and [Pointer.AddTagFor] reuses them.  The owner must be
// comparable.
func (c *Context) AssignWaiting(p *Pointer, owner any) error {
	if p.current.IsRoot() {
		return ErrAtRoot
	}
	c.assignWaiting(p.current, owner)
	return nil
}

func (c *Context) assignWaiting(e *structure.Element, owner any) {
	if old, ok := c.waiting[owner]; ok {
		delete(c.waitingBy, old.Ref)
	}
	if prev, ok := c.waitingBy[e.Ref]; ok {
		delete(c.waiting, prev)
	}
	c.waiting[owner] = e
	c.waitingBy[e.Ref] = owner
}

// WaitingTag returns the tag associated with owner, or nil.
func (c *Context) WaitingTag(owner any) *structure.Element {
	return c.waiting[owner]
}

// IsWaiting reports whether e is associated with an owner.
func (c *Context) IsWaiting(e *structure.Element) bool {
	_, ok := c.waitingBy[e.Ref]
	return ok
}

// MoveToWaiting moves p to the tag associated with owner.  It reports
// whether such a tag exists.
func (c *Context) MoveToWaiting(p *Pointer, owner any) bool {
	e, ok := c.waiting[owner]
	if !ok {
		return false
	}
	p.moveTo(e)
	return true
}

// RemoveWaiting ends the association between owner and its tag.
// With [Options.ImmediateFlush], the tag is flushed if possible.
func (c *Context) RemoveWaiting(owner any) error {
	e := c.dropWaiting(owner)
	if e == nil || !c.opt.ImmediateFlush {
		return nil
	}
	return c.tryFlush(e, 0)
}

func (c *Context) dropWaiting(owner any) *structure.Element {
	e, ok := c.waiting[owner]
	if !ok {
		return nil
	}
	delete(c.waiting, owner)
	delete(c.waitingBy, e.Ref)
	return e
}

// tryFlush flushes e and then its ancestors, for as long as they are
// eligible.  An element is eligible if it is not waiting, all its element
// kids have been flushed and all its content items are on the given page
// or on pages which have already been written.
func (c *Context) tryFlush(e *structure.Element, page pdf.Reference) error {
	for e != nil && !e.IsRoot() && !e.IsFlushed() {
		ok, err := c.canFlush(e, page)
		if err != nil || !ok {
			return err
		}
		parent, err := e.Parent()
		if errors.Is(err, pdf.ErrFlushed) {
			parent = nil
		} else if err != nil {
			return err
		}
		err = e.Flush()
		if err != nil {
			return err
		}
		e = parent
	}
	return nil
}

func (c *Context) canFlush(e *structure.Element, page pdf.Reference) (bool, error) {
	if c.IsWaiting(e) {
		return false, nil
	}
	kids, err := e.Kids()
	if err != nil {
		return false, err
	}
	for _, kid := range kids {
		switch kid := kid.(type) {
		case *structure.Element:
			return false, nil
		case *structure.MCR:
			if kid.Page == 0 || kid.Page == page {
				continue
			}
			if p := c.Doc.PageByRef(kid.Page); p != nil && !p.IsFlushed() {
				return false, nil
			}
		}
	}
	return true, nil
}

// FlushPage writes a page to the output.  Structure elements whose
// content is complete are flushed first, then the entries of the page are
// moved to the finished part of the parent tree.
func (c *Context) FlushPage(page *document.Page) error {
	if page.IsFlushed() {
		return nil
	}
	err := c.flushPageTags(page.Ref)
	if err != nil {
		return err
	}
	err = c.Tree.Index.CommitPage(page.Ref)
	if err != nil {
		return err
	}
	return c.Doc.FlushPage(page)
}

func (c *Context) flushPageTags(page pdf.Reference) error {
	seen := make(map[pdf.Reference]bool)
	for _, m := range c.Tree.Index.PageLeaves(page) {
		e := m.Parent
		if e == nil || seen[e.Ref] {
			continue
		}
		seen[e.Ref] = true
		err := c.tryFlush(e, page)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemovePageTags removes all content items of a page from the structure
// tree.  Structure elements which become empty are removed as well, unless
// they are waiting.
func (c *Context) RemovePageTags(page *document.Page) error {
	var parents []*structure.Element
	byParent := make(map[pdf.Reference][]*structure.MCR)
	for _, m := range c.Tree.Index.PageLeaves(page.Ref) {
		if m.Parent == nil {
			continue
		}
		if _, seen := byParent[m.Parent.Ref]; !seen {
			parents = append(parents, m.Parent)
		}
		byParent[m.Parent.Ref] = append(byParent[m.Parent.Ref], m)
	}

	for _, e := range parents {
		kids, err := e.Kids()
		if err != nil {
			return err
		}
		var remove []int
		for i, kid := range kids {
			m, ok := kid.(*structure.MCR)
			if !ok {
				continue
			}
			for _, leaf := range byParent[e.Ref] {
				if sameLeaf(m, leaf) {
					remove = append(remove, i)
					break
				}
			}
		}
		// descending, so that the remaining positions stay valid
		for i := len(remove) - 1; i >= 0; i-- {
			_, err := e.RemoveKid(remove[i])
			if err != nil {
				return err
			}
		}
		err = c.removeIfEmpty(e)
		if err != nil {
			return err
		}
	}
	return nil
}

func sameLeaf(a, b *structure.MCR) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case structure.ContentItem:
		return a.Page == b.Page && a.MCID == b.MCID
	case structure.StreamItem:
		return a.Stream == b.Stream && a.MCID == b.MCID
	default:
		return a.Obj == b.Obj
	}
}

// removeIfEmpty removes e and then its ancestors from the tree, for as
// long as they have no kids and are not waiting.
func (c *Context) removeIfEmpty(e *structure.Element) error {
	for !e.IsRoot() && !c.IsWaiting(e) {
		n, err := e.NumKids()
		if err != nil || n > 0 {
			return err
		}
		parent, err := e.Parent()
		if err != nil || parent == nil {
			return err
		}
		idx, err := parent.IndexOf(e.Ref)
		if err != nil {
			return err
		}
		if idx >= 0 {
			_, err = parent.RemoveKid(idx)
			if err != nil {
				return err
			}
		}
		c.Doc.Store.Delete(e.Ref)
		e = parent
	}
	return nil
}

// spliceOut removes e from the tree and moves its kids into its place.
// The parent of e is returned.
func (c *Context) spliceOut(e *structure.Element) (*structure.Element, error) {
	parent, err := e.Dissolve()
	if err != nil {
		return nil, err
	}
	if owner, ok := c.waitingBy[e.Ref]; ok {
		delete(c.waiting, owner)
		delete(c.waitingBy, e.Ref)
	}
	return parent, nil
}

// Close releases all hints, finalizes the structure tree and closes the
// document.
func (c *Context) Close() error {
	if c.builder != nil {
		c.builder.ReleaseAll()
	}
	clear(c.waiting)
	clear(c.waitingBy)

	err := c.Tree.Finalize()
	if err != nil {
		return err
	}
	return c.Doc.Close()
}
