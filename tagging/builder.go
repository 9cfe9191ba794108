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
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"
	"seehuhn.de/go/geom/rect"

	"seehuhn.de/go/pdfstruct/pdf"
	"seehuhn.de/go/pdfstruct/structure"
)

const artifactRole pdf.Name = "Artifact"

// HintKey is a node of the hint tree.
//
// A key is either accessible, in which case it eventually becomes a
// structure element, or a transparent dummy whose kids are treated as kids
// of the nearest accessible ancestor.  Keys move through the states open,
// finished and released.
type HintKey struct {
	id    int
	owner Accessible
	props *Properties

	accessible bool
	artifact   bool
	finished   bool

	// role is the role chosen by relation repair, if any
	role pdf.Name

	elem  *structure.Element
	areas []rect.Rect
}

// Owner returns the model element the key was created for, or nil for
// synthesized keys.
func (k *HintKey) Owner() Accessible {
	return k.owner
}

// Properties returns the accessibility properties of the key.
func (k *HintKey) Properties() *Properties {
	if k.props != nil {
		return k.props
	}
	if k.owner != nil {
		return k.owner.AccessibilityProperties()
	}
	return nil
}

// Role returns the role of the tag for this key.
func (k *HintKey) Role() pdf.Name {
	if k.role != "" {
		return k.role
	}
	if p := k.Properties(); p != nil {
		return p.Role
	}
	return ""
}

// IsAccessible reports whether the key gets a tag of its own.
func (k *HintKey) IsAccessible() bool { return k.accessible }

// IsArtifact reports whether the key has been excluded from the tree.
func (k *HintKey) IsArtifact() bool { return k.artifact }

// IsFinished reports whether the key has been finished.
func (k *HintKey) IsFinished() bool { return k.finished }

// Element returns the structure element created for the key, or nil.
func (k *HintKey) Element() *structure.Element { return k.elem }

func (k *HintKey) String() string {
	if !k.accessible {
		return fmt.Sprintf("hint#%d", k.id)
	}
	return fmt.Sprintf("hint#%d(%s)", k.id, k.Role())
}

// Builder maintains the hint tree of a [Context].
//
// Builder methods which rearrange hints do not return errors.  Requests
// which would corrupt the tree are ignored and logged instead.
type Builder struct {
	ctx *Context
	log zerolog.Logger

	anchor *structure.Element
	nextID int

	live    map[*HintKey]bool
	parents map[*HintKey]*HintKey
	kids    map[*HintKey][]*HintKey

	rules     map[pdf.Name][]Rule
	relations RelationTable
}

func newBuilder(c *Context) *Builder {
	b := &Builder{
		ctx:       c,
		log:       c.log,
		anchor:    c.Tree.Root(),
		live:      make(map[*HintKey]bool),
		parents:   make(map[*HintKey]*HintKey),
		kids:      make(map[*HintKey][]*HintKey),
		rules:     make(map[pdf.Name][]Rule),
		relations: defaultRelations(c.opt.Target, c.opt.Relations),
	}
	b.registerDefaultRules()
	return b
}

// SetAnchor sets the structure element below which the tags of top-level
// hints are created.  The default is the structure tree root.
func (b *Builder) SetAnchor(e *structure.Element) {
	b.anchor = e
}

func (b *Builder) newKey(owner Accessible, props *Properties) *HintKey {
	b.nextID++
	k := &HintKey{id: b.nextID, owner: owner, props: props}
	if p := k.Properties(); p != nil && p.Role != "" {
		if p.Role == artifactRole {
			k.artifact = true
			k.finished = true
			return k
		}
		k.accessible = true
	}
	b.live[k] = true
	return k
}

// NewKey returns a new hint key for a model element.  Elements without a
// role get a transparent key.
func (b *Builder) NewKey(a Accessible) *HintKey {
	return b.newKey(a, nil)
}

// NewDummy returns a new transparent hint key.
func (b *Builder) NewDummy() *HintKey {
	return b.newKey(nil, nil)
}

// NewGroup returns a new accessible hint key with the given role, which
// is not associated with a model element.
func (b *Builder) NewGroup(role pdf.Name) *HintKey {
	return b.newKey(nil, &Properties{Role: role})
}

// KeyFor returns the hint key of a renderer node, creating it if needed.
func (b *Builder) KeyFor(n Node) *HintKey {
	if k := n.HintKey(); k != nil {
		return k
	}
	k := b.NewKey(n)
	n.SetHintKey(k)
	return k
}

// Parent returns the parent of k in the hint tree, or nil.
func (b *Builder) Parent(k *HintKey) *HintKey {
	return b.parents[k]
}

// Kids returns the kids of k in the hint tree.
func (b *Builder) Kids(k *HintKey) []*HintKey {
	return slices.Clone(b.kids[k])
}

// AccessibleKids returns the accessible kids of k.  Transparent kids are
// replaced by their own accessible kids.
func (b *Builder) AccessibleKids(k *HintKey) []*HintKey {
	var res []*HintKey
	for _, kid := range b.kids[k] {
		if kid.accessible {
			res = append(res, kid)
		} else {
			res = append(res, b.AccessibleKids(kid)...)
		}
	}
	return res
}

// AccessibleParent returns the nearest accessible ancestor of k, or nil.
func (b *Builder) AccessibleParent(k *HintKey) *HintKey {
	p := b.parents[k]
	for p != nil && !p.accessible {
		p = b.parents[p]
	}
	return p
}

// accessibleSelf returns k if it is accessible, and its accessible kids
// otherwise.
func (b *Builder) accessibleSelf(k *HintKey) []*HintKey {
	if k.accessible {
		return []*HintKey{k}
	}
	return b.AccessibleKids(k)
}

func (b *Builder) isAncestor(a, k *HintKey) bool {
	for p := b.parents[k]; p != nil; p = b.parents[p] {
		if p == a {
			return true
		}
	}
	return false
}

func (b *Builder) walk(k *HintKey, fn func(*HintKey)) {
	fn(k)
	for _, kid := range b.kids[k] {
		b.walk(kid, fn)
	}
}

func (b *Builder) detach(k *HintKey) {
	p := b.parents[k]
	if p == nil {
		return
	}
	delete(b.parents, k)
	list := b.kids[p]
	if i := slices.Index(list, k); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(b.kids, p)
	} else {
		b.kids[p] = list
	}
}

// AddKids attaches kids to parent, starting at position index in the kid
// list of parent.  A negative index appends.
//
// The request is ignored if parent is finished.  Kids which already have a
// parent, or which are finished, are skipped.  If parent is an artifact,
// the kids are marked as artifacts instead.  If the tag of parent (or of
// its nearest accessible ancestor) exists, tags for the new kids are
// created immediately.
func (b *Builder) AddKids(parent *HintKey, kids []*HintKey, index int) {
	b.addKids(parent, kids, index, false)
}

func (b *Builder) addKids(parent *HintKey, kids []*HintKey, index int, skipFinishedChecks bool) {
	if len(kids) == 0 {
		return
	}
	if parent.artifact {
		for _, k := range kids {
			b.MarkArtifact(k)
		}
		return
	}
	if !skipFinishedChecks && parent.finished {
		b.log.Error().Stringer("parent", parent).Msg("cannot add kids to a finished hint")
		return
	}

	list := b.kids[parent]
	if index < 0 || index > len(list) {
		index = len(list)
	}
	var added []*HintKey
	for _, k := range kids {
		if k.artifact {
			continue
		}
		if old := b.parents[k]; old != nil {
			b.log.Error().Stringer("kid", k).Stringer("parent", old).Msg("hint already has a parent")
			continue
		}
		if k == parent || b.isAncestor(k, parent) {
			b.log.Error().Stringer("kid", k).Stringer("parent", parent).Msg("hint cannot be its own descendant")
			continue
		}
		if !skipFinishedChecks && k.finished {
			b.log.Error().Stringer("kid", k).Msg("cannot add a finished hint as a kid")
			continue
		}
		list = slices.Insert(list, index, k)
		index++
		b.parents[k] = parent
		added = append(added, k)
	}
	if len(list) > 0 {
		b.kids[parent] = list
	}

	b.repairRelations(parent, added)
	b.attachTags(parent, added)
}

// attachTags creates or moves the tags of newly attached kids, if the tag
// of their parent exists.
func (b *Builder) attachTags(parent *HintKey, added []*HintKey) {
	tagParent := parent
	if !parent.accessible {
		tagParent = b.AccessibleParent(parent)
	}
	if tagParent == nil || tagParent.elem == nil {
		return
	}
	for _, k := range added {
		for _, a := range b.accessibleSelf(k) {
			var err error
			if a.elem != nil {
				err = b.moveTag(a, tagParent.elem)
			} else {
				_, err = b.materialize(a)
			}
			if err != nil {
				b.log.Error().Err(err).Stringer("hint", a).Msg("cannot create tag")
			}
		}
	}
}

// MoveKid moves k to a new parent.  The request is ignored if the new
// parent is finished, or if k is finished and has no parent.
func (b *Builder) MoveKid(k, newParent *HintKey, index int) {
	if newParent.finished {
		b.log.Error().Stringer("kid", k).Stringer("parent", newParent).Msg("cannot move a hint to a finished parent")
		return
	}
	if b.parents[k] == nil && k.finished {
		b.log.Error().Stringer("kid", k).Msg("cannot move a finished hint without parent")
		return
	}
	if k == newParent || b.isAncestor(k, newParent) {
		b.log.Error().Stringer("kid", k).Stringer("parent", newParent).Msg("hint cannot be its own descendant")
		return
	}
	b.detach(k)
	b.addKids(newParent, []*HintKey{k}, index, true)
}

// ReplaceKid replaces k by newKids in the kid list of its parent.  If k
// has a tag, the tag is removed and its remaining content moves to the
// parent tag.  The request is ignored if k is finished or has no parent.
func (b *Builder) ReplaceKid(k *HintKey, newKids []*HintKey) {
	parent := b.parents[k]
	if parent == nil {
		b.log.Error().Stringer("kid", k).Msg("cannot replace a hint without parent")
		return
	}
	if k.finished {
		b.log.Error().Stringer("kid", k).Msg("cannot replace a finished hint")
		return
	}
	var kids []*HintKey
	for _, n := range newKids {
		if n == k || n == parent || b.isAncestor(n, parent) {
			b.log.Error().Stringer("kid", n).Stringer("parent", parent).Msg("hint cannot be its own descendant")
			continue
		}
		kids = append(kids, n)
	}
	newKids = kids

	idx := slices.Index(b.kids[parent], k)
	for _, n := range newKids {
		b.detach(n)
	}
	b.detach(k)
	if n := len(b.kids[parent]); idx > n {
		idx = n
	}
	b.addKids(parent, newKids, idx, true)
	b.dropTag(k)
	if len(b.kids[k]) == 0 {
		delete(b.live, k)
	}
}

// MarkArtifact excludes k and all its descendants from the structure
// tree.  Existing tags are removed; their content moves to the parent
// tag.
func (b *Builder) MarkArtifact(k *HintKey) {
	if k.artifact {
		return
	}
	for _, kid := range slices.Clone(b.kids[k]) {
		b.MarkArtifact(kid)
	}
	b.dropTag(k)
	b.detach(k)
	delete(b.kids, k)
	delete(b.live, k)
	k.artifact = true
	k.finished = true
	k.accessible = false
}

func (b *Builder) dropTag(k *HintKey) {
	if k.elem == nil {
		return
	}
	b.ctx.dropWaiting(k)
	if !k.elem.IsFlushed() {
		if _, err := b.ctx.spliceOut(k.elem); err != nil {
			b.log.Error().Err(err).Stringer("hint", k).Msg("cannot remove tag")
		}
	}
	k.elem = nil
}

// NoteArea records an area of the page which was painted for k.
func (b *Builder) NoteArea(k *HintKey, r rect.Rect) {
	k.areas = append(k.areas, r)
}

// AddTag moves p to the tag of k, creating the tags of k and its
// ancestors as needed.  For transparent keys, p moves to the tag of the
// nearest accessible ancestor.  If k is an artifact, p is not moved and
// false is returned; the caller should then mark the content as an
// artifact.
func (b *Builder) AddTag(k *HintKey, p *Pointer) (bool, error) {
	if k.artifact {
		return false, nil
	}
	target := k
	if !k.accessible {
		target = b.AccessibleParent(k)
	}
	if target == nil {
		p.moveTo(b.anchor)
		return true, nil
	}
	e, err := b.materialize(target)
	if err != nil {
		return false, err
	}
	p.moveTo(e)
	return true, nil
}

// materialize creates the tag for k, and the tags of its ancestors if
// needed.  Existing tags of accessible kids are moved below the new tag.
func (b *Builder) materialize(k *HintKey) (*structure.Element, error) {
	if k.elem != nil {
		return k.elem, nil
	}
	if !k.accessible {
		return nil, fmt.Errorf("%s has no tag of its own", k)
	}

	parentElem := b.anchor
	if p := b.AccessibleParent(k); p != nil {
		pe, err := b.materialize(p)
		if err != nil {
			return nil, err
		}
		parentElem = pe
	}

	idx := b.siblingIndex(k, parentElem)
	e, err := b.ctx.createTag(parentElem, idx, k.Properties(), k.role)
	if err != nil {
		return nil, err
	}
	k.elem = e
	b.ctx.assignWaiting(e, k)

	for _, kid := range b.AccessibleKids(k) {
		var err error
		if kid.elem != nil {
			err = b.moveTag(kid, e)
		} else if b.hasTaggedDescendant(kid) {
			_, err = b.materialize(kid)
		}
		if err != nil {
			b.log.Error().Err(err).Stringer("hint", kid).Msg("cannot move tag")
		}
	}
	return e, nil
}

func (b *Builder) hasTaggedDescendant(k *HintKey) bool {
	found := false
	b.walk(k, func(d *HintKey) {
		if d != k && d.elem != nil {
			found = true
		}
	})
	return found
}

// moveTag moves the existing tag of k below parentElem, at the position
// given by the hint tree.
func (b *Builder) moveTag(k *HintKey, parentElem *structure.Element) error {
	class, err := parentElem.Class()
	if err != nil {
		return err
	}
	if !class.CanContainElements() {
		return fmt.Errorf("move %s to %s: %w", k, parentElem, structure.ErrCannotContainKids)
	}

	e := k.elem
	old, err := e.Parent()
	if err != nil {
		return err
	}
	if old != nil {
		idx, err := old.IndexOf(e.Ref)
		if err != nil {
			return err
		}
		if idx >= 0 {
			if _, err := old.RemoveKid(idx); err != nil {
				return err
			}
		}
	}
	return parentElem.AddKid(b.siblingIndex(k, parentElem), e)
}

// siblingIndex returns the position in the kids of parentElem at which the
// tag of k must be inserted.  This is the position of the tag of the next
// sibling of k which already has a tag below parentElem.  Transparent
// siblings are searched depth-first, and if k itself is below transparent
// keys, the search continues after these.  If no such sibling exists, -1
// is returned.
func (b *Builder) siblingIndex(k *HintKey, parentElem *structure.Element) int {
	for {
		parent := b.parents[k]
		if parent == nil {
			return -1
		}
		siblings := b.kids[parent]
		i := slices.Index(siblings, k)
		for _, s := range siblings[i+1:] {
			if idx := b.findTag(s, parentElem); idx >= 0 {
				return idx
			}
		}
		if parent.accessible {
			return -1
		}
		k = parent
	}
}

// findTag returns the position of the first tag below k (in hint order)
// which is a kid of parentElem, or -1.
func (b *Builder) findTag(k *HintKey, parentElem *structure.Element) int {
	if k.accessible {
		if k.elem == nil {
			return -1
		}
		idx, err := parentElem.IndexOf(k.elem.Ref)
		if err != nil {
			return -1
		}
		return idx
	}
	for _, kid := range b.kids[k] {
		if idx := b.findTag(kid, parentElem); idx >= 0 {
			return idx
		}
	}
	return -1
}

// syncTag writes the properties of k to its tag, if the tag exists.
func (b *Builder) syncTag(k *HintKey) {
	if k.elem == nil || k.elem.IsFlushed() {
		return
	}
	if err := k.Properties().apply(k.elem); err != nil {
		b.log.Error().Err(err).Stringer("hint", k).Msg("cannot update tag")
	}
}

// Finish marks k as finished.  Rules registered for the role of k are
// consulted first and may rearrange the hint tree; if a rule vetoes, k
// stays open.
func (b *Builder) Finish(k *HintKey) {
	if k.finished {
		return
	}
	for _, r := range b.rulesFor(k) {
		if !r.OnFinish(b, k) {
			return
		}
	}
	k.finished = true
}

// ReleaseFinished releases k, if it is ready.  It reports whether k was
// released.
func (b *Builder) ReleaseFinished(k *HintKey) bool {
	if !b.live[k] || !b.releasable(k, b.heldKeys()) {
		return false
	}
	b.release(k)
	return true
}

// ReleaseAllFinished releases all hints which are ready and returns the
// number of released keys.
//
// A key is ready if it and all its descendants are finished, if all
// transparent ancestors up to the nearest accessible one are finished,
// and if it is not held.  Kids of an open key for which rules are
// registered are not ready either.  A finished key is held if an unfinished key
// precedes it in the accessible kid list of their common parent.
func (b *Builder) ReleaseAllFinished() int {
	held := b.heldKeys()
	n := 0
	for _, k := range b.liveKeys() {
		if b.live[k] && b.releasable(k, held) {
			n += b.release(k)
		}
	}
	return n
}

// ReleaseAll marks all remaining hints as finished, without consulting
// any rules, and releases them.  Tags which do not exist yet are not
// created.
func (b *Builder) ReleaseAll() {
	keys := b.liveKeys()
	for _, k := range keys {
		if !k.finished {
			b.log.Debug().Stringer("hint", k).Msg("force-releasing unfinished hint")
			k.finished = true
		}
	}
	for _, k := range keys {
		if b.live[k] {
			b.release(k)
		}
	}
}

func (b *Builder) liveKeys() []*HintKey {
	return slices.SortedFunc(maps.Keys(b.live), func(a, c *HintKey) int {
		return cmp.Compare(a.id, c.id)
	})
}

func (b *Builder) heldKeys() map[*HintKey]bool {
	held := make(map[*HintKey]bool)
	for p := range b.kids {
		if !p.accessible && b.parents[p] != nil {
			continue
		}
		blocked := false
		for _, k := range b.AccessibleKids(p) {
			if !k.finished {
				blocked = true
			} else if blocked {
				held[k] = true
			}
		}
	}
	return held
}

func (b *Builder) releasable(k *HintKey, held map[*HintKey]bool) bool {
	if !k.finished {
		return false
	}
	for p := b.parents[k]; p != nil && !p.accessible; p = b.parents[p] {
		if !p.finished {
			return false
		}
	}
	// rules of an open parent may still rearrange its kids
	if p := b.AccessibleParent(k); p != nil && !p.finished && len(b.rulesFor(p)) > 0 {
		return false
	}
	ok := true
	b.walk(k, func(d *HintKey) {
		if !d.finished || held[d] {
			ok = false
		}
	})
	return ok
}

// release removes k and its descendants from the hint tree and ends the
// waiting state of their tags.  It returns the number of removed keys.
func (b *Builder) release(k *HintKey) int {
	b.detach(k)
	n := 0
	var rel func(k *HintKey)
	rel = func(k *HintKey) {
		for _, kid := range b.kids[k] {
			rel(kid)
		}
		delete(b.kids, k)
		delete(b.parents, k)
		delete(b.live, k)
		if k.elem != nil {
			if err := b.ctx.RemoveWaiting(k); err != nil {
				b.log.Error().Err(err).Stringer("hint", k).Msg("cannot flush tag")
			}
		}
		n++
	}
	rel(k)
	return n
}
