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
	"seehuhn.de/go/pdfstruct/pdf"
)

// DefaultMaxRoleMapSteps is the number of role map steps after which role
// resolution gives up.  Role maps may contain cycles.
const DefaultMaxRoleMapSteps = 100

// RoleMapper follows a role through the role maps of a structure tree, one
// step at a time.
//
// Role maps may be transitive or cyclic.  RoleMapper does not detect
// cycles; callers must bound the number of calls to [RoleMapper.Step].
type RoleMapper struct {
	tree *Tree

	// Role is the current role.
	Role pdf.Name

	// NS is the current namespace, or nil for the default namespace.
	NS *Namespace
}

// NewRoleMapper returns a RoleMapper which starts at the given role.
func (t *Tree) NewRoleMapper(role pdf.Name, ns *Namespace) *RoleMapper {
	return &RoleMapper{tree: t, Role: role, NS: ns}
}

func (m *RoleMapper) nsURI() string {
	if m.NS == nil {
		return ""
	}
	return m.NS.URI
}

// IsStandard reports whether the current role is a standard structure type
// of the current namespace.
func (m *RoleMapper) IsStandard() bool {
	return IsStandardRole(m.Role, m.nsURI())
}

// ShouldMapToStandard reports whether the current role still needs to be
// mapped.  This is the case unless the role is standard or belongs to a
// known domain-specific namespace.
func (m *RoleMapper) ShouldMapToStandard() bool {
	if m.IsStandard() {
		return false
	}
	return m.nsURI() != NamespaceMathML
}

// Step applies one role map entry.  It reports whether the role or the
// namespace changed.
//
// Entries of the default namespace are taken from the RoleMap of the
// structure tree root.  An explicit PDF 1.7 namespace without a matching
// RoleMapNS entry falls back to the same map.
func (m *RoleMapper) Step() bool {
	var target pdf.Object
	if m.NS != nil {
		target = m.NS.roleMapping(m.Role)
	}
	if target == nil && (m.NS == nil || m.NS.URI == NamespacePDF1) {
		target = m.tree.roleMapEntry(m.Role)
	}

	store := m.tree.Doc.Store
	switch target := target.(type) {
	case pdf.Name:
		changed := target != m.Role || m.NS != nil
		m.Role = target
		m.NS = nil
		return changed
	case pdf.Array:
		if len(target) < 2 {
			return false
		}
		role, err := pdf.GetName(store, target[0])
		if err != nil || role == "" {
			return false
		}
		nsRef, ok := target[1].(pdf.Reference)
		if !ok {
			return false
		}
		ns, err := m.tree.namespaceByRef(nsRef)
		if err != nil {
			return false
		}
		changed := role != m.Role || ns != m.NS
		m.Role = role
		m.NS = ns
		return changed
	default:
		return false
	}
}

// ResolveRole follows the role maps, starting at role in namespace ns,
// until a standard role (or a role in a domain-specific namespace) is
// reached.  At most maxSteps steps are taken; if maxSteps is zero,
// [DefaultMaxRoleMapSteps] is used.  The last role is returned, together
// with a flag which tells whether resolution succeeded.
func (t *Tree) ResolveRole(role pdf.Name, ns *Namespace, maxSteps int) (pdf.Name, *Namespace, bool) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxRoleMapSteps
	}
	m := t.NewRoleMapper(role, ns)
	for i := 0; ; i++ {
		if !m.ShouldMapToStandard() {
			return m.Role, m.NS, true
		}
		if i >= maxSteps || !m.Step() {
			return m.Role, m.NS, false
		}
	}
}

// Classify returns the role class of a role after role mapping.
func (t *Tree) Classify(role pdf.Name, ns *Namespace) RoleClass {
	std, stdNS, ok := t.ResolveRole(role, ns, 0)
	if !ok {
		return Unknown
	}
	if stdNS != nil && stdNS.URI == NamespaceMathML {
		return Unknown
	}
	return ClassOf(std)
}

// AddRoleMapping adds an entry to the RoleMap of the structure tree root,
// which maps roles in the default namespace.
func (t *Tree) AddRoleMapping(role, target pdf.Name) error {
	root, err := t.rootDict()
	if err != nil {
		return err
	}
	roleMap, err := pdf.GetDict(t.Doc.Store, root["RoleMap"])
	if err != nil {
		return err
	}
	if roleMap == nil {
		roleMap = pdf.Dict{}
		root["RoleMap"] = roleMap
	}
	roleMap[role] = target
	return t.Doc.Store.Put(t.Ref, root)
}

// RoleMap returns a copy of the RoleMap of the structure tree root.
func (t *Tree) RoleMap() (map[pdf.Name]pdf.Name, error) {
	root, err := t.rootDict()
	if err != nil {
		return nil, err
	}
	roleMap, err := pdf.GetDict(t.Doc.Store, root["RoleMap"])
	if err != nil {
		return nil, err
	}
	res := make(map[pdf.Name]pdf.Name, len(roleMap))
	for key, val := range roleMap {
		if name, ok := val.(pdf.Name); ok {
			res[key] = name
		}
	}
	return res, nil
}

func (t *Tree) roleMapEntry(role pdf.Name) pdf.Object {
	root, err := t.rootDict()
	if err != nil {
		return nil
	}
	roleMap, err := pdf.GetDict(t.Doc.Store, root["RoleMap"])
	if err != nil || roleMap == nil {
		return nil
	}
	return roleMap[role]
}
