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
	"fmt"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Namespace names known to this package.
const (
	// NamespacePDF1 is the namespace of the PDF 1.7 standard structure types.
	// It is also the default namespace.
	NamespacePDF1 = "http://iso.org/pdf/ssn"

	// NamespacePDF2 is the namespace of the PDF 2.0 standard structure types.
	NamespacePDF2 = "http://iso.org/pdf2/ssn"

	// NamespaceMathML is the MathML namespace.  Roles in this namespace
	// need not be mapped to standard structure types.
	NamespaceMathML = "http://www.w3.org/1998/Math/MathML"
)

// Namespace is a namespace dictionary of a structure tree.
type Namespace struct {
	tree *Tree

	// Ref is the reference of the namespace dictionary.
	Ref pdf.Reference

	// URI is the name of the namespace.
	URI string
}

// Namespace returns the namespace with the given URI, creating it if
// needed.  Namespaces require PDF 2.0.
func (t *Tree) Namespace(uri string) (*Namespace, error) {
	if ns, ok := t.nsByURI[uri]; ok {
		return ns, nil
	}
	err := pdf.CheckVersion(t.Doc.Store, "structure namespaces", pdf.V2_0)
	if err != nil {
		return nil, err
	}

	ref := t.Doc.Store.Alloc()
	err = t.Doc.Store.Put(ref, pdf.Dict{
		"Type": pdf.Name("Namespace"),
		"NS":   pdf.TextString(uri),
	})
	if err != nil {
		return nil, err
	}
	return t.addNamespace(ref, uri), nil
}

func (t *Tree) addNamespace(ref pdf.Reference, uri string) *Namespace {
	ns := &Namespace{tree: t, Ref: ref, URI: uri}
	t.namespaces = append(t.namespaces, ns)
	t.nsByURI[uri] = ns
	t.nsByRef[ref] = ns
	return ns
}

// namespaceByRef returns the namespace stored under ref.
// Unknown namespace dictionaries are loaded from the store.
func (t *Tree) namespaceByRef(ref pdf.Reference) (*Namespace, error) {
	if ns, ok := t.nsByRef[ref]; ok {
		return ns, nil
	}
	dict, err := pdf.GetDict(t.Doc.Store, ref)
	if err != nil {
		return nil, err
	}
	uri, err := pdf.GetString(t.Doc.Store, dict["NS"])
	if err != nil {
		return nil, err
	}
	if uri == nil {
		return nil, pdf.Malformed(ref, fmt.Errorf("namespace without NS entry"))
	}
	if ns, ok := t.nsByURI[uri.AsTextString()]; ok {
		t.nsByRef[ref] = ns
		return ns, nil
	}
	return t.addNamespace(ref, uri.AsTextString()), nil
}

// AddRoleMapping maps role in this namespace to target.  If targetNS is
// nil, target is interpreted in the default namespace.
func (ns *Namespace) AddRoleMapping(role, target pdf.Name, targetNS *Namespace) error {
	store := ns.tree.Doc.Store
	dict, err := pdf.GetDict(store, ns.Ref)
	if err != nil {
		return err
	}
	roleMap, err := pdf.GetDict(store, dict["RoleMapNS"])
	if err != nil {
		return err
	}
	if roleMap == nil {
		roleMap = pdf.Dict{}
		dict["RoleMapNS"] = roleMap
	}
	if targetNS == nil {
		roleMap[role] = target
	} else {
		roleMap[role] = pdf.Array{target, targetNS.Ref}
	}
	return store.Put(ns.Ref, dict)
}

// roleMapping returns the raw role map entry for role, or nil.
func (ns *Namespace) roleMapping(role pdf.Name) pdf.Object {
	store := ns.tree.Doc.Store
	dict, err := pdf.GetDict(store, ns.Ref)
	if err != nil {
		return nil
	}
	roleMap, err := pdf.GetDict(store, dict["RoleMapNS"])
	if err != nil || roleMap == nil {
		return nil
	}
	return roleMap[role]
}
