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

package pdf

import "fmt"

// maxRefDepth bounds the length of reference chains followed by [Resolve].
const maxRefDepth = 16

// Resolve resolves references to indirect objects.
//
// If obj is a [Reference], the function reads the corresponding object from
// the store and returns the result.  If obj is not a [Reference], it is
// returned unchanged.  The function recursively follows chains of references
// until it resolves to a non-reference object.
func Resolve(r Getter, obj Object) (Object, error) {
	for range maxRefDepth {
		ref, isRef := obj.(Reference)
		if !isRef {
			return obj, nil
		}
		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}
	return nil, Malformed(0, fmt.Errorf("reference chain longer than %d", maxRefDepth))
}

// GetDict resolves references to indirect objects and makes sure the
// resulting object is a dictionary (or a stream, in which case the stream
// dictionary is returned).
// If the object is null, nil is returned.
func GetDict(r Getter, obj Object) (Dict, error) {
	resolved, err := Resolve(r, obj)
	if err != nil {
		return nil, err
	}
	switch x := resolved.(type) {
	case nil:
		return nil, nil
	case Dict:
		return x, nil
	case *Stream:
		return x.Dict, nil
	default:
		return nil, wrongType(obj, "Dict", resolved)
	}
}

// GetArray resolves references to indirect objects and makes sure the
// resulting object is an array.
// If the object is null, nil is returned.
func GetArray(r Getter, obj Object) (Array, error) {
	resolved, err := Resolve(r, obj)
	if err != nil {
		return nil, err
	}
	switch x := resolved.(type) {
	case nil:
		return nil, nil
	case Array:
		return x, nil
	default:
		return nil, wrongType(obj, "Array", resolved)
	}
}

// GetInteger resolves references to indirect objects and makes sure the
// resulting object is an integer.
func GetInteger(r Getter, obj Object) (Integer, error) {
	resolved, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := resolved.(type) {
	case Integer:
		return x, nil
	default:
		return 0, wrongType(obj, "Integer", resolved)
	}
}

// GetName resolves references to indirect objects and makes sure the
// resulting object is a name.
// If the object is null, the empty name is returned.
func GetName(r Getter, obj Object) (Name, error) {
	resolved, err := Resolve(r, obj)
	if err != nil {
		return "", err
	}
	switch x := resolved.(type) {
	case nil:
		return "", nil
	case Name:
		return x, nil
	default:
		return "", wrongType(obj, "Name", resolved)
	}
}

// GetString resolves references to indirect objects and makes sure the
// resulting object is a string.
// If the object is null, nil is returned.
func GetString(r Getter, obj Object) (String, error) {
	resolved, err := Resolve(r, obj)
	if err != nil {
		return nil, err
	}
	switch x := resolved.(type) {
	case nil:
		return nil, nil
	case String:
		return x, nil
	default:
		return nil, wrongType(obj, "String", resolved)
	}
}

func wrongType(orig Object, want string, got Object) error {
	ref, _ := orig.(Reference)
	return Malformed(ref, fmt.Errorf("expected %s but got %T", want, got))
}
