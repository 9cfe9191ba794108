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

import "slices"

// A Copier copies objects from one PDF store to another.
// Indirect objects are copied at most once; the mapping from source to
// destination references is remembered.
type Copier struct {
	trans map[Reference]Reference
	r     Getter
	w     Putter
}

// NewCopier creates a new Copier which reads from r and writes to w.
func NewCopier(w Putter, r Getter) *Copier {
	c := &Copier{
		trans: make(map[Reference]Reference),
		w:     w,
		r:     r,
	}
	return c
}

// Copy copies an object from the source store to the destination store.
// Indirect objects reachable from obj are copied recursively.
func (c *Copier) Copy(obj Object) (Object, error) {
	switch x := obj.(type) {
	case Dict:
		return c.CopyDict(x)
	case Array:
		return c.CopyArray(x)
	case *Stream:
		dict, err := c.CopyDict(x.Dict)
		if err != nil {
			return nil, err
		}
		res := &Stream{
			Dict: dict,
			Data: slices.Clone(x.Data),
		}
		return res, nil
	case Reference:
		return c.CopyReference(x)
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary, omitting the keys listed in exclude.
func (c *Copier) CopyDict(obj Dict, exclude ...Name) (Dict, error) {
	if obj == nil {
		return nil, nil
	}
	res := Dict{}
	for key, val := range obj {
		if slices.Contains(exclude, key) {
			continue
		}
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res[key] = repl
	}
	return res, nil
}

// CopyArray copies an array.
func (c *Copier) CopyArray(obj Array) (Array, error) {
	var res Array
	for _, val := range obj {
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res = append(res, repl)
	}
	return res, nil
}

// CopyReference copies an indirect object and returns the reference of the
// copy.  If the object has been copied before, the existing copy is used.
func (c *Copier) CopyReference(obj Reference) (Reference, error) {
	newRef, ok := c.trans[obj]
	if ok {
		return newRef, nil
	}
	newRef = c.w.Alloc()
	c.trans[obj] = newRef

	val, err := Resolve(c.r, obj)
	if err != nil {
		delete(c.trans, obj)
		return 0, err
	}
	trans, err := c.Copy(val)
	if err != nil {
		return 0, err
	}
	err = c.w.Put(newRef, trans)
	if err != nil {
		return 0, err
	}

	return newRef, nil
}

// CopyExcept copies the dictionary stored under obj, omitting the given
// keys, and returns the reference of the copy.  If the object has been copied
// before, the existing copy is returned unchanged.
func (c *Copier) CopyExcept(obj Reference, exclude ...Name) (Reference, error) {
	if newRef, ok := c.trans[obj]; ok {
		return newRef, nil
	}
	dict, err := GetDict(c.r, obj)
	if err != nil {
		return 0, err
	}
	newRef := c.w.Alloc()
	c.trans[obj] = newRef
	copied, err := c.CopyDict(dict, exclude...)
	if err != nil {
		return 0, err
	}
	err = c.w.Put(newRef, copied)
	if err != nil {
		return 0, err
	}
	return newRef, nil
}

// Redirect makes the copier use newRef whenever origRef is encountered.
func (c *Copier) Redirect(origRef, newRef Reference) {
	c.trans[origRef] = newRef
}

// Lookup returns the destination reference for an already copied object.
func (c *Copier) Lookup(origRef Reference) (Reference, bool) {
	newRef, ok := c.trans[origRef]
	return newRef, ok
}
