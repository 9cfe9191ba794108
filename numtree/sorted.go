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

package numtree

import (
	"iter"
	"maps"
	"slices"

	"seehuhn.de/go/pdfstruct/pdf"
)

// Sorted is a number tree held in memory.
// Keys are sorted in increasing order and Values[i] belongs to Keys[i].
type Sorted struct {
	Keys   []pdf.Integer
	Values []pdf.Object
}

// FromMap returns the entries of m as a Sorted tree.
func FromMap(m map[pdf.Integer]pdf.Object) *Sorted {
	keys := slices.Sorted(maps.Keys(m))
	res := &Sorted{
		Keys:   keys,
		Values: make([]pdf.Object, len(keys)),
	}
	for i, key := range keys {
		res.Values[i] = m[key]
	}
	return res
}

// Len returns the number of entries in the tree.
func (t *Sorted) Len() int {
	return len(t.Keys)
}

// Get returns the value stored under key.
//
// The search mirrors the lookup in a balanced number tree: the key is
// compared against the least key of the second half of the current range and
// the search continues in the matching half.
func (t *Sorted) Get(key pdf.Integer) (pdf.Object, bool) {
	idx := search(t.Keys, 0, len(t.Keys), key)
	if idx < 0 {
		return nil, false
	}
	return t.Values[idx], true
}

func search(keys []pdf.Integer, lo, hi int, key pdf.Integer) int {
	switch hi - lo {
	case 0:
		return -1
	case 1:
		if keys[lo] == key {
			return lo
		}
		return -1
	}
	mid := lo + (hi-lo)/2
	if key < keys[mid] {
		return search(keys, lo, mid, key)
	}
	return search(keys, mid, hi, key)
}

// All iterates over the entries in order of increasing key.
func (t *Sorted) All() iter.Seq2[pdf.Integer, pdf.Object] {
	return func(yield func(pdf.Integer, pdf.Object) bool) {
		for i, key := range t.Keys {
			if !yield(key, t.Values[i]) {
				return
			}
		}
	}
}

// Max returns the largest key in the tree, or -1 if the tree is empty.
func (t *Sorted) Max() pdf.Integer {
	if len(t.Keys) == 0 {
		return -1
	}
	return t.Keys[len(t.Keys)-1]
}
