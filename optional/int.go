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

// Package optional provides value types which can be unset.
package optional

import "seehuhn.de/go/pdfstruct/pdf"

// Int is an optional non-negative PDF integer.
// The zero value represents the unset state.
type Int struct {
	val uint64
}

// NewInt creates a new Int with the given value.
func NewInt(v pdf.Integer) Int {
	var k Int
	k.Set(v)
	return k
}

// Get returns the value and whether it is set.
func (k Int) Get() (pdf.Integer, bool) {
	if k.val == 0 {
		return 0, false
	}
	return pdf.Integer(k.val - 1), true
}

// IsSet reports whether a value has been assigned.
func (k Int) IsSet() bool {
	return k.val != 0
}

// Set sets the value.  Negative values cause a panic.
func (k *Int) Set(v pdf.Integer) {
	if v < 0 {
		panic("optional.Int: negative value")
	}
	k.val = uint64(v) + 1
}

// Clear clears the value.
func (k *Int) Clear() {
	k.val = 0
}

// Equal compares two values for equality.
func (k Int) Equal(other Int) bool {
	return k.val == other.val
}

// AsObject returns the value as a PDF object, or nil if the value is unset.
func (k Int) AsObject() pdf.Object {
	if v, ok := k.Get(); ok {
		return v
	}
	return nil
}
