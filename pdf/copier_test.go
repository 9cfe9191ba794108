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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCopier(t *testing.T) {
	src := NewStore(V1_7, nil)
	page := src.Alloc()
	elem := src.Alloc()
	_ = src.Put(page, Dict{"Type": Name("Page")})
	_ = src.Put(elem, Dict{
		"Type": Name("StructElem"),
		"S":    Name("P"),
		"Pg":   page,
		"K":    Integer(0),
		"P":    NewReference(100, 0),
	})

	dst := NewStore(V1_7, nil)
	c := NewCopier(dst, src)

	newPage := dst.Alloc()
	c.Redirect(page, newPage)

	newElem, err := c.CopyExcept(elem, "K", "P")
	if err != nil {
		t.Fatal(err)
	}
	got, err := dst.Get(newElem)
	if err != nil {
		t.Fatal(err)
	}
	want := Dict{
		"Type": Name("StructElem"),
		"S":    Name("P"),
		"Pg":   newPage,
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("copy mismatch (-want +got):\n%s", d)
	}

	// copies are only made once
	again, err := c.CopyReference(elem)
	if err != nil {
		t.Fatal(err)
	}
	if again != newElem {
		t.Errorf("object copied twice: %s != %s", again, newElem)
	}
	if r, ok := c.Lookup(page); !ok || r != newPage {
		t.Errorf("Lookup() = %s, %t", r, ok)
	}
}

func TestCopierCycle(t *testing.T) {
	src := NewStore(V1_7, nil)
	a := src.Alloc()
	b := src.Alloc()
	_ = src.Put(a, Dict{"Next": b})
	_ = src.Put(b, Dict{"Next": a})

	dst := NewStore(V1_7, nil)
	c := NewCopier(dst, src)
	newA, err := c.CopyReference(a)
	if err != nil {
		t.Fatal(err)
	}
	dictA, _ := GetDict(dst, newA)
	dictB, _ := GetDict(dst, dictA["Next"])
	if dictB["Next"] != newA {
		t.Errorf("cycle not preserved: %v", dictB)
	}
}
