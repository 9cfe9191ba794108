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
	"maps"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfstruct/pdf"
)

func testData(n int) map[pdf.Integer]pdf.Object {
	data := map[pdf.Integer]pdf.Object{
		-1: pdf.Name("negative one"),
		2:  pdf.Name("two"),
		5:  pdf.Name("five"),
	}
	for i := pdf.Integer(100); i < pdf.Integer(100+n); i++ {
		data[i] = i
	}
	return data
}

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{0, 10, 61, 62, 500, 5000} {
		for _, balanced := range []bool{false, true} {
			want := FromMap(testData(n))
			w := pdf.NewStore(pdf.V1_7, nil)

			var ref pdf.Reference
			var err error
			if balanced {
				ref, err = Write(w, want.All())
			} else {
				ref, err = WriteFlat(w, want.All())
			}
			if err != nil {
				t.Fatal(err)
			}

			got, err := Read(w, ref)
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(want, got); d != "" {
				t.Errorf("n=%d balanced=%t: Read() mismatch (-want +got):\n%s", n, balanced, d)
			}
		}
	}
}

func TestBalancedShape(t *testing.T) {
	data := FromMap(testData(5000))
	w := pdf.NewStore(pdf.V1_7, nil)
	ref, err := Write(w, data.All())
	if err != nil {
		t.Fatal(err)
	}

	root, err := pdf.GetDict(w, ref)
	if err != nil {
		t.Fatal(err)
	}
	if _, hasLimits := root["Limits"]; hasLimits {
		t.Error("root node has Limits")
	}
	kids, err := pdf.GetArray(w, root["Kids"])
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) == 0 || len(kids) > maxChildren {
		t.Errorf("root has %d kids", len(kids))
	}

	// all intermediate nodes carry correct limits
	var check func(node pdf.Object)
	check = func(node pdf.Object) {
		dict, _ := pdf.GetDict(w, node)
		if kids, _ := pdf.GetArray(w, dict["Kids"]); kids != nil {
			for _, kid := range kids {
				kidDict, _ := pdf.GetDict(w, kid)
				limits, _ := pdf.GetArray(w, kidDict["Limits"])
				if len(limits) != 2 {
					t.Errorf("node %v has no limits", kid)
					continue
				}
				sub, _ := Read(w, kid)
				if sub.Keys[0] != limits[0] || sub.Max() != limits[1] {
					t.Errorf("wrong limits %v for keys %d..%d", limits, sub.Keys[0], sub.Max())
				}
				check(kid)
			}
		}
	}
	check(ref)
}

func TestWriteUnsorted(t *testing.T) {
	bad := func(yield func(pdf.Integer, pdf.Object) bool) {
		_ = yield(2, nil) && yield(1, nil)
	}
	w := pdf.NewStore(pdf.V1_7, nil)
	if _, err := WriteFlat(w, bad); err == nil {
		t.Error("WriteFlat accepted unsorted keys")
	}
	if _, err := Write(w, bad); err == nil {
		t.Error("Write accepted unsorted keys")
	}
}

func TestReadDuplicates(t *testing.T) {
	w := pdf.NewStore(pdf.V1_7, nil)
	ref := w.Alloc()
	_ = w.Put(ref, pdf.Dict{
		"Nums": pdf.Array{
			pdf.Integer(3), pdf.Name("c"),
			pdf.Integer(1), pdf.Name("a"),
			pdf.Integer(3), pdf.Name("x"),
		},
	})
	got, err := Read(w, ref)
	if err != nil {
		t.Fatal(err)
	}
	want := &Sorted{
		Keys:   []pdf.Integer{1, 3},
		Values: []pdf.Object{pdf.Name("a"), pdf.Name("c")},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", d)
	}
}

func TestSortedGet(t *testing.T) {
	data := testData(300)
	tree := FromMap(data)
	for key, val := range data {
		got, ok := tree.Get(key)
		if !ok || got != val {
			t.Errorf("Get(%d) = %v, %t", key, got, ok)
		}
	}
	for _, key := range []pdf.Integer{-5, 0, 3, 99, 400, 1000} {
		if _, ok := tree.Get(key); ok {
			t.Errorf("Get(%d) found a value", key)
		}
	}
	if n := len(maps.Collect(tree.All())); n != tree.Len() {
		t.Errorf("All() returned %d entries, want %d", n, tree.Len())
	}
}
