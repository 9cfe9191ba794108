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
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStoreFlush(t *testing.T) {
	s := NewStore(V1_7, nil)
	ref := s.Alloc()
	err := s.Put(ref, Dict{"S": Name("P")})
	if err != nil {
		t.Fatal(err)
	}

	obj, err := s.Get(ref)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(Dict{"S": Name("P")}, obj); d != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", d)
	}

	err = s.Flush(ref)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsFlushed(ref) {
		t.Error("object not marked as flushed")
	}
	_, err = s.Get(ref)
	if !errors.Is(err, ErrFlushed) {
		t.Errorf("expected ErrFlushed, got %v", err)
	}
	err = s.Put(ref, Integer(1))
	if !errors.Is(err, ErrFlushed) {
		t.Errorf("expected ErrFlushed, got %v", err)
	}

	// flushing twice is fine
	err = s.Flush(ref)
	if err != nil {
		t.Error(err)
	}
}

func TestStoreMissing(t *testing.T) {
	s := NewStore(V1_7, nil)
	_, err := s.Get(NewReference(99, 0))
	if !errors.Is(err, ErrMissing) {
		t.Errorf("expected ErrMissing, got %v", err)
	}

	ref := s.Alloc()
	_ = s.Put(ref, Integer(1))
	s.Delete(ref)
	if s.Has(ref) {
		t.Error("deleted object still present")
	}
}

func TestStoreAllocAfterPut(t *testing.T) {
	s := NewStore(V1_7, nil)
	err := s.Put(NewReference(10, 0), Integer(1))
	if err != nil {
		t.Fatal(err)
	}
	ref := s.Alloc()
	if ref.Number() != 11 {
		t.Errorf("expected object number 11, got %d", ref.Number())
	}
}

func TestStoreClose(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewStore(V1_7, buf)
	pages := s.Alloc()
	catalog := s.Alloc()
	_ = s.Put(pages, Dict{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)})
	_ = s.Put(catalog, Dict{"Type": Name("Catalog"), "Pages": pages})

	err := s.Close(Dict{"Root": catalog})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"%PDF-1.7\n", "1 0 obj\n", "2 0 obj\n", "xref\n0 3\n", "trailer\n", "/Size 3", "%%EOF\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
	if strings.Index(out, "1 0 obj") > strings.Index(out, "2 0 obj") {
		t.Error("objects written out of order")
	}
}

func TestStoreCloseNoRoot(t *testing.T) {
	s := NewStore(V1_7, &bytes.Buffer{})
	err := s.Close(Dict{})
	if err == nil {
		t.Error("missing /Root not detected")
	}
}

func TestResolve(t *testing.T) {
	s := NewStore(V2_0, nil)
	a := s.Alloc()
	b := s.Alloc()
	_ = s.Put(a, b)
	_ = s.Put(b, Dict{"Type": Name("StructElem")})

	dict, err := GetDict(s, a)
	if err != nil {
		t.Fatal(err)
	}
	if dict["Type"] != Name("StructElem") {
		t.Errorf("wrong dict: %v", dict)
	}

	_, err = GetArray(s, b)
	if !IsMalformed(err) {
		t.Errorf("expected malformed error, got %v", err)
	}

	loop := s.Alloc()
	_ = s.Put(loop, loop)
	_, err = Resolve(s, loop)
	if !IsMalformed(err) {
		t.Errorf("expected malformed error, got %v", err)
	}
}

func TestCheckVersion(t *testing.T) {
	s := NewStore(V1_4, nil)
	err := CheckVersion(s, "table header groups", V1_5)
	var verErr *VersionError
	if !errors.As(err, &verErr) || verErr.Earliest != V1_5 {
		t.Errorf("expected VersionError, got %v", err)
	}
	if CheckVersion(s, "marked content", V1_3) != nil {
		t.Error("unexpected error")
	}
}
