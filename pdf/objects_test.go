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
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Integer(-7), "-7"},
		{Real(1), "1."},
		{Real(0.5), "0.5"},
		{String("a"), "(a)"},
		{String("a (test version)"), "(a (test version))"},
		{String("a (test version"), "(a \\(test version)"},
		{String(""), "()"},
		{String("\000"), "<00>"},
		{Name("P"), "/P"},
		{Name("A B"), "/A#20B"},
		{Array{Integer(1), nil, Integer(3)}, "[1 null 3]"},
		{Dict{"Type": Name("MCR"), "MCID": Integer(0), "Pg": nil}, "<<\n/MCID 0\n/Type /MCR\n>>"},
		{NewReference(12, 0), "12 0 R"},
	}
	for _, test := range cases {
		out := Format(test.in)
		if out != test.out {
			t.Errorf("string wrongly formatted, expected %q but got %q",
				test.out, out)
		}
	}
}

func TestTextString(t *testing.T) {
	for _, s := range []string{"", "hello", "Grüße", "日本語"} {
		enc := TextString(s)
		if got := enc.AsTextString(); got != s {
			t.Errorf("%q: got %q", s, got)
		}
	}
	if enc := TextString("ä"); enc[0] != 0xFE || enc[1] != 0xFF {
		t.Errorf("missing byte order mark: % x", enc)
	}
}

func TestReference(t *testing.T) {
	ref := NewReference(17, 2)
	if ref.Number() != 17 || ref.Generation() != 2 {
		t.Errorf("wrong reference fields: %d %d", ref.Number(), ref.Generation())
	}
	if ref.String() != "obj_17@2" {
		t.Errorf("wrong string: %q", ref.String())
	}
}

func TestDictClone(t *testing.T) {
	d := Dict{"K": Integer(1), "P": Integer(2), "S": Name("P")}
	c := d.Clone("K", "P")
	if len(c) != 1 || c["S"] != Name("P") {
		t.Errorf("wrong clone: %v", c)
	}
	c["S"] = Name("Span")
	if d["S"] != Name("P") {
		t.Error("clone shares storage with original")
	}
}
