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
	"errors"
	"strconv"
)

var (
	// ErrFlushed is returned when an object is accessed after it has been
	// written to the output and evicted from memory.
	ErrFlushed = errors.New("object has been flushed")

	// ErrMissing is returned when a reference does not point to any object.
	ErrMissing = errors.New("missing object")
)

// MalformedError indicates that an object has an unexpected shape.
type MalformedError struct {
	Ref Reference
	Err error
}

func (err *MalformedError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if err.Ref != 0 {
		tail = " (in object " + strconv.FormatUint(uint64(err.Ref.Number()), 10) + ")"
	}
	return "malformed object" + middle + tail
}

func (err *MalformedError) Unwrap() error {
	return err.Err
}

// Malformed wraps err as a [MalformedError] for the given object.
func Malformed(ref Reference, err error) error {
	return &MalformedError{Ref: ref, Err: err}
}

// IsMalformed reports whether err is (or wraps) a [MalformedError].
func IsMalformed(err error) bool {
	var target *MalformedError
	return errors.As(err, &target)
}
