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
	"fmt"
	"io"
	"slices"
)

// Getter is implemented by object stores which can resolve references.
type Getter interface {
	// Get returns the object stored under ref.
	// If the object has been flushed, [ErrFlushed] is returned.
	Get(ref Reference) (Object, error)
}

// Putter is implemented by object stores which accept new objects.
type Putter interface {
	// Alloc allocates a new object number.
	Alloc() Reference

	// Put stores obj under ref, replacing any previous value.
	Put(ref Reference, obj Object) error
}

// Store holds the indirect objects of a PDF file which is being written.
//
// Objects stay in memory and can be modified until they are flushed.
// Flushing writes the object to the output (if any) and evicts it.
// After this, the object can no longer be read or changed.
type Store struct {
	// Version is the PDF version of the file being written.
	Version Version

	objects map[Reference]Object
	flushed map[Reference]struct{}
	freed   map[Reference]struct{}
	nextNum uint32

	w      *posWriter
	xref   map[uint32]int64
	header bool
}

var _ interface {
	Getter
	Putter
} = (*Store)(nil)

// NewStore creates a new object store.  If out is non-nil, flushed objects
// are written to out in PDF syntax.
func NewStore(ver Version, out io.Writer) *Store {
	s := &Store{
		Version: ver,
		objects: make(map[Reference]Object),
		flushed: make(map[Reference]struct{}),
		freed:   make(map[Reference]struct{}),
		nextNum: 1,
		xref:    make(map[uint32]int64),
	}
	if out != nil {
		s.w = &posWriter{w: out}
	}
	return s
}

// Alloc implements the [Putter] interface.
func (s *Store) Alloc() Reference {
	ref := NewReference(s.nextNum, 0)
	s.nextNum++
	return ref
}

// Put implements the [Putter] interface.
func (s *Store) Put(ref Reference, obj Object) error {
	if _, isFlushed := s.flushed[ref]; isFlushed {
		return fmt.Errorf("put %s: %w", ref, ErrFlushed)
	}
	if ref.Number() >= s.nextNum {
		s.nextNum = ref.Number() + 1
	}
	delete(s.freed, ref)
	s.objects[ref] = obj
	return nil
}

// Get implements the [Getter] interface.
func (s *Store) Get(ref Reference) (Object, error) {
	if _, isFlushed := s.flushed[ref]; isFlushed {
		return nil, fmt.Errorf("get %s: %w", ref, ErrFlushed)
	}
	obj, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, ErrMissing)
	}
	return obj, nil
}

// Has reports whether ref refers to an object which is present in memory.
func (s *Store) Has(ref Reference) bool {
	_, ok := s.objects[ref]
	return ok
}

// IsFlushed reports whether the object has been flushed.
func (s *Store) IsFlushed(ref Reference) bool {
	_, ok := s.flushed[ref]
	return ok
}

// Delete removes an object which has not been flushed.
// The object number is written as a free entry in the cross-reference table.
func (s *Store) Delete(ref Reference) {
	if _, isFlushed := s.flushed[ref]; isFlushed {
		return
	}
	delete(s.objects, ref)
	s.freed[ref] = struct{}{}
}

// Flush writes the object to the output and evicts it from memory.
// Flushing an already flushed object is a no-op.
func (s *Store) Flush(ref Reference) error {
	if _, isFlushed := s.flushed[ref]; isFlushed {
		return nil
	}
	obj, ok := s.objects[ref]
	if !ok {
		return fmt.Errorf("flush %s: %w", ref, ErrMissing)
	}
	if s.w != nil {
		err := s.writeIndirect(ref, obj)
		if err != nil {
			return err
		}
	}
	delete(s.objects, ref)
	s.flushed[ref] = struct{}{}
	return nil
}

// Close flushes all remaining objects in order of their object numbers and,
// if an output is attached, writes the cross-reference table and the trailer.
// The trailer entries "Root" and "Info" are taken from the given dictionary.
func (s *Store) Close(trailer Dict) error {
	refs := make([]Reference, 0, len(s.objects))
	for ref := range s.objects {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	for _, ref := range refs {
		err := s.Flush(ref)
		if err != nil {
			return err
		}
	}
	if s.w == nil {
		return nil
	}
	if trailer["Root"] == nil {
		return errors.New("missing /Root in trailer")
	}

	err := s.writeHeader()
	if err != nil {
		return err
	}
	xRefPos := s.w.pos
	_, err = fmt.Fprintf(s.w, "xref\n0 %d\n", s.nextNum)
	if err != nil {
		return err
	}
	for i := uint32(0); i < s.nextNum; i++ {
		pos, ok := s.xref[i]
		if i == 0 || !ok {
			_, err = fmt.Fprintf(s.w, "%010d %05d f\r\n", 0, 65535)
		} else {
			_, err = fmt.Fprintf(s.w, "%010d %05d n\r\n", pos, 0)
		}
		if err != nil {
			return err
		}
	}

	trailerDict := trailer.Clone()
	trailerDict["Size"] = Integer(s.nextNum)
	_, err = io.WriteString(s.w, "trailer\n")
	if err != nil {
		return err
	}
	err = trailerDict.PDF(s.w)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "\nstartxref\n%d\n%%%%EOF\n", xRefPos)
	if err != nil {
		return err
	}

	if closer, ok := s.w.w.(io.Closer); ok {
		err = closer.Close()
	}
	s.w = nil
	return err
}

func (s *Store) writeHeader() error {
	if s.header {
		return nil
	}
	s.header = true
	ver, err := s.Version.ToString()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", ver)
	return err
}

func (s *Store) writeIndirect(ref Reference, obj Object) error {
	err := s.writeHeader()
	if err != nil {
		return err
	}
	s.xref[ref.Number()] = s.w.pos
	_, err = fmt.Fprintf(s.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	err = writeObject(s.w, obj)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.w, "\nendobj\n")
	return err
}

type posWriter struct {
	w   io.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
