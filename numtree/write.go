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
	"errors"
	"iter"

	"seehuhn.de/go/pdfstruct/pdf"
)

// maxChildren is the maximum number of children we allow in a node while
// writing a balanced number tree.
const maxChildren = 64

var errNotSorted = errors.New("keys must be in sorted order")

type entry struct {
	key   pdf.Integer
	value pdf.Object
}

// WriteFlat writes a number tree as a single dictionary with a `Nums` array.
// The iterator must return the keys in increasing order, without duplicates.
// The return value is the reference to the dictionary.
func WriteFlat(w pdf.Putter, data iter.Seq2[pdf.Integer, pdf.Object]) (pdf.Reference, error) {
	nums := pdf.Array{}
	first := true
	var last pdf.Integer
	for key, value := range data {
		if !first && key <= last {
			return 0, errNotSorted
		}
		first = false
		last = key
		nums = append(nums, key, value)
	}

	ref := w.Alloc()
	err := w.Put(ref, pdf.Dict{"Nums": nums})
	if err != nil {
		return 0, err
	}
	return ref, nil
}

type treeNode struct {
	ref    pdf.Reference
	dict   pdf.Dict
	minKey pdf.Integer
	maxKey pdf.Integer
}

// Write writes a balanced number tree, where each node has at most
// maxChildren children or entries.
// The iterator must return the keys in increasing order, without duplicates.
// The return value is the reference to the root node.
func Write(w pdf.Putter, data iter.Seq2[pdf.Integer, pdf.Object]) (pdf.Reference, error) {
	var level []*treeNode
	var pending []entry
	for key, value := range data {
		if len(pending) > 0 && key <= pending[len(pending)-1].key ||
			len(pending) == 0 && len(level) > 0 && key <= level[len(level)-1].maxKey {
			return 0, errNotSorted
		}
		pending = append(pending, entry{key: key, value: value})
		if len(pending) == maxChildren {
			level = append(level, newLeaf(w, pending))
			pending = nil
		}
	}
	if len(pending) > 0 || len(level) == 0 {
		level = append(level, newLeaf(w, pending))
	}

	var done []*treeNode
	for len(level) > 1 {
		var next []*treeNode
		for start := 0; start < len(level); start += maxChildren {
			group := level[start:min(start+maxChildren, len(level))]
			kids := make(pdf.Array, len(group))
			for i, child := range group {
				kids[i] = child.ref
			}
			node := &treeNode{
				ref:    w.Alloc(),
				dict:   pdf.Dict{"Kids": kids},
				minKey: group[0].minKey,
				maxKey: group[len(group)-1].maxKey,
			}
			node.dict["Limits"] = pdf.Array{node.minKey, node.maxKey}
			next = append(next, node)
		}
		done = append(done, level...)
		level = next
	}

	// the root node has no Limits
	root := level[0]
	delete(root.dict, "Limits")
	done = append(done, root)

	for _, node := range done {
		err := w.Put(node.ref, node.dict)
		if err != nil {
			return 0, err
		}
	}
	return root.ref, nil
}

func newLeaf(w pdf.Putter, entries []entry) *treeNode {
	nums := make(pdf.Array, 0, 2*len(entries))
	for _, e := range entries {
		nums = append(nums, e.key, e.value)
	}
	node := &treeNode{
		ref:  w.Alloc(),
		dict: pdf.Dict{"Nums": nums},
	}
	if len(entries) > 0 {
		node.minKey = entries[0].key
		node.maxKey = entries[len(entries)-1].key
		node.dict["Limits"] = pdf.Array{node.minKey, node.maxKey}
	}
	return node
}
