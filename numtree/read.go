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
	"fmt"
	"slices"

	"seehuhn.de/go/pdfstruct/pdf"
)

// maxDepth bounds the nesting of Kids arrays followed by Read.
const maxDepth = 32

// Read reads a number tree and returns its entries, sorted by key.
//
// Both the flat form (a single `Nums` array) and the `Kids`/`Limits` form are
// supported.  If a key occurs more than once, the first occurrence wins.
// If root is nil, an empty tree is returned.
func Read(r pdf.Getter, root pdf.Object) (*Sorted, error) {
	res := &Sorted{}
	if root == nil {
		return res, nil
	}

	type todoItem struct {
		node  pdf.Object
		depth int
	}

	var entries []entry
	seen := make(map[pdf.Reference]bool)
	todo := []todoItem{{node: root}}
	for len(todo) > 0 {
		item := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		if ref, isRef := item.node.(pdf.Reference); isRef {
			if seen[ref] {
				return nil, pdf.Malformed(ref, errors.New("number tree contains a cycle"))
			}
			seen[ref] = true
		}
		if item.depth > maxDepth {
			return nil, pdf.Malformed(0, fmt.Errorf("number tree deeper than %d", maxDepth))
		}

		dict, err := pdf.GetDict(r, item.node)
		if err != nil {
			return nil, err
		}

		nums, err := pdf.GetArray(r, dict["Nums"])
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(nums); i += 2 {
			key, err := pdf.GetInteger(r, nums[i])
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{key: key, value: nums[i+1]})
		}

		kids, err := pdf.GetArray(r, dict["Kids"])
		if err != nil {
			return nil, err
		}
		for i := len(kids) - 1; i >= 0; i-- {
			todo = append(todo, todoItem{node: kids[i], depth: item.depth + 1})
		}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})
	for _, e := range entries {
		n := len(res.Keys)
		if n > 0 && res.Keys[n-1] == e.key {
			continue
		}
		res.Keys = append(res.Keys, e.key)
		res.Values = append(res.Values, e.value)
	}
	return res, nil
}
