// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// AffineExpr is a result of an affine map.
// It is either a loop dimension or a constant.
type AffineExpr struct {
	isConst bool
	pos     int
}

// Dim returns the expression of the loop dimension pos.
func Dim(pos int) AffineExpr {
	return AffineExpr{pos: pos}
}

// Const returns a constant expression.
func Const(c int) AffineExpr {
	return AffineExpr{isConst: true, pos: c}
}

// IsDim returns the dimension position and true if the expression is a dimension.
func (e AffineExpr) IsDim() (int, bool) {
	return e.pos, !e.isConst
}

// IsConst returns the constant and true if the expression is a constant.
func (e AffineExpr) IsConst() (int, bool) {
	return e.pos, e.isConst
}

func (e AffineExpr) String() string {
	if e.isConst {
		return fmt.Sprint(e.pos)
	}
	return fmt.Sprintf("d%d", e.pos)
}

// AffineMap maps the point of an iteration space with NumDims dimensions
// to the coordinates of an element in a tensor.
type AffineMap struct {
	NumDims int
	Results []AffineExpr
}

// NewAffineMap returns a new map.
func NewAffineMap(numDims int, results ...AffineExpr) AffineMap {
	return AffineMap{NumDims: numDims, Results: results}
}

// IdentityMap returns the identity map over n dimensions.
func IdentityMap(n int) AffineMap {
	m := AffineMap{NumDims: n, Results: make([]AffineExpr, n)}
	for i := range n {
		m.Results[i] = Dim(i)
	}
	return m
}

// PermutationMap returns the map sending dimension perm[i] to result i.
func PermutationMap(perm ...int) AffineMap {
	m := AffineMap{NumDims: len(perm), Results: make([]AffineExpr, len(perm))}
	for i, p := range perm {
		m.Results[i] = Dim(p)
	}
	return m
}

// NumResults returns the number of results of the map.
func (m AffineMap) NumResults() int {
	return len(m.Results)
}

// IsIdentity returns true if the map is the identity.
func (m AffineMap) IsIdentity() bool {
	if m.NumDims != len(m.Results) {
		return false
	}
	for i, r := range m.Results {
		if pos, ok := r.IsDim(); !ok || pos != i {
			return false
		}
	}
	return true
}

// IsPermutation returns true if the map is a permutation of its dimensions.
func (m AffineMap) IsPermutation() bool {
	if m.NumDims != len(m.Results) {
		return false
	}
	return m.IsProjectedPermutation()
}

// IsProjectedPermutation returns true if all the results are distinct dimensions.
func (m AffineMap) IsProjectedPermutation() bool {
	seen := make([]bool, m.NumDims)
	for _, r := range m.Results {
		pos, ok := r.IsDim()
		if !ok || pos < 0 || pos >= m.NumDims || seen[pos] {
			return false
		}
		seen[pos] = true
	}
	return true
}

// Dims returns, for each dimension, whether the dimension is used by the map.
func (m AffineMap) Dims() []bool {
	used := make([]bool, m.NumDims)
	for _, r := range m.Results {
		if pos, ok := r.IsDim(); ok && pos >= 0 && pos < m.NumDims {
			used[pos] = true
		}
	}
	return used
}

// Compose returns the map m(other(x)).
// The number of results of other must be the number of dimensions of m.
func (m AffineMap) Compose(other AffineMap) (AffineMap, error) {
	if m.NumDims != other.NumResults() {
		return AffineMap{}, errors.Errorf("cannot compose %s with %s: %d dimensions but %d results", m, other, m.NumDims, other.NumResults())
	}
	res := AffineMap{NumDims: other.NumDims, Results: make([]AffineExpr, len(m.Results))}
	for i, r := range m.Results {
		if pos, ok := r.IsDim(); ok {
			res.Results[i] = other.Results[pos]
		} else {
			res.Results[i] = r
		}
	}
	return res, nil
}

// InversePermutation returns the inverse of a permutation map.
func (m AffineMap) InversePermutation() (AffineMap, error) {
	if !m.IsPermutation() {
		return AffineMap{}, errors.Errorf("map %s is not a permutation", m)
	}
	inv := AffineMap{NumDims: m.NumDims, Results: make([]AffineExpr, m.NumDims)}
	for i, r := range m.Results {
		pos, _ := r.IsDim()
		inv.Results[pos] = Dim(i)
	}
	return inv, nil
}

// Apply computes the coordinates of a point of the iteration space.
func (m AffineMap) Apply(point []int) []int {
	coords := make([]int, len(m.Results))
	for i, r := range m.Results {
		if pos, ok := r.IsDim(); ok {
			coords[i] = point[pos]
		} else {
			coords[i] = r.pos
		}
	}
	return coords
}

// Equal returns true if both maps are the same.
func (m AffineMap) Equal(other AffineMap) bool {
	return m.NumDims == other.NumDims && slices.Equal(m.Results, other.Results)
}

func (m AffineMap) String() string {
	dims := make([]string, m.NumDims)
	for i := range dims {
		dims[i] = Dim(i).String()
	}
	results := make([]string, len(m.Results))
	for i, r := range m.Results {
		results[i] = r.String()
	}
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(dims, ", "), strings.Join(results, ", "))
}
