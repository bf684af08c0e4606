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
	"slices"

	"github.com/pkg/errors"
)

// IteratorType describes how a loop of the iteration space is traversed.
type IteratorType int

const (
	// Parallel loops can be computed in any order.
	Parallel IteratorType = iota
	// Reduction loops accumulate into the outputs.
	Reduction
)

func (it IteratorType) String() string {
	if it == Reduction {
		return "reduction"
	}
	return "parallel"
}

type genericInfo struct {
	numInputs int
	maps      []AffineMap
	iterators []IteratorType
}

// Generic is a view on an operation of kind GenericKind.
//
// Its operands are inputs followed by inits. Each init provides the
// initial value and the type of one result. Each operand has an
// indexing map from the iteration space to its coordinates.
// The body has one scalar argument per operand and is terminated
// by a yield of one scalar per result.
type Generic struct {
	*Operation
}

// NewGeneric returns a new generic operation with an empty body.
// The caller needs to populate the body and terminate it with a yield.
func NewGeneric(inputs, inits []*Value, maps []AffineMap, iterators []IteratorType) *Generic {
	operands := append(slices.Clone(inputs), inits...)
	op := newOperation(GenericKind, operands, valueTypes(inits))
	op.generic = &genericInfo{
		numInputs: len(inputs),
		maps:      slices.Clone(maps),
		iterators: slices.Clone(iterators),
	}
	op.region = NewBlock()
	op.region.parent = op
	for _, operand := range operands {
		op.region.AddArgument(ElementTypeOf(operand.Type()))
	}
	return &Generic{Operation: op}
}

// Generic returns a generic view on the operation
// and true if the operation is a generic operation.
func (op *Operation) Generic() (*Generic, bool) {
	if op == nil || op.kind != GenericKind {
		return nil, false
	}
	return &Generic{Operation: op}, true
}

// NumInputs returns the number of inputs.
func (g *Generic) NumInputs() int {
	return g.generic.numInputs
}

// NumInits returns the number of inits.
func (g *Generic) NumInits() int {
	return len(g.operands) - g.generic.numInputs
}

// Inputs returns the input operands.
func (g *Generic) Inputs() []*Operand {
	return slices.Clone(g.operands[:g.generic.numInputs])
}

// Inits returns the init operands.
func (g *Generic) Inits() []*Operand {
	return slices.Clone(g.operands[g.generic.numInputs:])
}

// IsInput returns true if the operand is an input of the operation.
func (g *Generic) IsInput(o *Operand) bool {
	return o.owner == g.Operation && o.index < g.generic.numInputs
}

// IsInit returns true if the operand is an init of the operation.
func (g *Generic) IsInit(o *Operand) bool {
	return o.owner == g.Operation && o.index >= g.generic.numInputs
}

// InitForResult returns the init operand providing a result.
func (g *Generic) InitForResult(res *Value) *Operand {
	return g.operands[g.generic.numInputs+res.index]
}

// IndexingMaps returns the indexing maps of all the operands.
func (g *Generic) IndexingMaps() []AffineMap {
	return slices.Clone(g.generic.maps)
}

// MatchingIndexingMap returns the indexing map of an operand.
func (g *Generic) MatchingIndexingMap(o *Operand) AffineMap {
	return g.generic.maps[o.index]
}

// Iterators returns the iterator type of all the loops.
func (g *Generic) Iterators() []IteratorType {
	return slices.Clone(g.generic.iterators)
}

// NumLoops returns the number of loops of the iteration space.
func (g *Generic) NumLoops() int {
	return len(g.generic.iterators)
}

// NumReductionLoops returns the number of reduction loops.
func (g *Generic) NumReductionLoops() int {
	n := 0
	for _, it := range g.generic.iterators {
		if it == Reduction {
			n++
		}
	}
	return n
}

// IsElementwise returns true if all the loops are parallel:
// each element of the outputs is computed independently.
func (g *Generic) IsElementwise() bool {
	return g.NumReductionLoops() == 0
}

// BlockArg returns the argument of the body matching an operand.
func (g *Generic) BlockArg(o *Operand) *Value {
	return g.region.args[o.index]
}

// PayloadUsesOperand returns true if the body reads the value of an operand.
func (g *Generic) PayloadUsesOperand(o *Operand) bool {
	return !g.BlockArg(o).UseEmpty()
}

// Yield returns the terminator of the body or nil if the body has not been terminated.
func (g *Generic) Yield() *Operation {
	term := g.region.Terminator()
	if term == nil || term.kind != YieldKind {
		return nil
	}
	return term
}

// CoveredLoops returns, for each loop, true if some operand
// accepted by f has an indexing map using the loop.
func (g *Generic) CoveredLoops(f func(*Operand) bool) []bool {
	covered := make([]bool, g.NumLoops())
	for _, o := range g.operands {
		if !f(o) {
			continue
		}
		for d, used := range g.MatchingIndexingMap(o).Dims() {
			covered[d] = covered[d] || used
		}
	}
	return covered
}

// StaticLoopRanges returns the number of iterations of each loop
// computed from the static shapes of the operands.
func (g *Generic) StaticLoopRanges() ([]int, error) {
	ranges := make([]int, g.NumLoops())
	for i := range ranges {
		ranges[i] = -1
	}
	for _, o := range g.operands {
		tensor, ok := o.value.Type().(*TensorType)
		if !ok {
			continue
		}
		for i, r := range g.MatchingIndexingMap(o).Results {
			pos, isDim := r.IsDim()
			if !isDim {
				continue
			}
			l := tensor.AxisLengths()[i]
			if l < 0 {
				continue
			}
			if ranges[pos] >= 0 && ranges[pos] != l {
				return nil, errors.Errorf("loop d%d has inconsistent lengths %d and %d", pos, ranges[pos], l)
			}
			ranges[pos] = l
		}
	}
	for i, r := range ranges {
		if r < 0 {
			return nil, errors.Errorf("cannot infer the static range of loop d%d", i)
		}
	}
	return ranges, nil
}
