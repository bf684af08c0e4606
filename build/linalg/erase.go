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

package linalg

import (
	"slices"

	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/rewrite"
)

// EraseUnusedOperandsAndResults removes from generic operations:
//   - inputs not read by the body,
//   - inputs using the same value with the same indexing map as a previous input,
//   - results without uses for which the body does not read the init
//     except to yield it back.
//
// An operand is only removed if every loop remains used by the indexing map
// of one of the remaining operands.
type EraseUnusedOperandsAndResults struct{}

var _ rewrite.Pattern = EraseUnusedOperandsAndResults{}

// Name of the pattern.
func (EraseUnusedOperandsAndResults) Name() string {
	return "erase-unused-operands-and-results"
}

// operandAction is what happens to an operand of the original operation.
type operandAction int

const (
	keepOperand operandAction = iota
	dropOperand
	// dedupOperand replaces the operand by a previous identical input.
	dedupOperand
)

type eraser struct {
	g       *ir.Generic
	actions []operandAction
	// dupOf is the index of the input replacing a deduplicated input.
	dupOf map[int]int
}

// covered returns true if all the loops are used by a kept operand.
func (e *eraser) covered() bool {
	loops := e.g.CoveredLoops(func(o *ir.Operand) bool {
		return e.actions[o.Index()] == keepOperand
	})
	return !slices.Contains(loops, false)
}

// tryRemove marks an operand with an action
// if the loops are still covered once the operand is removed.
func (e *eraser) tryRemove(i int, action operandAction) bool {
	e.actions[i] = action
	if e.covered() {
		return true
	}
	e.actions[i] = keepOperand
	return false
}

// initOnlyYielded returns true if the argument of an init is either unused
// or only yielded back as the result matching the init.
func initOnlyYielded(g *ir.Generic, res *ir.Value) bool {
	arg := g.BlockArg(g.InitForResult(res))
	for _, use := range arg.Uses() {
		if use.Owner() != g.Yield() || use.Index() != res.Index() {
			return false
		}
	}
	return true
}

func (e *eraser) plan() bool {
	g := e.g
	changed := false
	type inputKey struct {
		val *ir.Value
		m   string
	}
	seen := make(map[inputKey]int)
	for _, o := range g.Inputs() {
		i := o.Index()
		if !g.PayloadUsesOperand(o) && e.tryRemove(i, dropOperand) {
			changed = true
			continue
		}
		key := inputKey{val: o.Get(), m: g.MatchingIndexingMap(o).String()}
		if first, ok := seen[key]; ok && e.tryRemove(i, dedupOperand) {
			e.dupOf[i] = first
			changed = true
			continue
		}
		seen[key] = i
	}
	for _, res := range g.Results() {
		if !res.UseEmpty() || !initOnlyYielded(g, res) {
			continue
		}
		if e.tryRemove(g.InitForResult(res).Index(), dropOperand) {
			changed = true
		}
	}
	if changed && !slices.Contains(e.actions[g.NumInputs():], keepOperand) {
		// All results are unused: the operation is trivially dead.
		return false
	}
	return changed
}

// MatchAndRewrite replaces a generic operation with unused operands or
// results by a new generic operation without these operands or results.
func (EraseUnusedOperandsAndResults) MatchAndRewrite(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	g, ok := op.Generic()
	if !ok || g.Yield() == nil {
		return false, nil
	}
	e := &eraser{
		g:       g,
		actions: make([]operandAction, g.NumOperands()),
		dupOf:   make(map[int]int),
	}
	if !e.plan() {
		return false, nil
	}

	var (
		inputs, inits []*ir.Value
		maps          []ir.AffineMap
		// newIndex maps the index of a kept operand to its index in the new operation.
		newIndex = make(map[int]int)
	)
	for _, o := range g.Operands() {
		if e.actions[o.Index()] != keepOperand {
			continue
		}
		if g.IsInput(o) {
			inputs = append(inputs, o.Get())
		} else {
			inits = append(inits, o.Get())
		}
		newIndex[o.Index()] = len(maps)
		maps = append(maps, g.MatchingIndexingMap(o))
	}
	newOp := ir.NewGeneric(inputs, inits, maps, g.Iterators())
	newOp.SetAttrs(g.Attrs())

	// Remove the yielded values of the removed results.
	yield := g.Yield()
	var yielded []*ir.Value
	var kept []*ir.Value
	for _, res := range g.Results() {
		if e.actions[g.InitForResult(res).Index()] != keepOperand {
			continue
		}
		yielded = append(yielded, yield.Operand(res.Index()))
		kept = append(kept, res)
	}
	rw.ModifyInPlace(yield, func() { yield.SetOperands(yielded) })

	args := make([]*ir.Value, g.NumOperands())
	for i, action := range e.actions {
		switch action {
		case keepOperand:
			args[i] = newOp.Body().Arg(newIndex[i])
		case dedupOperand:
			args[i] = newOp.Body().Arg(newIndex[e.dupOf[i]])
		}
	}
	if err := g.Body().MergeInto(newOp.Body(), args); err != nil {
		return false, err
	}
	if _, err := rw.Insert(newOp.Operation); err != nil {
		return false, err
	}
	for i, res := range kept {
		rw.ReplaceAllUsesWith(res, newOp.Result(i))
	}
	return true, rw.EraseOp(op)
}
