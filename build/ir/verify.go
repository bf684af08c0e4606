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
	"go/token"

	"github.com/gx-org/remat/build/fmterr"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	binaryTokens = map[token.Token]bool{
		token.ADD: true,
		token.SUB: true,
		token.MUL: true,
		token.QUO: true,
		token.REM: true,
	}
	unaryTokens = map[token.Token]bool{
		token.SUB: true,
	}
)

type verifier struct {
	errs fmterr.Errors
}

// Verify checks the structural invariants of a function:
// values are defined before they are used, use lists are consistent,
// operations are well-formed, and the use/def graph is acyclic.
func Verify(f *Func) error {
	v := &verifier{}
	v.errs.Push(fmterr.PrefixWith("func @%s: ", f.Name()))
	visible := make(map[*Value]bool)
	v.block(f.body, visible, ReturnKind)
	v.acyclic(f)
	v.errs.Pop()
	return v.errs.ToError()
}

// VerifyModule verifies all the functions of a module.
func VerifyModule(m *Module) error {
	var errs fmterr.Errors
	for _, f := range m.funcs {
		errs.Append(Verify(f))
	}
	return errs.ToError()
}

func (v *verifier) block(b *Block, visible map[*Value]bool, terminator Kind) {
	for _, arg := range b.args {
		visible[arg] = true
		v.uses(arg)
	}
	for i, op := range b.ops {
		if op.block != b {
			v.errs.Appendf(op, "operation does not point to its block")
		}
		isLast := i == len(b.ops)-1
		if op.kind.IsTerminator() && (!isLast || op.kind != terminator) {
			v.errs.Appendf(op, "unexpected terminator: want %s at the end of the block", terminator)
		}
		if isLast && op.kind != terminator {
			v.errs.Appendf(op, "block is not terminated by %s", terminator)
		}
		for _, operand := range op.operands {
			v.operand(op, operand, visible)
		}
		v.op(op, visible)
		for _, res := range op.results {
			visible[res] = true
			v.uses(res)
		}
	}
	if len(b.ops) == 0 {
		v.errs.Append(errors.Errorf("empty block: want %s terminator", terminator))
	}
}

func (v *verifier) operand(op *Operation, operand *Operand, visible map[*Value]bool) {
	val := operand.value
	if val == nil {
		v.errs.Appendf(op, "operand %d is nil", operand.index)
		return
	}
	if !visible[val] {
		v.errs.Appendf(op, "operand %d is used before being defined or is not in scope", operand.index)
	}
	for _, use := range val.uses {
		if use == operand {
			return
		}
	}
	v.errs.Appendf(op, "operand %d is missing from the use list of its value", operand.index)
}

func (v *verifier) uses(val *Value) {
	for _, use := range val.uses {
		if use.value != val {
			v.errs.Append(errors.Errorf("use list of value %d contains an operand using another value", val.id))
		}
		if use.owner.block == nil {
			v.errs.Append(errors.Errorf("value %d is used by an erased %s operation #%d", val.id, use.owner.kind, use.owner.id))
		}
	}
}

func (v *verifier) op(op *Operation, visible map[*Value]bool) {
	switch op.kind {
	case GenericKind:
		g, _ := op.Generic()
		v.generic(g, visible)
	case BinaryKind:
		if op.NumOperands() != 2 || op.NumResults() != 1 {
			v.errs.Appendf(op, "want 2 operands and 1 result but got %d operands and %d results", op.NumOperands(), op.NumResults())
			return
		}
		if !op.Operand(0).Type().Equal(op.Operand(1).Type()) {
			v.errs.Appendf(op, "operand types %s and %s do not match", op.Operand(0).Type(), op.Operand(1).Type())
		}
		if !binaryTokens[op.tok] {
			v.errs.Appendf(op, "operator %s not supported", op.tok)
		}
	case UnaryKind:
		if op.NumOperands() != 1 || op.NumResults() != 1 {
			v.errs.Appendf(op, "want 1 operand and 1 result but got %d operands and %d results", op.NumOperands(), op.NumResults())
			return
		}
		if !unaryTokens[op.tok] {
			v.errs.Appendf(op, "operator %s not supported", op.tok)
		}
	case ConstantKind, EmptyKind:
		if op.NumOperands() != 0 || op.NumResults() != 1 {
			v.errs.Appendf(op, "want no operand and 1 result but got %d operands and %d results", op.NumOperands(), op.NumResults())
			return
		}
		if _, isTensor := op.results[0].typ.(*TensorType); op.kind == EmptyKind && !isTensor {
			v.errs.Appendf(op, "result type %s is not a tensor", op.results[0].typ)
		}
	case YieldKind, ReturnKind:
	default:
		v.errs.Appendf(op, "invalid operation kind")
	}
}

func rankOf(t Type) int {
	if tensor, ok := t.(*TensorType); ok {
		return tensor.Rank()
	}
	return 0
}

func (v *verifier) generic(g *Generic, visible map[*Value]bool) {
	maps := g.generic.maps
	if len(maps) != g.NumOperands() {
		v.errs.Appendf(g, "got %d indexing maps for %d operands", len(maps), g.NumOperands())
		return
	}
	for i, m := range maps {
		if m.NumDims != g.NumLoops() {
			v.errs.Appendf(g, "indexing map %d has %d dimensions but the operation has %d loops", i, m.NumDims, g.NumLoops())
		}
		if rank := rankOf(g.Operand(i).Type()); m.NumResults() != rank {
			v.errs.Appendf(g, "indexing map %d has %d results but operand has rank %d", i, m.NumResults(), rank)
		}
		for _, r := range m.Results {
			if pos, ok := r.IsDim(); ok && (pos < 0 || pos >= m.NumDims) {
				v.errs.Appendf(g, "indexing map %d refers to unknown dimension d%d", i, pos)
			}
		}
	}
	if g.NumResults() != g.NumInits() {
		v.errs.Appendf(g, "got %d results for %d inits", g.NumResults(), g.NumInits())
		return
	}
	for _, init := range g.Inits() {
		if _, ok := init.value.Type().(*TensorType); !ok {
			v.errs.Appendf(g, "init operand %d is not a tensor", init.index)
		}
		if res := g.results[init.index-g.NumInputs()]; !res.typ.Equal(init.value.Type()) {
			v.errs.Appendf(g, "result %d has type %s but its init has type %s", res.index, res.typ, init.value.Type())
		}
	}
	body := g.region
	if body.NumArgs() != g.NumOperands() {
		v.errs.Appendf(g, "body has %d arguments for %d operands", body.NumArgs(), g.NumOperands())
		return
	}
	for i, arg := range body.args {
		if want := ElementTypeOf(g.Operand(i).Type()); !arg.typ.Equal(want) {
			v.errs.Appendf(g, "body argument %d has type %s but want %s", i, arg.typ, want)
		}
	}
	inner := make(map[*Value]bool, len(visible))
	for val := range visible {
		inner[val] = true
	}
	v.block(body, inner, YieldKind)
	yield := g.Yield()
	if yield == nil {
		return
	}
	if yield.NumOperands() != g.NumInits() {
		v.errs.Appendf(g, "body yields %d values for %d results", yield.NumOperands(), g.NumInits())
		return
	}
	for i, val := range yield.OperandValues() {
		if want := ElementTypeOf(g.results[i].typ); !val.typ.Equal(want) {
			v.errs.Appendf(g, "body yields %s for result %d but want %s", val.typ, i, want)
		}
	}
}

func (v *verifier) acyclic(f *Func) {
	g := simple.NewDirectedGraph()
	f.Walk(func(op *Operation) bool {
		if g.Node(int64(op.id)) == nil {
			g.AddNode(simple.Node(op.id))
		}
		for _, val := range op.OperandValues() {
			if val == nil || val.def == nil {
				continue
			}
			if val.def == op {
				v.errs.Appendf(op, "operation uses its own result")
				continue
			}
			g.SetEdge(g.NewEdge(simple.Node(val.def.id), simple.Node(op.id)))
		}
		return true
	})
	if _, err := topo.Sort(g); err != nil {
		v.errs.Append(errors.Wrapf(err, "use/def graph has a cycle"))
	}
}
