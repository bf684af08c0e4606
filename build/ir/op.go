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
	"go/token"
	"slices"
	"sync/atomic"

	"github.com/pkg/errors"
)

// OpID identifies an operation. IDs are never reused,
// including by operations created while rewriting.
type OpID int64

var lastOpID atomic.Int64

// Operation is a node of the IR.
type Operation struct {
	id       OpID
	kind     Kind
	operands []*Operand
	results  []*Value
	attrs    Attributes

	block  *Block
	region *Block

	generic  *genericInfo
	tok      token.Token
	constant float64
}

func newOperation(kind Kind, operands []*Value, resultTypes []Type) *Operation {
	op := &Operation{
		id:   OpID(lastOpID.Add(1)),
		kind: kind,
	}
	op.SetOperands(operands)
	op.results = make([]*Value, len(resultTypes))
	for i, typ := range resultTypes {
		res := newValue(typ)
		res.def = op
		res.index = i
		op.results[i] = res
	}
	return op
}

// ID of the operation.
func (op *Operation) ID() OpID {
	return op.id
}

// Kind of the operation.
func (op *Operation) Kind() Kind {
	return op.kind
}

// Operands returns the operands of the operation.
func (op *Operation) Operands() []*Operand {
	return slices.Clone(op.operands)
}

// OpOperand returns the operand at a given position.
func (op *Operation) OpOperand(i int) *Operand {
	return op.operands[i]
}

// Operand returns the value of the operand at a given position.
func (op *Operation) Operand(i int) *Value {
	return op.operands[i].value
}

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int {
	return len(op.operands)
}

// OperandValues returns the values used by the operation.
func (op *Operation) OperandValues() []*Value {
	vals := make([]*Value, len(op.operands))
	for i, operand := range op.operands {
		vals[i] = operand.value
	}
	return vals
}

// SetOperands replaces all the operands of the operation.
func (op *Operation) SetOperands(vals []*Value) {
	for _, operand := range op.operands {
		operand.drop()
	}
	op.operands = make([]*Operand, len(vals))
	for i, val := range vals {
		op.operands[i] = &Operand{owner: op, index: i}
		op.operands[i].Set(val)
	}
}

// Results returns the values produced by the operation.
func (op *Operation) Results() []*Value {
	return slices.Clone(op.results)
}

// Result returns the result at a given index.
func (op *Operation) Result(i int) *Value {
	return op.results[i]
}

// NumResults returns the number of results.
func (op *Operation) NumResults() int {
	return len(op.results)
}

// ResultTypes returns the types of all the results.
func (op *Operation) ResultTypes() []Type {
	return valueTypes(op.results)
}

// UseEmpty returns true if none of the results is used.
func (op *Operation) UseEmpty() bool {
	for _, res := range op.results {
		if !res.UseEmpty() {
			return false
		}
	}
	return true
}

// Attrs returns the attributes of the operation.
func (op *Operation) Attrs() *Attributes {
	return &op.attrs
}

// Attr returns an attribute given its name or nil.
func (op *Operation) Attr(name string) Attribute {
	return op.attrs.Get(name)
}

// SetAttr sets an attribute.
func (op *Operation) SetAttr(name string, attr Attribute) {
	op.attrs.Set(name, attr)
}

// Block returns the block in which the operation has been inserted.
func (op *Operation) Block() *Block {
	return op.block
}

// Body returns the region of the operation or nil.
func (op *Operation) Body() *Block {
	return op.region
}

// ParentOp returns the operation owning the block of the operation
// or nil if the operation is at the top level of a function.
func (op *Operation) ParentOp() *Operation {
	if op.block == nil {
		return nil
	}
	return op.block.parent
}

// Token returns the arithmetic operator of binary and unary operations.
func (op *Operation) Token() token.Token {
	return op.tok
}

// ConstantValue returns the value of constant operations.
func (op *Operation) ConstantValue() float64 {
	return op.constant
}

// IsAncestor returns true if the operation is other or contains other.
func (op *Operation) IsAncestor(other *Operation) bool {
	for ; other != nil; other = other.ParentOp() {
		if other == op {
			return true
		}
	}
	return false
}

// Walk calls f on the operation and all the operations of its body,
// in pre-order. The walk stops if f returns false.
func (op *Operation) Walk(f func(*Operation) bool) bool {
	if !f(op) {
		return false
	}
	if op.region == nil {
		return true
	}
	return op.region.Walk(f)
}

// DropAllReferences removes all the uses by the operation and its body.
func (op *Operation) DropAllReferences() {
	for _, operand := range op.operands {
		operand.drop()
	}
	if op.region == nil {
		return
	}
	for _, inner := range op.region.ops {
		inner.DropAllReferences()
	}
}

// Erase removes the operation from its block.
// The results of the operation must not have any use.
func (op *Operation) Erase() error {
	if !op.UseEmpty() {
		return errors.Errorf("cannot erase %s operation %d: its results are still used", op.kind, op.id)
	}
	op.DropAllReferences()
	if op.block != nil {
		op.block.remove(op)
	}
	return nil
}

// NewYield returns a new yield operation.
func NewYield(vals ...*Value) *Operation {
	return newOperation(YieldKind, vals, nil)
}

// NewReturn returns a new return operation.
func NewReturn(vals ...*Value) *Operation {
	return newOperation(ReturnKind, vals, nil)
}

// NewBinary returns a scalar binary arithmetic operation.
func NewBinary(tok token.Token, x, y *Value) *Operation {
	op := newOperation(BinaryKind, []*Value{x, y}, []Type{x.Type()})
	op.tok = tok
	return op
}

// NewUnary returns a scalar unary arithmetic operation.
func NewUnary(tok token.Token, x *Value) *Operation {
	op := newOperation(UnaryKind, []*Value{x}, []Type{x.Type()})
	op.tok = tok
	return op
}

// NewConstant returns a constant operation.
// If the type is a tensor, all its elements are set to the value.
func NewConstant(val float64, typ Type) *Operation {
	op := newOperation(ConstantKind, nil, []Type{typ})
	op.constant = val
	return op
}

// NewEmpty returns an operation allocating a tensor.
func NewEmpty(typ *TensorType) *Operation {
	return newOperation(EmptyKind, nil, []Type{typ})
}

func valueTypes(vals []*Value) []Type {
	types := make([]Type, len(vals))
	for i, val := range vals {
		types[i] = val.Type()
	}
	return types
}

// SetAttrs replaces the attributes of the operation by a copy of attrs.
func (op *Operation) SetAttrs(attrs *Attributes) {
	op.attrs = attrs.Clone()
}

// Location returns a string locating the operation in the IR.
func (op *Operation) Location() string {
	loc := fmt.Sprintf("%s #%d", op.kind, op.id)
	if parent := op.ParentOp(); parent != nil {
		loc += " in " + parent.Location()
	} else if op.block != nil && op.block.fn != nil {
		loc += " in @" + op.block.fn.name
	}
	return loc
}
