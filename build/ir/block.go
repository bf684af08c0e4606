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

// Block is an ordered list of operations with arguments.
// A block is either the body of a function or the body of an operation.
type Block struct {
	args []*Value
	ops  []*Operation

	parent *Operation
	fn     *Func
}

// NewBlock returns a new block given the types of its arguments.
func NewBlock(argTypes ...Type) *Block {
	b := &Block{}
	for _, typ := range argTypes {
		b.AddArgument(typ)
	}
	return b
}

// Args returns the arguments of the block.
func (b *Block) Args() []*Value {
	return slices.Clone(b.args)
}

// Arg returns the argument at a given position.
func (b *Block) Arg(i int) *Value {
	return b.args[i]
}

// NumArgs returns the number of arguments.
func (b *Block) NumArgs() int {
	return len(b.args)
}

// AddArgument appends a new argument to the block.
func (b *Block) AddArgument(typ Type) *Value {
	arg := newValue(typ)
	arg.block = b
	arg.index = len(b.args)
	b.args = append(b.args, arg)
	return arg
}

// EraseArgument removes an argument. The argument must not have any use.
func (b *Block) EraseArgument(i int) error {
	if !b.args[i].UseEmpty() {
		return errors.Errorf("cannot erase block argument %d: argument still used", i)
	}
	b.args = slices.Delete(b.args, i, i+1)
	for j := i; j < len(b.args); j++ {
		b.args[j].index = j
	}
	return nil
}

// Ops returns the operations of the block.
func (b *Block) Ops() []*Operation {
	return slices.Clone(b.ops)
}

// NumOps returns the number of operations in the block.
func (b *Block) NumOps() int {
	return len(b.ops)
}

// Index returns the position of an operation in the block or -1.
func (b *Block) Index(op *Operation) int {
	return slices.Index(b.ops, op)
}

// Append an operation at the end of the block.
func (b *Block) Append(op *Operation) *Operation {
	return b.insert(len(b.ops), op)
}

// InsertBefore inserts an operation before another operation of the block.
// The operation is appended if before is nil.
func (b *Block) InsertBefore(before, op *Operation) (*Operation, error) {
	if before == nil {
		return b.Append(op), nil
	}
	if op == before {
		return op, nil
	}
	if op.block != nil {
		op.block.remove(op)
	}
	i := b.Index(before)
	if i < 0 {
		return nil, errors.Errorf("cannot insert %s operation: %s operation %d not in block", op.kind, before.kind, before.id)
	}
	return b.insert(i, op), nil
}

func (b *Block) insert(i int, op *Operation) *Operation {
	if op.block != nil {
		op.block.remove(op)
	}
	op.block = b
	b.ops = slices.Insert(b.ops, i, op)
	return op
}

func (b *Block) remove(op *Operation) {
	i := b.Index(op)
	if i < 0 {
		return
	}
	b.ops = slices.Delete(b.ops, i, i+1)
	op.block = nil
}

// Terminator returns the last operation of the block
// if it is a terminator, nil otherwise.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.ops[len(b.ops)-1]
	if !last.kind.IsTerminator() {
		return nil
	}
	return last
}

// ParentOp returns the operation owning the block
// or nil if the block is the body of a function.
func (b *Block) ParentOp() *Operation {
	return b.parent
}

// Func returns the function in which the block is defined.
func (b *Block) Func() *Func {
	for b != nil {
		if b.fn != nil {
			return b.fn
		}
		if b.parent == nil {
			return nil
		}
		b = b.parent.block
	}
	return nil
}

// Walk calls f on all the operations of the block and their bodies,
// in pre-order. The walk stops if f returns false.
func (b *Block) Walk(f func(*Operation) bool) bool {
	for _, op := range b.Ops() {
		if !op.Walk(f) {
			return false
		}
	}
	return true
}

// IsBefore returns true if a is strictly before b in the block.
func (b *Block) IsBefore(x, y *Operation) bool {
	i, j := b.Index(x), b.Index(y)
	return i >= 0 && j >= 0 && i < j
}

// MergeInto moves all the operations of the block at the end of dst.
// Uses of the arguments of the block are replaced by the given values.
func (b *Block) MergeInto(dst *Block, args []*Value) error {
	if len(args) != len(b.args) {
		return errors.Errorf("cannot merge block: got %d replacement values for %d arguments", len(args), len(b.args))
	}
	for i, arg := range b.args {
		arg.ReplaceAllUsesWith(args[i])
	}
	for _, op := range b.Ops() {
		dst.insert(len(dst.ops), op)
	}
	return nil
}
