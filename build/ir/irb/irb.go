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

// Package irb provides a builder to write IR functions with little boilerplate.
package irb

import (
	"go/token"

	"github.com/gx-org/remat/build/ir"
)

// Builder appends operations at the end of a block.
type Builder struct {
	fn    *ir.Func
	block *ir.Block
}

// NewFunc returns a builder for a new function.
func NewFunc(name string, params ...ir.Type) *Builder {
	fn := ir.NewFunc(name, params...)
	return &Builder{fn: fn, block: fn.Body()}
}

// Func returns the function being built.
func (b *Builder) Func() *ir.Func {
	return b.fn
}

// Block returns the block in which operations are appended.
func (b *Builder) Block() *ir.Block {
	return b.block
}

// Param returns a parameter of the function.
func (b *Builder) Param(i int) *ir.Value {
	return b.fn.Param(i)
}

// Append an operation and returns it.
func (b *Builder) Append(op *ir.Operation) *ir.Operation {
	return b.block.Append(op)
}

// Empty returns a new uninitialised tensor.
func (b *Builder) Empty(t *ir.TensorType) *ir.Value {
	return b.Append(ir.NewEmpty(t)).Result(0)
}

// Constant returns a constant value.
func (b *Builder) Constant(v float64, t ir.Type) *ir.Value {
	return b.Append(ir.NewConstant(v, t)).Result(0)
}

// Binary applies a scalar binary operator.
func (b *Builder) Binary(tok token.Token, x, y *ir.Value) *ir.Value {
	return b.Append(ir.NewBinary(tok, x, y)).Result(0)
}

// Unary applies a scalar unary operator.
func (b *Builder) Unary(tok token.Token, x *ir.Value) *ir.Value {
	return b.Append(ir.NewUnary(tok, x)).Result(0)
}

// BodyFunc builds the body of a generic operation.
// It receives one argument per operand and returns one value per init.
type BodyFunc func(body *Builder, args []*ir.Value) []*ir.Value

// Generic appends a generic operation.
func (b *Builder) Generic(inputs, inits []*ir.Value, maps []ir.AffineMap, iterators []ir.IteratorType, f BodyFunc) *ir.Generic {
	g := ir.NewGeneric(inputs, inits, maps, iterators)
	body := &Builder{fn: b.fn, block: g.Body()}
	yielded := f(body, g.Body().Args())
	body.Append(ir.NewYield(yielded...))
	b.Append(g.Operation)
	return g
}

// Map appends an elementwise generic operation over tensors of the same shape.
// The result has the type of the first tensor.
func (b *Builder) Map(xs []*ir.Value, f func(body *Builder, args []*ir.Value) *ir.Value) *ir.Generic {
	typ := xs[0].Type().(*ir.TensorType)
	init := b.Empty(typ)
	rank := typ.Rank()
	maps := make([]ir.AffineMap, len(xs)+1)
	for i := range maps {
		maps[i] = ir.IdentityMap(rank)
	}
	iterators := make([]ir.IteratorType, rank)
	return b.Generic(xs, []*ir.Value{init}, maps, iterators, func(body *Builder, args []*ir.Value) []*ir.Value {
		return []*ir.Value{f(body, args[:len(xs)])}
	})
}

// Elementwise applies a binary operator (two tensors)
// or a unary operator (one tensor) to every element.
func (b *Builder) Elementwise(tok token.Token, xs ...*ir.Value) *ir.Value {
	return b.Map(xs, func(body *Builder, args []*ir.Value) *ir.Value {
		if len(args) == 1 {
			return body.Unary(tok, args[0])
		}
		return body.Binary(tok, args[0], args[1])
	}).Result(0)
}

// Square computes x*x for every element of x.
func (b *Builder) Square(x *ir.Value) *ir.Value {
	return b.Map([]*ir.Value{x}, func(body *Builder, args []*ir.Value) *ir.Value {
		return body.Binary(token.MUL, args[0], args[0])
	}).Result(0)
}

// Return terminates the function and returns it.
func (b *Builder) Return(vals ...*ir.Value) *ir.Func {
	b.Append(ir.NewReturn(vals...))
	return b.fn
}
