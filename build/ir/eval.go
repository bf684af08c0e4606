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
	"math"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
)

// Array is a host value used to evaluate functions.
// Scalars are arrays without axes.
type Array struct {
	Shape *shape.Shape
	Data  []float64
}

// NewArray returns an array given its data type, axis lengths, and data.
func NewArray(dt dtype.DataType, axes []int, data []float64) *Array {
	return &Array{
		Shape: &shape.Shape{DType: dt, AxisLengths: slices.Clone(axes)},
		Data:  slices.Clone(data),
	}
}

func (a *Array) offset(coords []int) int {
	off := 0
	for i, c := range coords {
		off = off*a.Shape.AxisLengths[i] + c
	}
	return off
}

func (a *Array) String() string {
	return fmt.Sprintf("%v%v", a.Shape.AxisLengths, a.Data)
}

type evaluator struct {
	vals map[*Value]*Array
}

// Eval evaluates a function given the values of its parameters.
// Tensors must have static shapes.
func Eval(f *Func, args ...*Array) ([]*Array, error) {
	if len(args) != f.body.NumArgs() {
		return nil, errors.Errorf("function @%s has %d parameters but got %d arguments", f.name, f.body.NumArgs(), len(args))
	}
	ev := &evaluator{vals: make(map[*Value]*Array)}
	for i, param := range f.body.args {
		ev.vals[param] = args[i]
	}
	for _, op := range f.body.ops {
		if op.kind == ReturnKind {
			return ev.lookupAll(op.OperandValues())
		}
		if err := ev.topLevel(op); err != nil {
			return nil, errors.Wrapf(err, "cannot evaluate %s", op.Location())
		}
	}
	return nil, errors.Errorf("function @%s has no return", f.name)
}

func (ev *evaluator) lookupAll(vals []*Value) ([]*Array, error) {
	arrays := make([]*Array, len(vals))
	for i, val := range vals {
		a, ok := ev.vals[val]
		if !ok {
			return nil, errors.Errorf("value %d has not been computed", val.id)
		}
		arrays[i] = a
	}
	return arrays, nil
}

func dataTypeOf(t Type) dtype.DataType {
	switch tt := t.(type) {
	case ScalarType:
		return tt.DType
	case *TensorType:
		return tt.Shape.DType
	}
	return dtype.Int64
}

func newArrayOf(t Type) (*Array, error) {
	tensor, ok := t.(*TensorType)
	if !ok {
		return &Array{Shape: &shape.Shape{DType: dataTypeOf(t)}, Data: make([]float64, 1)}, nil
	}
	n, ok := tensor.NumElements()
	if !ok {
		return nil, errors.Errorf("cannot evaluate dynamic shape %s", tensor)
	}
	return &Array{
		Shape: &shape.Shape{DType: tensor.Shape.DType, AxisLengths: slices.Clone(tensor.AxisLengths())},
		Data:  make([]float64, n),
	}, nil
}

func (ev *evaluator) topLevel(op *Operation) error {
	switch op.kind {
	case ConstantKind:
		a, err := newArrayOf(op.results[0].typ)
		if err != nil {
			return err
		}
		for i := range a.Data {
			a.Data[i] = op.constant
		}
		ev.vals[op.results[0]] = a
	case EmptyKind:
		a, err := newArrayOf(op.results[0].typ)
		if err != nil {
			return err
		}
		ev.vals[op.results[0]] = a
	case GenericKind:
		g, _ := op.Generic()
		return ev.generic(g)
	case BinaryKind, UnaryKind:
		args, err := ev.lookupAll(op.OperandValues())
		if err != nil {
			return err
		}
		scalars := make([]float64, len(args))
		for i, arg := range args {
			scalars[i] = arg.Data[0]
		}
		res, err := ev.arith(op, scalars)
		if err != nil {
			return err
		}
		ev.vals[op.results[0]] = &Array{Shape: &shape.Shape{DType: dataTypeOf(op.results[0].typ)}, Data: []float64{res}}
	default:
		return errors.Errorf("operation not supported at the top level")
	}
	return nil
}

func isInteger(dt dtype.DataType) bool {
	switch dt {
	case dtype.Int32, dtype.Int64, dtype.Uint32, dtype.Uint64:
		return true
	}
	return false
}

func (ev *evaluator) arith(op *Operation, args []float64) (float64, error) {
	if op.kind == UnaryKind {
		if op.tok != token.SUB {
			return 0, errors.Errorf("unary operator %s not supported", op.tok)
		}
		return -args[0], nil
	}
	x, y := args[0], args[1]
	var res float64
	switch op.tok {
	case token.ADD:
		res = x + y
	case token.SUB:
		res = x - y
	case token.MUL:
		res = x * y
	case token.QUO:
		res = x / y
	case token.REM:
		res = math.Mod(x, y)
	default:
		return 0, errors.Errorf("binary operator %s not supported", op.tok)
	}
	if isInteger(dataTypeOf(op.results[0].typ)) {
		res = math.Trunc(res)
	}
	return res, nil
}

func (ev *evaluator) generic(g *Generic) error {
	operands, err := ev.lookupAll(g.OperandValues())
	if err != nil {
		return err
	}
	ranges, err := g.StaticLoopRanges()
	if err != nil {
		return err
	}
	outs := make([]*Array, g.NumInits())
	for i, init := range operands[g.NumInputs():] {
		outs[i] = &Array{Shape: init.Shape, Data: slices.Clone(init.Data)}
	}
	yield := g.Yield()
	if yield == nil {
		return errors.Errorf("generic body is not terminated")
	}
	maps := g.generic.maps
	point := make([]int, len(ranges))
	for _, r := range ranges {
		if r == 0 {
			return ev.setResults(g, outs)
		}
	}
	for {
		body := &evaluator{vals: ev.vals}
		for i, arg := range g.region.args {
			src := operands[i]
			if i >= g.NumInputs() {
				src = outs[i-g.NumInputs()]
			}
			body.vals[arg] = &Array{
				Shape: &shape.Shape{DType: src.Shape.DType},
				Data:  []float64{src.Data[src.offset(maps[i].Apply(point))]},
			}
		}
		for _, op := range g.region.ops {
			if op.kind == YieldKind {
				break
			}
			if err := body.topLevel(op); err != nil {
				return errors.Wrapf(err, "cannot evaluate %s", op.Location())
			}
		}
		yielded, err := body.lookupAll(yield.OperandValues())
		if err != nil {
			return err
		}
		for i, out := range outs {
			coords := maps[g.NumInputs()+i].Apply(point)
			out.Data[out.offset(coords)] = yielded[i].Data[0]
		}
		if !nextPoint(point, ranges) {
			break
		}
	}
	return ev.setResults(g, outs)
}

func (ev *evaluator) setResults(g *Generic, outs []*Array) error {
	for i, res := range g.results {
		ev.vals[res] = outs[i]
	}
	return nil
}

// nextPoint increments a point of the iteration space in row-major order.
func nextPoint(point, ranges []int) bool {
	for i := len(point) - 1; i >= 0; i-- {
		point[i]++
		if point[i] < ranges[i] {
			return true
		}
		point[i] = 0
	}
	return false
}
