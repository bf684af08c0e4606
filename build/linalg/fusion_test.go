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

package linalg_test

import (
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/ir/irb"
	"github.com/gx-org/remat/build/linalg"
	"github.com/gx-org/remat/build/rewrite"
)

func add(body *irb.Builder, args []*ir.Value) *ir.Value {
	return body.Binary(token.ADD, args[0], args[1])
}

func eval(t *testing.T, f *ir.Func, args []*ir.Array) [][]float64 {
	t.Helper()
	outs, err := ir.Eval(f, args...)
	if err != nil {
		t.Fatalf("cannot evaluate:\n%s\n%+v", f, err)
	}
	var data [][]float64
	for _, out := range outs {
		data = append(data, out.Data)
	}
	return data
}

// fuse fuses the producer of an input of a consumer, replaces the consumer
// by the trailing results of the fused operation and checks that the
// function computes the same values.
func fuse(t *testing.T, f *ir.Func, consumer *ir.Generic, input int, args []*ir.Array) *linalg.FusionResult {
	t.Helper()
	want := eval(t, f, args)
	operand := consumer.OpOperand(input)
	if !linalg.AreElementwiseOpsFusable(operand) {
		t.Fatalf("operand %d of %s cannot be fused:\n%s", input, consumer.Location(), f)
	}
	rw := rewrite.NewRewriter(nil)
	res, err := linalg.FuseElementwiseOps(rw, operand)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	fused := res.FusedOp
	for _, r := range consumer.Results() {
		if res.Replacements[r] == nil {
			t.Errorf("no replacement for result %d of the consumer", r.Index())
		}
	}
	trailing := fused.Results()[fused.NumResults()-consumer.NumResults():]
	if err := rw.ReplaceOp(consumer.Operation, trailing); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("invalid function after fusion:\n%s\n%+v", f, err)
	}
	if diff := cmp.Diff(want, eval(t, f, args)); diff != "" {
		t.Errorf("fusion changed the result (-want +got):\n%s\n%s", diff, f)
	}
	return res
}

func operandIDs(op *ir.Operation) []ir.ValueID {
	var ids []ir.ValueID
	for _, val := range op.OperandValues() {
		ids = append(ids, val.ID())
	}
	return ids
}

func TestFuseSquareIntoAdd(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 4)
	b := irb.NewFunc("square_add", vec, vec)
	sq := b.Square(b.Param(0))
	sum := b.Map([]*ir.Value{sq, b.Param(1)}, add)
	f := b.Return(sum.Result(0))
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{4}, []float64{1, 2, 3, 4}),
		ir.NewArray(dtype.Float32, []int{4}, []float64{10, 20, 30, 40}),
	}
	init := sum.Inits()[0].Get()
	res := fuse(t, f, sum, 0, args)
	fused := res.FusedOp
	want := []ir.ValueID{b.Param(0).ID(), b.Param(1).ID(), init.ID()}
	if diff := cmp.Diff(want, operandIDs(fused.Operation)); diff != "" {
		t.Errorf("unexpected fused operands (-want +got):\n%s", diff)
	}
	if fused.NumResults() != 1 {
		t.Errorf("fused operation has %d results but want 1", fused.NumResults())
	}
	if !sq.UseEmpty() {
		t.Errorf("producer still used after fusion:\n%s", f)
	}
}

func TestFusePreservesProducerResult(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 3)
	b := irb.NewFunc("square_add_both", vec, vec)
	sq := b.Square(b.Param(0))
	sum := b.Map([]*ir.Value{b.Param(1), sq}, add)
	f := b.Return(sum.Result(0), sq)
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{3}, []float64{1, 2, 3}),
		ir.NewArray(dtype.Float32, []int{3}, []float64{4, 5, 6}),
	}
	producer := sq.DefiningOp()
	res := fuse(t, f, sum, 1, args)
	fused := res.FusedOp
	if fused.NumInits() != 2 || fused.NumResults() != 2 {
		t.Fatalf("fused operation has %d inits and %d results but want 2 and 2:\n%s", fused.NumInits(), fused.NumResults(), f)
	}
	if res.Replacements[sq] != fused.Result(0) {
		t.Errorf("producer result not replaced by the first result of the fused operation")
	}
	if producer.Block() == nil {
		t.Errorf("producer erased but still used by the return")
	}
}

func TestFuseBroadcast(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 3)
	mat := ir.Tensor(dtype.Float32, 2, 3)
	b := irb.NewFunc("broadcast_add", vec, mat)
	sq := b.Square(b.Param(0))
	id := ir.IdentityMap(2)
	sum := b.Generic([]*ir.Value{sq, b.Param(1)}, []*ir.Value{b.Empty(mat)},
		[]ir.AffineMap{ir.NewAffineMap(2, ir.Dim(1)), id, id},
		[]ir.IteratorType{ir.Parallel, ir.Parallel},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{add(body, args)}
		})
	f := b.Return(sum.Result(0))
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{3}, []float64{1, 2, 3}),
		ir.NewArray(dtype.Float32, []int{2, 3}, []float64{10, 20, 30, 40, 50, 60}),
	}
	res := fuse(t, f, sum, 0, args)
	got := res.FusedOp.IndexingMaps()[0]
	want := ir.NewAffineMap(2, ir.Dim(1))
	if !got.Equal(want) {
		t.Errorf("got indexing map %s for the producer input but want %s", got, want)
	}
}

func TestFuseTransposedProducer(t *testing.T) {
	mat := ir.Tensor(dtype.Float32, 2, 3)
	matT := ir.Tensor(dtype.Float32, 3, 2)
	b := irb.NewFunc("transpose_add", mat, matT)
	neg := b.Generic([]*ir.Value{b.Param(0)}, []*ir.Value{b.Empty(matT)},
		[]ir.AffineMap{ir.IdentityMap(2), ir.PermutationMap(1, 0)},
		[]ir.IteratorType{ir.Parallel, ir.Parallel},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{body.Unary(token.SUB, args[0])}
		})
	sum := b.Map([]*ir.Value{neg.Result(0), b.Param(1)}, add)
	f := b.Return(sum.Result(0))
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
		ir.NewArray(dtype.Float32, []int{3, 2}, []float64{10, 20, 30, 40, 50, 60}),
	}
	res := fuse(t, f, sum, 0, args)
	got := res.FusedOp.IndexingMaps()[0]
	want := ir.PermutationMap(1, 0)
	if !got.Equal(want) {
		t.Errorf("got indexing map %s for the producer input but want %s", got, want)
	}
}

func rowSum(b *irb.Builder, x *ir.Value) *ir.Generic {
	vec := ir.Tensor(dtype.Float32, x.Type().(*ir.TensorType).AxisLengths()[0])
	return b.Generic([]*ir.Value{x}, []*ir.Value{b.Constant(0, vec)},
		[]ir.AffineMap{ir.IdentityMap(2), ir.NewAffineMap(2, ir.Dim(0))},
		[]ir.IteratorType{ir.Parallel, ir.Reduction},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{add(body, args)}
		})
}

func TestFuseIntoReduction(t *testing.T) {
	mat := ir.Tensor(dtype.Float32, 2, 3)
	b := irb.NewFunc("sum_of_squares", mat)
	sum := rowSum(b, b.Square(b.Param(0)))
	f := b.Return(sum.Result(0))
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}),
	}
	fuse(t, f, sum, 0, args)
	if diff := cmp.Diff([][]float64{{14, 77}}, eval(t, f, args)); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestNotFusable(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 2)
	mat := ir.Tensor(dtype.Float32, 2, 3)
	tests := []struct {
		name  string
		build func() (*ir.Generic, int)
	}{
		{
			name: "function parameter",
			build: func() (*ir.Generic, int) {
				b := irb.NewFunc("f", vec)
				return b.Map([]*ir.Value{b.Param(0)}, func(body *irb.Builder, args []*ir.Value) *ir.Value {
					return body.Unary(token.SUB, args[0])
				}), 0
			},
		},
		{
			name: "init operand",
			build: func() (*ir.Generic, int) {
				b := irb.NewFunc("f", vec)
				sq := b.Square(b.Param(0))
				g := b.Generic([]*ir.Value{b.Param(0)}, []*ir.Value{sq},
					[]ir.AffineMap{ir.IdentityMap(1), ir.IdentityMap(1)},
					[]ir.IteratorType{ir.Parallel},
					func(body *irb.Builder, args []*ir.Value) []*ir.Value {
						return []*ir.Value{add(body, args)}
					})
				return g, 1
			},
		},
		{
			name: "reduction producer",
			build: func() (*ir.Generic, int) {
				b := irb.NewFunc("f", mat)
				sum := rowSum(b, b.Param(0))
				return b.Map([]*ir.Value{sum.Result(0)}, func(body *irb.Builder, args []*ir.Value) *ir.Value {
					return body.Unary(token.SUB, args[0])
				}), 0
			},
		},
		{
			name: "reduction loop not covered",
			build: func() (*ir.Generic, int) {
				f32 := ir.Tensor(dtype.Float32)
				b := irb.NewFunc("f", f32)
				bcast := b.Generic([]*ir.Value{b.Param(0)}, []*ir.Value{b.Empty(ir.Tensor(dtype.Float32, 4))},
					[]ir.AffineMap{ir.NewAffineMap(1), ir.IdentityMap(1)},
					[]ir.IteratorType{ir.Parallel},
					func(body *irb.Builder, args []*ir.Value) []*ir.Value {
						return []*ir.Value{args[0]}
					})
				total := b.Generic([]*ir.Value{bcast.Result(0)}, []*ir.Value{b.Constant(0, f32)},
					[]ir.AffineMap{ir.IdentityMap(1), ir.NewAffineMap(1)},
					[]ir.IteratorType{ir.Reduction},
					func(body *irb.Builder, args []*ir.Value) []*ir.Value {
						return []*ir.Value{add(body, args)}
					})
				return total, 0
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			consumer, input := test.build()
			operand := consumer.OpOperand(input)
			if linalg.AreElementwiseOpsFusable(operand) {
				t.Errorf("operand %d of %s can be fused but want not fusable", input, consumer.Location())
			}
			if _, err := linalg.FuseElementwiseOps(rewrite.NewRewriter(nil), operand); err == nil {
				t.Errorf("fusion did not return an error")
			}
		})
	}
}
