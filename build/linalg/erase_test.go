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

func generics(f *ir.Func) []*ir.Generic {
	var gs []*ir.Generic
	for _, op := range f.Body().Ops() {
		if g, ok := op.Generic(); ok {
			gs = append(gs, g)
		}
	}
	return gs
}

func eraseUnused(t *testing.T, f *ir.Func) *rewrite.Stats {
	t.Helper()
	stats, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{linalg.EraseUnusedOperandsAndResults{}}, rewrite.Config{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("invalid function:\n%s\n%+v", f, err)
	}
	return stats
}

func TestEraseUnusedOperandsAndResults(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 4)
	b := irb.NewFunc("unused", vec, vec)
	x, y := b.Param(0), b.Param(1)
	id := ir.IdentityMap(1)
	g := b.Generic([]*ir.Value{x, x, y}, []*ir.Value{b.Empty(vec), b.Empty(vec)},
		[]ir.AffineMap{id, id, id, id, id},
		[]ir.IteratorType{ir.Parallel},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{body.Binary(token.MUL, args[0], args[1]), args[4]}
		})
	g.SetAttr(ir.LoweringConfigName, &ir.LoweringConfigAttr{TileSizes: [][]int64{{4}}})
	f := b.Return(g.Result(0))
	args := []*ir.Array{
		ir.NewArray(dtype.Float32, []int{4}, []float64{1, 2, 3, 4}),
		ir.NewArray(dtype.Float32, []int{4}, []float64{5, 6, 7, 8}),
	}
	want := eval(t, f, args)

	stats := eraseUnused(t, f)
	if stats.Applied("erase-unused-operands-and-results") != 1 {
		t.Errorf("pattern applied %d times but want 1", stats.Applied("erase-unused-operands-and-results"))
	}
	gs := generics(f)
	if len(gs) != 1 {
		t.Fatalf("got %d generic operations but want 1:\n%s", len(gs), f)
	}
	got := gs[0]
	if got.NumInputs() != 1 || got.NumInits() != 1 {
		t.Errorf("got %d inputs and %d inits but want 1 and 1:\n%s", got.NumInputs(), got.NumInits(), f)
	}
	if diff := cmp.Diff([]ir.ValueID{x.ID()}, operandIDs(got.Operation)[:1]); diff != "" {
		t.Errorf("unexpected input (-want +got):\n%s", diff)
	}
	if _, ok := got.Attr(ir.LoweringConfigName).(*ir.LoweringConfigAttr); !ok {
		t.Errorf("attribute %s has not been kept:\n%s", ir.LoweringConfigName, f)
	}
	if diff := cmp.Diff(want, eval(t, f, args)); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
	// The init of the removed result is now dead.
	numEmpty := 0
	for _, op := range f.Body().Ops() {
		if op.Kind() == ir.EmptyKind {
			numEmpty++
		}
	}
	if numEmpty != 1 {
		t.Errorf("got %d empty operations but want 1:\n%s", numEmpty, f)
	}
}

func TestEraseKeepsLoopCoverage(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 4)
	scalar := ir.Tensor(dtype.Float32)
	b := irb.NewFunc("count", vec)
	g := b.Generic([]*ir.Value{b.Param(0)}, []*ir.Value{b.Constant(0, scalar)},
		[]ir.AffineMap{ir.IdentityMap(1), ir.NewAffineMap(1)},
		[]ir.IteratorType{ir.Reduction},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{body.Binary(token.ADD, args[1], body.Constant(1, ir.Float32Type()))}
		})
	f := b.Return(g.Result(0))
	args := []*ir.Array{ir.NewArray(dtype.Float32, []int{4}, []float64{1, 2, 3, 4})}

	stats := eraseUnused(t, f)
	if stats.Rewrites != 0 {
		t.Errorf("got %d rewrites but want 0: the input defines the only loop:\n%s", stats.Rewrites, f)
	}
	if diff := cmp.Diff([][]float64{{4}}, eval(t, f, args)); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestEraseKeepsReadInit(t *testing.T) {
	vec := ir.Tensor(dtype.Float32, 3)
	b := irb.NewFunc("accumulate", vec, vec)
	id := ir.IdentityMap(1)
	g := b.Generic([]*ir.Value{b.Param(0)}, []*ir.Value{b.Param(1), b.Empty(vec)},
		[]ir.AffineMap{id, id, id},
		[]ir.IteratorType{ir.Parallel},
		func(body *irb.Builder, args []*ir.Value) []*ir.Value {
			return []*ir.Value{args[0], body.Binary(token.ADD, args[0], args[2])}
		})
	f := b.Return(g.Result(0))

	eraseUnused(t, f)
	gs := generics(f)
	if len(gs) != 1 {
		t.Fatalf("got %d generic operations but want 1:\n%s", len(gs), f)
	}
	if gs[0].NumInits() != 2 {
		t.Errorf("got %d inits but want 2: the body reads the second init:\n%s", gs[0].NumInits(), f)
	}
}
