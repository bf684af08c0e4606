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

package rewrite_test

import (
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/ir/irb"
	"github.com/gx-org/remat/build/rewrite"
	"github.com/pkg/errors"
)

// foldAdd replaces an addition of two constants by a constant.
type foldAdd struct{}

func (foldAdd) Name() string { return "fold-add" }

func (foldAdd) MatchAndRewrite(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if op.Kind() != ir.BinaryKind || op.Token() != token.ADD {
		return false, nil
	}
	x, y := op.Operand(0).DefiningOp(), op.Operand(1).DefiningOp()
	if x == nil || y == nil || x.Kind() != ir.ConstantKind || y.Kind() != ir.ConstantKind {
		return false, nil
	}
	cst, err := rw.Insert(ir.NewConstant(x.ConstantValue()+y.ConstantValue(), op.Result(0).Type()))
	if err != nil {
		return false, err
	}
	return true, rw.ReplaceOp(op, cst.Results())
}

// toggle changes an attribute of return operations every time it is called.
type toggle struct {
	notify bool
}

func (toggle) Name() string { return "toggle" }

func (p toggle) MatchAndRewrite(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if op.Kind() != ir.ReturnKind {
		return false, nil
	}
	flip := func() {
		next := ir.IntAttr(1)
		if attr, ok := op.Attr("toggle").(ir.IntAttr); ok {
			next = 1 - attr
		}
		op.SetAttr("toggle", next)
	}
	if p.notify {
		rw.ModifyInPlace(op, flip)
	} else {
		flip()
	}
	return true, nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

var errFailing = errors.New("failing pattern")

func (failing) MatchAndRewrite(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if op.Kind() != ir.BinaryKind {
		return false, nil
	}
	return false, errFailing
}

func scalarFunc() *ir.Func {
	f32 := ir.Float32Type()
	b := irb.NewFunc("fold", f32)
	sum := b.Binary(token.ADD, b.Constant(1, f32), b.Constant(2, f32))
	return b.Return(b.Binary(token.MUL, sum, b.Param(0)))
}

func TestFold(t *testing.T) {
	f := scalarFunc()
	stats, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{foldAdd{}}, rewrite.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := ir.Verify(f); err != nil {
		t.Fatalf("invalid function:\n%s\n%+v", f, err)
	}
	var kinds []ir.Kind
	for _, op := range f.Body().Ops() {
		kinds = append(kinds, op.Kind())
	}
	want := []ir.Kind{ir.ConstantKind, ir.BinaryKind, ir.ReturnKind}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("unexpected operations (-want +got):\n%s\n%s", diff, f)
	}
	if got := stats.Applied("fold-add"); got != 1 {
		t.Errorf("fold-add applied %d times but want 1", got)
	}
	if stats.Erased != 2 || stats.Rewrites != 1 || stats.Iterations != 2 {
		t.Errorf("unexpected stats: %+v", *stats)
	}
	got, err := ir.Eval(f, ir.NewArray(dtype.Float32, nil, []float64{5}))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Data[0] != 15 {
		t.Errorf("got %v but want 15", got[0].Data[0])
	}
}

func TestIdempotent(t *testing.T) {
	f := scalarFunc()
	patterns := []rewrite.Pattern{foldAdd{}}
	if _, err := rewrite.ApplyPatternsGreedily(f, patterns, rewrite.Config{}); err != nil {
		t.Fatal(err)
	}
	before := f.String()
	stats, err := rewrite.ApplyPatternsGreedily(f, patterns, rewrite.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rewrites != 0 || stats.Erased != 0 || stats.Iterations != 1 {
		t.Errorf("second application changed the function: %+v", *stats)
	}
	if diff := cmp.Diff(before, f.String()); diff != "" {
		t.Errorf("second application changed the function:\n%s", diff)
	}
}

func TestNotConverged(t *testing.T) {
	f := scalarFunc()
	stats, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{toggle{}}, rewrite.Config{MaxIterations: 3})
	if !errors.Is(err, rewrite.ErrNotConverged) {
		t.Fatalf("got error %v but want %v", err, rewrite.ErrNotConverged)
	}
	if stats.Iterations != 3 {
		t.Errorf("got %d iterations but want 3", stats.Iterations)
	}
}

func TestMaxRewrites(t *testing.T) {
	f := scalarFunc()
	stats, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{toggle{notify: true}}, rewrite.Config{MaxRewrites: 5})
	if !errors.Is(err, rewrite.ErrNotConverged) {
		t.Fatalf("got error %v but want %v", err, rewrite.ErrNotConverged)
	}
	if stats.Rewrites != 5 {
		t.Errorf("got %d rewrites but want 5", stats.Rewrites)
	}
}

func TestPatternError(t *testing.T) {
	f := scalarFunc()
	_, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{foldAdd{}, failing{}}, rewrite.Config{})
	if !errors.Is(err, errFailing) {
		t.Fatalf("got error %v but want %v", err, errFailing)
	}
	if !strings.Contains(err.Error(), "pattern failing failed") {
		t.Errorf("error %q does not name the pattern", err)
	}
}

func TestPatternOrder(t *testing.T) {
	f := scalarFunc()
	stats, err := rewrite.ApplyPatternsGreedily(f, []rewrite.Pattern{foldAdd{}, toggle{}}, rewrite.Config{MaxIterations: 2})
	if !errors.Is(err, rewrite.ErrNotConverged) {
		t.Fatalf("got error %v but want %v", err, rewrite.ErrNotConverged)
	}
	var names []string
	for name := range stats.Patterns() {
		names = append(names, name)
	}
	if diff := cmp.Diff([]string{"fold-add", "toggle"}, names); diff != "" {
		t.Errorf("unexpected pattern order (-want +got):\n%s", diff)
	}
}
