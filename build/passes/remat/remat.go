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

// Package remat rematerializes parallel operations into their consumers.
//
// The producer of an input of a generic operation is fused into the
// operation if the producer is elementwise. A producer with more than
// one consumer is duplicated into each of them so that no intermediate
// tensor needs to be materialized.
package remat

import (
	"github.com/gx-org/remat/base/iter"
	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/linalg"
	"github.com/gx-org/remat/build/passes"
	"github.com/gx-org/remat/build/rewrite"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PassName is the name of the pass.
const PassName = "rematerialize-parallel-ops"

type (
	// ControlFn selects the functions to which the pass applies.
	ControlFn func(*ir.Func) bool

	// Option configures the pass.
	Option func(*Pass)

	// Pass fusing elementwise producers into their consumers.
	Pass struct {
		control ControlFn
		cfg     rewrite.Config
	}
)

var _ passes.FuncPass = (*Pass)(nil)

// WithConfig sets the configuration of the greedy driver.
func WithConfig(cfg rewrite.Config) Option {
	return func(p *Pass) {
		log := p.cfg.Logger
		p.cfg = cfg
		if p.cfg.Logger == nil {
			p.cfg.Logger = log
		}
	}
}

// WithLogger sets the logger used by the pass.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pass) {
		p.cfg.Logger = log
	}
}

// New returns a new pass. The pass applies to all functions if control is nil.
func New(control ControlFn, opts ...Option) *Pass {
	p := &Pass{control: control}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name of the pass.
func (p *Pass) Name() string {
	return PassName
}

// Patterns returns the patterns applied by the pass, in order.
func Patterns() []rewrite.Pattern {
	return []rewrite.Pattern{
		MergeElementwiseOps{},
		linalg.EraseUnusedOperandsAndResults{},
	}
}

// Run the pass on a function and returns what the driver did.
// Nil statistics and no error are returned if the function is skipped.
func (p *Pass) Run(f *ir.Func) (*rewrite.Stats, error) {
	if p.control != nil && !p.control(f) {
		return nil, nil
	}
	stats, err := rewrite.ApplyPatternsGreedily(f, Patterns(), p.cfg)
	if err != nil {
		return stats, errors.WithMessagef(err, "%s failed on @%s", PassName, f.Name())
	}
	return stats, nil
}

// RunOnFunc runs the pass on a function.
func (p *Pass) RunOnFunc(f *ir.Func) error {
	_, err := p.Run(f)
	return err
}

// IsScalarOrTensorOfSizeOne returns true if a type is a numerical scalar,
// the index type, or a tensor with a static shape of exactly one element.
func IsScalarOrTensorOfSizeOne(t ir.Type) bool {
	tensor, ok := t.(*ir.TensorType)
	if !ok {
		return ir.IsIntOrIndexOrFloat(t)
	}
	n, static := tensor.NumElements()
	return static && n == 1
}

func isScalarValue(val *ir.Value) bool {
	return IsScalarOrTensorOfSizeOne(val.Type())
}

// MergeElementwiseOps fuses the first fusable producer of an operand
// into a generic operation. Operations computing only scalars are skipped.
type MergeElementwiseOps struct{}

var _ rewrite.Pattern = MergeElementwiseOps{}

// Name of the pattern.
func (MergeElementwiseOps) Name() string {
	return "merge-elementwise-ops"
}

// MatchAndRewrite replaces a consumer by the trailing results
// of an operation fusing the consumer with one of its producers.
func (MergeElementwiseOps) MatchAndRewrite(rw *rewrite.Rewriter, op *ir.Operation) (bool, error) {
	if _, ok := op.Generic(); !ok {
		return false, nil
	}
	if iter.Every(isScalarValue, op.OperandValues(), op.Results()) {
		return false, nil
	}
	for _, operand := range op.Operands() {
		plan, ok := linalg.PlanFusion(operand)
		if !ok {
			continue
		}
		res, err := plan.Apply(rw)
		if err != nil {
			return false, err
		}
		fused := res.FusedOp
		// The fused operation is new and has no attribute.
		if cfg := op.Attr(ir.LoweringConfigName); cfg != nil {
			rw.ModifyInPlace(fused.Operation, func() {
				fused.SetAttr(ir.LoweringConfigName, cfg)
			})
		}
		trailing := fused.Results()[fused.NumResults()-op.NumResults():]
		return true, rw.ReplaceOp(op, trailing)
	}
	return false, nil
}
