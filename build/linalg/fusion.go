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

// Package linalg implements transformations of generic operations.
package linalg

import (
	"slices"

	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/rewrite"
	"github.com/pkg/errors"
)

type (
	// FusionPlan describes how a producer is fused into a consumer.
	FusionPlan struct {
		// Fused is the operand of the consumer reading the result of the producer.
		Fused *ir.Operand
		// Producer is the elementwise operation producing the fused value.
		Producer *ir.Generic
		// Consumer is the operation reading the fused value.
		Consumer *ir.Generic

		// invProducerResultMap maps the coordinates of the fused value
		// to the loops of the producer.
		invProducerResultMap ir.AffineMap
	}

	// FusionResult is the result of fusing a producer into a consumer.
	FusionResult struct {
		// FusedOp computes the preserved results of the producer
		// followed by all the results of the consumer.
		FusedOp *ir.Generic
		// Replacements maps the results of the producer and of the
		// consumer to the results of the fused operation.
		Replacements map[*ir.Value]*ir.Value
	}
)

// PlanFusion returns a plan to fuse the producer of an operand
// into the operation using the operand, or false if the fusion is not legal.
//
// The producer and the consumer must be generic operations in the same block,
// the producer must be elementwise and the operand must be an input of the
// consumer. The indexing map of the result of the producer needs to be a
// permutation so that the loops of the producer can be expressed in the loops
// of the consumer. If the consumer has reduction loops, every loop needs to
// remain defined by an operand after the fusion.
func PlanFusion(fused *ir.Operand) (*FusionPlan, bool) {
	consumer, ok := fused.Owner().Generic()
	if !ok || !consumer.IsInput(fused) {
		return nil, false
	}
	producer, ok := fused.Get().DefiningOp().Generic()
	if !ok || producer.Operation == consumer.Operation {
		return nil, false
	}
	if producer.Block() == nil || producer.Block() != consumer.Block() {
		return nil, false
	}
	if !producer.IsElementwise() {
		return nil, false
	}
	consumerMap := consumer.MatchingIndexingMap(fused)
	if consumerMap.NumResults() != producer.NumLoops() {
		return nil, false
	}
	producerResultMap := producer.MatchingIndexingMap(producer.InitForResult(fused.Get()))
	inv, err := producerResultMap.InversePermutation()
	if err != nil {
		return nil, false
	}
	plan := &FusionPlan{
		Fused:                fused,
		Producer:             producer,
		Consumer:             consumer,
		invProducerResultMap: inv,
	}
	if consumer.NumReductionLoops() == 0 {
		return plan, true
	}
	covered := consumer.CoveredLoops(func(o *ir.Operand) bool { return o != fused })
	for _, input := range producer.Inputs() {
		m, err := plan.producerMapInConsumerLoops(input)
		if err != nil {
			return nil, false
		}
		for d, used := range m.Dims() {
			covered[d] = covered[d] || used
		}
	}
	if slices.Contains(covered, false) {
		return nil, false
	}
	return plan, true
}

// AreElementwiseOpsFusable returns true if the producer of an operand
// can be fused into the operation using the operand.
func AreElementwiseOpsFusable(fused *ir.Operand) bool {
	_, ok := PlanFusion(fused)
	return ok
}

// producerMapInConsumerLoops returns the indexing map of an operand of the
// producer expressed in the loops of the consumer.
func (p *FusionPlan) producerMapInConsumerLoops(o *ir.Operand) (ir.AffineMap, error) {
	argMap := p.Producer.MatchingIndexingMap(o)
	t1, err := argMap.Compose(p.invProducerResultMap)
	if err != nil {
		return ir.AffineMap{}, err
	}
	return t1.Compose(p.Consumer.MatchingIndexingMap(p.Fused))
}

// preservedProducerResults returns the results of the producer that need to be
// computed by the fused operation: results used by other operations than the
// consumer, or results whose init is read by the body of the producer.
func (p *FusionPlan) preservedProducerResults() []*ir.Value {
	var preserved []*ir.Value
	for _, res := range p.Producer.Results() {
		if p.Producer.PayloadUsesOperand(p.Producer.InitForResult(res)) {
			preserved = append(preserved, res)
			continue
		}
		for _, user := range res.Users() {
			if user != p.Consumer.Operation {
				preserved = append(preserved, res)
				break
			}
		}
	}
	return preserved
}

// FuseElementwiseOps fuses the producer of an operand into the operation
// using the operand. The fused operation is inserted before the consumer.
// Neither the producer nor the consumer are modified: it is the
// responsibility of the caller to replace the consumer.
//
// The fused operation is a new operation and does not carry any attribute.
func FuseElementwiseOps(rw *rewrite.Rewriter, fused *ir.Operand) (*FusionResult, error) {
	plan, ok := PlanFusion(fused)
	if !ok {
		return nil, errors.Errorf("cannot fuse operand %d of %s: fusion is not legal", fused.Index(), fused.Owner().Location())
	}
	return plan.Apply(rw)
}

// Apply the plan: build the fused operation and insert it before the consumer.
func (p *FusionPlan) Apply(rw *rewrite.Rewriter) (*FusionResult, error) {
	producer, consumer := p.Producer, p.Consumer
	preserved := p.preservedProducerResults()

	var (
		inputs, inits []*ir.Value
		maps          []ir.AffineMap
		// Operands of the producer and consumer in the order of the fused operands.
		origins []*ir.Operand
	)
	addOperand := func(o *ir.Operand, m ir.AffineMap) {
		origins = append(origins, o)
		maps = append(maps, m)
	}
	consumerInputs := consumer.Inputs()
	fusedPos := p.Fused.Index()
	for _, o := range consumerInputs[:fusedPos] {
		inputs = append(inputs, o.Get())
		addOperand(o, consumer.MatchingIndexingMap(o))
	}
	for _, o := range producer.Inputs() {
		m, err := p.producerMapInConsumerLoops(o)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, o.Get())
		addOperand(o, m)
	}
	for _, o := range consumerInputs[fusedPos+1:] {
		inputs = append(inputs, o.Get())
		addOperand(o, consumer.MatchingIndexingMap(o))
	}
	for _, res := range preserved {
		o := producer.InitForResult(res)
		m, err := p.producerMapInConsumerLoops(o)
		if err != nil {
			return nil, err
		}
		inits = append(inits, o.Get())
		addOperand(o, m)
	}
	for _, o := range consumer.Inits() {
		inits = append(inits, o.Get())
		addOperand(o, consumer.MatchingIndexingMap(o))
	}

	fusedOp := ir.NewGeneric(inputs, inits, maps, consumer.Iterators())
	if err := p.buildBody(fusedOp, origins, preserved); err != nil {
		return nil, err
	}
	rw.SetInsertionPointBefore(consumer.Operation)
	if _, err := rw.Insert(fusedOp.Operation); err != nil {
		return nil, err
	}

	result := &FusionResult{
		FusedOp:      fusedOp,
		Replacements: make(map[*ir.Value]*ir.Value),
	}
	for i, res := range preserved {
		result.Replacements[res] = fusedOp.Result(i)
	}
	for i, res := range consumer.Results() {
		result.Replacements[res] = fusedOp.Result(len(preserved) + i)
	}
	return result, nil
}

// buildBody clones the body of the producer followed by the body of the
// consumer into the body of the fused operation. The consumer reads the
// value yielded by the producer instead of its block argument.
func (p *FusionPlan) buildBody(fusedOp *ir.Generic, origins []*ir.Operand, preserved []*ir.Value) error {
	producer, consumer := p.Producer, p.Consumer
	body := fusedOp.Body()
	producerMapping := ir.NewMapping()
	for i, o := range origins {
		g, _ := o.Owner().Generic()
		producerMapping.Map(g.BlockArg(o), body.Arg(i))
	}

	producerYield := producer.Yield()
	consumerYield := consumer.Yield()
	if producerYield == nil || consumerYield == nil {
		return errors.Errorf("cannot fuse %s into %s: body not terminated", producer.Location(), consumer.Location())
	}
	for _, op := range producer.Body().Ops() {
		if op == producerYield {
			continue
		}
		body.Append(op.Clone(producerMapping))
	}

	consumerMapping := producerMapping.Fork()
	fusedValue := producerMapping.Lookup(producerYield.Operand(p.Fused.Get().Index()))
	consumerMapping.Map(consumer.BlockArg(p.Fused), fusedValue)
	for _, op := range consumer.Body().Ops() {
		if op == consumerYield {
			continue
		}
		body.Append(op.Clone(consumerMapping))
	}

	var yielded []*ir.Value
	for _, res := range preserved {
		yielded = append(yielded, producerMapping.Lookup(producerYield.Operand(res.Index())))
	}
	for _, val := range consumerYield.OperandValues() {
		yielded = append(yielded, consumerMapping.Lookup(val))
	}
	body.Append(ir.NewYield(yielded...))
	return nil
}
