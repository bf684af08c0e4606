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

package rewrite

import (
	"iter"

	"github.com/gx-org/remat/base/ordered"
	"github.com/gx-org/remat/build/fmterr"
	"github.com/gx-org/remat/build/ir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMaxIterations is the default maximum number of sweeps over a function.
const DefaultMaxIterations = 10

// ErrNotConverged is returned when patterns are still applied
// after the maximum number of iterations or rewrites.
var ErrNotConverged = errors.New("pattern application did not converge")

type (
	// Config of the greedy driver.
	Config struct {
		// MaxIterations is the maximum number of sweeps over the function.
		// DefaultMaxIterations is used if zero or negative.
		MaxIterations int
		// MaxRewrites is the maximum number of successful pattern
		// applications. The number of rewrites is unlimited if zero or negative.
		MaxRewrites int
		// Logger for debug messages. logrus.StandardLogger() is used if nil.
		Logger logrus.FieldLogger
	}

	// Stats reports what the driver has done.
	Stats struct {
		// Iterations is the number of sweeps over the function.
		Iterations int
		// Rewrites is the number of successful pattern applications.
		Rewrites int
		// Erased is the number of trivially dead operations erased by the driver.
		Erased int

		applied *ordered.Map[string, int]
	}
)

// Applied returns the number of times a pattern has been applied.
func (s *Stats) Applied(name string) int {
	n, _ := s.applied.Load(name)
	return n
}

// Patterns iterates over the pattern names, in registration order,
// with their number of applications.
func (s *Stats) Patterns() iter.Seq2[string, int] {
	return s.applied.Iter()
}

func (cfg Config) maxIterations() int {
	if cfg.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return cfg.MaxIterations
}

func (cfg Config) logger() logrus.FieldLogger {
	if cfg.Logger == nil {
		return logrus.StandardLogger()
	}
	return cfg.Logger
}

type driver struct {
	fn       *ir.Func
	patterns []Pattern
	cfg      Config
	log      logrus.FieldLogger

	worklist *worklist
	rw       *Rewriter
	stats    *Stats
	changed  bool
}

var _ Listener = (*driver)(nil)

// ApplyPatternsGreedily applies patterns to the operations of a function
// until none of them applies.
//
// The operations of the function body are visited in program order.
// For each operation, trivially dead operations are erased first, then
// patterns are tried in the order in which they are given: the first
// pattern returning true wins. Operations created or modified by a
// rewrite, users of replaced values, and producers of erased operations
// are visited again. The function is swept again until a sweep makes
// no change.
//
// An error returned by a pattern aborts the rewrite and leaves the
// function partially rewritten. ErrNotConverged is returned if a fixed
// point has not been reached within the limits of the configuration.
func ApplyPatternsGreedily(fn *ir.Func, patterns []Pattern, cfg Config) (*Stats, error) {
	d := &driver{
		fn:       fn,
		patterns: patterns,
		cfg:      cfg,
		log:      cfg.logger().WithField("func", fn.Name()),
		worklist: newWorklist(),
		stats:    &Stats{applied: ordered.NewMap[string, int]()},
	}
	d.rw = NewRewriter(d)
	for _, p := range patterns {
		d.stats.applied.Store(p.Name(), 0)
	}
	return d.stats, d.run()
}

func (d *driver) run() error {
	maxIterations := d.cfg.maxIterations()
	for d.stats.Iterations < maxIterations {
		d.stats.Iterations++
		d.changed = false
		d.worklist.reset(d.fn.Body().Ops())
		for {
			op, ok := d.worklist.pop()
			if !ok {
				break
			}
			if err := d.process(op); err != nil {
				return err
			}
		}
		if !d.changed {
			d.log.Debugf("converged after %d iterations and %d rewrites", d.stats.Iterations, d.stats.Rewrites)
			return nil
		}
	}
	return errors.Wrapf(ErrNotConverged, "function @%s still changing after %d iterations", d.fn.Name(), maxIterations)
}

func (d *driver) process(op *ir.Operation) error {
	if op.Block() == nil {
		return nil
	}
	if op.Kind().IsPure() && op.UseEmpty() {
		d.log.Debugf("erasing trivially dead %s", op.Location())
		if err := d.rw.EraseOp(op); err != nil {
			return fmterr.Internal(err)
		}
		d.stats.Erased++
		return nil
	}
	loc := op.Location()
	for _, p := range d.patterns {
		d.rw.SetInsertionPointBefore(op)
		applied, err := p.MatchAndRewrite(d.rw, op)
		if err != nil {
			return errors.WithMessagef(err, "pattern %s failed on %s", p.Name(), loc)
		}
		if !applied {
			continue
		}
		d.changed = true
		d.stats.Rewrites++
		d.stats.applied.Store(p.Name(), d.stats.Applied(p.Name())+1)
		d.log.WithField("pattern", p.Name()).Debugf("rewrote %s", loc)
		if d.cfg.MaxRewrites > 0 && d.stats.Rewrites >= d.cfg.MaxRewrites && d.worklist.len() > 0 {
			return errors.Wrapf(ErrNotConverged, "function @%s: reached the maximum of %d rewrites", d.fn.Name(), d.cfg.MaxRewrites)
		}
		return nil
	}
	return nil
}

// topLevel returns the ancestor of op in the body of the function.
func (d *driver) topLevel(op *ir.Operation) *ir.Operation {
	for op != nil && op.Block() != d.fn.Body() {
		op = op.ParentOp()
	}
	return op
}

func (d *driver) enqueue(op *ir.Operation) {
	if top := d.topLevel(op); top != nil {
		d.worklist.push(top)
	}
}

// OpInserted adds the new operation to the worklist.
func (d *driver) OpInserted(op *ir.Operation) {
	d.changed = true
	d.enqueue(op)
}

// OpModified adds the modified operation to the worklist.
func (d *driver) OpModified(op *ir.Operation) {
	d.changed = true
	d.enqueue(op)
}

// OpReplaced adds the users of the replaced results to the worklist.
func (d *driver) OpReplaced(op *ir.Operation, vals []*ir.Value) {
	d.changed = true
	for _, res := range op.Results() {
		for _, user := range res.Users() {
			d.enqueue(user)
		}
	}
}

// OpErased removes the operation from the worklist and adds
// the producers of its operands, which may have become dead.
func (d *driver) OpErased(op *ir.Operation) {
	d.changed = true
	op.Walk(func(inner *ir.Operation) bool {
		d.worklist.remove(inner)
		for _, val := range inner.OperandValues() {
			if val == nil || val.DefiningOp() == nil || op.IsAncestor(val.DefiningOp()) {
				continue
			}
			d.enqueue(val.DefiningOp())
		}
		return true
	})
}
