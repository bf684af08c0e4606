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

// Package rewrite applies rewrite patterns to the IR of a function
// until a fixed point is reached.
package rewrite

import (
	"github.com/gx-org/remat/build/ir"
	"github.com/pkg/errors"
)

type (
	// Pattern rewrites an operation.
	Pattern interface {
		// Name of the pattern for logging and statistics.
		Name() string
		// MatchAndRewrite returns true if the pattern has modified the IR.
		// The IR must not be modified if false is returned.
		// An error aborts the rewrite of the whole function.
		MatchAndRewrite(rw *Rewriter, op *ir.Operation) (bool, error)
	}

	// Listener is notified of all the changes made through a rewriter.
	Listener interface {
		// OpInserted is called after an operation has been inserted.
		OpInserted(op *ir.Operation)
		// OpModified is called after an operation has been modified in place.
		OpModified(op *ir.Operation)
		// OpReplaced is called before the results of op are replaced by vals.
		OpReplaced(op *ir.Operation, vals []*ir.Value)
		// OpErased is called before an operation is erased.
		OpErased(op *ir.Operation)
	}

	// Rewriter modifies the IR and notifies a listener.
	// All the modifications made by patterns must go through the rewriter.
	Rewriter struct {
		listener Listener
		before   *ir.Operation
	}
)

type noListener struct{}

func (noListener) OpInserted(*ir.Operation)              {}
func (noListener) OpModified(*ir.Operation)              {}
func (noListener) OpReplaced(*ir.Operation, []*ir.Value) {}
func (noListener) OpErased(*ir.Operation)                {}

// NewRewriter returns a new rewriter. The listener can be nil.
func NewRewriter(listener Listener) *Rewriter {
	if listener == nil {
		listener = noListener{}
	}
	return &Rewriter{listener: listener}
}

// SetInsertionPointBefore sets where new operations are inserted.
func (rw *Rewriter) SetInsertionPointBefore(op *ir.Operation) {
	rw.before = op
}

// InsertionPoint returns the operation before which new operations are inserted.
func (rw *Rewriter) InsertionPoint() *ir.Operation {
	return rw.before
}

// Insert an operation at the insertion point.
func (rw *Rewriter) Insert(op *ir.Operation) (*ir.Operation, error) {
	if rw.before == nil || rw.before.Block() == nil {
		return nil, errors.Errorf("cannot insert %s operation: no valid insertion point", op.Kind())
	}
	if _, err := rw.before.Block().InsertBefore(rw.before, op); err != nil {
		return nil, err
	}
	rw.listener.OpInserted(op)
	return op, nil
}

// ModifyInPlace calls f to modify an operation and notifies the listener.
func (rw *Rewriter) ModifyInPlace(op *ir.Operation, f func()) {
	f()
	rw.listener.OpModified(op)
}

// ReplaceAllUsesWith replaces all the uses of a value by another value.
func (rw *Rewriter) ReplaceAllUsesWith(from, to *ir.Value) {
	users := from.Users()
	from.ReplaceAllUsesWith(to)
	for _, user := range users {
		rw.listener.OpModified(user)
	}
}

// ReplaceOp replaces all the uses of the results of an operation by some values
// and erases the operation.
func (rw *Rewriter) ReplaceOp(op *ir.Operation, vals []*ir.Value) error {
	if len(vals) != op.NumResults() {
		return errors.Errorf("cannot replace %s: got %d values for %d results", op.Location(), len(vals), op.NumResults())
	}
	for i, res := range op.Results() {
		if !res.Type().Equal(vals[i].Type()) {
			return errors.Errorf("cannot replace result %d of %s: replacement has type %s but want %s", i, op.Location(), vals[i].Type(), res.Type())
		}
	}
	rw.listener.OpReplaced(op, vals)
	for i, res := range op.Results() {
		rw.ReplaceAllUsesWith(res, vals[i])
	}
	return rw.EraseOp(op)
}

// EraseOp erases an operation. Its results must not have any use.
func (rw *Rewriter) EraseOp(op *ir.Operation) error {
	if !op.UseEmpty() {
		return errors.Errorf("cannot erase %s: results still used", op.Location())
	}
	if rw.before == op {
		rw.before = nil
	}
	rw.listener.OpErased(op)
	return op.Erase()
}
