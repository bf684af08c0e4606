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

import "github.com/gx-org/remat/build/ir"

// worklist is a stack of operations without duplicates.
// Removed operations leave a nil slot skipped by pop.
type worklist struct {
	ops   []*ir.Operation
	index map[ir.OpID]int
}

func newWorklist() *worklist {
	return &worklist{index: make(map[ir.OpID]int)}
}

// reset fills the worklist such that operations are popped in the given order.
func (wl *worklist) reset(ops []*ir.Operation) {
	wl.ops = wl.ops[:0]
	clear(wl.index)
	for i := len(ops) - 1; i >= 0; i-- {
		wl.push(ops[i])
	}
}

func (wl *worklist) push(op *ir.Operation) {
	if _, ok := wl.index[op.ID()]; ok {
		return
	}
	wl.index[op.ID()] = len(wl.ops)
	wl.ops = append(wl.ops, op)
}

func (wl *worklist) pop() (*ir.Operation, bool) {
	for len(wl.ops) > 0 {
		last := len(wl.ops) - 1
		op := wl.ops[last]
		wl.ops = wl.ops[:last]
		if op == nil {
			continue
		}
		delete(wl.index, op.ID())
		return op, true
	}
	return nil, false
}

func (wl *worklist) remove(op *ir.Operation) {
	i, ok := wl.index[op.ID()]
	if !ok {
		return
	}
	wl.ops[i] = nil
	delete(wl.index, op.ID())
}

func (wl *worklist) len() int {
	return len(wl.index)
}
