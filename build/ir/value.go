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
	"slices"
	"sync/atomic"
)

// ValueID identifies a value. IDs are never reused.
type ValueID int64

var lastValueID atomic.Int64

type (
	// Value is an SSA value: it is either the result of an operation
	// or the argument of a block.
	Value struct {
		id   ValueID
		typ  Type
		name string

		def   *Operation
		block *Block
		index int

		uses []*Operand
	}

	// Operand is a use of a value by an operation.
	Operand struct {
		owner *Operation
		index int
		value *Value
	}
)

func newValue(typ Type) *Value {
	return &Value{id: ValueID(lastValueID.Add(1)), typ: typ}
}

// ID of the value.
func (v *Value) ID() ValueID {
	return v.id
}

// Type of the value.
func (v *Value) Type() Type {
	return v.typ
}

// Name returns the name hint of the value used when printing the IR.
func (v *Value) Name() string {
	return v.name
}

// SetName sets the name hint of the value.
func (v *Value) SetName(name string) *Value {
	v.name = name
	return v
}

// DefiningOp returns the operation producing the value
// or nil if the value is a block argument.
func (v *Value) DefiningOp() *Operation {
	return v.def
}

// IsBlockArgument returns true if the value is the argument of a block.
func (v *Value) IsBlockArgument() bool {
	return v.block != nil
}

// OwnerBlock returns the block owning the argument or
// the block of the defining operation.
func (v *Value) OwnerBlock() *Block {
	if v.block != nil {
		return v.block
	}
	if v.def != nil {
		return v.def.block
	}
	return nil
}

// Index returns the result index in the defining operation
// or the argument index in the block.
func (v *Value) Index() int {
	return v.index
}

// Uses returns all the uses of the value.
func (v *Value) Uses() []*Operand {
	return slices.Clone(v.uses)
}

// NumUses returns the number of uses.
func (v *Value) NumUses() int {
	return len(v.uses)
}

// UseEmpty returns true if the value has no use.
func (v *Value) UseEmpty() bool {
	return len(v.uses) == 0
}

// HasOneUse returns true if the value has exactly one use.
func (v *Value) HasOneUse() bool {
	return len(v.uses) == 1
}

// Users returns the operations using the value, without duplicates,
// in the order of the uses.
func (v *Value) Users() []*Operation {
	var users []*Operation
	for _, use := range v.uses {
		if !slices.Contains(users, use.owner) {
			users = append(users, use.owner)
		}
	}
	return users
}

// ReplaceAllUsesWith replaces all uses of the value by another value.
func (v *Value) ReplaceAllUsesWith(nv *Value) {
	v.ReplaceUsesIf(nv, func(*Operand) bool { return true })
}

// ReplaceUsesIf replaces the uses of the value accepted by f by another value.
func (v *Value) ReplaceUsesIf(nv *Value, f func(*Operand) bool) {
	if v == nv {
		return
	}
	for _, use := range v.Uses() {
		if f(use) {
			use.Set(nv)
		}
	}
}

func (v *Value) addUse(o *Operand) {
	v.uses = append(v.uses, o)
}

func (v *Value) removeUse(o *Operand) {
	i := slices.Index(v.uses, o)
	if i < 0 {
		return
	}
	v.uses = slices.Delete(v.uses, i, i+1)
}

// Owner returns the operation using the value.
func (o *Operand) Owner() *Operation {
	return o.owner
}

// Index returns the position of the operand in its owner.
func (o *Operand) Index() int {
	return o.index
}

// Get returns the value used by the operand.
func (o *Operand) Get() *Value {
	return o.value
}

// Set the value of the operand.
func (o *Operand) Set(v *Value) {
	if o.value == v {
		return
	}
	if o.value != nil {
		o.value.removeUse(o)
	}
	o.value = v
	if v != nil {
		v.addUse(o)
	}
}

func (o *Operand) drop() {
	o.Set(nil)
}
