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

	"github.com/pkg/errors"
)

// Func is a function: a named body with parameters.
// The function is the unit on which passes operate.
type Func struct {
	name string
	body *Block
}

// NewFunc returns a new function with an empty body.
func NewFunc(name string, paramTypes ...Type) *Func {
	f := &Func{name: name, body: NewBlock(paramTypes...)}
	f.body.fn = f
	return f
}

// Name of the function.
func (f *Func) Name() string {
	return f.name
}

// Location of the function in error messages.
func (f *Func) Location() string {
	return "@" + f.name
}

// Params returns the parameters of the function.
func (f *Func) Params() []*Value {
	return f.body.Args()
}

// Param returns the parameter at a given position.
func (f *Func) Param(i int) *Value {
	return f.body.Arg(i)
}

// Body returns the body of the function.
func (f *Func) Body() *Block {
	return f.body
}

// Return returns the terminator of the function or nil.
func (f *Func) Return() *Operation {
	term := f.body.Terminator()
	if term == nil || term.kind != ReturnKind {
		return nil
	}
	return term
}

// ResultTypes returns the types of the values returned by the function.
func (f *Func) ResultTypes() []Type {
	ret := f.Return()
	if ret == nil {
		return nil
	}
	return valueTypes(ret.OperandValues())
}

// Walk calls f on every operation of the function in pre-order.
func (f *Func) Walk(fn func(*Operation) bool) {
	f.body.Walk(fn)
}

// Ops returns all the operations of the function, including nested ones, in pre-order.
func (f *Func) Ops() []*Operation {
	var ops []*Operation
	f.Walk(func(op *Operation) bool {
		ops = append(ops, op)
		return true
	})
	return ops
}

// Module is an ordered set of functions.
type Module struct {
	funcs []*Func
}

// NewModule returns a module with some functions.
func NewModule(funcs ...*Func) *Module {
	return &Module{funcs: slices.Clone(funcs)}
}

// Funcs returns the functions of the module.
func (m *Module) Funcs() []*Func {
	return slices.Clone(m.funcs)
}

// Add a function to the module. Function names are unique.
func (m *Module) Add(f *Func) error {
	if m.Func(f.Name()) != nil {
		return errors.Errorf("function %s already defined", f.Name())
	}
	m.funcs = append(m.funcs, f)
	return nil
}

// Func returns a function given its name or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.funcs {
		if f.name == name {
			return f
		}
	}
	return nil
}
