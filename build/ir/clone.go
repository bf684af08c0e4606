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
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Mapping maps values of an IR to values of another IR.
// Values without an entry map to themselves.
type Mapping struct {
	vals map[*Value]*Value
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{vals: make(map[*Value]*Value)}
}

// Map records that from maps to to.
func (m *Mapping) Map(from, to *Value) {
	m.vals[from] = to
}

// MapAll records the mapping of each value of from to the value of to at the same position.
func (m *Mapping) MapAll(from, to []*Value) {
	for i, v := range from {
		m.vals[v] = to[i]
	}
}

// Lookup returns the value mapped to v or v itself.
func (m *Mapping) Lookup(v *Value) *Value {
	if mapped, ok := m.vals[v]; ok {
		return mapped
	}
	return v
}

// Contains returns true if a value has been mapped.
func (m *Mapping) Contains(v *Value) bool {
	_, ok := m.vals[v]
	return ok
}

// Fork returns a new mapping starting with all the entries of m.
// Entries added to the fork are not visible from m.
func (m *Mapping) Fork() *Mapping {
	return &Mapping{vals: maps.Clone(m.vals)}
}

// Clone returns a deep copy of the operation, not inserted in any block.
// Operands are remapped with the mapping and the results of the
// operation and of its body are added to the mapping.
func (op *Operation) Clone(m *Mapping) *Operation {
	operands := make([]*Value, len(op.operands))
	for i, operand := range op.operands {
		operands[i] = m.Lookup(operand.value)
	}
	cl := newOperation(op.kind, operands, op.ResultTypes())
	cl.attrs = op.attrs.Clone()
	cl.tok = op.tok
	cl.constant = op.constant
	if op.generic != nil {
		info := *op.generic
		cl.generic = &info
	}
	for i, res := range op.results {
		cl.results[i].name = res.name
		m.Map(res, cl.results[i])
	}
	if op.region != nil {
		cl.region = NewBlock()
		cl.region.parent = cl
		for _, arg := range op.region.args {
			m.Map(arg, cl.region.AddArgument(arg.typ).SetName(arg.name))
		}
		for _, inner := range op.region.ops {
			cl.region.Append(inner.Clone(m))
		}
	}
	return cl
}

// Clone returns a deep copy of the function.
func (f *Func) Clone() *Func {
	cl := NewFunc(f.name, valueTypes(f.body.args)...)
	m := NewMapping()
	for i, param := range f.body.args {
		cl.body.args[i].name = param.name
		m.Map(param, cl.body.args[i])
	}
	for _, op := range f.body.ops {
		cl.body.Append(op.Clone(m))
	}
	return cl
}

// CloneModule returns a deep copy of a module.
func CloneModule(mod *Module) (*Module, error) {
	cl := NewModule()
	for _, f := range mod.funcs {
		if err := cl.Add(f.Clone()); err != nil {
			return nil, errors.Wrapf(err, "cannot clone module")
		}
	}
	return cl, nil
}
