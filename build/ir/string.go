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
	"fmt"
	"go/token"
	"strings"

	gxfmt "github.com/gx-org/remat/base/fmt"
	"github.com/gx-org/remat/base/uname"
)

var tokenNames = map[token.Token]string{
	token.ADD: "add",
	token.SUB: "sub",
	token.MUL: "mul",
	token.QUO: "div",
	token.REM: "rem",
}

type printer struct {
	unames *uname.Unique
	names  map[*Value]string
}

func newPrinter() *printer {
	return &printer{
		unames: uname.New(),
		names:  make(map[*Value]string),
	}
}

func (p *printer) name(v *Value) string {
	if v == nil {
		return "<nil>"
	}
	if name, ok := p.names[v]; ok {
		return name
	}
	var name string
	if v.name != "" {
		name = p.unames.Name(v.name)
	} else {
		name = p.unames.Counter("")
	}
	name = "%" + name
	p.names[v] = name
	return name
}

func (p *printer) values(vals []*Value) string {
	return gxfmt.Join(vals, ", ", p.name)
}

func (p *printer) typedValues(vals []*Value) string {
	return gxfmt.Join(vals, ", ", func(v *Value) string {
		return p.name(v) + ": " + v.typ.String()
	})
}

func (p *printer) block(b *Block) string {
	var s strings.Builder
	for _, op := range b.ops {
		s.WriteString(p.op(op))
		s.WriteString("\n")
	}
	return s.String()
}

func (p *printer) op(op *Operation) string {
	var s strings.Builder
	if len(op.results) > 0 {
		s.WriteString(p.values(op.results))
		s.WriteString(" = ")
	}
	switch op.kind {
	case GenericKind:
		g, _ := op.Generic()
		s.WriteString(p.generic(g))
	case BinaryKind:
		fmt.Fprintf(&s, "%s %s : %s", tokenNames[op.tok], p.values(op.OperandValues()), op.results[0].typ)
	case UnaryKind:
		name := "neg"
		if op.tok != token.SUB {
			name = op.tok.String()
		}
		fmt.Fprintf(&s, "%s %s : %s", name, p.values(op.OperandValues()), op.results[0].typ)
	case ConstantKind:
		fmt.Fprintf(&s, "constant %v : %s", op.constant, op.results[0].typ)
	case EmptyKind:
		fmt.Fprintf(&s, "empty : %s", op.results[0].typ)
	default:
		s.WriteString(op.kind.String())
		if op.NumOperands() > 0 {
			s.WriteString(" ")
			s.WriteString(p.values(op.OperandValues()))
		}
	}
	if op.kind != GenericKind && op.attrs.Len() > 0 {
		s.WriteString(" ")
		s.WriteString(op.attrs.String())
	}
	return s.String()
}

func (p *printer) generic(g *Generic) string {
	var s strings.Builder
	maps := gxfmt.Join(g.generic.maps, ", ", AffineMap.String)
	iterators := gxfmt.Join(g.generic.iterators, ", ", IteratorType.String)
	fmt.Fprintf(&s, "generic {indexing_maps = [%s], iterator_types = [%s]}", maps, iterators)
	operandsString := func(operands []*Operand) string {
		return gxfmt.Join(operands, ", ", func(o *Operand) string {
			return p.name(o.value) + " : " + o.value.typ.String()
		})
	}
	fmt.Fprintf(&s, " ins(%s) outs(%s)", operandsString(g.Inputs()), operandsString(g.Inits()))
	if g.attrs.Len() > 0 {
		s.WriteString(" attrs = ")
		s.WriteString(g.attrs.String())
	}
	s.WriteString(" {\n")
	fmt.Fprintf(&s, "^bb0(%s):\n", p.typedValues(g.region.args))
	s.WriteString(gxfmt.Indent(p.block(g.region)))
	s.WriteString("}")
	if len(g.results) > 0 {
		s.WriteString(" -> ")
		s.WriteString(gxfmt.Join(g.ResultTypes(), ", ", Type.String))
	}
	return s.String()
}

func (p *printer) fn(f *Func) string {
	var s strings.Builder
	fmt.Fprintf(&s, "func @%s(%s) {\n", f.name, p.typedValues(f.body.args))
	s.WriteString(gxfmt.Indent(p.block(f.body)))
	s.WriteString("}")
	return s.String()
}

// String returns the operation in a textual form.
// Values defined outside of the operation are named with numbers.
func (op *Operation) String() string {
	return newPrinter().op(op)
}

// String returns the function in a textual form.
func (f *Func) String() string {
	return newPrinter().fn(f)
}

// String returns all the functions of the module in a textual form.
func (m *Module) String() string {
	return gxfmt.Join(m.funcs, "\n\n", (*Func).String)
}
