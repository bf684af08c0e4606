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

// Kind of an operation.
type Kind int

const (
	// InvalidKind is the zero value of Kind.
	InvalidKind Kind = iota
	// GenericKind is a structured operation over tensors:
	// a body computing one element of the outputs is applied
	// to every point of an iteration space.
	GenericKind
	// YieldKind terminates the body of a generic operation.
	YieldKind
	// ReturnKind terminates a function.
	ReturnKind
	// BinaryKind is a scalar binary arithmetic operation.
	BinaryKind
	// UnaryKind is a scalar unary arithmetic operation.
	UnaryKind
	// ConstantKind is a scalar constant or a tensor filled with a constant.
	ConstantKind
	// EmptyKind allocates a tensor with undefined content.
	EmptyKind
)

var kindToString = map[Kind]string{
	InvalidKind:  "invalid",
	GenericKind:  "generic",
	YieldKind:    "yield",
	ReturnKind:   "return",
	BinaryKind:   "binary",
	UnaryKind:    "unary",
	ConstantKind: "constant",
	EmptyKind:    "empty",
}

func (k Kind) String() string {
	s, ok := kindToString[k]
	if !ok {
		return "unknown"
	}
	return s
}

// IsTerminator returns true if operations of that kind terminate a block.
func (k Kind) IsTerminator() bool {
	return k == YieldKind || k == ReturnKind
}

// IsPure returns true if operations of that kind have no side effect.
// Pure operations without uses can be removed.
func (k Kind) IsPure() bool {
	return !k.IsTerminator() && k != InvalidKind
}
