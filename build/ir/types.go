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
	"slices"
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// DynamicAxis is the length of an axis only known at runtime.
const DynamicAxis = -1

type (
	// Type of a value.
	Type interface {
		fmt.Stringer
		// Equal returns true if the other type is the same type.
		Equal(Type) bool
		isType()
	}

	// ScalarType is a numerical scalar type.
	ScalarType struct {
		DType dtype.DataType
	}

	// IndexType is the type of loop indices and axis lengths.
	IndexType struct{}

	// TensorType is a ranked tensor of elements of the same data type.
	// Axis lengths equal to DynamicAxis are unknown at compile time.
	TensorType struct {
		Shape *shape.Shape
	}
)

var (
	_ Type = ScalarType{}
	_ Type = IndexType{}
	_ Type = (*TensorType)(nil)
)

// Scalar returns a scalar type.
func Scalar(dt dtype.DataType) ScalarType {
	return ScalarType{DType: dt}
}

// Float32Type returns the float32 scalar type.
func Float32Type() ScalarType { return Scalar(dtype.Float32) }

// Float64Type returns the float64 scalar type.
func Float64Type() ScalarType { return Scalar(dtype.Float64) }

// Int32Type returns the int32 scalar type.
func Int32Type() ScalarType { return Scalar(dtype.Int32) }

// Int64Type returns the int64 scalar type.
func Int64Type() ScalarType { return Scalar(dtype.Int64) }

func (ScalarType) isType() {}

// Equal returns true if the other type is a scalar with the same data type.
func (t ScalarType) Equal(o Type) bool {
	other, ok := o.(ScalarType)
	return ok && other.DType == t.DType
}

func (t ScalarType) String() string {
	return t.DType.String()
}

func (IndexType) isType() {}

// Equal returns true if the other type is the index type.
func (IndexType) Equal(o Type) bool {
	_, ok := o.(IndexType)
	return ok
}

func (IndexType) String() string {
	return "index"
}

// Tensor returns a tensor type given a data type and axis lengths.
func Tensor(dt dtype.DataType, axes ...int) *TensorType {
	return &TensorType{Shape: &shape.Shape{
		DType:       dt,
		AxisLengths: slices.Clone(axes),
	}}
}

func (*TensorType) isType() {}

// Rank returns the number of axes of the tensor.
func (t *TensorType) Rank() int {
	return len(t.Shape.AxisLengths)
}

// AxisLengths returns the length of all axes.
func (t *TensorType) AxisLengths() []int {
	return t.Shape.AxisLengths
}

// HasStaticShape returns true if all the axis lengths are known.
func (t *TensorType) HasStaticShape() bool {
	for _, l := range t.Shape.AxisLengths {
		if l < 0 {
			return false
		}
	}
	return true
}

// NumElements returns the number of elements in the tensor.
// It returns false if the shape is not static.
func (t *TensorType) NumElements() (int, bool) {
	if !t.HasStaticShape() {
		return 0, false
	}
	return t.Shape.Size(), true
}

// ElementType returns the type of the elements of the tensor.
func (t *TensorType) ElementType() ScalarType {
	return Scalar(t.Shape.DType)
}

// Equal returns true if the other type is a tensor with the same shape.
// Two dynamic axes are equal.
func (t *TensorType) Equal(o Type) bool {
	other, ok := o.(*TensorType)
	if !ok {
		return false
	}
	return t.Shape.DType == other.Shape.DType &&
		slices.Equal(t.Shape.AxisLengths, other.Shape.AxisLengths)
}

func (t *TensorType) String() string {
	var s strings.Builder
	s.WriteString("tensor<")
	for _, l := range t.Shape.AxisLengths {
		if l < 0 {
			s.WriteString("?")
		} else {
			s.WriteString(strconv.Itoa(l))
		}
		s.WriteString("x")
	}
	s.WriteString(t.Shape.DType.String())
	s.WriteString(">")
	return s.String()
}

// ElementTypeOf returns the element type of a tensor or the type itself.
func ElementTypeOf(t Type) Type {
	if tensor, ok := t.(*TensorType); ok {
		return tensor.ElementType()
	}
	return t
}

// IsIntOrIndexOrFloat returns true if the type is a scalar
// numerical type or the index type.
func IsIntOrIndexOrFloat(t Type) bool {
	switch t.(type) {
	case ScalarType, IndexType:
		return true
	}
	return false
}
