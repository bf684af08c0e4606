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

	gxfmt "github.com/gx-org/remat/base/fmt"
	"github.com/gx-org/remat/base/ordered"
)

// LoweringConfigName is the name of the attribute storing the
// tiling and scheduling configuration of an operation.
const LoweringConfigName = "lowering_config"

type (
	// Attribute is a compile-time constant attached to an operation.
	Attribute interface {
		fmt.Stringer
		// Equal returns true if the other attribute has the same value.
		Equal(Attribute) bool
	}

	// StringAttr is a string attribute.
	StringAttr string

	// IntAttr is an integer attribute.
	IntAttr int64

	// LoweringConfigAttr configures how an operation is tiled
	// and which codegen pipeline lowers it.
	LoweringConfigAttr struct {
		// TileSizes for each tiling level, one size per loop.
		TileSizes [][]int64
		// Pipeline is the name of the codegen pipeline.
		Pipeline string
	}
)

var (
	_ Attribute = StringAttr("")
	_ Attribute = IntAttr(0)
	_ Attribute = (*LoweringConfigAttr)(nil)
)

// Equal returns true if the other attribute is the same string.
func (a StringAttr) Equal(o Attribute) bool {
	other, ok := o.(StringAttr)
	return ok && other == a
}

func (a StringAttr) String() string {
	return strconv.Quote(string(a))
}

// Equal returns true if the other attribute is the same integer.
func (a IntAttr) Equal(o Attribute) bool {
	other, ok := o.(IntAttr)
	return ok && other == a
}

func (a IntAttr) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// Equal returns true if the other attribute is a lowering configuration
// with the same tile sizes and pipeline.
func (a *LoweringConfigAttr) Equal(o Attribute) bool {
	other, ok := o.(*LoweringConfigAttr)
	if !ok {
		return false
	}
	return a.Pipeline == other.Pipeline &&
		slices.EqualFunc(a.TileSizes, other.TileSizes, slices.Equal[[]int64])
}

func (a *LoweringConfigAttr) String() string {
	levels := gxfmt.Join(a.TileSizes, ", ", func(sizes []int64) string {
		return "[" + gxfmt.Join(sizes, ", ", func(s int64) string {
			return strconv.FormatInt(s, 10)
		}) + "]"
	})
	return fmt.Sprintf("#config<tile_sizes = [%s], pipeline = %q>", levels, a.Pipeline)
}

// Attributes is a dictionary of attributes.
// The order in which attributes are set is preserved.
type Attributes struct {
	m *ordered.Map[string, Attribute]
}

func (attrs *Attributes) init() {
	if attrs.m == nil {
		attrs.m = ordered.NewMap[string, Attribute]()
	}
}

// Get returns an attribute given its name or nil.
func (attrs *Attributes) Get(name string) Attribute {
	if attrs.m == nil {
		return nil
	}
	attr, _ := attrs.m.Load(name)
	return attr
}

// Set an attribute.
func (attrs *Attributes) Set(name string, attr Attribute) {
	attrs.init()
	attrs.m.Store(name, attr)
}

// Delete an attribute. Returns true if the attribute was present.
func (attrs *Attributes) Delete(name string) bool {
	if attrs.m == nil {
		return false
	}
	return attrs.m.Delete(name)
}

// Len returns the number of attributes.
func (attrs *Attributes) Len() int {
	if attrs.m == nil {
		return 0
	}
	return attrs.m.Size()
}

// Names returns the names of all attributes in the order they have been set.
func (attrs *Attributes) Names() []string {
	if attrs.m == nil {
		return nil
	}
	return slices.Collect(attrs.m.Keys())
}

// Clone returns a shallow copy of the dictionary.
func (attrs *Attributes) Clone() Attributes {
	if attrs.m == nil {
		return Attributes{}
	}
	return Attributes{m: attrs.m.Clone()}
}

// Equal returns true if both dictionaries contain equal attributes,
// regardless of the order.
func (attrs *Attributes) Equal(other *Attributes) bool {
	if attrs.Len() != other.Len() {
		return false
	}
	for _, name := range attrs.Names() {
		o := other.Get(name)
		if o == nil || !attrs.Get(name).Equal(o) {
			return false
		}
	}
	return true
}

func (attrs *Attributes) String() string {
	if attrs.Len() == 0 {
		return ""
	}
	var ss []string
	for name, attr := range attrs.m.Iter() {
		ss = append(ss, name+" = "+attr.String())
	}
	return "{" + strings.Join(ss, ", ") + "}"
}
