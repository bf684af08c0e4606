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

package passes_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/remat/build/ir"
	"github.com/gx-org/remat/build/ir/irb"
	"github.com/gx-org/remat/build/passes"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type recordPass struct {
	name  string
	trace *[]string
	run   func(*ir.Func) error
}

func (p recordPass) Name() string { return p.name }

func (p recordPass) RunOnFunc(f *ir.Func) error {
	*p.trace = append(*p.trace, p.name+"@"+f.Name())
	if p.run == nil {
		return nil
	}
	return p.run(f)
}

func newModule(names ...string) *ir.Module {
	vec := ir.Tensor(dtype.Float32, 2)
	mod := ir.NewModule()
	for _, name := range names {
		b := irb.NewFunc(name, vec)
		if err := mod.Add(b.Return(b.Square(b.Param(0)))); err != nil {
			panic(err)
		}
	}
	return mod
}

var errPass = errors.New("pass error")

func TestOrder(t *testing.T) {
	var trace []string
	mgr := passes.NewManager().Add(
		recordPass{name: "a", trace: &trace},
		recordPass{name: "b", trace: &trace},
	)
	if err := mgr.Run(newModule("f", "g")); err != nil {
		t.Fatalf("%+v", err)
	}
	want := []string{"a@f", "b@f", "a@g", "b@g"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Errorf("unexpected pass order (-want +got):\n%s", diff)
	}
}

func TestErrorStopsFunc(t *testing.T) {
	var trace []string
	failOnF := func(f *ir.Func) error {
		if f.Name() == "f" {
			return errPass
		}
		return nil
	}
	mgr := passes.NewManager().Add(
		recordPass{name: "a", trace: &trace, run: failOnF},
		recordPass{name: "b", trace: &trace},
	)
	err := mgr.Run(newModule("f", "g"))
	if !errors.Is(err, errPass) {
		t.Fatalf("got error %v but want %v", err, errPass)
	}
	if !strings.Contains(err.Error(), "pass a failed on @f") {
		t.Errorf("error %q does not name the pass and the function", err)
	}
	want := []string{"a@f", "a@g", "b@g"}
	if diff := cmp.Diff(want, trace); diff != "" {
		t.Errorf("unexpected pass order (-want +got):\n%s", diff)
	}
}

func TestErrorsAggregated(t *testing.T) {
	var trace []string
	mgr := passes.NewManager().Add(recordPass{
		name:  "fail",
		trace: &trace,
		run:   func(*ir.Func) error { return errPass },
	})
	err := mgr.Run(newModule("f", "g", "h"))
	if errs := multierr.Errors(err); len(errs) != 3 {
		t.Errorf("got %d errors but want 3: %v", len(errs), err)
	}
}

func breakTerminator(f *ir.Func) error {
	f.Body().Append(ir.NewConstant(1, ir.Float32Type()))
	return nil
}

func TestVerifier(t *testing.T) {
	tests := []struct {
		name    string
		opts    []passes.Option
		wantErr bool
	}{
		{name: "without verifier"},
		{name: "with verifier", opts: []passes.Option{passes.WithVerifier()}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var trace []string
			mgr := passes.NewManager(test.opts...).Add(recordPass{name: "break", trace: &trace, run: breakTerminator})
			err := mgr.Run(newModule("f"))
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Errorf("got error %v but want error: %t", err, test.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "invalid IR after pass break") {
				t.Errorf("error %q does not name the pass", err)
			}
		})
	}
}

func TestPanic(t *testing.T) {
	var trace []string
	mgr := passes.NewManager().Add(recordPass{
		name:  "panic",
		trace: &trace,
		run:   func(*ir.Func) error { panic("boom") },
	})
	err := mgr.Run(newModule("f"))
	if err == nil {
		t.Fatal("got no error but want an internal error")
	}
	for _, want := range []string{"internal error", "@f", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}
}
