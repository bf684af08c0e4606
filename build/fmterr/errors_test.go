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
package fmterr_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/remat/build/fmterr"
)

type node string

func (n node) Location() string { return string(n) }

func TestErrors(t *testing.T) {
	var errs fmterr.Errors
	if !errs.Empty() || errs.ToError() != nil {
		t.Fatalf("new error set is not empty")
	}
	errs.Appendf(node("op 1"), "first")
	errs.Push(fmterr.PrefixWith("func @f: "))
	errs.Appendf(node("op 2"), "second")
	if got := len(errs.Errors()); got != 2 {
		t.Errorf("got %d errors before pop but want 2", got)
	}
	errs.Pop()
	errs.Append(nil)
	want := "op 1: first\nfunc @f: op 2: second"
	if diff := cmp.Diff(want, errs.Error()); diff != "" {
		t.Errorf("unexpected error string (-want +got):\n%s", diff)
	}
}

func TestPositionUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := fmterr.Position(node("op 3"), sentinel)
	if !errors.Is(err, sentinel) {
		t.Errorf("errors.Is(%v, sentinel) = false", err)
	}
	if got, want := err.Error(), "op 3: sentinel"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
