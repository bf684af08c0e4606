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
package fmterr

import (
	"fmt"
	"strings"
)

type (
	contextError struct {
		f      func(error) error
		errors Errors
	}

	// Errors is a set of errors.
	// Errors appended while a context is pushed are wrapped
	// by the context function when the context is popped.
	Errors struct {
		stack []contextError
		errs  []error
	}
)

// Push a new context in the error stack.
func (errs *Errors) Push(f func(error) error) {
	errs.stack = append(errs.stack, contextError{f: f})
}

// Pop removes the last error context in the stack.
// Errors collected in that context are wrapped individually.
func (errs *Errors) Pop() {
	last := errs.stack[len(errs.stack)-1]
	errs.stack = errs.stack[:len(errs.stack)-1]
	for _, err := range last.errors.errs {
		errs.Append(last.f(err))
	}
}

// Append an error to the list of errors.
// Always returns false so that callers can append and return in a single statement.
func (errs *Errors) Append(err error) bool {
	if err == nil {
		return false
	}
	if len(errs.stack) == 0 {
		errs.errs = append(errs.errs, err)
	} else {
		errs.stack[len(errs.stack)-1].errors.Append(err)
	}
	return false
}

// Appendf appends an error located at an IR node.
func (errs *Errors) Appendf(src Locator, format string, a ...any) bool {
	return errs.Append(Errorf(src, format, a...))
}

// Empty returns true if no error has been declared.
func (errs *Errors) Empty() bool {
	if errs == nil {
		return true
	}
	if len(errs.errs) > 0 {
		return false
	}
	for _, st := range errs.stack {
		if !st.errors.Empty() {
			return false
		}
	}
	return true
}

// Errors returns the list of all collected errors,
// including errors of contexts that have not been popped.
func (errs *Errors) Errors() []error {
	all := append([]error{}, errs.errs...)
	for _, st := range errs.stack {
		for _, err := range st.errors.Errors() {
			all = append(all, st.f(err))
		}
	}
	return all
}

// Error returns the current set of errors as a string, one error per line.
func (errs *Errors) Error() string {
	all := errs.Errors()
	ss := make([]string, len(all))
	for i, err := range all {
		ss[i] = err.Error()
	}
	return strings.Join(ss, "\n")
}

// ToError returns the errors as an error interface.
func (errs *Errors) ToError() error {
	if errs.Empty() {
		return nil
	}
	return errs
}

// Format writes the error into the state of the formatter.
func (errs *Errors) Format(s fmt.State, verb rune) {
	flag := ""
	if s.Flag('+') {
		flag = "+"
	}
	format := fmt.Sprintf("%%%s%s\n", flag, string(verb))
	for _, e := range errs.Errors() {
		fmt.Fprintf(s, format, e)
	}
}

// String representation of the error.
func (errs *Errors) String() string {
	return errs.Error()
}
