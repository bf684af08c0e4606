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
	"runtime/debug"

	"github.com/pkg/errors"
)

type (
	// Locator is an IR node with a location.
	Locator interface {
		Location() string
	}

	// ErrorWithLoc is an error attached to an IR node.
	ErrorWithLoc interface {
		error
		Src() Locator
		Err() error
	}

	errorWithLoc struct {
		src Locator
		loc string
		err error
	}
)

// Position adds the location of an IR node to an error.
func Position(src Locator, err error) ErrorWithLoc {
	return errorWithLoc{
		src: src,
		loc: src.Location(), // Cache the location: the node may be erased later.
		err: err,
	}
}

// Errorf returns a formatted error located at an IR node.
func Errorf(src Locator, format string, a ...any) error {
	return Position(src, errors.Errorf(format, a...))
}

// Internal marks an error as internal, potentially adding additional information.
func Internal(err error) error {
	return fmt.Errorf("internal error. This is a bug in the compiler. Please report it. Error:\n%+v", err)
}

// Internalf returns a formatted internal error located at an IR node.
func Internalf(src Locator, format string, a ...any) error {
	return Internal(Errorf(src, format, a...))
}

// Error returns a string description of the error.
func (err errorWithLoc) Error() (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = fmt.Sprintf("recovered from panic when building error message: %T:\n%v", err.err, string(debug.Stack()))
	}()
	return err.loc + ": " + err.err.Error()
}

// Unwrap the error.
func (err errorWithLoc) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err errorWithLoc) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

func (err errorWithLoc) Src() Locator {
	return err.src
}

func (err errorWithLoc) Err() error {
	return err.err
}
