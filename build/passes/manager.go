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

// Package passes runs transformation passes over the functions of a module.
package passes

import (
	"github.com/gx-org/remat/build/fmterr"
	"github.com/gx-org/remat/build/ir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type (
	// FuncPass transforms one function at a time.
	FuncPass interface {
		// Name of the pass.
		Name() string
		// RunOnFunc transforms a function.
		// An error aborts the remaining passes on the function.
		RunOnFunc(*ir.Func) error
	}

	// Option configures a manager.
	Option func(*Manager)

	// Manager runs a pipeline of passes.
	Manager struct {
		passes []FuncPass
		verify bool
		log    logrus.FieldLogger
	}
)

// WithVerifier verifies functions after each pass.
func WithVerifier() Option {
	return func(m *Manager) {
		m.verify = true
	}
}

// WithLogger sets the logger of the manager.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager returns a manager without any pass.
func NewManager(opts ...Option) *Manager {
	m := &Manager{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add passes at the end of the pipeline.
func (m *Manager) Add(passes ...FuncPass) *Manager {
	m.passes = append(m.passes, passes...)
	return m
}

// Passes returns the names of the passes in the pipeline.
func (m *Manager) Passes() []string {
	names := make([]string, len(m.passes))
	for i, p := range m.passes {
		names[i] = p.Name()
	}
	return names
}

// RunOnFunc runs all the passes on a function in order.
// The first error stops the pipeline for the function.
func (m *Manager) RunOnFunc(f *ir.Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmterr.ToStackTraceError(fmterr.Internalf(f, "panic while running passes: %v", r))
		}
	}()
	for _, p := range m.passes {
		log := m.log.WithFields(logrus.Fields{"pass": p.Name(), "func": f.Name()})
		log.Debug("running pass")
		if err := p.RunOnFunc(f); err != nil {
			return errors.WithMessagef(err, "pass %s failed on @%s", p.Name(), f.Name())
		}
		if !m.verify {
			continue
		}
		if err := ir.Verify(f); err != nil {
			return errors.WithMessagef(err, "invalid IR after pass %s", p.Name())
		}
	}
	return nil
}

// Run the pipeline on all the functions of a module.
// A failure on one function does not prevent the other functions
// from being transformed. All the errors are returned.
func (m *Manager) Run(mod *ir.Module) error {
	var errs error
	for _, f := range mod.Funcs() {
		errs = multierr.Append(errs, m.RunOnFunc(f))
	}
	return errs
}
