// Package registry keeps the statically declared fuzz tests in declaration
// order.
package registry

import (
	"errors"

	"fuzztest/internal/corpus"
	"fuzztest/internal/types"
)

// Factory builds the runnable of a fuzz test bound to a configuration.
type Factory func(cfg corpus.Configuration) types.Runnable

type Descriptor struct {
	SuiteName   string
	TestName    string
	Location    types.Location
	UsesFixture bool
	Make        Factory
}

func (d Descriptor) FullName() string {
	return d.SuiteName + "." + d.TestName
}

// Registry is not safe for concurrent registration; tests are declared during
// package initialization.
type Registry struct {
	tests []Descriptor
}

func New() *Registry {
	return &Registry{}
}

// Register appends a declared test. Full names are expected to be unique but
// this is not enforced: a duplicate is kept and shows up twice everywhere.
func (r *Registry) Register(d Descriptor) error {
	if d.SuiteName == "" || d.TestName == "" {
		return errors.New("fuzz test needs a suite and a test name")
	}
	if d.Make == nil {
		return errors.New("fuzz test " + d.FullName() + " has no factory")
	}
	r.tests = append(r.tests, d)
	return nil
}

func (r *Registry) ForEach(fn func(d Descriptor)) {
	for _, d := range r.tests {
		fn(d)
	}
}

func (r *Registry) Len() int {
	return len(r.tests)
}

func (r *Registry) FullNames() []string {
	names := make([]string, 0, len(r.tests))
	for _, d := range r.tests {
		names = append(names, d.FullName())
	}
	return names
}

// Find returns the first test declared with fullName.
func (r *Registry) Find(fullName string) (Descriptor, bool) {
	for _, d := range r.tests {
		if d.FullName() == fullName {
			return d, true
		}
	}
	return Descriptor{}, false
}
