package fuzztest

import (
	"testing"

	"fuzztest/internal/runtime"
)

// RunTests runs the cases of the default suite selected by InitFuzzTest as
// subtests of t.
func RunTests(t *testing.T, rt *runtime.Runtime) {
	t.Helper()
	defaultSuite.Run(t, rt)
}
