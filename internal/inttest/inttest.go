// Package inttest is a helper for gating tests that touch the real
// filesystem with real archive files instead of in-memory fixtures.
package inttest

import "testing"

// Skip skips the current test or benchmark unless this package was built
// with the "integration" build tag.
//
// Use it as an annotation at the top of the test function, the same way
// (*testing.T).Parallel() is used:
//
//	func TestScanRealTree(t *testing.T) {
//		inttest.Skip(t)
//		// ...
//	}
func Skip(t testing.TB) {
	t.Helper()
	if skip {
		t.Skip("skipping integration test; build with -tags integration to run")
	}
}
