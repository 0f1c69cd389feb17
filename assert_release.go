//go:build !padsp_debug

package padsp

// assertInvariant is a no-op in release builds; see assert.go.
func assertInvariant(cond bool, format string, args ...any) {}
