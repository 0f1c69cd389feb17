//go:build padsp_debug

package padsp

import "fmt"

/*------------------------------------------------------------------
 *
 * Purpose: Debug-only invariant checks, compiled in under the
 *	padsp_debug build tag. Release builds use assert_release.go's
 *	no-op instead, matching the teacher's pattern of stripping
 *	verbose diagnostics from production builds rather than paying
 *	for them at every callback invocation.
 *
 *---------------------------------------------------------------*/

func assertInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("padsp: invariant violated: "+format, args...))
	}
}
