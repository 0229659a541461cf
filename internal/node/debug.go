package node

import "fmt"

// debugAssert panics with a formatted message when built with
// -tags coolreader_debug; it is a no-op in a normal build, matching the
// "fatal in debug builds, sentinel value in release builds" split spec.md
// §7 describes for structural errors. See assert_debug.go / assert_release.go.
func debugAssert(cond bool, format string, args ...interface{}) {
	if !cond {
		assertFailed(fmt.Sprintf(format, args...))
	}
}
