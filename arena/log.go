package arena

import (
	"fmt"
	"os"
)

// Runtime log flags for allocation and purge tracing - controlled by the
// ARENA_LOG_ALLOC and ARENA_LOG_PURGE env vars.
var (
	logAlloc = os.Getenv("ARENA_LOG_ALLOC") != ""
	logPurge = os.Getenv("ARENA_LOG_PURGE") != ""
)

func allocLogf(format string, args ...any) {
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ARENA] "+format+"\n", args...)
	}
}

func purgeLogf(format string, args ...any) {
	if logPurge {
		fmt.Fprintf(os.Stderr, "[PURGE] "+format+"\n", args...)
	}
}

// errorf reports misuse (invalid free, double free). Always emitted:
// these indicate a bug in the caller, never normal operation.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "arena: "+format+"\n", args...)
}
