package main

import (
	"errors"
	"fmt"
	"os"
)

// version/buildTime are set at build time via -ldflags, same convention
// the teacher's cmd/gocontext/main.go uses.
var (
	version   = "dev"
	buildTime = "unknown"
)

// usageError marks a cobra command failure that should exit 2 (spec
// §6's CLI exit-code contract) rather than the generic 1.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func newUsageError(format string, args ...interface{}) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usageErr usageError
		if errors.As(err, &usageErr) {
			return 2
		}
		return 1
	}
	return 0
}
