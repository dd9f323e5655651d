//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals stop serve gracefully. Process managers send SIGTERM.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
