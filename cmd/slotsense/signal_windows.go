//go:build windows

package main

import "os"

// terminationSignals stop serve gracefully on Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt}
