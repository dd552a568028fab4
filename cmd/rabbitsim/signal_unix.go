//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals abort a running batch.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
