//go:build !windows

package mcp

import (
	"os"
	"syscall"
)

// shutdownSignals stop the stdio server.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
