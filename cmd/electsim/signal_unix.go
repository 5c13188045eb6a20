//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop a running simulation between rounds.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
