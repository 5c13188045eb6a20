//go:build windows

package main

import "os"

// shutdownSignals stop a running simulation between rounds. Windows has no
// SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
