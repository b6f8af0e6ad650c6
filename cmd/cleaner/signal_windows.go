//go:build windows

package main

import "os"

// shutdownSignals cancel a running simulation.
var shutdownSignals = []os.Signal{os.Interrupt}
