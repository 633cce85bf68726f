// File: cmd/telnetd/main.go
// Package main
// Telnet daemon serving the line echo session.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
