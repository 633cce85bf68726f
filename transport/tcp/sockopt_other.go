//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import "syscall"

// reuseControl is a no-op outside Linux.
func reuseControl(network, address string, c syscall.RawConn) error { return nil }
