// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the TCP accept loop of the telnet daemon. Accepted
// connections are handed to an Admitter, normally a manager.Manager.
package tcp
