// Package session
// Author: momentics <momentics@gmail.com>
//
// Session registry for the connection supervisor.
// Each entry maps to one accepted telnet connection executing in its own
// goroutine. The registry keeps the active sessions in admission order and a
// FIFO of sessions that reported themselves closed, both behind one mutex.
//
// Admission reserves capacity before a session is constructed, so the
// capacity check and the insert form a single critical section.
package session
