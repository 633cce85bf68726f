// Package manager
// Author: momentics <momentics@gmail.com>
//
// Connection supervisor of the telnet daemon.
//
// A Manager admits incoming connections subject to an address policy and a
// capacity limit, keeps every live session in a registry, and runs one
// housekeeping goroutine that removes closed sessions and escalates idle
// ones:
//
//	idle > warning                 -> IDLE, once per idle episode
//	idle > warning + disconnect    -> TIMEDOUT, on every cycle
//
// The supervisor never clears a session's warned flag; a session that sees
// new input may do so itself.
//
// Housekeeping is fail-stop: a panic escaping a cycle is logged, recorded in
// HousekeepingErr and ends the loop for good. No session is checked again
// until the manager is rebuilt.
package manager
