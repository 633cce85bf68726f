// Package policy
// Author: momentics <momentics@gmail.com>
//
// Pluggable address-based admission policies for the connection supervisor.
//
// Policies are looked up by identifier from the "connectionfilter" setting
// and configured from the settings under "<listener>.connectionfilter.".
// Built in:
//
//	cidr      allow/deny lists of addresses and prefixes
//	ratelimit per-address token bucket on connection attempts
//	redis     deny set kept in Redis, shared between daemons
//
// Embedders add their own with Register before the manager is built.
package policy
