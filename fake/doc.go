// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable sessions, connections and admission
// policies for the supervisor and transport tests.
package fake
