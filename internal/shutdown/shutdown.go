// Package shutdown implements the run-counter based coordinator that
// the three shutdown triggers (all connections retired, global
// duration elapsed, termination signal) all funnel into.
package shutdown

import "sync/atomic"

// Coordinator tracks how many connections have not yet retired. Per
// spec §9 Design Notes the decrement path is unconditionally atomic
// (no mutex alternative, resolving the source's dual implementation).
type Coordinator struct {
	run atomic.Int64
}

// New returns a Coordinator initialized to the given connection count.
func New(connections int) *Coordinator {
	c := &Coordinator{}
	c.run.Store(int64(connections))
	return c
}

// Retire decrements the outstanding-connection counter. Called when a
// connection reaches its reqs_max ceiling and will not reconnect.
func (c *Coordinator) Retire() {
	c.run.Add(-1)
}

// Done reports whether every connection has retired.
func (c *Coordinator) Done() bool {
	return c.run.Load() <= 0
}

// Force ends the run immediately: used when the global duration
// elapses or a termination signal arrives.
func (c *Coordinator) Force() {
	c.run.Store(0)
}

// Remaining returns the current outstanding-connection count, for
// diagnostics only.
func (c *Coordinator) Remaining() int64 {
	return c.run.Load()
}
