// Package worker groups a contiguous shard of connections under one
// goroutine-managed thread, translating the original's one-OS-thread-
// per-worker epoll loop (original_source/src/mb.c's "-t" thread model)
// into one goroutine per connection within the shard (spec §9 Design
// Notes); the Worker itself just starts them, staggers their ramp-up,
// and joins.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rsevilla87/mb/internal/scheduler"
)

// Runnable is satisfied by *engine.Connection; kept as an interface so
// tests can drive a Worker with a fake.
type Runnable interface {
	Run(ctx context.Context)
}

// Worker owns one shard of connections and the goroutines driving them.
type Worker struct {
	id     int
	conns  []Runnable
	rampUp time.Duration
	logger *logrus.Entry
}

// New builds a Worker for shard conns, staggering each connection's
// start across rampUp (spec §4.5 "Per-thread ramp-up": threads start
// at t=0, rampUp/threads, 2*rampUp/threads, ...; here applied at the
// connection level within the shard since each connection is already
// its own goroutine).
func New(id int, conns []Runnable, rampUp time.Duration, logger *logrus.Entry) *Worker {
	return &Worker{id: id, conns: conns, rampUp: rampUp, logger: logger}
}

// Run starts every connection in the shard and blocks until all of them
// have returned (each returns when it retires or ctx is cancelled). A
// shard with no connections
// (more threads configured than available connections) exits
// immediately after logging, matching spec §4.5's edge case.
func (w *Worker) Run(ctx context.Context) {
	if len(w.conns) == 0 {
		if w.logger != nil {
			w.logger.WithField("worker", w.id).Warn("worker: empty shard, nothing to drive")
		}
		return
	}

	stagger := scheduler.ThreadStagger(w.rampUp, len(w.conns))

	var wg sync.WaitGroup
	wg.Add(len(w.conns))
	for i, c := range w.conns {
		go func(i int, c Runnable) {
			defer wg.Done()
			if stagger > 0 {
				timer := time.NewTimer(stagger * time.Duration(i))
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return
				}
			}
			c.Run(ctx)
		}(i, c)
	}
	wg.Wait()
}

// Shard splits total connections across threads workers as evenly as
// possible: worker id gets indices [floor(id*total/threads),
// floor((id+1)*total/threads)) (spec §4.5 "connections are divided as
// evenly as possible across threads").
func Shard[T any](items []T, threads, id int) []T {
	total := len(items)
	if threads <= 0 {
		return items
	}
	lo := id * total / threads
	hi := (id + 1) * total / threads
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	return items[lo:hi]
}
