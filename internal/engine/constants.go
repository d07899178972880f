package engine

import "time"

// ScratchSize is the bound on a single recv into the response scanner,
// per spec §4.4 ("32 KiB receive scratch buffer") and §5's
// bounded-work-per-dispatch rule ("one recv of ≤32KiB").
const ScratchSize = 32 * 1024

// WatchdogInterval is the interval at which cmd/mb's shutdown watcher
// polls the shared run counter for "every connection retired" (spec
// §4.4, §4.7). The global deadline and signals are observed directly.
const WatchdogInterval = 100 * time.Millisecond

const (
	headerSetCookie       = "set-cookie"
	headerConnectionLower = "connection"
	valueCloseLower       = "close"
)
