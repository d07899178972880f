// Package stats aggregates per-connection counters once every worker
// has joined and formats the textual report spec §6 defines.
package stats

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Errors holds the three process-wide error counters. Per spec §9
// Design Notes these are atomics unconditionally, mirroring the
// shutdown.Coordinator's run counter rather than the source's
// mutex-guarded alternative.
type Errors struct {
	Conn   atomic.Int64
	Status atomic.Int64
	Parser atomic.Int64
}

// Counted is the subset of a connection's counters Aggregate needs;
// internal/engine.Connection satisfies this.
type Counted interface {
	ReqsTotal() int64
	WrittenTotal() int64
	ReadTotal() int64
}

// Report is the aggregated result of a run, ready to print.
type Report struct {
	Duration time.Duration
	Written  uint64
	Read     uint64
	Hits     uint64
	Errors   struct {
		Conn, Status, Parser int64
	}
}

// Aggregate sums counters across every connection. No synchronization
// is required: this runs after every worker goroutine has joined, so
// there is no concurrent writer left (spec §4.6).
func Aggregate(conns []Counted, elapsed time.Duration, errs *Errors) Report {
	var r Report
	r.Duration = elapsed
	for _, c := range conns {
		r.Hits += uint64(c.ReqsTotal())
		r.Written += uint64(c.WrittenTotal())
		r.Read += uint64(c.ReadTotal())
	}
	if errs != nil {
		r.Errors.Conn = errs.Conn.Load()
		r.Errors.Status = errs.Status.Load()
		r.Errors.Parser = errs.Parser.Load()
	}
	return r
}

// Print writes the report in the exact textual format spec §6
// defines, to w (standard output, or -o/--response-file).
func (r Report) Print(w io.Writer) {
	seconds := r.Duration.Seconds()
	var sentRate, recvRate, hitRate float64
	if seconds > 0 {
		sentRate = float64(r.Written) / seconds
		recvRate = float64(r.Read) / seconds
		hitRate = float64(r.Hits) / seconds
	}

	fmt.Fprintf(w, "Time: %.2fs\n", seconds)
	fmt.Fprintf(w, "Sent: %s, %s/s\n", FormatBytes(r.Written), FormatBytes(uint64(sentRate)))
	fmt.Fprintf(w, "Recv: %s, %s/s\n", FormatBytes(r.Read), FormatBytes(uint64(recvRate)))
	fmt.Fprintf(w, "Hits: %d, %.2f/s\n", r.Hits, hitRate)

	if r.Errors.Conn != 0 || r.Errors.Status != 0 || r.Errors.Parser != 0 {
		fmt.Fprintf(w, "Errors connection: %d, status: %d, parser: %d\n",
			r.Errors.Conn, r.Errors.Status, r.Errors.Parser)
	}
}

var iecSuffixes = []string{"B", "kiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}

// FormatBytes renders n with binary IEC suffixes and two decimals,
// e.g. "1.50 MiB" (spec §6).
func FormatBytes(n uint64) string {
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(iecSuffixes)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, iecSuffixes[i])
}
