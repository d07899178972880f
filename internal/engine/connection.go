// Package engine implements the per-connection HTTP/1.1 client state
// machine: socket lifecycle, optional TLS handshake, request write
// (including chunked streaming of random bodies), response read and
// parse, keep-alive accounting and reconnection (spec §4.3).
//
// Grounded on shockwave/pkg/shockwave/http11/connection.go's
// lock-free atomic state machine and Serve loop, adapted from a
// server Connection (accept → parse request → handler → respond) to
// a client Connection (connect → build/write request → parse
// response → decide keep-alive) and from a single-threaded event loop
// dispatch to one goroutine per connection, per spec §9 Design Notes.
package engine

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rsevilla87/mb/internal/config"
	"github.com/rsevilla87/mb/internal/reqbuild"
	"github.com/rsevilla87/mb/internal/scheduler"
	"github.com/rsevilla87/mb/internal/shutdown"
	"github.com/rsevilla87/mb/internal/socket"
	"github.com/rsevilla87/mb/internal/stats"
)

// ConnState is a coarse, externally observable phase, mirroring the
// teacher's ConnectionState enum (http11/connection.go) but named
// after this engine's own state list (spec §4.3).
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateHandshaking
	StateWriting
	StateReading
	StateDelaying
	StateRetired
)

// scratchPool recycles the *bufio.Reader each connection reads its
// response through. A literal single scratch buffer shared across a
// worker's connections (the C engine's single-threaded-loop approach)
// would race now that every connection runs on its own goroutine, so
// pooling takes its place (spec §4.4, SPEC_FULL.md §4.3).
var scratchPool = sync.Pool{
	New: func() any { return bufio.NewReaderSize(nil, ScratchSize) },
}

// Dialer is the subset of net.Dialer the engine needs; a field so
// tests can substitute a fake without touching the real network.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connection is one client connection after "clients" expansion: a
// template reference shared with its siblings, its own pre-serialized
// request buffers, and its own socket and counters (spec §3).
type Connection struct {
	tmpl           *config.Immutable
	sibling        int
	duplicate      bool
	built          *reqbuild.Built
	cookiesEnabled bool

	addr      string
	dialer    Dialer
	tlsConfig *tls.Config
	logger    *logrus.Entry

	coord *shutdown.Coordinator
	errs  *stats.Errors

	state atomic.Int32

	// connMu guards conn against the concurrent close cancelSocket
	// issues from Run's context.AfterFunc registration: blocking
	// net.Conn Read/Write calls don't observe ctx.Done() on their own,
	// so a forced Close() from outside is how "cancellation causes the
	// socket to close on loop teardown" (spec §5) is actually made
	// bounded within one watchdog tick rather than only at the next
	// I/O-free loop boundary.
	connMu sync.Mutex
	conn   net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer

	firstConnect time.Time
	cookies      atomic.Pointer[string]

	reqsCurrent  atomic.Int64 // requests on current TCP connection
	reqsTotal    atomic.Int64
	connections  atomic.Int64
	writtenTotal atomic.Int64
	readTotal    atomic.Int64
}

// New builds one Connection from an expanded template and its
// pre-built request buffers.
func New(exp *config.Expanded, built *reqbuild.Built, dialer Dialer, tlsConfig *tls.Config,
	coord *shutdown.Coordinator, errs *stats.Errors, logger *logrus.Entry, cookiesEnabled bool) *Connection {
	return &Connection{
		tmpl:           exp.Tmpl,
		sibling:        exp.Sibling,
		duplicate:      exp.Duplicate,
		built:          built,
		cookiesEnabled: cookiesEnabled,
		addr:           net.JoinHostPort(exp.Tmpl.Host, itoa(exp.Tmpl.Port)),
		dialer:         dialer,
		tlsConfig:      tlsConfig,
		coord:          coord,
		errs:           errs,
		logger:         logger,
	}
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

// Counted interface accessors (internal/stats.Counted).
func (c *Connection) ReqsTotal() int64    { return c.reqsTotal.Load() }
func (c *Connection) WrittenTotal() int64 { return c.writtenTotal.Load() }
func (c *Connection) ReadTotal() int64    { return c.readTotal.Load() }
func (c *Connection) State() ConnState    { return ConnState(c.state.Load()) }

func (c *Connection) setState(s ConnState) { c.state.Store(int32(s)) }

// Run drives the connection's full lifecycle until it retires (spec
// §4.3's reqs_max ceiling) or the worker's context is cancelled (global
// duration elapsed, a shutdown signal arrived, or every connection
// retired). Connect and I/O errors never end Run on their own: it
// reconnects after them.
func (c *Connection) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, c.cancelSocket)
	defer stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(ctx); err != nil {
			c.errs.Conn.Add(1)
			if c.logger != nil {
				c.logger.WithError(err).Debug("engine: connect failed")
			}
			if !c.sleepBackoff(ctx) {
				return
			}
			continue
		}

		for {
			if ctx.Err() != nil {
				c.closeSocket()
				return
			}

			close, retire, err := c.writeAndRead(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, ErrParser) && !errors.Is(err, ErrShortStatusLine) {
					// A parser error already counted itself in
					// writeAndRead; anything else reaching here is a
					// socket I/O failure (spec §4.3 "Errors"). A
					// cancelled ctx means this close was shutdown-
					// induced (cancelSocket), not a connection error.
					c.errs.Conn.Add(1)
				}
				c.closeSocket()
				if c.tmpl.ReqsMax > 0 && c.reqsTotal.Load() >= int64(c.tmpl.ReqsMax) {
					// The failed request was the last one reqs_max
					// allows: retire instead of reconnecting.
					c.retire()
					return
				}
				break // reconnect
			}
			if retire {
				c.retire()
				return
			}
			if close {
				c.closeSocket()
				break
			}

			if !c.delay(ctx) {
				c.closeSocket()
				return
			}
		}
	}
}

// connect opens the TCP socket (optionally TLS), applies tuning, and
// records the time of the connection's first successful connect (spec
// §4.3 "Connecting"). No per-handshake timestamp is kept.
func (c *Connection) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	rawConn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}

	_ = socket.ApplyNoDelay(rawConn)
	_ = socket.ApplyKeepAlive(rawConn, socket.KeepAlive{
		Enable: c.tmpl.TCP.Enable,
		Idle:   time.Duration(c.tmpl.TCP.Idle) * time.Second,
		Intvl:  time.Duration(c.tmpl.TCP.Intvl) * time.Second,
		Cnt:    c.tmpl.TCP.Cnt,
	})

	conn := rawConn
	if c.tlsConfig != nil {
		c.setState(StateHandshaking)
		tlsConn := tls.Client(rawConn, c.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	br := scratchPool.Get().(*bufio.Reader)
	br.Reset(conn)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.br = br
	c.bw = bufio.NewWriter(conn)
	c.connections.Add(1)
	// cstats.reqs = 0 on every new TCP connection (spec §4.3
	// "Reading"), not only the keep-alive-ceiling close path: an
	// I/O-error reconnect or a server-initiated close below the
	// keep-alive ceiling must not carry a stale count forward.
	c.reqsCurrent.Store(0)
	if c.firstConnect.IsZero() {
		c.firstConnect = time.Now()
	}
	return nil
}

// writeAndRead performs exactly one request/response cycle: builds
// and writes the request (spec §4.3 "Writing"), reads and parses the
// response (spec §4.3 "Reading"), and returns the continuation
// decision. err is non-nil for any I/O or protocol failure; close
// reports the connection should be closed (keep-alive exhausted,
// explicit close, or server-requested close); retire reports the
// connection has reached reqs_max and must not reconnect.
func (c *Connection) writeAndRead(ctx context.Context) (closeConn, retire bool, err error) {
	c.setState(StateWriting)

	reqsTotal := c.reqsTotal.Load()
	reqsCurrent := c.reqsCurrent.Load()

	headerCClose := c.tmpl.Close.Client ||
		(c.tmpl.ReqsMax > 0 && reqsTotal+1 == int64(c.tmpl.ReqsMax)) ||
		(c.tmpl.KeepAliveReqs > 0 && reqsCurrent+1 == int64(c.tmpl.KeepAliveReqs))

	buf := c.built.KeepAlive
	if headerCClose {
		buf = c.built.Close
	}
	if cookies := c.cookies.Load(); c.cookiesEnabled && cookies != nil && *cookies != "" {
		// Cookies were captured after buf was built; rebuild with the
		// captured cookie string so it is echoed on this and later
		// requests (spec §4.2 "Cookie: <cookies> CRLF if captured").
		rebuilt, berr := reqbuild.Build(c.tmpl, c.built.Body, c.sibling, *cookies)
		if berr == nil {
			c.built = rebuilt
			buf = c.built.KeepAlive
			if headerCClose {
				buf = c.built.Close
			}
		}
	}

	n, werr := c.bw.Write(buf)
	c.writtenTotal.Add(int64(n))
	if werr != nil {
		return false, false, werr
	}

	if c.built.RandomBody != nil {
		written, cerr := writeChunkedBody(c.bw, c.built.RandomBody)
		c.writtenTotal.Add(written)
		if cerr != nil {
			return false, false, cerr
		}
	}

	if err := c.bw.Flush(); err != nil {
		return false, false, err
	}

	c.reqsCurrent.Add(1)
	c.reqsTotal.Add(1)

	c.setState(StateReading)
	resp, rerr := readResponse(c.br, c.cookiesEnabled)
	c.readTotal.Add(resp.bytesRead)
	if rerr != nil {
		if errors.Is(rerr, ErrParser) || errors.Is(rerr, ErrShortStatusLine) {
			c.errs.Parser.Add(1)
		}
		return false, false, rerr
	}

	if resp.status >= 400 {
		c.errs.Status.Add(1)
	}
	if resp.cookies != "" {
		cookies := resp.cookies
		c.cookies.Store(&cookies)
	}

	newReqsTotal := c.reqsTotal.Load()
	newReqsCurrent := c.reqsCurrent.Load()

	if c.tmpl.ReqsMax > 0 && newReqsTotal == int64(c.tmpl.ReqsMax) {
		return false, true, nil
	}

	shouldClose := headerCClose || resp.connClose ||
		(c.tmpl.KeepAliveReqs > 0 && newReqsCurrent == int64(c.tmpl.KeepAliveReqs))
	if shouldClose {
		return true, false, nil
	}

	return false, false, nil
}

// delay waits the jittered, ramp-up-scaled inter-request delay (spec
// §4.3 "Delaying"). Returns false if the context was cancelled first.
func (c *Connection) delay(ctx context.Context) bool {
	c.setState(StateDelaying)

	base := time.Duration(scheduler.JitterMillis(c.tmpl.Delay.Min, c.tmpl.Delay.Max)) * time.Millisecond
	if base <= 0 && c.tmpl.RampUp <= 0 {
		return true
	}

	elapsed := time.Since(c.firstConnect)
	d := scheduler.ConnRampDelay(time.Duration(c.tmpl.RampUp)*time.Millisecond, elapsed, base)
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepBackoff pauses briefly after a failed connect attempt before
// retrying, bounded by ctx cancellation.
func (c *Connection) sleepBackoff(ctx context.Context) bool {
	timer := time.NewTimer(50 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Connection) closeSocket() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		_ = socket.ApplyLinger(conn, c.tmpl.Close.Linger, c.tmpl.Close.LingerSeconds)
		_ = conn.Close()
	}
	if c.br != nil {
		c.br.Reset(nil)
		scratchPool.Put(c.br)
		c.br = nil
	}
	c.bw = nil
}

// cancelSocket force-closes whatever socket is currently open, so a
// blocked Read/Write (which does not observe ctx.Done() on its own)
// unblocks with an error within one watchdog tick of cancellation
// instead of running until the remote end acts.
func (c *Connection) cancelSocket() {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// retire marks the connection as having reached reqs_max: it closes
// its socket, does not reconnect, and reports to the shutdown
// coordinator (spec §4.7). Cookies are cleared, matching the Open
// Question resolution in SPEC_FULL.md §9 (persist across reconnects,
// clear on explicit retirement).
func (c *Connection) retire() {
	c.setState(StateRetired)
	c.closeSocket()
	c.cookies.Store(nil)
	c.coord.Retire()
}
