// Package socket applies TCP tuning to client connections: keep-alive
// probe parameters and linger-on-close, both configurable per
// connection template (spec §3 "TCP" and "Close policy"). Adapted
// from a server-tuning library's Apply(cfg, conn) shape to the
// client-side knobs this spec actually needs.
package socket

import (
	"net"
	"syscall"
	"time"
)

// KeepAlive mirrors config.TCPKeepAlive: whether probing is enabled
// and, when it is, the idle/interval/count parameters.
type KeepAlive struct {
	Enable bool
	Idle   time.Duration
	Intvl  time.Duration
	Cnt    int
}

// ApplyKeepAlive enables or disables TCP keep-alive probing on conn
// and, when enabled and parameters are given, tunes idle/interval/
// probe-count. Disabling is a critical option (fails loudly); tuning
// the probe cadence is best-effort, matching the teacher's
// non-critical/critical split in socket/tuning.go.
func ApplyKeepAlive(conn net.Conn, ka KeepAlive) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetKeepAlive(ka.Enable); err != nil {
		return err
	}
	if !ka.Enable {
		return nil
	}
	if ka.Idle > 0 {
		_ = tcpConn.SetKeepAlivePeriod(ka.Idle)
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return nil //nolint:nilerr // best-effort fine-tuning only
	}
	_ = rawConn.Control(func(fd uintptr) {
		applyKeepAliveTuning(int(fd), ka)
	})
	return nil
}

// ApplyLinger sets SO_LINGER when the template requests a graceful,
// bounded-wait close (spec §3 "Close policy: ... linger flag with
// linger seconds").
func ApplyLinger(conn net.Conn, enable bool, seconds int) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok || !enable {
		return nil
	}
	return tcpConn.SetLinger(seconds)
}

// ApplyNoDelay disables Nagle's algorithm, the one cross-platform,
// always-on tuning knob the teacher's Apply() treats as critical.
func ApplyNoDelay(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tcpConn.SetNoDelay(true)
}

// setsockoptSeconds is shared by the platform files: TCP_KEEPIDLE/
// TCP_KEEPINTVL/TCP_KEEPALIVE all take a whole-seconds value.
func setsockoptSeconds(fd int, level, opt int, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int(d.Seconds())
	if secs <= 0 {
		secs = 1
	}
	_ = syscall.SetsockoptInt(fd, level, opt, secs)
}
