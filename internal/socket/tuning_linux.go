//go:build linux
// +build linux

package socket

import "syscall"

// applyKeepAliveTuning sets the Linux-specific keep-alive probe
// cadence: idle time before the first probe, interval between probes,
// and the probe count before giving up.
func applyKeepAliveTuning(fd int, ka KeepAlive) {
	setsockoptSeconds(fd, syscall.IPPROTO_TCP, syscall.TCP_KEEPIDLE, ka.Idle)
	setsockoptSeconds(fd, syscall.IPPROTO_TCP, syscall.TCP_KEEPINTVL, ka.Intvl)
	if ka.Cnt > 0 {
		_ = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_KEEPCNT, ka.Cnt)
	}
}
