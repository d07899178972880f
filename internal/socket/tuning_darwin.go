//go:build darwin
// +build darwin

package socket

import "syscall"

// darwinTCPKeepAlive is Darwin's TCP_KEEPALIVE option, the idle-time
// equivalent of Linux's TCP_KEEPIDLE; macOS has no direct
// TCP_KEEPINTVL/TCP_KEEPCNT equivalent exposed via setsockopt.
const darwinTCPKeepAlive = 0x10

func applyKeepAliveTuning(fd int, ka KeepAlive) {
	setsockoptSeconds(fd, syscall.IPPROTO_TCP, darwinTCPKeepAlive, ka.Idle)
}
