//go:build !linux && !darwin
// +build !linux,!darwin

package socket

// applyKeepAliveTuning is a no-op on platforms without per-parameter
// keep-alive tuning; SetKeepAlive(true) alone still applies.
func applyKeepAliveTuning(fd int, ka KeepAlive) {}
