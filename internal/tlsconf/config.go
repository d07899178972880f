// Package tlsconf builds client-side *tls.Config values, adapted from
// a server-oriented TLS configuration builder (teacher's
// pkg/shockwave/tls/config.go) down to what an HTTP/1.1 load
// generator's client connections need: a selectable minimum/maximum
// protocol version and optional session-ticket resumption.
package tlsconf

import (
	"crypto/tls"
	"fmt"
)

// SSLVersion mirrors the -s/--ssl-version CLI flag (spec §6):
// 0 auto, 1 SSLv3, 2 TLS1.0, 3 TLS1.1, 4 TLS1.2.
type SSLVersion int

const (
	Auto SSLVersion = iota
	SSLv3
	TLS10
	TLS11
	TLS12
)

// versionFor maps the CLI's numeric selector to a crypto/tls version
// constant. SSLv3 has no stdlib constant (removed for insecurity); it
// is rejected explicitly rather than silently downgraded.
func versionFor(v SSLVersion) (uint16, error) {
	switch v {
	case Auto:
		return 0, nil
	case SSLv3:
		return 0, fmt.Errorf("tlsconf: SSLv3 is not supported (insecure, removed from crypto/tls)")
	case TLS10:
		return tls.VersionTLS10, nil
	case TLS11:
		return tls.VersionTLS11, nil
	case TLS12:
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("tlsconf: unknown ssl-version %d", v)
	}
}

// Config bundles the per-template TLS knobs the engine needs.
type Config struct {
	ServerName string
	Version    SSLVersion
	SessionReuse bool
}

// Build returns a *tls.Config. When session reuse is requested the
// config carries a one-entry ClientSessionCache, the closest stdlib
// analogue of reusing a single WOLFSSL_SESSION (spec §4.3 "Writable
// (first time after connect)"). The cache lives in the config, so every
// connection dialed with the same config shares it.
func Build(cfg Config) (*tls.Config, error) {
	minVersion, err := versionFor(cfg.Version)
	if err != nil {
		return nil, err
	}

	tc := &tls.Config{
		ServerName:         cfg.ServerName,
		MinVersion:         minVersion,
		InsecureSkipVerify: false,
	}
	if cfg.Version != Auto {
		// -s pins a specific protocol version (spec §6); without an
		// explicit ceiling, crypto/tls would still negotiate up to its
		// highest supported version.
		tc.MaxVersion = minVersion
	}
	if cfg.SessionReuse {
		tc.ClientSessionCache = tls.NewLRUClientSessionCache(1)
	}
	return tc, nil
}
