package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ResolverFromEnv builds a *net.Resolver that dials NAMESERVER0,
// NAMESERVER1, ... (in that order) instead of the system resolver,
// when any such variable is set. With none set it returns nil, which
// callers treat as "use net.DefaultResolver".
func ResolverFromEnv() *net.Resolver {
	var servers []string
	for i := 0; ; i++ {
		v, ok := os.LookupEnv("NAMESERVER" + strconv.Itoa(i))
		if !ok {
			break
		}
		if v != "" {
			servers = append(servers, v)
		}
	}
	if len(servers) == 0 {
		return nil
	}

	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			var lastErr error
			for _, server := range servers {
				addr := server
				if _, _, err := net.SplitHostPort(server); err != nil {
					addr = net.JoinHostPort(server, "53")
				}
				dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				conn, err := d.DialContext(dialCtx, network, addr)
				cancel()
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("config: all NAMESERVER overrides failed: %w", lastErr)
		},
	}
}
