// Command mb drives the HTTP/1.1 load generator: it loads a JSON
// request-template file, expands and partitions the resulting
// connections across worker threads, runs them for a bounded
// duration, and prints aggregate throughput and error statistics
// (spec §6 "External Interfaces").
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rsevilla87/mb/internal/config"
	"github.com/rsevilla87/mb/internal/engine"
	"github.com/rsevilla87/mb/internal/reqbuild"
	"github.com/rsevilla87/mb/internal/scheduler"
	"github.com/rsevilla87/mb/internal/shutdown"
	"github.com/rsevilla87/mb/internal/stats"
	"github.com/rsevilla87/mb/internal/tlsconf"
	"github.com/rsevilla87/mb/internal/worker"
)

// version is the value reported by -v/--version. The User-Agent header
// sent on requests is reqbuild.UserAgent, not derived from this value.
const version = "2.0.0"

type options struct {
	cookies     bool
	durationSec int
	reqFile     string
	respFile    string
	quiet       bool
	rampUpSec   int
	sslVersion  int
	threads     int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "mb",
		Short:   "mb is an HTTP/1.1 load generator",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.SetVersionTemplate("mb {{.Version}}\n")

	flags := cmd.Flags()
	flags.BoolVarP(&opts.cookies, "cookies", "c", false, "capture and echo Set-Cookie values")
	flags.IntVarP(&opts.durationSec, "duration", "d", 0, "test duration in seconds, including ramp-up (required)")
	flags.StringVarP(&opts.reqFile, "request-file", "i", "", "path to the JSON request array (required)")
	flags.StringVarP(&opts.respFile, "response-file", "o", "", "statistics output file (default standard output)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress info-level diagnostics")
	flags.IntVarP(&opts.rampUpSec, "ramp-up", "r", 0, "thread-staggering ramp in seconds (must be < duration)")
	flags.IntVarP(&opts.sslVersion, "ssl-version", "s", 0, "TLS version: 0 auto, 1 SSLv3, 2 TLS1.0, 3 TLS1.1, 4 TLS1.2")
	flags.IntVarP(&opts.threads, "threads", "t", runtime.NumCPU(), "worker thread count")

	cmd.MarkFlagRequired("duration")
	cmd.MarkFlagRequired("request-file")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger := newLogger(opts.quiet)

	if err := validateOptions(opts); err != nil {
		return fmt.Errorf("mb: %w", err)
	}

	out := os.Stdout
	if opts.respFile != "" {
		f, err := os.Create(opts.respFile)
		if err != nil {
			return fmt.Errorf("mb: opening response file: %w", err)
		}
		defer f.Close()
		out = f
	}

	expanded, err := config.Load(opts.reqFile, config.ResolverFromEnv())
	if err != nil {
		return fmt.Errorf("mb: %w", err)
	}
	if len(expanded) == 0 {
		return fmt.Errorf("mb: request file %q expands to zero connections", opts.reqFile)
	}

	coord := shutdown.New(len(expanded))

	conns, err := buildConnections(expanded, opts, coord, logger)
	if err != nil {
		return fmt.Errorf("mb: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	threads := opts.threads
	if threads <= 0 {
		threads = 1
	}
	rampUp := time.Duration(opts.rampUpSec) * time.Second

	runnables := make([]worker.Runnable, len(conns))
	countedConns := make([]stats.Counted, len(conns))
	for i, c := range conns {
		runnables[i] = c
		countedConns[i] = c
	}

	var wg sync.WaitGroup
	for id := 0; id < threads; id++ {
		shard := worker.Shard(runnables, threads, id)
		w := worker.New(id, shard, rampUp, logger.WithField("worker", id))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}

	start := time.Now()
	duration := time.Duration(opts.durationSec) * time.Second

	watchForShutdown(runCtx, cancel, coord, sigCh, duration, logger)

	wg.Wait()
	elapsed := time.Since(start)

	report := stats.Aggregate(countedConns, elapsed, globalErrors)
	report.Print(out)

	return nil
}

// globalErrors is the process-wide error-counter set every Connection
// reports into (spec §5 "Global mutable state": atomics, process-wide).
var globalErrors = &stats.Errors{}

// watchForShutdown blocks until one of the three shutdown triggers
// fires (spec §4.7): the global duration elapses, every connection has
// retired, or a termination signal arrives. On the deadline or a signal
// it forces the coordinator; on any of them it cancels runCtx, which
// closes every connection's socket and stops its loop.
func watchForShutdown(ctx context.Context, cancel context.CancelFunc, coord *shutdown.Coordinator,
	sigCh <-chan os.Signal, duration time.Duration, logger *logrus.Logger) {
	deadline := time.After(duration)
	ticker := time.NewTicker(engine.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			logger.Debug("mb: duration elapsed, shutting down")
			coord.Force()
			cancel()
			return
		case sig := <-sigCh:
			logger.WithField("signal", sig).Info("mb: received termination signal, shutting down")
			coord.Force()
			cancel()
			return
		case <-ticker.C:
			if coord.Done() {
				logger.Debug("mb: all connections retired, shutting down")
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// buildConnections pre-serializes request buffers and TLS
// configuration for every expanded connection, grounded on spec §4.2
// (Request Builder) and §4.3 ("Writable (first time after connect)").
func buildConnections(expanded []*config.Expanded, opts *options, coord *shutdown.Coordinator, logger *logrus.Logger) ([]*engine.Connection, error) {
	tlsBySchemeKey := map[string]*tls.Config{}
	conns := make([]*engine.Connection, 0, len(expanded))

	for _, exp := range expanded {
		built, err := reqbuild.Build(exp.Tmpl, exp.Body, exp.Sibling, "")
		if err != nil {
			return nil, fmt.Errorf("connection[%d]/%d: %w", exp.Tmpl.Index, exp.Sibling, err)
		}

		var tlsConfig *tls.Config
		if exp.Tmpl.Scheme == "https" {
			key := fmt.Sprintf("%s|%t", exp.Tmpl.Host, exp.Tmpl.TLSSessionReuse)
			tc, ok := tlsBySchemeKey[key]
			if !ok {
				tc, err = tlsconf.Build(tlsconf.Config{
					ServerName:   exp.Tmpl.Host,
					Version:      tlsconf.SSLVersion(opts.sslVersion),
					SessionReuse: exp.Tmpl.TLSSessionReuse,
				})
				if err != nil {
					return nil, fmt.Errorf("connection[%d]: %w", exp.Tmpl.Index, err)
				}
				tlsBySchemeKey[key] = tc
			}
			tlsConfig = tc
		}

		dialer := &net.Dialer{Timeout: 10 * time.Second}
		if exp.Tmpl.SourceAddr != nil {
			dialer.LocalAddr = exp.Tmpl.SourceAddr
		}

		entry := logger.WithFields(logrus.Fields{
			"template": exp.Tmpl.Index,
			"sibling":  exp.Sibling,
		})
		conns = append(conns, engine.New(exp, built, dialer, tlsConfig, coord, globalErrors, entry, opts.cookies))
	}

	return conns, nil
}

func validateOptions(opts *options) error {
	if opts.durationSec <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if opts.rampUpSec < 0 {
		return fmt.Errorf("--ramp-up must be >= 0")
	}
	if opts.rampUpSec >= opts.durationSec {
		return fmt.Errorf("--ramp-up (%ds) must be < --duration (%ds)", opts.rampUpSec, opts.durationSec)
	}
	if opts.sslVersion < 0 || opts.sslVersion > 4 {
		return fmt.Errorf("--ssl-version must be in [0, 4]")
	}
	if opts.threads <= 0 {
		return fmt.Errorf("--threads must be > 0")
	}
	return nil
}

func newLogger(quiet bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if quiet {
		logger.SetLevel(logrus.WarnLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
