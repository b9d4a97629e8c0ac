package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"endpointhub/internal/config"
	"endpointhub/internal/observability/metrics"
)

const statsInterval = time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long: `Load the module catalog, print the startup banner and serve until
interrupted. Loading fails, and the command exits non-zero, if any module is
malformed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runServe(cmd.Context(), opts.out, cfg, logger)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "HTTP listen address")
	flags.String("tls-cert", "", "path to TLS certificate file")
	flags.String("tls-key", "", "path to TLS private key file")
	flags.Int("rate-limit", 0, "default requests per minute for routes without their own limit")
	flags.StringSlice("cors", nil, "allowed CORS origins, \"*\" for any")
	return cmd
}

func runServe(ctx context.Context, out io.Writer, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger, metrics.Default())
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx, func(addr net.Addr) {
			printBanner(out, a, addr)
		})
	})
	g.Go(func() error {
		reportStats(ctx, a, logger, statsInterval)
		return nil
	})
	return g.Wait()
}

func printBanner(out io.Writer, a *app, addr net.Addr) {
	scheme := "http"
	if a.cfg.Server.TLS.CertFile != "" {
		scheme = "https"
	}
	counts := a.registry.CountByMethod()
	fmt.Fprintln(out, "endpointhub")
	fmt.Fprintf(out, "  listening  %s://%s\n", scheme, addr)
	fmt.Fprintf(out, "  routes     %d (%d GET, %d POST)\n", a.registry.Len(), counts["GET"], counts["POST"])
	fmt.Fprintf(out, "  metadata   %s\n", a.cfg.MetadataRoute())
}

// reportStats logs the call counters periodically until ctx ends.
func reportStats(ctx context.Context, a *app, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := a.calls.Snapshot()
			logger.Info("call stats",
				"total_calls_today", snap.TotalCallsToday,
				"peak_calls_per_minute", snap.PeakCallsPerMinute)
		}
	}
}
