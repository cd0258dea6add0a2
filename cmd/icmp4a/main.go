// Package main provides the CLI entry point for the icmp4a measurement tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marsounjan/icmp4a/internal/config"
	"github.com/marsounjan/icmp4a/internal/health"
	"github.com/marsounjan/icmp4a/internal/icmp"
	"github.com/marsounjan/icmp4a/internal/logging"
	"github.com/marsounjan/icmp4a/internal/metrics"
	"github.com/marsounjan/icmp4a/internal/ping"
	"github.com/marsounjan/icmp4a/internal/sweep"
	"github.com/marsounjan/icmp4a/internal/wizard"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "icmp4a",
		Short: "icmp4a - Unprivileged ICMP echo measurement",
		Long: `icmp4a measures reachability and round-trip latency with ICMP echo
requests over unprivileged datagram sockets.

It runs as a one-shot ping command or as a long-lived sweep service
with health and Prometheus metrics endpoints, without requiring
root privileges.`,
		Version: Version,
	}

	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pingCmd() *cobra.Command {
	var (
		count    int
		interval time.Duration
		timeout  time.Duration
		size     int
		iface    string
		useV6    bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "ping <destination>",
		Short: "Ping a single destination",
		Long:  "Send ICMP echo requests to a destination and print per-reply results.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ping.DefaultOptions()
			opts.Count = count
			opts.Interval = interval
			opts.Timeout = timeout
			opts.Size = size
			opts.Interface = iface
			if useV6 {
				opts.Family = icmp.IPv6
			}
			return runPing(args[0], opts, verbose)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 0, "Stop after sending this many requests (0 = until interrupted)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Time between requests")
	cmd.Flags().DurationVarP(&timeout, "timeout", "W", time.Second, "Time to wait for each reply")
	cmd.Flags().IntVarP(&size, "size", "s", icmp.DefaultPayloadLen, "Echo payload size in bytes")
	cmd.Flags().StringVarP(&iface, "interface", "I", "", "Bind the socket to a network interface")
	cmd.Flags().BoolVarP(&useV6, "ipv6", "6", false, "Use ICMPv6")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine internals to stderr")

	return cmd
}

func runPing(destination string, opts ping.Options, verbose bool) error {
	logger := logging.NopLogger()
	if verbose {
		logger = logging.NewLogger("debug", "text")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pinger := ping.New(ping.Config{Logger: logger})
	stream, err := pinger.Interval(ctx, destination, opts)
	if err != nil {
		return err
	}

	fmt.Printf("PING %s (%s): %d data bytes\n", destination, stream.Addr(), opts.Size)

	var last ping.Stats
	for stats := range stream.C {
		last = stats
		printAttempt(stream, stats.Latest)
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printSummary(destination, last)
	return nil
}

func printAttempt(stream *ping.Stream, o ping.Outcome) {
	switch o.Kind {
	case ping.OutcomeSuccess:
		fmt.Printf("%d bytes from %s: icmp_seq=%d time=%.3f ms\n",
			icmp.HeaderLen+o.Size, stream.Addr(), o.Seq, millis(o.Elapsed))
	case ping.OutcomeTimeout:
		fmt.Printf("Request timeout for icmp_seq %d\n", o.Seq)
	case ping.OutcomeProtocolError:
		fmt.Printf("From %s: icmp_seq=%d %s\n", stream.Addr(), o.Seq, o.Message)
	case ping.OutcomeIOFailure:
		fmt.Printf("ping: sendto: %s\n", o.Message)
	}
}

func printSummary(destination string, s ping.Stats) {
	fmt.Printf("\n--- %s ping statistics ---\n", destination)
	fmt.Printf("%s packets transmitted, %s packets received, %.1f%% packet loss\n",
		humanize.Comma(int64(s.Transmitted)), humanize.Comma(int64(s.Received)), s.Loss*100)
	if s.Latency != nil {
		fmt.Printf("round-trip min/avg/max = %.3f/%.3f/%.3f ms\n",
			millis(s.Latency.Min), millis(s.Latency.Avg), millis(s.Latency.Max))
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the measurement service",
		Long:  "Continuously measure the configured targets and expose health and metrics endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to configuration file")

	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}

	family, err := cfg.Family()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	opts := ping.Options{
		Count:     cfg.Ping.Count,
		Interval:  cfg.Ping.Interval,
		Timeout:   cfg.Ping.Timeout,
		Size:      cfg.Ping.Size,
		Family:    family,
		Interface: cfg.Ping.Interface,
	}

	pcfg := ping.Config{
		Logger:  logger,
		Metrics: metrics.Default(),
	}
	sweeper := sweep.New(sweep.Config{
		Ping:   pcfg,
		Rate:   cfg.Rate.PerSecond,
		Burst:  cfg.Rate.Burst,
		Logger: logger,
	})

	tracker := newStatsTracker(len(cfg.Targets))

	if cfg.Health.Enabled {
		hs := health.NewServer(health.ServerConfig{
			Address:      cfg.Health.Address,
			ReadTimeout:  cfg.Health.ReadTimeout,
			WriteTimeout: cfg.Health.WriteTimeout,
		}, tracker)
		hs.SetPinger(ping.New(pcfg))

		if err := hs.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer hs.Stop()
		logger.Info("health server listening",
			slog.String(logging.KeyAddress, hs.Address().String()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("sweep starting",
		slog.Int(logging.KeyCount, len(cfg.Targets)),
		slog.String(logging.KeyFamily, family.String()),
	)

	tracker.setRunning(true)
	for res := range sweeper.Run(ctx, cfg.Targets, opts) {
		if res.Err != nil {
			tracker.fail(res.Target)
			continue
		}
		tracker.update(res)
	}
	tracker.setRunning(false)

	sent, received := tracker.totals()
	logger.Info("sweep finished",
		slog.String("sent", humanize.Comma(int64(sent))),
		slog.String("received", humanize.Comma(int64(received))),
	)
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a config file",
		Long:  "Walk through the service options and write a configuration file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("init requires an interactive terminal")
			}

			result, err := wizard.New().Run()
			if err != nil {
				return err
			}

			fmt.Printf("Configuration written to %s\n", result.ConfigPath)
			return nil
		},
	}
}

// statsTracker aggregates sweep results for the health endpoints.
type statsTracker struct {
	mu      sync.Mutex
	running bool
	total   int
	failed  map[string]bool
	targets map[string]health.TargetStats
}

func newStatsTracker(total int) *statsTracker {
	return &statsTracker{
		total:   total,
		failed:  make(map[string]bool),
		targets: make(map[string]health.TargetStats),
	}
}

func (t *statsTracker) setRunning(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = v
}

func (t *statsTracker) update(res sweep.Result) {
	ts := health.TargetStats{
		Address:     res.Stats.Addr.String(),
		Transmitted: res.Stats.Transmitted,
		Received:    res.Stats.Received,
		Loss:        res.Stats.Loss,
		Outcome:     res.Stats.Latest.Kind.String(),
	}
	if res.Stats.Latency != nil {
		ts.AvgMillis = res.Stats.Latency.Avg.Milliseconds()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.targets[res.Target] = ts
}

func (t *statsTracker) fail(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed[target] = true
}

func (t *statsTracker) totals() (sent, received uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ts := range t.targets {
		sent += ts.Transmitted
		received += ts.Received
	}
	return sent, received
}

// IsRunning implements health.StatsProvider.
func (t *statsTracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Stats implements health.StatsProvider.
func (t *statsTracker) Stats() health.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	targets := make(map[string]health.TargetStats, len(t.targets))
	for k, v := range t.targets {
		targets[k] = v
	}
	return health.Stats{
		TargetCount:   t.total,
		ActiveStreams: t.total - len(t.failed),
		Targets:       targets,
	}
}
