// Package sweep runs measurement streams against many targets concurrently
// and merges their snapshots into a single result channel.
package sweep

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"

	"golang.org/x/time/rate"

	"github.com/marsounjan/icmp4a/internal/icmp"
	"github.com/marsounjan/icmp4a/internal/logging"
	"github.com/marsounjan/icmp4a/internal/ping"
	"github.com/marsounjan/icmp4a/internal/transport"
)

// Config contains sweep configuration.
type Config struct {
	// Ping assembles the underlying engine. When rate limiting is on, its
	// transports are wrapped so the limit covers all targets together.
	Ping ping.Config

	// Rate bounds aggregate sends per second across all targets; zero
	// disables the limiter.
	Rate float64

	// Burst is the limiter burst size.
	Burst int

	// Logger for logging
	Logger *slog.Logger
}

// Result is one snapshot from one target's stream. Err is set on the final
// result of a target whose stream ended abnormally; Stats then carries
// whatever was observed up to that point.
type Result struct {
	Target string
	Stats  ping.Stats
	Err    error
}

// Sweeper fans measurement streams out over a target list.
type Sweeper struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Sweeper.
func New(cfg Config) *Sweeper {
	s := &Sweeper{cfg: cfg, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return s
}

// Run starts one stream per target and returns the merged result channel.
// The channel closes once every stream has finished. Stream startup errors
// (bad options, unknown names, socket setup) surface as a single Result
// with Err set for that target; the other targets keep running.
func (s *Sweeper) Run(ctx context.Context, targets []string, opts ping.Options) <-chan Result {
	pcfg := s.cfg.Ping
	if s.limiter != nil {
		base := pcfg.OpenTransport
		if base == nil {
			base = func(family icmp.Family) (ping.Transport, error) {
				return transport.Open(family)
			}
		}
		pcfg.OpenTransport = func(family icmp.Family) (ping.Transport, error) {
			t, err := base(family)
			if err != nil {
				return nil, err
			}
			return &limitedTransport{Transport: t, limiter: s.limiter, ctx: ctx}, nil
		}
	}
	pinger := ping.New(pcfg)

	out := make(chan Result)
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			s.runTarget(ctx, pinger, target, opts, out)
		}(target)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (s *Sweeper) runTarget(ctx context.Context, pinger *ping.Pinger, target string, opts ping.Options, out chan<- Result) {
	stream, err := pinger.Interval(ctx, target, opts)
	if err != nil {
		s.logger.Warn("target failed to start",
			slog.String(logging.KeyTarget, target),
			slog.String(logging.KeyError, err.Error()),
		)
		select {
		case out <- Result{Target: target, Err: err}:
		case <-ctx.Done():
		}
		return
	}

	var last ping.Stats
	for stats := range stream.C {
		last = stats
		select {
		case out <- Result{Target: target, Stats: stats}:
		case <-ctx.Done():
			// Keep draining so the stream can close its transport.
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		select {
		case out <- Result{Target: target, Stats: last, Err: err}:
		case <-ctx.Done():
		}
	}
}

// Collect runs a bounded sweep to completion and returns the final snapshot
// per target. Targets that failed to start map to a zero Stats; their error
// is returned in errs keyed by target.
func (s *Sweeper) Collect(ctx context.Context, targets []string, opts ping.Options) (map[string]ping.Stats, map[string]error) {
	final := make(map[string]ping.Stats, len(targets))
	errs := make(map[string]error)

	for res := range s.Run(ctx, targets, opts) {
		if res.Err != nil {
			errs[res.Target] = res.Err
			continue
		}
		final[res.Target] = res.Stats
	}
	return final, errs
}

// limitedTransport throttles sends through a shared limiter. The sweep ctx
// unblocks waiters on shutdown.
type limitedTransport struct {
	ping.Transport
	limiter *rate.Limiter
	ctx     context.Context
}

func (t *limitedTransport) Send(b []byte, dst netip.Addr) (int, error) {
	if err := t.limiter.Wait(t.ctx); err != nil {
		return 0, err
	}
	return t.Transport.Send(b, dst)
}
