// Package ping implements the ICMP echo measurement engine: per-destination
// sessions, the send/poll/receive/correlate loop, and running statistics.
package ping

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
	"github.com/marsounjan/icmp4a/internal/logging"
	"github.com/marsounjan/icmp4a/internal/metrics"
	"github.com/marsounjan/icmp4a/internal/transport"
)

// Transport is the datagram socket capability consumed by the engine. Each
// stream owns exactly one Transport and closes it on every exit path.
type Transport interface {
	SetLowDelay() error
	BindToInterface(name string) error
	Send(b []byte, dst netip.Addr) (int, error)
	WaitReadable(ctx context.Context, timeout time.Duration) (bool, error)
	Receive(b []byte) (int, error)
	Close() error
}

// OpenTransport opens a Transport for one address family.
type OpenTransport func(family icmp.Family) (Transport, error)

// Config assembles a Pinger. Zero fields fall back to the real datagram
// transport, the standard resolver, a silent logger and no metrics.
type Config struct {
	OpenTransport OpenTransport
	Resolver      Resolver
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Pinger runs measurement streams. It holds no per-stream state and is safe
// for concurrent use; every stream gets its own transport and session.
type Pinger struct {
	open     OpenTransport
	resolver Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Pinger.
func New(cfg Config) *Pinger {
	p := &Pinger{
		open:     cfg.OpenTransport,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if p.open == nil {
		p.open = func(family icmp.Family) (Transport, error) {
			return transport.Open(family)
		}
	}
	if p.resolver == nil {
		p.resolver = &DNSResolver{}
	}
	if p.logger == nil {
		p.logger = logging.NopLogger()
	}
	return p
}

// Stream is a live, cancellable measurement stream. One Stats snapshot is
// delivered on C per attempt; C closes when the stream ends. After C is
// closed, Err reports why the stream stopped early, if it did.
type Stream struct {
	C <-chan Stats

	addr netip.Addr
	err  error
}

// Addr returns the resolved destination address.
func (s *Stream) Addr() netip.Addr { return s.addr }

// Err returns the terminal stream error, valid once C has been closed.
// It is nil after normal completion and ctx.Err() after cancellation.
func (s *Stream) Err() error { return s.err }

// Interval starts a measurement stream toward destination, which is either
// a literal address or a name to resolve. Precondition violations,
// resolution failures and transport setup failures are returned here,
// before any attempt runs; per-attempt failures only ever appear as
// outcomes on the stream.
func (p *Pinger) Interval(ctx context.Context, destination string, opts Options) (*Stream, error) {
	family := opts.Family

	var addr netip.Addr
	literal := false
	if a, err := netip.ParseAddr(destination); err == nil {
		addr = a.Unmap()
		family = icmp.IPv4
		if addr.Is6() {
			family = icmp.IPv6
		}
		literal = true
	}

	if err := opts.validate(family); err != nil {
		return nil, err
	}

	if !literal {
		rctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		a, err := p.resolver.LookupAddr(rctx, destination, family)
		if err != nil {
			return nil, err
		}
		addr = a
	}

	conn, err := p.open(family)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportSetup, err)
	}
	if err := conn.SetLowDelay(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrTransportSetup, err)
	}
	if opts.Interface != "" {
		if err := conn.BindToInterface(opts.Interface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrTransportSetup, err)
		}
	}

	ch := make(chan Stats)
	stream := &Stream{C: ch, addr: addr}

	logger := p.logger.With(
		slog.String(logging.KeyComponent, "ping"),
		slog.String(logging.KeyTarget, destination),
		slog.String(logging.KeyAddress, addr.String()),
		slog.String(logging.KeyFamily, family.String()),
	)

	go p.run(ctx, stream, ch, conn, family, addr, opts, logger)

	return stream, nil
}

// Once runs a single attempt and returns its snapshot.
func (p *Pinger) Once(ctx context.Context, destination string, opts Options) (Stats, error) {
	opts.Count = 1

	stream, err := p.Interval(ctx, destination, opts)
	if err != nil {
		return Stats{}, err
	}

	var last Stats
	got := false
	for st := range stream.C {
		last = st
		got = true
	}
	if !got {
		if stream.Err() != nil {
			return Stats{}, stream.Err()
		}
		return Stats{}, ctx.Err()
	}
	return last, nil
}

func (p *Pinger) run(ctx context.Context, stream *Stream, ch chan Stats, conn Transport,
	family icmp.Family, addr netip.Addr, opts Options, logger *slog.Logger) {
	defer close(ch)
	defer conn.Close()

	if p.metrics != nil {
		p.metrics.StreamStarted()
		defer p.metrics.StreamEnded()
	}

	codec := icmp.ForFamily(family)
	sess := NewSession(codec, opts.Size)
	stats := NewStats(addr)

	// Error messages arrive within the 576-byte minimum datagram; echo
	// replies mirror the request size.
	bufSize := icmp.HeaderLen + opts.Size
	if bufSize < icmp.MaxErrorDatagramLen {
		bufSize = icmp.MaxErrorDatagramLen
	}
	buf := make([]byte, bufSize)

	for attempt := 0; opts.Count == 0 || attempt < opts.Count; attempt++ {
		outcome, ok := p.attempt(ctx, conn, codec, sess, addr, opts, buf)
		if !ok {
			stream.err = ctx.Err()
			return
		}

		p.record(family.String(), outcome)
		stats = stats.Update(outcome)
		logger.Debug("attempt finished",
			slog.Uint64(logging.KeySeq, uint64(outcome.Seq)),
			slog.String(logging.KeyOutcome, outcome.Kind.String()),
			slog.Duration(logging.KeyElapsed, outcome.Elapsed),
		)

		select {
		case ch <- stats:
		case <-ctx.Done():
			stream.err = ctx.Err()
			return
		}

		if opts.Count != 0 && attempt+1 == opts.Count {
			return
		}

		// Keep attempt starts close to the interval cadence: an attempt
		// that consumed its full timeout already ate into the gap.
		delay := opts.Interval
		if outcome.Kind == OutcomeTimeout {
			delay = opts.Interval - opts.Timeout
			if delay < 0 {
				delay = 0
			}
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				stream.err = ctx.Err()
				return
			}
		} else if ctx.Err() != nil {
			stream.err = ctx.Err()
			return
		}
	}
}

// attempt runs one send-wait-receive cycle. The second return value is
// false only when ctx was canceled mid-attempt.
func (p *Pinger) attempt(ctx context.Context, conn Transport, codec icmp.Codec, sess *Session,
	addr netip.Addr, opts Options, buf []byte) (Outcome, bool) {
	start := time.Now()

	req := sess.Next()
	if _, err := conn.Send(req, addr); err != nil {
		return Outcome{
			Kind:    OutcomeIOFailure,
			Seq:     sess.Seq(),
			Size:    opts.Size,
			Elapsed: time.Since(start),
			Message: err.Error(),
		}, true
	}
	// Counted here rather than with the outcome: a failed send never put a
	// datagram on the wire.
	if p.metrics != nil {
		p.metrics.RecordSent(codec.Family().String())
	}

	deadline := start.Add(opts.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return p.timeoutOutcome(sess, opts), true
		}

		ready, err := conn.WaitReadable(ctx, remaining)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, false
			}
			return Outcome{
				Kind:    OutcomeIOFailure,
				Seq:     sess.Seq(),
				Size:    opts.Size,
				Elapsed: time.Since(start),
				Message: err.Error(),
			}, true
		}
		if !ready {
			return p.timeoutOutcome(sess, opts), true
		}

		n, err := conn.Receive(buf)
		if err != nil {
			return Outcome{
				Kind:    OutcomeIOFailure,
				Seq:     sess.Seq(),
				Size:    opts.Size,
				Elapsed: time.Since(start),
				Message: err.Error(),
			}, true
		}
		// Spurious wakeup: readiness was reported but nothing was read.
		if n == 0 {
			continue
		}

		resp, err := codec.Decode(buf[:n])
		if err != nil {
			// Fatal to the attempt, not the stream.
			return Outcome{
				Kind:    OutcomeProtocolError,
				Seq:     sess.Seq(),
				Size:    opts.Size,
				Elapsed: time.Since(start),
				Message: err.Error(),
			}, true
		}

		// Unrelated traffic on the socket; keep polling within the same
		// attempt budget.
		if !sess.Correlate(resp) {
			continue
		}

		return sess.Outcome(resp, opts.Size, time.Since(start)), true
	}
}

func (p *Pinger) timeoutOutcome(sess *Session, opts Options) Outcome {
	return Outcome{
		Kind:    OutcomeTimeout,
		Seq:     sess.Seq(),
		Size:    opts.Size,
		Elapsed: opts.Timeout,
		Message: "request timeout",
	}
}

// record counts the attempt outcome. The sent counter is incremented at
// send time in attempt, not here.
func (p *Pinger) record(family string, o Outcome) {
	if p.metrics == nil {
		return
	}
	switch o.Kind {
	case OutcomeSuccess:
		p.metrics.RecordReply(family, o.Elapsed)
	case OutcomeTimeout:
		p.metrics.RecordTimeout(family)
	case OutcomeIOFailure:
		p.metrics.RecordIOFailure(family)
	case OutcomeProtocolError:
		p.metrics.RecordProtocolError(family)
	}
}
