package sweep

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/marsounjan/icmp4a/internal/icmp"
	"github.com/marsounjan/icmp4a/internal/ping"
)

// loopbackConn answers every request with a matching echo reply.
type loopbackConn struct {
	mu      sync.Mutex
	lastSeq [2]byte
	pending bool
	sends   int
}

func (c *loopbackConn) SetLowDelay() error                { return nil }
func (c *loopbackConn) BindToInterface(name string) error { return nil }
func (c *loopbackConn) Close() error                      { return nil }

func (c *loopbackConn) Send(b []byte, dst netip.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeq[0], c.lastSeq[1] = b[6], b[7]
	c.pending = true
	c.sends++
	return len(b), nil
}

func (c *loopbackConn) WaitReadable(ctx context.Context, timeout time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.pending, nil
}

func (c *loopbackConn) Receive(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	reply := []byte{0, 0, 0, 0, 0, 0, c.lastSeq[0], c.lastSeq[1]}
	return copy(b, reply), nil
}

func loopbackOpen(family icmp.Family) (ping.Transport, error) {
	return &loopbackConn{}, nil
}

func fastOpts(count int) ping.Options {
	opts := ping.DefaultOptions()
	opts.Count = count
	opts.Timeout = 50 * time.Millisecond
	opts.Interval = 0
	opts.Size = 8
	return opts
}

func TestSweepAllTargets(t *testing.T) {
	s := New(Config{Ping: ping.Config{OpenTransport: loopbackOpen}})
	targets := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}

	final, errs := s.Collect(context.Background(), targets, fastOpts(2))
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	if len(final) != 3 {
		t.Fatalf("got %d targets, want 3", len(final))
	}
	for _, target := range targets {
		stats, ok := final[target]
		if !ok {
			t.Errorf("no result for %s", target)
			continue
		}
		if stats.Transmitted != 2 || stats.Received != 2 {
			t.Errorf("%s: counters = %d/%d, want 2/2", target, stats.Transmitted, stats.Received)
		}
	}
}

func TestSweepPerSnapshotResults(t *testing.T) {
	s := New(Config{Ping: ping.Config{OpenTransport: loopbackOpen}})

	count := 0
	for res := range s.Run(context.Background(), []string{"192.0.2.1", "192.0.2.2"}, fastOpts(3)) {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Target, res.Err)
		}
		count++
	}
	if count != 6 {
		t.Errorf("got %d results, want 6", count)
	}
}

type failingResolver struct{}

func (failingResolver) LookupAddr(ctx context.Context, host string, family icmp.Family) (netip.Addr, error) {
	return netip.Addr{}, ping.ErrUnknownDestination
}

func TestSweepStartupFailureIsolated(t *testing.T) {
	s := New(Config{Ping: ping.Config{
		OpenTransport: loopbackOpen,
		Resolver:      failingResolver{},
	}})

	final, errs := s.Collect(context.Background(), []string{"192.0.2.1", "bad.invalid"}, fastOpts(1))
	if !errors.Is(errs["bad.invalid"], ping.ErrUnknownDestination) {
		t.Errorf("errs[bad.invalid] = %v, want ErrUnknownDestination", errs["bad.invalid"])
	}
	stats, ok := final["192.0.2.1"]
	if !ok || stats.Received != 1 {
		t.Errorf("healthy target result = %+v (present=%v), want one success", stats, ok)
	}
}

func TestSweepCancellation(t *testing.T) {
	s := New(Config{Ping: ping.Config{OpenTransport: loopbackOpen}})

	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOpts(0)
	opts.Interval = 10 * time.Millisecond

	results := s.Run(ctx, []string{"192.0.2.1"}, opts)
	<-results
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("sweep did not stop after cancellation")
		}
	}
}

func TestLimitedTransportHonorsContext(t *testing.T) {
	conn := &loopbackConn{}
	ctx, cancel := context.WithCancel(context.Background())
	lt := &limitedTransport{
		Transport: conn,
		limiter:   rate.NewLimiter(1, 1),
		ctx:       ctx,
	}

	req := make([]byte, icmp.HeaderLen)
	if _, err := lt.Send(req, netip.MustParseAddr("192.0.2.1")); err != nil {
		t.Fatalf("first send: %v", err)
	}

	cancel()
	if _, err := lt.Send(req, netip.MustParseAddr("192.0.2.1")); err == nil {
		t.Error("second send succeeded after cancellation, want limiter error")
	}
	if conn.sends != 1 {
		t.Errorf("sends = %d, want 1", conn.sends)
	}
}

func TestSweepRateLimiterWiring(t *testing.T) {
	s := New(Config{
		Ping: ping.Config{OpenTransport: loopbackOpen},
		Rate: 1000,
	})
	if s.limiter == nil {
		t.Fatal("limiter not built for positive rate")
	}

	final, errs := s.Collect(context.Background(), []string{"192.0.2.1"}, fastOpts(2))
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if final["192.0.2.1"].Received != 2 {
		t.Errorf("received = %d, want 2", final["192.0.2.1"].Received)
	}
}
