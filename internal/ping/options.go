package ping

import (
	"fmt"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// Options controls one measurement stream.
type Options struct {
	// Count bounds the number of attempts; zero means unbounded.
	Count int

	// Timeout is the per-attempt reply deadline. It also bounds name
	// resolution.
	Timeout time.Duration

	// Interval is the target cadence between attempt starts.
	Interval time.Duration

	// Size is the echo payload length in bytes.
	Size int

	// Family selects the address family when the destination is a name.
	// A literal destination address overrides it.
	Family icmp.Family

	// Interface optionally binds the stream's socket to a named network
	// interface.
	Interface string
}

// DefaultOptions returns the classic ping defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:  time.Second,
		Interval: time.Second,
		Size:     icmp.DefaultPayloadLen,
		Family:   icmp.IPv4,
	}
}

// validate checks the stream preconditions against the resolved family.
// Violations are reported before any socket work.
func (o Options) validate(family icmp.Family) error {
	if o.Count < 0 {
		return fmt.Errorf("%w: count %d must be positive or zero for unbounded", ErrInvalidArgument, o.Count)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout %s must be positive", ErrInvalidArgument, o.Timeout)
	}
	if o.Interval < 0 {
		return fmt.Errorf("%w: interval %s must not be negative", ErrInvalidArgument, o.Interval)
	}
	if o.Size <= 0 {
		return fmt.Errorf("%w: packet size %d must be positive", ErrInvalidArgument, o.Size)
	}
	if max := family.MaxPayloadLen(); o.Size > max {
		return fmt.Errorf("%w: packet size %d exceeds %s maximum %d", ErrInvalidArgument, o.Size, family, max)
	}
	return nil
}
