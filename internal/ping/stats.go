package ping

import (
	"net/netip"
	"time"
)

// Latency holds round-trip statistics over the successful attempts of a
// stream. Avg is rounded to the nearest millisecond.
type Latency struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
}

// Stats is an immutable snapshot of a stream after some number of attempts.
// One snapshot is emitted per attempt; Update produces the next snapshot
// without mutating the receiver.
type Stats struct {
	Addr        netip.Addr
	Transmitted uint64
	Received    uint64
	Loss        float64
	Latest      Outcome
	Latency     *Latency

	rttSum time.Duration
}

// NewStats returns the empty snapshot for a destination. With nothing
// transmitted the loss ratio is defined as 1.
func NewStats(addr netip.Addr) Stats {
	return Stats{Addr: addr, Loss: 1}
}

// Update folds one attempt outcome into the snapshot. Latency accumulators
// move only on success; Latency stays nil until the first success.
func (s Stats) Update(o Outcome) Stats {
	s.Transmitted++
	if o.Kind == OutcomeSuccess {
		s.Received++
		s.rttSum += o.Elapsed

		lat := Latency{Min: o.Elapsed, Max: o.Elapsed}
		if s.Latency != nil {
			lat = *s.Latency
			if o.Elapsed < lat.Min {
				lat.Min = o.Elapsed
			}
			if o.Elapsed > lat.Max {
				lat.Max = o.Elapsed
			}
		}
		lat.Avg = (s.rttSum / time.Duration(s.Received)).Round(time.Millisecond)
		s.Latency = &lat
	}

	s.Loss = 1 - float64(s.Received)/float64(s.Transmitted)
	s.Latest = o
	return s
}
