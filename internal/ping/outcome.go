package ping

import (
	"fmt"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// OutcomeKind classifies the result of one attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means an echo reply answered the attempt's request.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeProtocolError means an ICMP error message answered the
	// attempt, or the received bytes could not be decoded.
	OutcomeProtocolError
	// OutcomeTimeout means the per-attempt timeout expired with no
	// correlating datagram.
	OutcomeTimeout
	// OutcomeIOFailure means a socket operation failed during the attempt.
	OutcomeIOFailure
)

// String returns a short name for the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeProtocolError:
		return "protocol_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeIOFailure:
		return "io_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one attempt. Seq and Size describe the
// request; Elapsed is the measured round trip (or the full timeout for
// OutcomeTimeout). Message is empty on success. Response carries the
// decoded ICMP error for OutcomeProtocolError when one was received.
type Outcome struct {
	Kind     OutcomeKind
	Seq      uint16
	Size     int
	Elapsed  time.Duration
	Message  string
	Response icmp.Response
}

// String renders the outcome in one line.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("seq=%d time=%s", o.Seq, o.Elapsed)
	case OutcomeTimeout:
		return fmt.Sprintf("seq=%d timeout after %s", o.Seq, o.Elapsed)
	default:
		return fmt.Sprintf("seq=%d %s: %s", o.Seq, o.Kind, o.Message)
	}
}
