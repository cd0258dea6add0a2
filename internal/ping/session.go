package ping

import (
	"math/rand/v2"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// Session holds the per-destination state of one measurement stream: a
// random identifier fixed for the session's lifetime, a wrapping sequence
// counter, and the fixed request payload.
//
// The identifier is sent on the wire but never used for correlation: the
// kernel rewrites the echo identifier on datagram ICMP sockets, so the
// sequence number is the sole discriminant.
type Session struct {
	codec   icmp.Codec
	id      uint16
	seq     uint16
	payload []byte
}

// NewSession creates a session with a fresh random identifier and a
// payload of the requested size. The first request carries sequence 1.
func NewSession(codec icmp.Codec, size int) *Session {
	return &Session{
		codec:   codec,
		id:      uint16(rand.Uint32()),
		payload: icmp.Payload(size),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uint16 { return s.id }

// Seq returns the sequence number of the most recently encoded request.
func (s *Session) Seq() uint16 { return s.seq }

// Next advances the sequence counter (wrapping 65535 to 0) and returns the
// encoded echo request for the new counter value.
func (s *Session) Next() []byte {
	s.seq++
	return s.codec.EncodeEcho(s.id, s.seq, s.payload)
}

// Correlate reports whether a decoded response answers the outstanding
// request. Echo replies match on sequence number only. Error responses
// always correlate: their embedded original-datagram fragment is not parsed,
// so they are attributed to the current attempt best-effort. Redirects never
// correlate; they are advisory routing information and the attempt keeps
// waiting.
func (s *Session) Correlate(resp icmp.Response) bool {
	switch r := resp.(type) {
	case *icmp.EchoReply:
		return r.Seq == s.seq
	case *icmp.Redirect:
		return false
	default:
		return true
	}
}

// Outcome maps a correlated response to the attempt's result.
func (s *Session) Outcome(resp icmp.Response, size int, elapsed time.Duration) Outcome {
	if _, ok := resp.(*icmp.EchoReply); ok {
		return Outcome{
			Kind:    OutcomeSuccess,
			Seq:     s.seq,
			Size:    size,
			Elapsed: elapsed,
		}
	}
	return Outcome{
		Kind:     OutcomeProtocolError,
		Seq:      s.seq,
		Size:     size,
		Elapsed:  elapsed,
		Message:  resp.String(),
		Response: resp,
	}
}
