package icmp

import (
	"fmt"
	"net"
)

// Family selects between the two ICMP address families.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// String returns a human-readable name for the family.
func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

const (
	// HeaderLen is the length of the common ICMP header shared by both
	// families: type, code, checksum and the type-specific word.
	HeaderLen = 8

	// DefaultPayloadLen is the classic ping payload size.
	DefaultPayloadLen = 56

	// MaxPayloadLenIPv4 and MaxPayloadLenIPv6 bound the echo payload a
	// single datagram can carry per family.
	MaxPayloadLenIPv4 = 65507
	MaxPayloadLenIPv6 = 131024

	// MaxErrorDatagramLen bounds ICMP error messages, which routers keep
	// within the 576-byte minimum reassembly datagram.
	MaxErrorDatagramLen = 576
)

// MaxPayloadLen returns the largest echo payload the family permits.
func (f Family) MaxPayloadLen() int {
	if f == IPv6 {
		return MaxPayloadLenIPv6
	}
	return MaxPayloadLenIPv4
}

// Reason is a recognized code of an ICMP error message. Messages carrying
// codes outside the registered set decode with a nil Reason; unknown codes
// are a normal occurrence on real networks, not malformed input.
type Reason struct {
	Code uint8
	Text string
}

func (r *Reason) String() string {
	if r == nil {
		return "unknown reason"
	}
	return r.Text
}

// Response is a decoded inbound ICMP message. The set of implementations is
// closed; decoding a type outside it fails with ErrUnknownType.
type Response interface {
	fmt.Stringer
	response()
}

// EchoReply answers an echo request.
type EchoReply struct {
	ID  uint16
	Seq uint16
}

func (*EchoReply) response() {}

func (r *EchoReply) String() string {
	return fmt.Sprintf("echo reply id=%#04x seq=%d", r.ID, r.Seq)
}

// DestinationUnreachable reports that the echo request could not be
// delivered.
type DestinationUnreachable struct {
	Reason *Reason
}

func (*DestinationUnreachable) response() {}

func (r *DestinationUnreachable) String() string {
	return "destination unreachable: " + r.Reason.String()
}

// TimeExceeded reports that the request expired in transit or during
// reassembly.
type TimeExceeded struct {
	Reason *Reason
}

func (*TimeExceeded) response() {}

func (r *TimeExceeded) String() string {
	return "time exceeded: " + r.Reason.String()
}

// ParameterProblem reports a malformed field in the offending datagram.
// Pointer is the byte offset of the problem within that datagram.
type ParameterProblem struct {
	Reason  *Reason
	Pointer uint32
}

func (*ParameterProblem) response() {}

func (r *ParameterProblem) String() string {
	return fmt.Sprintf("parameter problem at offset %d: %s", r.Pointer, r.Reason)
}

// PacketTooBig is the IPv6 report that the request exceeded a link MTU.
type PacketTooBig struct {
	MTU uint32
}

func (*PacketTooBig) response() {}

func (r *PacketTooBig) String() string {
	return fmt.Sprintf("packet too big: mtu=%d", r.MTU)
}

// SourceQuench is the deprecated IPv4 congestion signal.
type SourceQuench struct{}

func (*SourceQuench) response() {}

func (r *SourceQuench) String() string {
	return "source quench"
}

// Redirect is the IPv4 advisory that a better first hop exists. It is
// routing information, not a reply to the outstanding request.
type Redirect struct {
	Reason  *Reason
	Gateway net.IP
}

func (*Redirect) response() {}

func (r *Redirect) String() string {
	return fmt.Sprintf("redirect via %s: %s", r.Gateway, r.Reason)
}
