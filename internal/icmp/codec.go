package icmp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

var (
	// ErrTruncated is returned when the input ends before the common header.
	ErrTruncated = errors.New("icmp: message shorter than header")

	// ErrUnknownType is returned when the type byte is not registered for
	// the codec's family.
	ErrUnknownType = errors.New("icmp: unknown response type")

	// ErrMalformed is returned for messages whose type is known but whose
	// fields violate the format.
	ErrMalformed = errors.New("icmp: malformed message")
)

// typeSourceQuench is the deprecated ICMPv4 type 4, dropped from the IANA
// registry and therefore absent from the x/net constant set.
const typeSourceQuench = 4

// Codec encodes echo requests and decodes inbound messages for one address
// family. Both families share a single implementation parameterized by a
// per-family parser table; V4 and V6 are the only two instances.
type Codec interface {
	Family() Family

	// EncodeEcho serializes an echo request. The checksum field is left
	// zero; the datagram transport recomputes it in the kernel.
	EncodeEcho(id, seq uint16, payload []byte) []byte

	// Decode parses one received datagram into a Response.
	Decode(b []byte) (Response, error)
}

// V4 and V6 are the codecs for the two address families.
var (
	V4 Codec = &codec{
		family:   IPv4,
		echoType: uint8(ipv4.ICMPTypeEcho),
		parsers: map[uint8]parser{
			uint8(ipv4.ICMPTypeEchoReply):              parseEchoReply,
			uint8(ipv4.ICMPTypeDestinationUnreachable): parseUnreachable,
			typeSourceQuench:                           parseSourceQuench,
			uint8(ipv4.ICMPTypeRedirect):               parseRedirect,
			uint8(ipv4.ICMPTypeTimeExceeded):           parseTimeExceeded,
			uint8(ipv4.ICMPTypeParameterProblem):       parseParamProblem,
		},
	}

	V6 Codec = &codec{
		family:   IPv6,
		echoType: uint8(ipv6.ICMPTypeEchoRequest),
		parsers: map[uint8]parser{
			uint8(ipv6.ICMPTypeEchoReply):              parseEchoReply,
			uint8(ipv6.ICMPTypeDestinationUnreachable): parseUnreachable,
			uint8(ipv6.ICMPTypePacketTooBig):           parsePacketTooBig,
			uint8(ipv6.ICMPTypeTimeExceeded):           parseTimeExceeded,
			uint8(ipv6.ICMPTypeParameterProblem):       parseParamProblem,
		},
	}
)

// ForFamily returns the codec for the given family.
func ForFamily(f Family) Codec {
	if f == IPv6 {
		return V6
	}
	return V4
}

type parser func(c *codec, b []byte) (Response, error)

type codec struct {
	family   Family
	echoType uint8
	parsers  map[uint8]parser
}

func (c *codec) Family() Family { return c.family }

func (c *codec) EncodeEcho(id, seq uint16, payload []byte) []byte {
	b := make([]byte, HeaderLen+len(payload))
	b[0] = c.echoType
	// code and checksum stay zero
	binary.BigEndian.PutUint16(b[4:6], id)
	binary.BigEndian.PutUint16(b[6:8], seq)
	copy(b[HeaderLen:], payload)
	return b
}

func (c *codec) Decode(b []byte) (Response, error) {
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTruncated, len(b))
	}
	parse, ok := c.parsers[b[0]]
	if !ok {
		return nil, fmt.Errorf("%w: type %d (%s)", ErrUnknownType, b[0], c.family)
	}
	return parse(c, b)
}

func parseEchoReply(_ *codec, b []byte) (Response, error) {
	if b[1] != 0 {
		return nil, fmt.Errorf("%w: echo reply with code %d", ErrMalformed, b[1])
	}
	return &EchoReply{
		ID:  binary.BigEndian.Uint16(b[4:6]),
		Seq: binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

func parseUnreachable(c *codec, b []byte) (Response, error) {
	return &DestinationUnreachable{Reason: lookupReason(unreachableReasons[c.family], b[1])}, nil
}

func parseTimeExceeded(c *codec, b []byte) (Response, error) {
	return &TimeExceeded{Reason: lookupReason(timeExceededReasons[c.family], b[1])}, nil
}

func parseParamProblem(c *codec, b []byte) (Response, error) {
	p := &ParameterProblem{Reason: lookupReason(paramProblemReasons[c.family], b[1])}
	if c.family == IPv6 {
		p.Pointer = binary.BigEndian.Uint32(b[4:8])
	} else {
		// IPv4 carries a single-byte pointer in the first byte of the word
		p.Pointer = uint32(b[4])
	}
	return p, nil
}

func parsePacketTooBig(_ *codec, b []byte) (Response, error) {
	return &PacketTooBig{MTU: binary.BigEndian.Uint32(b[4:8])}, nil
}

func parseSourceQuench(_ *codec, b []byte) (Response, error) {
	return &SourceQuench{}, nil
}

func parseRedirect(_ *codec, b []byte) (Response, error) {
	gw := make([]byte, 4)
	copy(gw, b[4:8])
	return &Redirect{
		Reason:  lookupReason(redirectReasons, b[1]),
		Gateway: gw,
	}, nil
}

func lookupReason(table map[uint8]string, code uint8) *Reason {
	text, ok := table[code]
	if !ok {
		return nil
	}
	return &Reason{Code: code, Text: text}
}

// Recognized error codes per family, from the IANA ICMP parameter
// registries. Codes missing here decode with a nil Reason.
var unreachableReasons = map[Family]map[uint8]string{
	IPv4: {
		0:  "net unreachable",
		1:  "host unreachable",
		2:  "protocol unreachable",
		3:  "port unreachable",
		4:  "fragmentation needed and DF set",
		5:  "source route failed",
		6:  "destination network unknown",
		7:  "destination host unknown",
		8:  "source host isolated",
		9:  "network administratively prohibited",
		10: "host administratively prohibited",
		11: "network unreachable for type of service",
		12: "host unreachable for type of service",
		13: "communication administratively prohibited",
		14: "host precedence violation",
		15: "precedence cutoff in effect",
	},
	IPv6: {
		0: "no route to destination",
		1: "communication administratively prohibited",
		2: "beyond scope of source address",
		3: "address unreachable",
		4: "port unreachable",
		5: "source address failed ingress/egress policy",
		6: "reject route to destination",
	},
}

var timeExceededReasons = map[Family]map[uint8]string{
	IPv4: {
		0: "time to live exceeded in transit",
		1: "fragment reassembly time exceeded",
	},
	IPv6: {
		0: "hop limit exceeded in transit",
		1: "fragment reassembly time exceeded",
	},
}

var paramProblemReasons = map[Family]map[uint8]string{
	IPv4: {
		0: "pointer indicates the error",
		1: "missing a required option",
		2: "bad length",
	},
	IPv6: {
		0: "erroneous header field",
		1: "unrecognized next header type",
		2: "unrecognized IPv6 option",
	},
}

var redirectReasons = map[uint8]string{
	0: "redirect for the network",
	1: "redirect for the host",
	2: "redirect for the type of service and network",
	3: "redirect for the type of service and host",
}
