package icmp

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================================
// Encoding
// ============================================================================

func TestEncodeEcho_IPv4(t *testing.T) {
	got := V4.EncodeEcho(0x1234, 1, Payload(4))

	want := []byte{0x08, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00, 0x01, 'a', 'b', 'c', 'd'}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeEcho() = % x, want % x", got, want)
	}
}

func TestEncodeEcho_IPv6(t *testing.T) {
	got := V6.EncodeEcho(0xbeef, 0x0102, nil)

	want := []byte{0x80, 0x00, 0x00, 0x00, 0xbe, 0xef, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeEcho() = % x, want % x", got, want)
	}
}

func TestEncodeEcho_ChecksumLeftZero(t *testing.T) {
	b := V4.EncodeEcho(0xffff, 0xffff, Payload(56))
	if b[2] != 0 || b[3] != 0 {
		t.Errorf("checksum bytes = %x %x, want zero", b[2], b[3])
	}
	if len(b) != HeaderLen+56 {
		t.Errorf("len = %d, want %d", len(b), HeaderLen+56)
	}
}

func TestPayload_Pattern(t *testing.T) {
	got := Payload(30)
	want := []byte("abcdefghijklmnopqrstuvwxyzabcd")
	if !bytes.Equal(got, want) {
		t.Errorf("Payload(30) = %q, want %q", got, want)
	}
	if len(Payload(0)) != 0 {
		t.Errorf("Payload(0) not empty")
	}
}

// ============================================================================
// Decoding
// ============================================================================

func TestDecode_EchoReply_IPv4(t *testing.T) {
	resp, err := V4.Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00, 0x07})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	reply, ok := resp.(*EchoReply)
	if !ok {
		t.Fatalf("Decode() = %T, want *EchoReply", resp)
	}
	if reply.ID != 0x1234 {
		t.Errorf("ID = %#04x, want 0x1234", reply.ID)
	}
	if reply.Seq != 7 {
		t.Errorf("Seq = %d, want 7", reply.Seq)
	}
}

func TestDecode_EchoReply_IPv6(t *testing.T) {
	resp, err := V6.Decode([]byte{0x81, 0x00, 0xab, 0xcd, 0xff, 0xfe, 0xff, 0x00})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	reply, ok := resp.(*EchoReply)
	if !ok {
		t.Fatalf("Decode() = %T, want *EchoReply", resp)
	}
	if reply.ID != 0xfffe || reply.Seq != 0xff00 {
		t.Errorf("ID/Seq = %#04x/%d, want 0xfffe/%d", reply.ID, reply.Seq, 0xff00)
	}
}

func TestDecode_EchoReply_NonZeroCode(t *testing.T) {
	_, err := V4.Decode([]byte{0x00, 0x01, 0x00, 0x00, 0x12, 0x34, 0x00, 0x07})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Decode() error = %v, want ErrMalformed", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		if _, err := V4.Decode(make([]byte, n)); !errors.Is(err, ErrTruncated) {
			t.Errorf("Decode(%d bytes) error = %v, want ErrTruncated", n, err)
		}
	}
}

func TestDecode_UnknownType(t *testing.T) {
	// Timestamp request is registered for IPv4 but not part of the codec.
	_, err := V4.Decode([]byte{0x0d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Decode() error = %v, want ErrUnknownType", err)
	}

	// An IPv4 echo reply type byte is not registered for IPv6.
	_, err = V6.Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("V6 Decode() error = %v, want ErrUnknownType", err)
	}
}

func TestDecode_DestinationUnreachable(t *testing.T) {
	tests := []struct {
		name     string
		codec    Codec
		code     uint8
		wantText string
		wantNil  bool
	}{
		{name: "v4 port unreachable", codec: V4, code: 3, wantText: "port unreachable"},
		{name: "v4 admin prohibited", codec: V4, code: 13, wantText: "communication administratively prohibited"},
		{name: "v4 unrecognized code", codec: V4, code: 99, wantNil: true},
		{name: "v6 no route", codec: V6, code: 0, wantText: "no route to destination"},
		{name: "v6 unrecognized code", codec: V6, code: 200, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := byte(3)
			if tt.codec == V6 {
				typ = 1
			}
			resp, err := tt.codec.Decode([]byte{typ, tt.code, 0, 0, 0, 0, 0, 0})
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			du, ok := resp.(*DestinationUnreachable)
			if !ok {
				t.Fatalf("Decode() = %T, want *DestinationUnreachable", resp)
			}
			if tt.wantNil {
				if du.Reason != nil {
					t.Errorf("Reason = %v, want nil", du.Reason)
				}
				return
			}
			if du.Reason == nil || du.Reason.Text != tt.wantText {
				t.Errorf("Reason = %v, want %q", du.Reason, tt.wantText)
			}
		})
	}
}

func TestDecode_TimeExceeded(t *testing.T) {
	resp, err := V4.Decode([]byte{0x0b, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	te, ok := resp.(*TimeExceeded)
	if !ok {
		t.Fatalf("Decode() = %T, want *TimeExceeded", resp)
	}
	if te.Reason == nil || te.Reason.Text != "time to live exceeded in transit" {
		t.Errorf("Reason = %v", te.Reason)
	}
}

func TestDecode_ParameterProblem_PointerWidth(t *testing.T) {
	// IPv4 carries a one-byte pointer; the rest of the word is ignored.
	resp, err := V4.Decode([]byte{0x0c, 0x00, 0x00, 0x00, 0x14, 0xff, 0xff, 0xff})
	if err != nil {
		t.Fatalf("V4 Decode() error = %v", err)
	}
	if pp := resp.(*ParameterProblem); pp.Pointer != 20 {
		t.Errorf("V4 Pointer = %d, want 20", pp.Pointer)
	}

	// IPv6 uses the full 32-bit word.
	resp, err = V6.Decode([]byte{0x04, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02})
	if err != nil {
		t.Fatalf("V6 Decode() error = %v", err)
	}
	pp := resp.(*ParameterProblem)
	if pp.Pointer != 0x00010002 {
		t.Errorf("V6 Pointer = %d, want %d", pp.Pointer, 0x00010002)
	}
	if pp.Reason == nil || pp.Reason.Text != "unrecognized next header type" {
		t.Errorf("V6 Reason = %v", pp.Reason)
	}
}

func TestDecode_PacketTooBig(t *testing.T) {
	resp, err := V6.Decode([]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 0xdc})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	ptb, ok := resp.(*PacketTooBig)
	if !ok {
		t.Fatalf("Decode() = %T, want *PacketTooBig", resp)
	}
	if ptb.MTU != 1500 {
		t.Errorf("MTU = %d, want 1500", ptb.MTU)
	}
}

func TestDecode_Redirect(t *testing.T) {
	resp, err := V4.Decode([]byte{0x05, 0x01, 0x00, 0x00, 192, 168, 1, 1})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rd, ok := resp.(*Redirect)
	if !ok {
		t.Fatalf("Decode() = %T, want *Redirect", resp)
	}
	if rd.Gateway.String() != "192.168.1.1" {
		t.Errorf("Gateway = %s, want 192.168.1.1", rd.Gateway)
	}
	if rd.Reason == nil || rd.Reason.Code != 1 {
		t.Errorf("Reason = %v, want host redirect", rd.Reason)
	}
}

func TestDecode_SourceQuench(t *testing.T) {
	resp, err := V4.Decode([]byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := resp.(*SourceQuench); !ok {
		t.Fatalf("Decode() = %T, want *SourceQuench", resp)
	}
}

func TestDecode_TrailingPayloadIgnoredForErrors(t *testing.T) {
	// Error messages embed a fragment of the offending datagram; the codec
	// does not parse it.
	msg := append([]byte{0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, Payload(48)...)
	resp, err := V4.Decode(msg)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := resp.(*DestinationUnreachable); !ok {
		t.Fatalf("Decode() = %T, want *DestinationUnreachable", resp)
	}
}

func TestForFamily(t *testing.T) {
	if ForFamily(IPv4) != V4 || ForFamily(IPv6) != V6 {
		t.Error("ForFamily returned wrong codec")
	}
	if V4.Family() != IPv4 || V6.Family() != IPv6 {
		t.Error("codec Family() mismatch")
	}
}
