//go:build !linux

package transport

import (
	"context"
	"net/netip"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// Socket is a placeholder on platforms without datagram ICMP sockets.
type Socket struct {
	family icmp.Family
}

// Open always fails on this platform.
func Open(family icmp.Family) (*Socket, error) {
	return nil, ErrUnsupportedPlatform
}

func (s *Socket) Family() icmp.Family { return s.family }

func (s *Socket) SetLowDelay() error { return ErrUnsupportedPlatform }

func (s *Socket) BindToInterface(name string) error { return ErrUnsupportedPlatform }

func (s *Socket) Send(b []byte, dst netip.Addr) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func (s *Socket) WaitReadable(ctx context.Context, timeout time.Duration) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func (s *Socket) Receive(b []byte) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func (s *Socket) Close() error { return nil }
