//go:build linux

package transport

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// lowDelayTOS is the IPTOS_LOWDELAY bit, applied to both the IPv4 TOS byte
// and the IPv6 traffic class.
const lowDelayTOS = 0x10

// Socket is one unprivileged datagram ICMP socket. It is owned by exactly
// one measurement stream and is not safe for concurrent use beyond Close.
type Socket struct {
	fd     int
	family icmp.Family

	closeOnce sync.Once
	closeErr  error
}

// Open creates a datagram socket bound to the family's ICMP protocol.
// On Linux this requires the net.ipv4.ping_group_range sysctl to include
// the process group; no capabilities are needed.
func Open(family icmp.Family) (*Socket, error) {
	domain, proto := unix.AF_INET, unix.IPPROTO_ICMP
	if family == icmp.IPv6 {
		domain, proto = unix.AF_INET6, unix.IPPROTO_ICMPV6
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, fmt.Errorf("open %s datagram icmp socket: %w", family, err)
	}

	return &Socket{fd: fd, family: family}, nil
}

// Family returns the socket's address family.
func (s *Socket) Family() icmp.Family { return s.family }

// SetLowDelay marks outgoing datagrams latency-sensitive so queueing does
// not distort the measurement.
func (s *Socket) SetLowDelay() error {
	var err error
	if s.family == icmp.IPv6 {
		err = unix.SetsockoptInt(s.fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, lowDelayTOS)
	} else {
		err = unix.SetsockoptInt(s.fd, unix.IPPROTO_IP, unix.IP_TOS, lowDelayTOS)
	}
	if err != nil {
		return fmt.Errorf("set low-delay option: %w", err)
	}
	return nil
}

// BindToInterface restricts the socket to a named network interface.
func (s *Socket) BindToInterface(name string) error {
	if err := unix.BindToDevice(s.fd, name); err != nil {
		return fmt.Errorf("bind to interface %q: %w", name, err)
	}
	return nil
}

// Send writes one datagram to the destination. The kernel computes the
// ICMP checksum and may rewrite the echo identifier.
func (s *Socket) Send(b []byte, dst netip.Addr) (int, error) {
	var sa unix.Sockaddr
	if s.family == icmp.IPv6 {
		sa = &unix.SockaddrInet6{Addr: dst.As16()}
	} else {
		sa = &unix.SockaddrInet4{Addr: dst.Unmap().As4()}
	}

	for {
		err := unix.Sendto(s.fd, b, 0, sa)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("send to %s: %w", dst, err)
		}
		return len(b), nil
	}
}

// WaitReadable blocks until the socket has a datagram to read, the timeout
// expires, or ctx is canceled. It polls in short slices so cancellation is
// observed promptly.
func (s *Socket) WaitReadable(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		slice := int(remaining / time.Millisecond)
		if slice > pollSliceMillis {
			slice = pollSliceMillis
		}
		if slice < 1 {
			slice = 1
		}

		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, slice)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		if n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			return true, nil
		}
	}
}

// Receive reads one datagram into b. A datagram longer than b is silently
// truncated to the buffer's capacity. A spurious poll wakeup with nothing
// to read returns 0 with no error so the caller resumes its readiness wait.
func (s *Socket) Receive(b []byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(s.fd, b, 0)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("receive: %w", err)
		}
		return n, nil
	}
}

// Close releases the socket. It is safe to call more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = unix.Close(s.fd)
	})
	return s.closeErr
}
