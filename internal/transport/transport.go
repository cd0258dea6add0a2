// Package transport provides the unprivileged datagram ICMP socket used by
// the ping engine: SOCK_DGRAM sockets bound to the ICMP protocol number,
// which let the kernel fill checksums and rewrite echo identifiers without
// requiring raw-socket privileges.
package transport

import "errors"

// ErrUnsupportedPlatform is returned by Open on systems without datagram
// ICMP socket support.
var ErrUnsupportedPlatform = errors.New("transport: datagram icmp sockets unsupported on this platform")

// pollSliceMillis bounds a single poll(2) call so cancellation is observed
// promptly even during long readiness waits.
const pollSliceMillis = 100
