// Package icmp implements the wire codec for ICMPv4 and ICMPv6 echo and
// error messages as delivered by unprivileged datagram sockets.
//
// The codec is deliberately checksum-free: datagram ICMP sockets hand the
// kernel a zeroed checksum field on send and deliver only kernel-validated
// messages on receive. Callers feeding this codec raw captures must add
// their own validation.
package icmp
