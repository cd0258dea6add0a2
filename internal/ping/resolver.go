package ping

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// Resolver turns a destination name into an address of the requested
// family. The engine bounds each call with the stream's timeout.
type Resolver interface {
	LookupAddr(ctx context.Context, host string, family icmp.Family) (netip.Addr, error)
}

// DNSResolver resolves through the standard library resolver.
type DNSResolver struct {
	r net.Resolver
}

// LookupAddr implements Resolver. Lookup failures of any class (unknown
// name, refusal, deadline) are reported as ErrUnknownDestination.
func (d *DNSResolver) LookupAddr(ctx context.Context, host string, family icmp.Family) (netip.Addr, error) {
	network := "ip4"
	if family == icmp.IPv6 {
		network = "ip6"
	}

	addrs, err := d.r.LookupNetIP(ctx, network, host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %v", ErrUnknownDestination, host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: %s: no %s addresses", ErrUnknownDestination, host, network)
	}
	return addrs[0].Unmap(), nil
}
