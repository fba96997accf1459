// Package privacy reduces client addresses to values that are safe to log.
package privacy

import (
	"net/netip"
)

const (
	ipv4Bits = 24
	ipv6Bits = 48
)

// ClientNetwork masks a client address to its network: /24 for IPv4 and
// /48 for IPv6. It accepts either "host:port" or a bare address and returns
// "unknown" for anything it cannot parse.
func ClientNetwork(remoteAddr string) string {
	addr, ok := parseAddr(remoteAddr)
	if !ok {
		return "unknown"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6Bits
	if addr.Is4() {
		bits = ipv4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "unknown"
	}
	return prefix.String()
}

func parseAddr(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr(), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
