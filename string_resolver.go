package ddns

import (
	"context"
	"net/netip"
)

// FromString constructs a resolver that always returns the IPv4 address in addr.
// It lets a caller publish a known address without asking any web service.
func FromString(addr string) (Resolver, error) {
	ip, err := parseIPv4(addr)
	if err != nil {
		return nil, &ValidationError{Msg: "invalid static IPv4 address", Err: err}
	}
	return staticResolver(ip), nil
}

type staticResolver netip.Addr

func (s staticResolver) Resolve(context.Context) (netip.Addr, error) {
	return netip.Addr(s), nil
}
