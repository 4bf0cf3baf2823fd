package ddns

import (
	"context"
	"encoding/json"
	"net/netip"
)

// Resolver looks up the public IPv4 address of this host.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider addresses and updates a single A record at a DNS provider.
type Provider interface {
	// RecordName is the fully qualified name subdomain refers to.
	RecordName(subdomain string) string
	ZoneID(ctx context.Context) (string, error)
	RecordID(ctx context.Context, zoneID, subdomain string) (RecordLookup, error)
	UpdateDNSRecord(ctx context.Context, zoneID, recordID, subdomain string, ip netip.Addr) (json.RawMessage, error)
}

// Store holds resolved identifiers between runs.
//
// Set must make the value visible to Get immediately,
// even if persisting it completes later.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
