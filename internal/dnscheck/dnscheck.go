// Package dnscheck asks a nameserver what a record currently resolves to.
package dnscheck

import (
	"context"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// DefaultServer is queried when no nameserver is given.
const DefaultServer = "1.1.1.1:53"

// Answer is one A record from a response.
type Answer struct {
	Addr netip.Addr
	TTL  time.Duration
}

// LookupA queries server for the A records of name.
// An NXDOMAIN or empty answer returns no records and no error.
func LookupA(ctx context.Context, server, name string) ([]Answer, error) {
	if server == "" {
		server = DefaultServer
	}
	c := &dns.Client{Timeout: 5 * time.Second}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)

	r, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s for %s", server, name)
	}
	switch r.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	default:
		return nil, errors.Errorf("query %s for %s: %s", server, name, dns.RcodeToString[r.Rcode])
	}

	var out []Answer
	for _, rr := range r.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(a.A.To4())
		if !ok {
			continue
		}
		out = append(out, Answer{Addr: addr, TTL: time.Duration(a.Hdr.Ttl) * time.Second})
	}
	return out, nil
}

// Matches reports whether any answer equals ip.
func Matches(answers []Answer, ip netip.Addr) bool {
	for _, a := range answers {
		if a.Addr == ip {
			return true
		}
	}
	return false
}
