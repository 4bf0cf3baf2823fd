package ddns

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DDNSClient performs one synchronization of the A record with the public IP.
type DDNSClient interface {
	RunDDNS(ctx context.Context) error
}

// New constructs a DDNSClient for the record named subdomain ("@" for the zone apex).
//
// A logger is required. A Provider and a Store must be supplied through options;
// the resolver defaults to WebResolver with the default services.
func New(subdomain string, logger *zerolog.Logger, options ...clientOption) (DDNSClient, error) {
	if logger == nil {
		return nil, &ValidationError{Msg: "ddns.New: logger is required"}
	}
	if subdomain == "" {
		subdomain = "@"
	}
	r, err := WebResolver(logger, DefaultPrimaryIPService, DefaultSecondaryIPService)
	if err != nil {
		return nil, err
	}
	c := &client{
		Resolver:  r,
		subdomain: subdomain,
		logger:    logger,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, errors.Wrapf(err, "ddns.New: option %d returned an error", i)
		}
	}

	if c.Provider == nil {
		return nil, &ValidationError{Msg: "ddns.New: no DNS provider was registered - use ddns.UsingCloudflare or ddns.UsingProvider"}
	}
	if c.Store == nil {
		return nil, &ValidationError{Msg: "ddns.New: no store was registered - use ddns.UsingStore"}
	}
	return c, nil
}

type clientOption func(*client) error

// UsingCloudflare registers a Cloudflare provider built from cfg.
func UsingCloudflare(cfg CloudflareConfig) clientOption {
	return func(c *client) (err error) {
		if c.Provider, err = NewCloudflare(cfg, c.logger); err != nil {
			return errors.Wrap(err, "ddns.UsingCloudflare: error creating cloudflare DNS provider")
		}
		return nil
	}
}

// UsingProvider registers an arbitrary Provider.
func UsingProvider(p Provider) clientOption {
	return func(c *client) error {
		if p == nil {
			return &ValidationError{Msg: "ddns.UsingProvider: provider is nil"}
		}
		c.Provider = p
		return nil
	}
}

// UsingResolver replaces the default web resolver.
func UsingResolver(resolver Resolver) clientOption {
	return func(c *client) error {
		if resolver == nil {
			return &ValidationError{Msg: "ddns.UsingResolver: resolver is nil"}
		}
		c.Resolver = resolver
		return nil
	}
}

// UsingWebResolver resolves the public IP through primary, falling back to secondary.
func UsingWebResolver(primary, secondary string) clientOption {
	return func(c *client) (err error) {
		c.Resolver, err = WebResolver(c.logger, primary, secondary)
		return err
	}
}

// UsingStore registers where zone and record identifiers are cached between runs.
func UsingStore(s Store) clientOption {
	return func(c *client) error {
		if s == nil {
			return &ValidationError{Msg: "ddns.UsingStore: store is nil"}
		}
		c.Store = s
		return nil
	}
}

// UsingHTTPClient replaces the HTTP client of the registered resolver and provider.
// Options are applied in order, so it must follow the options it should affect.
//
// The Cloudflare provider keeps its proxy routing: when the client's transport is an
// *http.Transport, a copy of it is routed through ProxyAddr or connects directly,
// as CloudflareConfig.UseProxy says.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *client) error {
		if httpclient == nil {
			return &ValidationError{Msg: "ddns.UsingHTTPClient: client is nil"}
		}
		if r, ok := c.Resolver.(interface{ SetHTTPClient(*http.Client) }); ok {
			r.SetHTTPClient(httpclient)
		}
		if p, ok := c.Provider.(interface{ SetHTTPClient(*http.Client) error }); ok {
			return p.SetHTTPClient(httpclient)
		}
		return nil
	}
}

type client struct {
	Resolver
	Provider
	Store
	logger    *zerolog.Logger
	subdomain string
}

// RunDDNS resolves the public IP, fills in any identifiers missing from the store
// and writes the IP to the record.
//
// The update is sent on every run, even when the IP has not changed.
// Cached identifiers are trusted as-is: if one has gone stale the update fails
// with an *APIError and the cache is left untouched.
func (c *client) RunDDNS(ctx context.Context) (err error) {
	defer func() {
		if ferr := c.flush(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, "error saving config")
		}
	}()

	ip, err := c.Resolve(ctx)
	if err != nil {
		return errors.Wrap(err, "error getting public IP")
	}
	c.logger.Info().Str("ip", ip.String()).Msg("got public ip")

	zoneID, err := c.zoneID(ctx)
	if err != nil {
		return err
	}
	recordID, err := c.recordID(ctx, zoneID)
	if err != nil {
		return err
	}

	result, err := c.UpdateDNSRecord(ctx, zoneID, recordID, c.subdomain, ip)
	if err != nil {
		return errors.Wrap(err, "error updating DNS record")
	}
	ev := c.logger.Info().Str("name", c.RecordName(c.subdomain)).Str("ip", ip.String())
	if len(result) > 0 {
		ev = ev.RawJSON("result", result)
	}
	ev.Msg("dns record updated")
	return nil
}

func (c *client) zoneID(ctx context.Context) (string, error) {
	if id, ok := c.cached(KeyZoneID); ok {
		c.logger.Debug().Str("zone_id", id).Msg("using cached zone id")
		return id, nil
	}
	id, err := c.ZoneID(ctx)
	if err != nil {
		return "", errors.Wrap(err, "error getting zone ID")
	}
	c.Set(KeyZoneID, id)
	return id, nil
}

func (c *client) recordID(ctx context.Context, zoneID string) (string, error) {
	if id, ok := c.cached(KeyRecordID); ok {
		c.logger.Debug().Str("record_id", id).Msg("using cached record id")
		return id, nil
	}
	lookup, err := c.RecordID(ctx, zoneID, c.subdomain)
	if err != nil {
		return "", errors.Wrap(err, "error getting record ID")
	}
	id, found := lookup.ID()
	if !found {
		return "", &RecordNotFoundError{Name: c.RecordName(c.subdomain)}
	}
	c.Set(KeyRecordID, id)
	return id, nil
}

func (c *client) cached(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// flush waits for background persists when the store supports it.
func (c *client) flush() error {
	type waiter interface {
		Wait() error
	}
	if w, ok := c.Store.(waiter); ok {
		return w.Wait()
	}
	return nil
}
