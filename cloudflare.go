package ddns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"

	"github.com/cloudflare/cloudflare-go"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// RecordTTL is the TTL, in seconds, written on every update.
	RecordTTL = 1800

	// ProxyAddr is the local forwarding endpoint used when proxy routing is enabled.
	ProxyAddr = "127.0.0.1:8888"
)

// CloudflareConfig holds what the Cloudflare provider needs to address one domain.
type CloudflareConfig struct {
	APIKey string
	Email  string
	// Domain is the zone name, e.g. "example.com".
	Domain string
	// BaseURL overrides the Cloudflare API endpoint. Empty means the library default.
	BaseURL string
	// UseProxy routes all provider traffic through ProxyAddr.
	UseProxy bool
}

// NewCloudflare constructs a Provider for cfg.Domain.
// Requests are authenticated with the account email and global API key.
func NewCloudflare(cfg CloudflareConfig, logger *zerolog.Logger) (Provider, error) {
	if logger == nil {
		return nil, &ValidationError{Msg: "ddns.NewCloudflare: logger is required"}
	}
	if cfg.Domain == "" {
		return nil, &ValidationError{Msg: "ddns.NewCloudflare: domain cannot be empty"}
	}

	opts := []cloudflare.Option{
		cloudflare.HTTPClient(newHTTPClient(cfg.UseProxy)),
		// one attempt per call; failures go straight back to the caller
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}
	api, err := cloudflare.New(cfg.APIKey, cfg.Email, opts...)
	if err != nil {
		return nil, &ValidationError{Msg: "error creating cloudflare api client", Err: err}
	}
	if cfg.UseProxy {
		logger.Debug().Str("proxy", ProxyAddr).Msg("routing cloudflare traffic through local proxy")
	}
	return &cloudflareProvider{api: api, domain: cfg.Domain, useProxy: cfg.UseProxy, logger: logger}, nil
}

// newHTTPClient returns a client with its own transport.
// With useProxy every request goes through ProxyAddr; otherwise connections are direct,
// whatever the proxy environment variables say.
func newHTTPClient(useProxy bool) *http.Client {
	t := cleanhttp.DefaultTransport()
	setProxy(t, useProxy)
	return &http.Client{Transport: t}
}

func setProxy(t *http.Transport, useProxy bool) {
	t.Proxy = nil
	if useProxy {
		t.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: ProxyAddr})
	}
}

// routedClient returns a copy of hc whose transport follows the provider's proxy setting.
// Transports other than *http.Transport are used as they are.
func routedClient(hc *http.Client, useProxy bool) *http.Client {
	out := *hc
	rt := hc.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if t, ok := rt.(*http.Transport); ok {
		t = t.Clone()
		setProxy(t, useProxy)
		out.Transport = t
	}
	return &out
}

// cloudflareProvider implements ddns.Provider.
//
// It should be constructed using NewCloudflare.
type cloudflareProvider struct {
	api      *cloudflare.API
	domain   string
	useProxy bool
	logger   *zerolog.Logger
}

// SetHTTPClient replaces the API client's HTTP client, keeping proxy routing as configured.
func (cf *cloudflareProvider) SetHTTPClient(hc *http.Client) error {
	return cloudflare.HTTPClient(routedClient(hc, cf.useProxy))(cf.api)
}

// RecordName implements ddns.Provider.
func (cf *cloudflareProvider) RecordName(subdomain string) string {
	return RecordName(subdomain, cf.domain)
}

// ZoneID returns the identifier of the first zone Cloudflare lists for the configured domain.
func (cf *cloudflareProvider) ZoneID(ctx context.Context) (string, error) {
	cf.logger.Debug().Str("domain", cf.domain).Msg("fetching zone id")

	zones, err := cf.api.ListZones(ctx, cf.domain)
	if err != nil {
		return "", &APIError{Msg: "Failed to fetch Zone ID", Err: err}
	}
	// ListZones reports success:false as an empty list
	if len(zones) == 0 {
		return "", &APIError{Msg: "Failed to fetch Zone ID", Err: errors.Errorf("no zone matches %q", cf.domain)}
	}
	return zones[0].ID, nil
}

// RecordID looks up the A record for subdomain in zoneID.
// A query that succeeds with no match returns NotFound and a nil error.
//
// The query goes through the raw endpoint so that a response reporting success:false
// is an error, not an empty list.
func (cf *cloudflareProvider) RecordID(ctx context.Context, zoneID, subdomain string) (RecordLookup, error) {
	name := RecordName(subdomain, cf.domain)
	cf.logger.Debug().Str("zone_id", zoneID).Str("name", name).Msg("fetching record id")

	q := url.Values{}
	q.Set("type", "A")
	q.Set("name", name)
	endpoint := fmt.Sprintf("/zones/%s/dns_records?%s", url.PathEscape(zoneID), q.Encode())
	resp, err := cf.api.Raw(ctx, http.MethodGet, endpoint, nil, http.Header{})
	if err != nil {
		return NotFound, &APIError{Msg: "Failed to fetch Record ID", Err: err}
	}
	if !resp.Success {
		return NotFound, &APIError{Msg: "Failed to fetch Record ID", Err: errors.Errorf("cloudflare reported failure: %+v", resp.Errors)}
	}

	var records []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return NotFound, &APIError{Msg: "Failed to fetch Record ID", Err: errors.Wrap(err, "error decoding dns records")}
	}
	if len(records) == 0 {
		return NotFound, nil
	}
	return Found(records[0].ID), nil
}

// recordUpdate is the full record body sent with PUT.
// No field is omitempty: proxied=false must reach the API.
type recordUpdate struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

// UpdateDNSRecord overwrites the record with ip, whether or not the address changed.
// It returns the "result" object of Cloudflare's response.
func (cf *cloudflareProvider) UpdateDNSRecord(ctx context.Context, zoneID, recordID, subdomain string, ip netip.Addr) (json.RawMessage, error) {
	body := recordUpdate{
		Type:    "A",
		Name:    RecordName(subdomain, cf.domain),
		Content: ip.String(),
		TTL:     RecordTTL,
		Proxied: false,
	}
	cf.logger.Debug().Str("zone_id", zoneID).Str("record_id", recordID).
		Str("name", body.Name).Str("content", body.Content).Msg("updating dns record")

	endpoint := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(zoneID), url.PathEscape(recordID))
	resp, err := cf.api.Raw(ctx, http.MethodPut, endpoint, body, http.Header{})
	if err != nil {
		return nil, &APIError{Msg: "Failed to update DNS record", Err: err}
	}
	if !resp.Success {
		return nil, &APIError{Msg: "Failed to update DNS record", Err: errors.Errorf("cloudflare reported failure: %+v", resp.Errors)}
	}

	cf.logger.Debug().Str("name", body.Name).Str("content", body.Content).Msg("dns record updated")
	return resp.Result, nil
}
