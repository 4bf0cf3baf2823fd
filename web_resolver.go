package ddns

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Default public IP services. Both answer with the caller's IPv4 address as plain text.
const (
	DefaultPrimaryIPService   = "https://api.ipify.org"
	DefaultSecondaryIPService = "https://ipv4.icanhazip.com"
)

// WebResolver constructs a resolver which asks an external web service for the public IP address.
//
// The primary service is asked first.
// Any failure there (transport error, non-2xx status, empty or malformed body) falls through to the secondary service,
// without retrying the primary.
// If the secondary also fails, its error is returned inside a *NetworkError.
//
// Both services must respond with an IPv4 address, optionally surrounded by whitespace.
func WebResolver(logger *zerolog.Logger, primary, secondary string) (Resolver, error) {
	if logger == nil {
		return nil, &ValidationError{Msg: "ddns.WebResolver: logger is required"}
	}
	p, err := url.Parse(primary)
	if err != nil {
		return nil, &ValidationError{Msg: "invalid primary ip service URL", Err: err}
	}
	s, err := url.Parse(secondary)
	if err != nil {
		return nil, &ValidationError{Msg: "invalid secondary ip service URL", Err: err}
	}
	return &webResolver{
		primary:    p,
		secondary:  s,
		httpClient: cleanhttp.DefaultClient(),
		logger:     logger,
	}, nil
}

type webResolver struct {
	httpClient *http.Client
	primary    *url.URL
	secondary  *url.URL
	logger     *zerolog.Logger
}

func (wr *webResolver) SetHTTPClient(c *http.Client) { wr.httpClient = c }

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	wr.logger.Debug().Str("service", wr.primary.String()).Msg("fetching public ip")
	ip, err := wr.lookup(ctx, wr.primary)
	if err == nil {
		return ip, nil
	}
	wr.logger.Debug().Err(err).Str("service", wr.secondary.String()).Msg("primary ip service failed, trying fallback")

	ip, err = wr.lookup(ctx, wr.secondary)
	if err != nil {
		return netip.Addr{}, &NetworkError{Service: wr.secondary.String(), Err: err}
	}
	return ip, nil
}

func (wr *webResolver) lookup(ctx context.Context, u *url.URL) (netip.Addr, error) {
	// bounded even when the caller passes context.Background and the client has no timeout
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := wr.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, errors.Errorf("http request returned %s", resp.Status)
	}

	// an address is at most 15 bytes; anything much larger is not an answer
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "error reading response body")
	}
	return parseIPv4(string(body))
}

func parseIPv4(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, errors.New("empty response body")
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "error parsing IP address from response body")
	}
	if !ip.Is4() {
		return netip.Addr{}, errors.Errorf("%s is not an IPv4 address", ip)
	}
	return ip, nil
}
