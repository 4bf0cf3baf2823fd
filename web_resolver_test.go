package ddns_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/Travis-Britz/cfddns"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func textServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLookupTrimsWhitespace(t *testing.T) {
	primary, _ := textServer(t, http.StatusOK, "  1.2.3.4  \n")
	secondary, hits := textServer(t, http.StatusOK, "9.9.9.9")

	wr, err := ddns.WebResolver(nopLogger(), primary.URL, secondary.URL)
	require.NoError(t, err)
	ip, err := wr.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.2.3.4", ip.String())
	assert.EqualValues(t, 0, atomic.LoadInt32(hits), "secondary should not be asked when primary answers")
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"server error":  {http.StatusInternalServerError, "1.2.3.4"},
		"not found":     {http.StatusNotFound, ""},
		"empty body":    {http.StatusOK, ""},
		"blank body":    {http.StatusOK, " \n"},
		"malformed":     {http.StatusOK, "<html>rate limited</html>"},
		"ipv6 response": {http.StatusOK, "2001:db8::1"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			primary, primaryHits := textServer(t, tc.status, tc.body)
			secondary, _ := textServer(t, http.StatusOK, "5.6.7.8\n")

			wr, err := ddns.WebResolver(nopLogger(), primary.URL, secondary.URL)
			require.NoError(t, err)
			ip, err := wr.Resolve(context.Background())
			require.NoError(t, err)

			assert.Equal(t, netip.MustParseAddr("5.6.7.8"), ip)
			assert.EqualValues(t, 1, atomic.LoadInt32(primaryHits), "primary must not be retried")
		})
	}
}

func TestFallbackOnUnreachablePrimary(t *testing.T) {
	primary, _ := textServer(t, http.StatusOK, "1.2.3.4")
	primaryURL := primary.URL
	primary.Close()
	secondary, _ := textServer(t, http.StatusOK, "5.6.7.8")

	wr, err := ddns.WebResolver(nopLogger(), primaryURL, secondary.URL)
	require.NoError(t, err)
	ip, err := wr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", ip.String())
}

func TestBothServicesFail(t *testing.T) {
	primary, _ := textServer(t, http.StatusBadGateway, "")
	secondary, _ := textServer(t, http.StatusServiceUnavailable, "")

	wr, err := ddns.WebResolver(nopLogger(), primary.URL, secondary.URL)
	require.NoError(t, err)
	ip, err := wr.Resolve(context.Background())
	require.Error(t, err)
	assert.False(t, ip.IsValid())

	var netErr *ddns.NetworkError
	require.True(t, errors.As(err, &netErr), "expected *ddns.NetworkError; got %T", err)
	assert.Equal(t, secondary.URL, netErr.Service)
	assert.Contains(t, netErr.Unwrap().Error(), "503", "the secondary's failure should be reported")
	assert.NotContains(t, err.Error(), "Bad Gateway")
}

func TestWebResolverRequiresLogger(t *testing.T) {
	_, err := ddns.WebResolver(nil, ddns.DefaultPrimaryIPService, ddns.DefaultSecondaryIPService)
	var vErr *ddns.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestFromString(t *testing.T) {
	r, err := ddns.FromString(" 10.0.0.10\n")
	require.NoError(t, err)
	ip, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10", ip.String())

	_, err = ddns.FromString("::1")
	var vErr *ddns.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
