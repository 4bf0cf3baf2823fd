package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Travis-Britz/cfddns/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloudflare serves one zone holding one A record.
type fakeCloudflare struct {
	mu      sync.Mutex
	updates []string
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/zones":
		io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":[{"id":"z1","name":"example.com"}],
			"result_info":{"page":1,"per_page":20,"count":1,"total_count":1,"total_pages":1}}`)
	case r.Method == http.MethodGet && r.URL.Path == "/zones/z1/dns_records":
		io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":[{"id":"r1","type":"A","name":"home.example.com","content":"1.1.1.1"}],
			"result_info":{"page":1,"per_page":100,"count":1,"total_count":1,"total_pages":1}}`)
	case r.Method == http.MethodPut && r.URL.Path == "/zones/z1/dns_records/r1":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.updates = append(f.updates, string(body))
		f.mu.Unlock()
		io.WriteString(w, `{"success":true,"errors":[],"messages":[],"result":{"id":"r1"}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"success":false,"errors":[{"code":7003,"message":"No route for that URI"}],"messages":[],"result":null}`)
	}
}

type env struct {
	cacheFile string
	cf        *fakeCloudflare
}

func setEnv(t *testing.T) *env {
	t.Helper()
	ipSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "203.0.113.7\n")
	}))
	t.Cleanup(ipSrv.Close)
	cf := &fakeCloudflare{}
	cfSrv := httptest.NewServer(cf)
	t.Cleanup(cfSrv.Close)

	e := &env{cacheFile: filepath.Join(t.TempDir(), "config.json"), cf: cf}
	t.Setenv(config.APIKey, "key")
	t.Setenv(config.Email, "ops@example.com")
	t.Setenv(config.DomainName, "example.com")
	t.Setenv(config.Subdomain, "home")
	t.Setenv(config.ConfigFilePath, e.cacheFile)
	t.Setenv(config.LogFilePath, "")
	t.Setenv(config.LogLevel, "error")
	t.Setenv(config.UseProxy, "false")
	t.Setenv(config.IPServicePrimary, ipSrv.URL)
	t.Setenv(config.IPServiceSecondary, ipSrv.URL)
	t.Setenv(config.APIURL, cfSrv.URL)
	t.Setenv(config.FailOnError, "")
	return e
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"ddnscf"}, args...))
	return out.String(), err
}

func TestInitThenRun(t *testing.T) {
	e := setEnv(t)

	out, err := runApp(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, e.cacheFile)

	_, err = runApp(t)
	require.NoError(t, err)

	data, err := os.ReadFile(e.cacheFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"zoneId":"z1","recordId":"r1"}`, string(data))
	require.Len(t, e.cf.updates, 1)
	assert.JSONEq(t, `{"type":"A","name":"home.example.com","content":"203.0.113.7","ttl":1800,"proxied":false}`, e.cf.updates[0])

	out, err = runApp(t, "show", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "zoneId: z1")
	assert.Contains(t, out, "recordId: r1")
}

func TestInitRefusesOverwrite(t *testing.T) {
	e := setEnv(t)
	require.NoError(t, os.WriteFile(e.cacheFile, []byte(`{"zoneId":"z1"}`), 0o600))

	_, err := runApp(t, "init")
	require.Error(t, err)
	data, _ := os.ReadFile(e.cacheFile)
	assert.Equal(t, `{"zoneId":"z1"}`, string(data))
}

func TestStaticIP(t *testing.T) {
	e := setEnv(t)
	require.NoError(t, os.WriteFile(e.cacheFile, []byte(`{"zoneId":"z1","recordId":"r1"}`), 0o600))

	_, err := runApp(t, "--ip", "198.51.100.4", "run")
	require.NoError(t, err)
	require.Len(t, e.cf.updates, 1)
	assert.Contains(t, e.cf.updates[0], `"198.51.100.4"`)
}

func TestMissingCacheFile(t *testing.T) {
	e := setEnv(t)

	_, err := runApp(t, "run")
	assert.ErrorIs(t, err, errRunFailed)
	assert.Empty(t, e.cf.updates)
	_, statErr := os.Stat(e.cacheFile)
	assert.True(t, os.IsNotExist(statErr), "the run must not create the config file")

	t.Setenv(config.FailOnError, "false")
	_, err = runApp(t, "run")
	assert.NoError(t, err, "failures are only logged when FAIL_ON_ERROR is false")

	_, err = runApp(t, "--fail-on-error", "run")
	assert.ErrorIs(t, err, errRunFailed)
}

func TestMissingCredentials(t *testing.T) {
	setEnv(t)
	t.Setenv(config.APIKey, "")

	_, err := runApp(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.APIKey)
}

func TestShowUnknownFormat(t *testing.T) {
	e := setEnv(t)
	require.NoError(t, os.WriteFile(e.cacheFile, []byte(`{}`), 0o600))

	_, err := runApp(t, "show", "--format", "xml")
	assert.Error(t, err)
}
