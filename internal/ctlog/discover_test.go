package ctlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mikepage/dns-monitor/internal/cache"
)

type crtEntry struct {
	NameValue string `json:"name_value"`
	NotAfter  string `json:"not_after"`
}

func crtServer(t *testing.T, fetches *int32, entries []crtEntry) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		assert.Equal(t, "%.example.com", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(entries)
	}))
}

func notAfter(d time.Duration) string {
	return time.Now().Add(d).Format("2006-01-02T15:04:05")
}

func TestDiscoverExtractsActiveSubdomains(t *testing.T) {
	var fetches int32
	srv := crtServer(t, &fetches, []crtEntry{
		{NameValue: "www.example.com\napi.example.com", NotAfter: notAfter(24 * time.Hour)},
		{NameValue: "*.example.com\nexample.com", NotAfter: notAfter(24 * time.Hour)},
		{NameValue: "old.example.com", NotAfter: notAfter(-24 * time.Hour)},
		{NameValue: "spam@example.com.example.com\nother.net", NotAfter: notAfter(24 * time.Hour)},
	})
	defer srv.Close()

	d := New(nil, srv.URL, nil)
	result := d.Discover(context.Background(), "example.com")

	assert.Equal(t, 4, result.TotalCertificates)
	assert.Equal(t, 3, result.ActiveCertificates)
	// Expired certs, wildcard entries, the bare domain, foreign names and
	// malformed SANs all drop out.
	assert.Equal(t, []string{"api", "www"}, result.Subdomains)
	assert.False(t, result.Cached)
}

func TestDiscoverSecondCallServedFromCache(t *testing.T) {
	var fetches int32
	srv := crtServer(t, &fetches, []crtEntry{
		{NameValue: "staging.example.com", NotAfter: notAfter(24 * time.Hour)},
	})
	defer srv.Close()

	d := New(cache.NewMemory(), srv.URL, nil)

	first := d.Discover(context.Background(), "example.com")
	assert.False(t, first.Cached)
	assert.Equal(t, []string{"staging"}, first.Subdomains)

	second := d.Discover(context.Background(), "example.com")
	assert.True(t, second.Cached)
	assert.Equal(t, first.Subdomains, second.Subdomains)
	assert.Equal(t, first.TotalCertificates, second.TotalCertificates)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "cached call must not hit the upstream")
}

func TestDiscoverStaleEntryTriggersRefetch(t *testing.T) {
	var fetches int32
	srv := crtServer(t, &fetches, []crtEntry{
		{NameValue: "www.example.com", NotAfter: notAfter(240 * time.Hour)},
	})
	defer srv.Close()

	d := New(cache.NewMemory(), srv.URL, nil)
	d.Discover(context.Background(), "example.com")

	// Entries older than the freshness window are treated as absent.
	d.now = func() time.Time { return time.Now().Add(FreshnessWindow + time.Minute) }

	result := d.Discover(context.Background(), "example.com")
	assert.False(t, result.Cached)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestDiscoverUpstreamFailureYieldsZeroResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(nil, srv.URL, nil)
	result := d.Discover(context.Background(), "example.com")
	assert.Empty(t, result.Subdomains)
	assert.Zero(t, result.TotalCertificates)
	assert.Zero(t, result.ActiveCertificates)
}

func TestDiscoverUnparsableResponseYieldsZeroResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>rate limited</html>"))
	}))
	defer srv.Close()

	d := New(nil, srv.URL, nil)
	result := d.Discover(context.Background(), "example.com")
	assert.Empty(t, result.Subdomains)
	assert.Zero(t, result.TotalCertificates)
}

func TestExtractSubdomain(t *testing.T) {
	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"www.example.com", "www", true},
		{"Deep.Sub.Example.Com", "deep.sub", true},
		{"  api.example.com  ", "api", true},
		{"example.com", "", false},
		{"*.example.com", "", false},
		{"", "", false},
		{"other.net", "", false},
		{"notexample.com", "", false},
		{"user@host.example.com", "", false},
	}
	for _, tc := range cases {
		got, ok := extractSubdomain(tc.name, "example.com")
		assert.Equal(t, tc.ok, ok, "name %q", tc.name)
		if tc.ok {
			assert.Equal(t, tc.want, got, "name %q", tc.name)
		}
	}
}
