package scanner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepage/dns-monitor/internal/config"
	"github.com/mikepage/dns-monitor/internal/ctlog"
	"github.com/mikepage/dns-monitor/internal/records"
	"github.com/mikepage/dns-monitor/internal/resolver"
)

// fakeDoH is an httptest-backed DNS-over-HTTPS upstream. answer decides
// the response for each (name, type) pair; everything unanswered is
// NXDOMAIN.
type fakeDoH struct {
	mu      sync.Mutex
	queried map[string][]uint16
	answer  func(name string, qtype uint16) []resolver.Answer
	srv     *httptest.Server
}

func newFakeDoH(answer func(name string, qtype uint16) []resolver.Answer) *fakeDoH {
	f := &fakeDoH{queried: make(map[string][]uint16), answer: answer}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		qtypeInt, _ := strconv.Atoi(r.URL.Query().Get("type"))
		qtype := uint16(qtypeInt)

		f.mu.Lock()
		f.queried[name] = append(f.queried[name], qtype)
		f.mu.Unlock()

		var answers []resolver.Answer
		if f.answer != nil {
			answers = f.answer(name, qtype)
		}
		if len(answers) == 0 {
			json.NewEncoder(w).Encode(resolver.Response{Status: 3})
			return
		}
		json.NewEncoder(w).Encode(resolver.Response{Status: 0, Answer: answers})
	}))
	return f
}

func (f *fakeDoH) typesFor(name string) []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.queried[name]...)
}

func newTestScanner(dohURL string, ct *ctlog.Discoverer) *Scanner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{Resolver: "google", QueryTimeout: 5}
	return New(cfg, ct, log, WithProfiles(map[string]resolver.Profile{
		"google": {Name: "google", BaseURL: dohURL},
	}))
}

func ans(name string, kind records.Kind, ttl int, data string) resolver.Answer {
	return resolver.Answer{Name: name + ".", Type: int(kind.Code()), TTL: ttl, Data: data}
}

func TestScanEmptyDomainRejected(t *testing.T) {
	s := newTestScanner("http://127.0.0.1:0", nil)

	_, err := s.Scan(context.Background(), "", Options{})
	assert.ErrorIs(t, err, ErrDomainRequired)

	_, err = s.Scan(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, ErrDomainRequired)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("  HTTPS://Example.COM/some/path  "))
	assert.Equal(t, "example.com", NormalizeDomain("example.com."))
	assert.Equal(t, "example.com", NormalizeDomain("http://example.com"))
	assert.Equal(t, "", NormalizeDomain("   "))
}

func TestScanNoWildcardApexFirstAndCNAMESuppression(t *testing.T) {
	doh := newFakeDoH(func(name string, qtype uint16) []resolver.Answer {
		switch {
		case name == "example.com" && qtype == records.A.Code():
			return []resolver.Answer{ans("example.com", records.A, 300, "203.0.113.9")}
		case name == "example.com" && qtype == records.TXT.Code():
			return []resolver.Answer{ans("example.com", records.TXT, 300, `"v=spf1 -all"`)}
		case name == "example.com" && qtype == records.MX.Code():
			return []resolver.Answer{ans("example.com", records.MX, 300, "10 mail.example.com.")}
		case name == "example.com" && qtype == records.NS.Code():
			return []resolver.Answer{ans("example.com", records.NS, 3600, "ns1.example.com.")}
		case name == "example.com" && qtype == records.SOA.Code():
			return []resolver.Answer{ans("example.com", records.SOA, 900, "ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 300")}
		case name == "www.example.com" && qtype == records.CNAME.Code():
			return []resolver.Answer{ans("www.example.com", records.CNAME, 300, "web.example.net.")}
		case name == "www.example.com" && qtype == records.A.Code():
			return []resolver.Answer{ans("www.example.com", records.A, 300, "203.0.113.10")}
		}
		return nil
	})
	defer doh.srv.Close()

	result, err := newTestScanner(doh.srv.URL, nil).Scan(context.Background(), "example.com", Options{Resolver: "google"})
	require.NoError(t, err)

	require.NotEmpty(t, result.Records)
	assert.Nil(t, result.Wildcard)

	// Apex records lead the list.
	apexCount := 0
	for _, rec := range result.Records {
		if rec.Name == "@" {
			apexCount++
		}
	}
	assert.Equal(t, 5, apexCount)
	for i := 0; i < apexCount; i++ {
		assert.Equal(t, "@", result.Records[i].Name)
	}

	// The www CNAME suppresses the coexisting www A answer.
	for _, rec := range result.Records {
		if rec.Name == "www" {
			assert.Equal(t, records.CNAME, rec.Type)
		}
	}
}

func TestScanWildcardSuppressesOnlyMatchingValues(t *testing.T) {
	doh := newFakeDoH(func(name string, qtype uint16) []resolver.Answer {
		if qtype != records.A.Code() {
			return nil
		}
		// The zone answers A for any name: a wildcard record.
		answers := []resolver.Answer{ans(name, records.A, 60, "198.51.100.1")}
		if name == "ftp.example.com" {
			answers = append(answers, ans(name, records.A, 60, "192.0.2.5"))
		}
		return answers
	})
	defer doh.srv.Close()

	result, err := newTestScanner(doh.srv.URL, nil).Scan(context.Background(), "example.com", Options{Resolver: "google"})
	require.NoError(t, err)

	require.NotNil(t, result.Wildcard)
	assert.True(t, result.Wildcard.Detected)
	assert.Contains(t, result.Wildcard.Targets, "198.51.100.1")

	// The wildcard value never survives outside the apex; the genuine
	// ftp record with a different value does.
	ftpValues := []string{}
	for _, rec := range result.Records {
		if rec.Name != "@" {
			assert.NotEqual(t, "198.51.100.1", rec.Value.Str, "wildcard value leaked for %s", rec.Name)
		}
		if rec.Name == "ftp" {
			ftpValues = append(ftpValues, rec.Value.Str)
		}
	}
	assert.Equal(t, []string{"192.0.2.5"}, ftpValues)
}

func TestScanCTDiscoveredSubdomainIsQueriedAndFiltered(t *testing.T) {
	notAfter := time.Now().Add(24 * time.Hour).Format("2006-01-02T15:04:05")
	crt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"name_value": "staging.example.com", "not_after": notAfter},
		})
	}))
	defer crt.Close()

	doh := newFakeDoH(func(name string, qtype uint16) []resolver.Answer {
		if qtype != records.A.Code() {
			return nil
		}
		// Wildcard again: every A query answers the same value.
		return []resolver.Answer{ans(name, records.A, 60, "198.51.100.1")}
	})
	defer doh.srv.Close()

	ct := ctlog.New(nil, crt.URL, nil)
	result, err := newTestScanner(doh.srv.URL, ct).Scan(context.Background(), "example.com", Options{Resolver: "google", CT: true})
	require.NoError(t, err)

	// The discovered name was dispatched for the CT kind set.
	queried := doh.typesFor("staging.example.com")
	assert.ElementsMatch(t, []uint16{records.A.Code(), records.AAAA.Code(), records.CNAME.Code()}, queried)

	// And it is wildcard-filter-eligible despite not being curated.
	for _, rec := range result.Records {
		assert.NotEqual(t, "staging", rec.Name)
	}

	require.NotNil(t, result.CT)
	assert.Equal(t, 1, result.CT.DiscoveredCount)
	assert.Equal(t, 1, result.CT.TotalCertificates)
	assert.Equal(t, 1, result.CT.ActiveCertificates)
}

func TestScanQueryErrorsSurfaceAsWarnings(t *testing.T) {
	doh := newFakeDoH(nil)
	doh.srv.Close() // every query fails at the transport

	result, err := newTestScanner(doh.srv.URL, nil).Scan(context.Background(), "example.com", Options{Resolver: "google"})
	require.NoError(t, err, "per-query failures must not fail the scan")
	assert.Empty(t, result.Records)
	assert.NotEmpty(t, result.Warnings)
	assert.Nil(t, result.Wildcard, "wildcard probes failing must fall back to no wildcard")
}
