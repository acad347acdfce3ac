package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/ratelimit"

	"github.com/mikepage/dns-monitor/internal/records"
)

// Profile fixes the base URL and header requirements of one upstream
// DNS-over-HTTPS resolver. Google and Cloudflare share the JSON scheme;
// Cloudflare additionally requires the dns-json Accept header.
type Profile struct {
	Name    string
	BaseURL string
	Headers map[string]string
}

// Profiles returns the built-in resolver profiles keyed by name.
func Profiles() map[string]Profile {
	return map[string]Profile{
		"google": {
			Name:    "google",
			BaseURL: "https://dns.google/resolve",
		},
		"cloudflare": {
			Name:    "cloudflare",
			BaseURL: "https://cloudflare-dns.com/dns-query",
			Headers: map[string]string{"Accept": "application/dns-json"},
		},
	}
}

// ProfileByName resolves a profile name, falling back to google for
// unknown names.
func ProfileByName(name string) Profile {
	profiles := Profiles()
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["google"]
}

// Answer is one record from the upstream answer section.
type Answer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

// Response is the JSON body shared by Google and Cloudflare DoH endpoints.
type Response struct {
	Status int      `json:"Status"`
	AD     bool     `json:"AD"`
	Answer []Answer `json:"Answer"`
}

// DNS response code 3: the queried name does not exist. An expected
// negative result, not a failure.
const rcodeNXDomain = 3

// Outcome is the result of one (subdomain, kind) query. A non-empty Err
// always comes with an empty Records list. Outcomes are never mutated
// after creation.
type Outcome struct {
	Subdomain string
	Kind      records.Kind
	Records   []records.Record
	AD        bool
	Err       string
}

// Client issues DNS-over-HTTPS queries against a single resolver profile.
// It holds no mutable state and is safe for arbitrarily many concurrent
// queries.
type Client struct {
	httpClient *http.Client
	profile    Profile
	limiter    ratelimit.Limiter
}

// New creates a client for the given profile. timeout bounds each query's
// single network round trip; rate > 0 paces outbound queries at that many
// per second, 0 leaves the fan-out unpaced.
func New(profile Profile, timeout time.Duration, rate int) *Client {
	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		profile: profile,
		limiter: limiter,
	}
}

// FQDN builds the fully-qualified name for a catalog entry. The apex
// marker "@" denotes the bare domain.
func FQDN(domain, subdomain string) string {
	if subdomain == "@" || subdomain == "" {
		return domain
	}
	return subdomain + "." + domain
}

// Resolve issues one raw query for (name, qtype). Used directly by the
// wildcard detector for probe types outside the catalog (e.g. CAA).
func (c *Client) Resolve(ctx context.Context, name string, qtype uint16, dnssec bool) (*Response, error) {
	c.limiter.Take()

	params := url.Values{}
	params.Set("name", name)
	params.Set("type", strconv.Itoa(int(qtype)))
	if dnssec {
		params.Set("do", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profile.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.profile.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("invalid resolver response: %w", err)
	}
	return &r, nil
}

// Query performs one DNS-over-HTTPS lookup for (subdomain, kind) under
// domain. Transport and upstream-protocol failures are captured in the
// outcome's Err field and never escalated; NXDOMAIN and empty answer
// sections are expected empty results.
func (c *Client) Query(ctx context.Context, domain, subdomain string, kind records.Kind, dnssec bool) Outcome {
	outcome := Outcome{Subdomain: subdomain, Kind: kind}

	r, err := c.Resolve(ctx, FQDN(domain, subdomain), kind.Code(), dnssec)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	switch {
	case r.Status == rcodeNXDomain:
		return outcome
	case r.Status != 0:
		outcome.Err = fmt.Sprintf("resolver returned status %d", r.Status)
		return outcome
	}

	outcome.AD = r.AD
	for _, ans := range r.Answer {
		if uint16(ans.Type) != kind.Code() {
			continue
		}
		outcome.Records = append(outcome.Records, records.Normalize(ans.Name, ans.TTL, ans.Data, kind))
	}
	return outcome
}

// ProfileName reports which resolver profile the client talks to.
func (c *Client) ProfileName() string {
	return c.profile.Name
}
