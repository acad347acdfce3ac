// Package ctlog discovers subdomains from Certificate Transparency logs
// via the crt.sh search service, with a read-through cache bounding load
// on the upstream.
package ctlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikepage/dns-monitor/internal/cache"
)

// DefaultBaseURL is the public crt.sh endpoint.
const DefaultBaseURL = "https://crt.sh"

// FreshnessWindow is how long a cached discovery result is served before
// a new upstream fetch. Entries are never invalidated eagerly; staleness
// is checked only on read.
const FreshnessWindow = time.Hour

// Result is the outcome of one discovery run. On any upstream or parse
// failure the zero Result is returned rather than failing the scan.
type Result struct {
	Subdomains         []string
	TotalCertificates  int
	ActiveCertificates int
	Cached             bool
}

// cacheEntry is the serialized form stored under the domain's cache key.
type cacheEntry struct {
	Subdomains         []string  `json:"subdomains"`
	TotalCertificates  int       `json:"total_certificates"`
	ActiveCertificates int       `json:"active_certificates"`
	CachedAt           time.Time `json:"cached_at"`
}

// crt.sh date layouts seen in the wild.
var notAfterLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999",
	"2006-01-02",
}

// Discoverer queries the certificate log search service. A nil cache
// store disables caching; every cache operation then falls through to a
// live fetch.
type Discoverer struct {
	client  *http.Client
	store   cache.Store
	baseURL string
	log     *logrus.Logger
	now     func() time.Time
}

// New creates a discoverer. store may be nil.
func New(store cache.Store, baseURL string, log *logrus.Logger) *Discoverer {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logrus.New()
	}
	return &Discoverer{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		store:   store,
		baseURL: baseURL,
		log:     log,
		now:     time.Now,
	}
}

func cacheKey(domain string) string {
	return "ct:" + domain
}

// Discover returns the subdomains found on active certificates issued for
// domain. A cache entry younger than FreshnessWindow is returned as-is
// with Cached set; anything else triggers an upstream fetch whose result
// is written back best-effort.
func (d *Discoverer) Discover(ctx context.Context, domain string) Result {
	if d.store != nil {
		if raw, _, ok := d.store.Get(cacheKey(domain)); ok {
			var entry cacheEntry
			if json.Unmarshal(raw, &entry) == nil && d.now().Sub(entry.CachedAt) < FreshnessWindow {
				return Result{
					Subdomains:         entry.Subdomains,
					TotalCertificates:  entry.TotalCertificates,
					ActiveCertificates: entry.ActiveCertificates,
					Cached:             true,
				}
			}
		}
	}

	result := d.fetch(ctx, domain)

	if d.store != nil {
		entry := cacheEntry{
			Subdomains:         result.Subdomains,
			TotalCertificates:  result.TotalCertificates,
			ActiveCertificates: result.ActiveCertificates,
			CachedAt:           d.now(),
		}
		if raw, err := json.Marshal(entry); err == nil {
			if err := d.store.Set(cacheKey(domain), raw); err != nil {
				d.log.WithField("domain", domain).Debugf("ct cache write failed: %v", err)
			}
		}
	}

	return result
}

// fetch queries crt.sh for all certificates covering %.{domain} and
// extracts candidate subdomains from active ones.
func (d *Discoverer) fetch(ctx context.Context, domain string) Result {
	url := fmt.Sprintf("%s/?q=%%.%s&output=json", d.baseURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; dnsmon/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.WithField("domain", domain).Debugf("ct fetch failed: %v", err)
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.WithField("domain", domain).Debugf("ct fetch returned HTTP %d", resp.StatusCode)
		return Result{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}
	}

	var entries []struct {
		NameValue string `json:"name_value"`
		NotAfter  string `json:"not_after"`
	}
	if json.Unmarshal(body, &entries) != nil {
		return Result{}
	}

	now := d.now()
	seen := make(map[string]struct{})
	result := Result{TotalCertificates: len(entries)}

	for _, entry := range entries {
		if !d.isActive(entry.NotAfter, now) {
			continue
		}
		result.ActiveCertificates++
		for _, name := range strings.Split(entry.NameValue, "\n") {
			if sub, ok := extractSubdomain(name, domain); ok {
				seen[sub] = struct{}{}
			}
		}
	}

	for sub := range seen {
		result.Subdomains = append(result.Subdomains, sub)
	}
	sort.Strings(result.Subdomains)

	return result
}

// isActive reports whether a certificate's not_after timestamp is
// strictly in the future.
func (d *Discoverer) isActive(notAfter string, now time.Time) bool {
	for _, layout := range notAfterLayouts {
		if t, err := time.Parse(layout, notAfter); err == nil {
			return t.After(now)
		}
	}
	return false
}

// extractSubdomain validates one SAN-style name and strips the domain
// suffix. Wildcard entries, the bare domain, names outside the domain and
// malformed SAN values (embedded @ or whitespace) are rejected.
func extractSubdomain(name, domain string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.HasPrefix(name, "*") || name == domain {
		return "", false
	}
	if !strings.HasSuffix(name, "."+domain) {
		return "", false
	}
	sub := strings.TrimSuffix(name, "."+domain)
	if sub == "" || strings.Contains(sub, "@") || strings.ContainsAny(sub, " \t\r\n") {
		return "", false
	}
	return sub, true
}
