// Package scanner orchestrates the DNS footprint scan: it builds the work
// list, fans out every (subdomain, kind) query together with the wildcard
// probe, joins the batch and assembles the filtered result.
package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikepage/dns-monitor/internal/config"
	"github.com/mikepage/dns-monitor/internal/ctlog"
	"github.com/mikepage/dns-monitor/internal/records"
	"github.com/mikepage/dns-monitor/internal/resolver"
	"github.com/mikepage/dns-monitor/internal/wildcard"
)

// Options selects per-scan behaviour.
type Options struct {
	Resolver string // resolver profile name, default google
	DNSSEC   bool   // request DNSSEC-OK and report the AD flag
	CT       bool   // expand the catalog from CT logs
}

// Scanner runs DNS footprint scans.
type Scanner struct {
	cfg      *config.Config
	ct       *ctlog.Discoverer
	log      *logrus.Logger
	profiles map[string]resolver.Profile
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithProfiles replaces the built-in resolver profiles.
func WithProfiles(profiles map[string]resolver.Profile) Option {
	return func(s *Scanner) {
		s.profiles = profiles
	}
}

// New creates a scanner. ct may be nil to disable CT discovery entirely.
func New(cfg *config.Config, ct *ctlog.Discoverer, log *logrus.Logger, opts ...Option) *Scanner {
	if log == nil {
		log = logrus.New()
	}
	s := &Scanner{
		cfg:      cfg,
		ct:       ct,
		log:      log,
		profiles: resolver.Profiles(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeDomain lowercases the input and strips surrounding whitespace,
// an http(s) scheme and any path component.
func NormalizeDomain(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	return strings.TrimSuffix(domain, ".")
}

// ErrDomainRequired is returned for an empty domain; it is the only scan
// error that reaches the caller. Everything downstream degrades into the
// result instead.
var ErrDomainRequired = errors.New("Domain is required")

type workItem struct {
	subdomain string
	kind      records.Kind
}

// Scan runs one full scan for domain. CT discovery (when enabled) runs
// first because its output extends the work list; afterwards every
// (subdomain, kind) query and the wildcard probe launch concurrently and
// the batch joins before any filtering.
func (s *Scanner) Scan(ctx context.Context, domain string, opts Options) (*Result, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, ErrDomainRequired
	}

	start := time.Now()

	if opts.Resolver == "" {
		opts.Resolver = "google"
	}
	profile := resolver.ProfileByName(opts.Resolver)
	if p, ok := s.profiles[opts.Resolver]; ok {
		profile = p
	}
	client := resolver.New(profile, time.Duration(s.cfg.QueryTimeout)*time.Second, s.cfg.QueryRate)

	var (
		ctResult *ctlog.Result
		ctNames  []string
	)
	if opts.CT && s.ct != nil {
		r := s.ct.Discover(ctx, domain)
		ctResult = &r
		ctNames = r.Subdomains
	}

	var items []workItem
	for _, t := range buildTargets(ctNames) {
		for _, k := range t.Kinds {
			items = append(items, workItem{subdomain: t.Subdomain, kind: k})
		}
	}

	// Each query owns its slot in the outcomes slice, so the fan-out needs
	// no locks and no shared accumulator. No query can short-circuit its
	// siblings; a failed query yields an error-bearing outcome.
	outcomes := make([]resolver.Outcome, len(items))
	var wc wildcard.Info
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		wc = wildcard.Detect(ctx, client, domain)
	}()

	for i, item := range items {
		wg.Add(1)
		go func(i int, item workItem) {
			defer wg.Done()
			outcomes[i] = client.Query(ctx, domain, item.subdomain, item.kind, opts.DNSSEC)
		}(i, item)
	}
	wg.Wait()

	result := assemble(domain, profile.Name, outcomes, wc, ctNames, ctResult, opts, time.Since(start))

	s.log.WithFields(logrus.Fields{
		"domain":   domain,
		"resolver": profile.Name,
		"records":  result.TotalRecords,
		"queries":  len(items),
		"wildcard": wc.Detected,
		"elapsed":  result.QueryTime,
	}).Info("scan completed")

	return result, nil
}
