package scanner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikepage/dns-monitor/internal/ctlog"
	"github.com/mikepage/dns-monitor/internal/records"
	"github.com/mikepage/dns-monitor/internal/resolver"
	"github.com/mikepage/dns-monitor/internal/wildcard"
)

// RecordView is one record in the final flattened list. Name is the
// subdomain label ("@" for the apex), Value the kind-discriminated
// variant.
type RecordView struct {
	Name  string        `json:"name"`
	Type  records.Kind  `json:"type"`
	Value records.Value `json:"value"`
	TTL   int           `json:"ttl"`
}

// DNSSECInfo summarizes the upstream authenticated-data reporting.
type DNSSECInfo struct {
	Enabled bool `json:"enabled"`
	Valid   bool `json:"valid"`
}

// CTInfo summarizes Certificate Transparency discovery for the response.
type CTInfo struct {
	TotalCertificates  int  `json:"totalCertificates"`
	ActiveCertificates int  `json:"activeCertificates"`
	DiscoveredCount    int  `json:"discoveredCount"`
	Cached             bool `json:"cached"`
}

// Result is the final scan output. The optional sections are present only
// when the corresponding feature was enabled or detected for this scan.
type Result struct {
	Domain       string         `json:"domain"`
	Resolver     string         `json:"resolver"`
	QueryTime    int64          `json:"queryTime"`
	Records      []RecordView   `json:"records"`
	TotalRecords int            `json:"totalRecords"`
	Wildcard     *wildcard.Info `json:"wildcard,omitempty"`
	DNSSEC       *DNSSECInfo    `json:"dnssec,omitempty"`
	CT           *CTInfo        `json:"ct,omitempty"`

	// Warnings carries per-query error strings for diagnostics. The wire
	// response deliberately drops them; callers inspecting a Result
	// directly can still tell a failed query from an empty one.
	Warnings []string `json:"-"`
}

// Kinds a wildcard record can answer with values that alias a genuine
// record by plain string match. Structured kinds (MX, SOA, SRV) are never
// wildcard-filtered.
var wildcardKinds = map[records.Kind]bool{
	records.A:     true,
	records.AAAA:  true,
	records.CNAME: true,
	records.TXT:   true,
}

// assemble applies wildcard false-positive suppression and CNAME
// coexistence pruning, then flattens and sorts the surviving records.
func assemble(domain, resolverName string, outcomes []resolver.Outcome, wc wildcard.Info, ctNames []string, ctResult *ctlog.Result, opts Options, elapsed time.Duration) *Result {
	ctSet := make(map[string]struct{}, len(ctNames))
	for _, sub := range ctNames {
		ctSet[sub] = struct{}{}
	}

	// CT-discovered names are always wildcard-risk-eligible; curated
	// entries are exempt at the apex and for underscore-anchored labels.
	eligible := func(sub string) bool {
		if _, ok := ctSet[sub]; ok {
			return true
		}
		return sub != "@" && !strings.HasPrefix(sub, "_")
	}

	var warnings []string
	surviving := make(map[string][]records.Record)
	hasCNAME := make(map[string]bool)

	for _, outcome := range outcomes {
		if outcome.Err != "" {
			warnings = append(warnings, fmt.Sprintf("%s %s: %s", outcome.Subdomain, outcome.Kind, outcome.Err))
			continue
		}
		for _, rec := range outcome.Records {
			if wc.Detected && eligible(outcome.Subdomain) &&
				wildcardKinds[rec.Kind] && wc.HasTarget(rec.Value.Str) {
				continue
			}
			surviving[outcome.Subdomain] = append(surviving[outcome.Subdomain], rec)
			if rec.Kind == records.CNAME {
				hasCNAME[outcome.Subdomain] = true
			}
		}
	}

	// A CNAME cannot coexist with other record types at the same name;
	// upstream answers that return both are treating the rest as stale.
	views := []RecordView{}
	for sub, recs := range surviving {
		for _, rec := range recs {
			if hasCNAME[sub] && rec.Kind != records.CNAME {
				continue
			}
			views = append(views, RecordView{
				Name:  sub,
				Type:  rec.Kind,
				Value: rec.Value,
				TTL:   rec.TTL,
			})
		}
	}

	// Apex strictly first, then subdomain name, ties broken by kind.
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Name != b.Name {
			if a.Name == "@" {
				return true
			}
			if b.Name == "@" {
				return false
			}
			return a.Name < b.Name
		}
		return a.Type < b.Type
	})

	result := &Result{
		Domain:       domain,
		Resolver:     resolverName,
		QueryTime:    elapsed.Milliseconds(),
		Records:      views,
		TotalRecords: len(views),
		Warnings:     warnings,
	}

	if wc.Detected {
		result.Wildcard = &wc
	}

	if opts.DNSSEC {
		answered, allAD := 0, true
		for _, outcome := range outcomes {
			if len(outcome.Records) == 0 {
				continue
			}
			answered++
			if !outcome.AD {
				allAD = false
			}
		}
		result.DNSSEC = &DNSSECInfo{
			Enabled: true,
			Valid:   answered > 0 && allAD,
		}
	}

	if opts.CT && ctResult != nil {
		result.CT = &CTInfo{
			TotalCertificates:  ctResult.TotalCertificates,
			ActiveCertificates: ctResult.ActiveCertificates,
			DiscoveredCount:    len(ctResult.Subdomains),
			Cached:             ctResult.Cached,
		}
	}

	return result
}
