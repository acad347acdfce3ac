package wildcard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/mikepage/dns-monitor/internal/resolver"
)

// Info describes a wildcard DNS configuration detected for a domain.
// Targets holds every deduplicated value the wildcard answered with for
// the synthetic probe; it is empty iff Detected is false. Built once per
// scan and read-only afterwards.
type Info struct {
	Detected     bool     `json:"detected"`
	Targets      []string `json:"targets,omitempty"`
	CNAMEInChain string   `json:"cnameInChain,omitempty"`
}

// HasTarget reports whether value matches one of the wildcard's recorded
// answers.
func (i Info) HasTarget(value string) bool {
	for _, t := range i.Targets {
		if t == value {
			return true
		}
	}
	return false
}

// Probe types: any non-empty answer for a name that cannot exist proves
// an over-broad wildcard record.
var probeTypes = []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeTXT, dns.TypeCAA}

// Detect probes a synthetically unique subdomain of domain that is
// guaranteed not to exist. Probe failures are absorbed silently: wildcard
// detection failing must never degrade the main scan, so the fallback on
// total failure is a zero Info.
func Detect(ctx context.Context, client *resolver.Client, domain string) Info {
	probe := fmt.Sprintf("dnsmon-wildcard-check-%d.%s", time.Now().UnixNano(), domain)

	var (
		mu      sync.Mutex
		targets = make(map[string]struct{})
		cname   string
		wg      sync.WaitGroup
	)

	for _, qtype := range probeTypes {
		wg.Add(1)
		go func(qtype uint16) {
			defer wg.Done()
			r, err := client.Resolve(ctx, probe, qtype, false)
			if err != nil || r.Status != 0 {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ans := range r.Answer {
				value := strings.TrimSuffix(ans.Data, ".")
				value = strings.TrimPrefix(value, `"`)
				value = strings.TrimSuffix(value, `"`)
				if value == "" {
					continue
				}
				targets[value] = struct{}{}
				if uint16(ans.Type) == dns.TypeCNAME && cname == "" {
					cname = value
				}
			}
		}(qtype)
	}
	wg.Wait()

	if len(targets) == 0 {
		return Info{}
	}

	info := Info{Detected: true, CNAMEInChain: cname}
	for t := range targets {
		info.Targets = append(info.Targets, t)
	}
	sort.Strings(info.Targets)
	return info
}
