package scanner

import "github.com/mikepage/dns-monitor/internal/records"

// Target is one catalog entry: a subdomain and the record kinds queried
// for it. "@" denotes the zone apex.
type Target struct {
	Subdomain string
	Kinds     []records.Kind
}

var (
	hostKinds = []records.Kind{records.A, records.AAAA, records.CNAME}
	apexKinds = []records.Kind{records.A, records.AAAA, records.MX, records.NS, records.SOA, records.TXT}
	txtOnly   = []records.Kind{records.TXT}
	srvOnly   = []records.Kind{records.SRV}
)

// ctKinds are the kinds queried for subdomains discovered via CT logs.
var ctKinds = []records.Kind{records.A, records.AAAA, records.CNAME}

// catalog is the static battery of conventional subdomains. Underscore
// labels are protocol anchors (DMARC, DKIM, SRV service names) and are
// exempt from wildcard filtering since the underscore label itself was
// explicitly queried.
var catalog = []Target{
	{"@", apexKinds},
	{"www", hostKinds},
	{"mail", []records.Kind{records.A, records.AAAA, records.CNAME, records.MX}},
	{"ftp", hostKinds},
	{"webmail", hostKinds},
	{"smtp", hostKinds},
	{"imap", hostKinds},
	{"pop", hostKinds},
	{"remote", hostKinds},
	{"vpn", hostKinds},
	{"api", hostKinds},
	{"app", hostKinds},
	{"dev", hostKinds},
	{"test", hostKinds},
	{"portal", hostKinds},
	{"admin", hostKinds},
	{"blog", hostKinds},
	{"shop", hostKinds},
	{"cdn", hostKinds},
	{"m", hostKinds},
	{"docs", hostKinds},
	{"status", hostKinds},
	{"git", hostKinds},
	{"autodiscover", hostKinds},
	{"autoconfig", hostKinds},
	{"ns1", hostKinds},
	{"ns2", hostKinds},
	{"_dmarc", txtOnly},
	{"_mta-sts", txtOnly},
	{"default._domainkey", txtOnly},
	{"_sip._tls", srvOnly},
	{"_sipfederationtls._tcp", srvOnly},
	{"_autodiscover._tcp", srvOnly},
	{"_submission._tcp", srvOnly},
	{"_imaps._tcp", srvOnly},
	{"_xmpp-client._tcp", srvOnly},
	{"_xmpp-server._tcp", srvOnly},
	{"_caldavs._tcp", srvOnly},
	{"_carddavs._tcp", srvOnly},
}

// buildTargets merges the static catalog with CT-discovered subdomains.
// Static entries take precedence: a discovered name already in the
// catalog is not dispatched twice.
func buildTargets(ctSubdomains []string) []Target {
	targets := make([]Target, len(catalog))
	copy(targets, catalog)

	known := make(map[string]struct{}, len(catalog))
	for _, t := range catalog {
		known[t.Subdomain] = struct{}{}
	}

	for _, sub := range ctSubdomains {
		if _, ok := known[sub]; ok {
			continue
		}
		known[sub] = struct{}{}
		targets = append(targets, Target{Subdomain: sub, Kinds: ctKinds})
	}

	return targets
}
