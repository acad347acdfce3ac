package records

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Kind identifies a DNS record type the scanner knows how to query.
// The enumeration is closed: answers carrying any other wire type are
// dropped before normalization.
type Kind string

const (
	A     Kind = "A"
	AAAA  Kind = "AAAA"
	CNAME Kind = "CNAME"
	MX    Kind = "MX"
	NS    Kind = "NS"
	SOA   Kind = "SOA"
	SRV   Kind = "SRV"
	TXT   Kind = "TXT"
)

// All lists every supported record kind.
var All = []Kind{A, AAAA, CNAME, MX, NS, SOA, SRV, TXT}

var kindCodes = map[Kind]uint16{
	A:     dns.TypeA,
	AAAA:  dns.TypeAAAA,
	CNAME: dns.TypeCNAME,
	MX:    dns.TypeMX,
	NS:    dns.TypeNS,
	SOA:   dns.TypeSOA,
	SRV:   dns.TypeSRV,
	TXT:   dns.TypeTXT,
}

// Code returns the numeric wire-protocol type code for the kind.
func (k Kind) Code() uint16 {
	return kindCodes[k]
}

// KindFromCode maps a numeric wire type back to a Kind. The second return
// is false for types outside the supported set.
func KindFromCode(code uint16) (Kind, bool) {
	for k, c := range kindCodes {
		if c == code {
			return k, true
		}
	}
	return "", false
}

// MXValue is the structured payload of an MX record.
type MXValue struct {
	Preference int    `json:"preference"`
	Exchange   string `json:"exchange"`
}

// SOAValue is the structured payload of an SOA record.
type SOAValue struct {
	MName   string `json:"mname"`
	RName   string `json:"rname"`
	Serial  uint32 `json:"serial"`
	Refresh uint32 `json:"refresh"`
	Retry   uint32 `json:"retry"`
	Expire  uint32 `json:"expire"`
	Minimum uint32 `json:"minimum"`
}

// SRVValue is the structured payload of an SRV record.
type SRVValue struct {
	Priority int    `json:"priority"`
	Weight   int    `json:"weight"`
	Port     int    `json:"port"`
	Target   string `json:"target"`
}

// Value is the variant payload of a normalized record. Exactly one field
// is populated, discriminated by the record kind: MX, SOA and SRV carry
// their structured forms, every other kind carries Str. Consumers switch
// on the record kind rather than probing fields.
type Value struct {
	Str string
	MX  *MXValue
	SOA *SOAValue
	SRV *SRVValue
}

// MarshalJSON renders the populated variant: structured values as objects,
// everything else as a plain string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.MX != nil:
		return json.Marshal(v.MX)
	case v.SOA != nil:
		return json.Marshal(v.SOA)
	case v.SRV != nil:
		return json.Marshal(v.SRV)
	default:
		return json.Marshal(v.Str)
	}
}

// Record is one normalized DNS answer. Name and every host-like component
// of the value are free of the trailing root-zone dot.
type Record struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"type"`
	TTL   int    `json:"ttl"`
	Value Value  `json:"value"`
}

// Normalize converts one raw upstream answer into a typed record. The
// caller guarantees the answer's wire type matches the requested kind.
// Malformed numeric fields degrade to zero rather than failing; there is
// no error path.
func Normalize(name string, ttl int, data string, kind Kind) Record {
	rec := Record{
		Name: strings.TrimSuffix(name, "."),
		Kind: kind,
		TTL:  ttl,
	}
	if rec.TTL < 0 {
		rec.TTL = 0
	}

	switch kind {
	case MX:
		fields := strings.Fields(data)
		mx := &MXValue{}
		if len(fields) > 0 {
			mx.Preference, _ = strconv.Atoi(fields[0])
		}
		if len(fields) > 1 {
			mx.Exchange = strings.TrimSuffix(strings.Join(fields[1:], " "), ".")
		}
		rec.Value.MX = mx
	case SOA:
		fields := strings.Fields(data)
		soa := &SOAValue{}
		if len(fields) > 0 {
			soa.MName = strings.TrimSuffix(fields[0], ".")
		}
		if len(fields) > 1 {
			soa.RName = strings.TrimSuffix(fields[1], ".")
		}
		nums := []*uint32{&soa.Serial, &soa.Refresh, &soa.Retry, &soa.Expire, &soa.Minimum}
		for i, dst := range nums {
			if len(fields) > i+2 {
				n, _ := strconv.ParseUint(fields[i+2], 10, 32)
				*dst = uint32(n)
			}
		}
		rec.Value.SOA = soa
	case SRV:
		fields := strings.Fields(data)
		srv := &SRVValue{}
		ints := []*int{&srv.Priority, &srv.Weight, &srv.Port}
		for i, dst := range ints {
			if len(fields) > i {
				*dst, _ = strconv.Atoi(fields[i])
			}
		}
		if len(fields) > 3 {
			srv.Target = strings.TrimSuffix(fields[3], ".")
		}
		rec.Value.SRV = srv
	case TXT:
		// Strip one pair of surrounding quotes; no full TXT unescaping.
		s := strings.TrimPrefix(data, `"`)
		s = strings.TrimSuffix(s, `"`)
		rec.Value.Str = s
	case CNAME, NS:
		rec.Value.Str = strings.TrimSuffix(data, ".")
	default:
		// A and AAAA: textual IP literal, passed through verbatim.
		rec.Value.Str = data
	}

	return rec
}
