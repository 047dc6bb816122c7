package srvlocate

import (
	"errors"
	"net"
	"sort"
	"strconv"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
)

// IPType specifies which address families are resolved for each target.
type IPType uint8

// IPType options for selecting address families.
const (
	IPv4        IPType = 0x01
	IPv6        IPType = 0x02
	IPv4AndIPv6 IPType = (IPv4 | IPv6) // Default option
)

func (t IPType) String() string {
	switch t {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	case IPv4AndIPv6:
		return "IPv4+IPv6"
	default:
		return "none"
	}
}

// Target is one SRV record together with the addresses its target host
// resolved to.
type Target struct {
	Target   string   `json:"-"`        // Target name as found on the wire (FQDN)
	HostName string   `json:"hostname"` // Target host name for display
	Port     int      `json:"port"`     // Service port
	Priority int      `json:"priority"` // Lower is preferred
	Weight   int      `json:"weight"`   // Higher is preferred within a priority
	TTL      uint32   `json:"ttl"`      // TTL of the SRV record
	AddrIPv4 []net.IP `json:"-"`        // IPv4 addresses
	AddrIPv6 []net.IP `json:"-"`        // IPv6 addresses

	// Err4 and Err6 are the per-family outcomes: nil when at least one
	// address was found or the family was not requested, an error
	// wrapping ErrNotFound when the host has no address of that family,
	// or a *QueryError for resolver failures.
	Err4 error `json:"-"`
	Err6 error `json:"-"`
}

// NewTarget constructs a Target from an SRV resource record.
func NewTarget(rr *dns.SRV) *Target {
	hostname := displayName(rr.Target)
	if hostname == "" {
		hostname = "."
	}
	return &Target{
		Target:   dns.Fqdn(rr.Target),
		HostName: hostname,
		Port:     int(rr.Port),
		Priority: int(rr.Priority),
		Weight:   int(rr.Weight),
		TTL:      rr.Hdr.Ttl,
	}
}

// Unavailable reports whether the record is the "." target, which states
// that the service is decidedly not available at the domain (RFC 2782).
// No addresses are looked up for it.
func (t *Target) Unavailable() bool {
	return t.Target == "."
}

// HasAddrs reports whether any address was resolved for the target.
func (t *Target) HasAddrs() bool {
	return len(t.AddrIPv4) > 0 || len(t.AddrIPv6) > 0
}

// Warnings returns the combined resolver failures of both families.
// Missing addresses are not warnings and are left out.
func (t *Target) Warnings() error {
	var err error
	for _, e := range []error{t.Err4, t.Err6} {
		if e != nil && !errors.Is(e, ErrNotFound) {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Address is a single resolved endpoint of a target.
type Address struct {
	HostName string `json:"hostname"`
	IP       net.IP `json:"ip"`
	Port     int    `json:"port"`
}

// String returns the dialable "ip:port" form.
func (a Address) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}

// Result is the outcome of a successful SRV lookup.
type Result struct {
	Domain  string    `json:"domain"`  // Validated domain
	Query   string    `json:"query"`   // SRV owner name that was queried
	Targets []*Target `json:"targets"` // Sorted by priority, then weight
}

// Unavailable reports whether every SRV record is a "." target, so the
// domain declares that no server exists.
func (r *Result) Unavailable() bool {
	for _, t := range r.Targets {
		if !t.Unavailable() {
			return false
		}
	}
	return len(r.Targets) > 0
}

// Found reports whether at least one target resolved to an address.
func (r *Result) Found() bool {
	for _, t := range r.Targets {
		if t.HasAddrs() {
			return true
		}
	}
	return false
}

// Addresses flattens the resolved addresses in target order, IPv4 before
// IPv6 within each target.
func (r *Result) Addresses() []Address {
	var ret []Address
	for _, t := range r.Targets {
		for _, ips := range [][]net.IP{t.AddrIPv4, t.AddrIPv6} {
			for _, ip := range ips {
				ret = append(ret, Address{HostName: t.HostName, IP: ip, Port: t.Port})
			}
		}
	}
	return ret
}

// SortRecords orders SRV records by ascending priority and, within equal
// priority, by descending weight. Records that tie on both keep their
// original relative order.
func SortRecords(records []*dns.SRV) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})
}
