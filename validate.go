package srvlocate

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Profile describes the namespace a hosting provider publishes its servers
// in and the SRV service name game clients look up there.
type Profile struct {
	Name    string `json:"name"`    // Provider name (e.g. "aternos")
	Service string `json:"service"` // SRV service label (e.g. "minecraft")
	Proto   string `json:"proto"`   // SRV protocol label (e.g. "tcp")
	Suffix  string `json:"suffix"`  // Provider domain (e.g. "aternos.me")
}

// DefaultProfile is the Aternos namespace: Minecraft Java servers under
// aternos.me announced as _minecraft._tcp.
var DefaultProfile = Profile{
	Name:    "aternos",
	Service: "minecraft",
	Proto:   "tcp",
	Suffix:  "aternos.me",
}

// QueryName returns the fully qualified SRV owner name for domain,
// e.g. "_minecraft._tcp.myserver.aternos.me.".
func (p Profile) QueryName(domain string) string {
	return fmt.Sprintf("_%s._%s.%s.", label(p.Service), label(p.Proto), trimDot(domain))
}

// Example returns a sample domain inside the provider namespace, used in
// usage and error messages.
func (p Profile) Example() string {
	if p.Suffix == "" {
		return "myserver.example.net"
	}
	return "myserver." + trimDot(p.Suffix)
}

// hostIDNA maps names the way lookups do, but accepts "--" in the third
// and fourth position of a label: "my--server" is a valid host name.
var hostIDNA = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.CheckHyphens(false),
	idna.BidiRule(),
)

func label(s string) string {
	return strings.TrimPrefix(trimDot(s), "_")
}

// Validate checks that domain is a syntactically valid host name ending in
// the profile suffix and returns it in lowercase ASCII form without a
// trailing dot. Internationalized labels are converted to punycode.
//
// This is a syntactic check only; it never touches the network.
func (p Profile) Validate(domain string) (string, error) {
	name := strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidDomain)
	}

	ascii, err := hostIDNA.ToASCII(strings.ToLower(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, domain, err)
	}
	if _, ok := dns.IsDomainName(ascii); !ok || len(ascii) > 253 {
		return "", fmt.Errorf("%w: %q is not a valid host name", ErrInvalidDomain, domain)
	}

	host := ascii
	if suffix := strings.ToLower(trimDot(p.Suffix)); suffix != "" {
		if !strings.HasSuffix(ascii, "."+suffix) {
			return "", fmt.Errorf("%w: %q is not under %s (expected e.g. %s)",
				ErrInvalidDomain, domain, suffix, p.Example())
		}
		host = strings.TrimSuffix(ascii, "."+suffix)
	}

	for _, l := range strings.Split(host, ".") {
		if l == "" || len(l) > 63 {
			return "", fmt.Errorf("%w: %q has an empty or oversized label", ErrInvalidDomain, domain)
		}
	}
	return ascii, nil
}
