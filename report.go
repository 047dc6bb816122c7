package srvlocate

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// Level classifies a report line.
type Level uint8

// Report line levels.
const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelAttempt
)

var levelNames = map[Level]string{
	LevelInfo:    "INFO",
	LevelSuccess: "SUCCESS",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelAttempt: "ATTEMPT",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("{Level %d}", l)
}

// ANSI SGR sequences used for colored output.
const (
	sgrReset       = "\x1b[0m"
	sgrBright      = "\x1b[1m"
	sgrRed         = "\x1b[31m"
	sgrGreen       = "\x1b[32m"
	sgrYellow      = "\x1b[33m"
	sgrBlue        = "\x1b[34m"
	sgrMagenta     = "\x1b[35m"
	sgrCyan        = "\x1b[36m"
	sgrLightGreen  = "\x1b[92m"
	sgrLightYellow = "\x1b[93m"
)

var levelColors = map[Level]string{
	LevelInfo:    sgrCyan,
	LevelSuccess: sgrGreen + sgrBright,
	LevelWarning: sgrYellow,
	LevelError:   sgrRed + sgrBright,
	LevelAttempt: sgrBlue,
}

// Entry is a single report line.
type Entry struct {
	Level   Level
	Message string
}

// Format renders e as "[LEVEL] message", wrapped in the level's color
// when color is set.
func Format(e Entry, color bool) string {
	line := fmt.Sprintf("[%s] %s", e.Level, e.Message)
	if !color {
		return line
	}
	return levelColors[e.Level] + line + sgrReset
}

const separator = "-----------------------------------------------------"

// Printer writes human-readable reports of lookups.
type Printer struct {
	Out   io.Writer
	Color bool
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{Out: out, Color: color}
}

func (p *Printer) log(level Level, format string, args ...interface{}) {
	fmt.Fprintln(p.Out, Format(Entry{Level: level, Message: fmt.Sprintf(format, args...)}, p.Color))
}

// paint wraps s in sgr when color output is enabled.
func (p *Printer) paint(sgr, s string) string {
	if !p.Color {
		return s
	}
	return sgr + s + sgrReset
}

// Start announces the lookup of domain and its SRV query name.
func (p *Printer) Start(profile Profile, domain string) {
	p.log(LevelInfo, "Resolving %s server: %s", profile.Name, domain)
	p.log(LevelAttempt, "Querying DNS SRV record: %s", trimDot(profile.QueryName(domain)))
}

// Result writes the target blocks of a successful SRV lookup followed by
// the summary. When no target resolved to an address, every target and
// port is listed instead so that nothing is silently dropped. "." targets
// are reported as unavailable and never listed.
func (p *Printer) Result(res *Result) {
	p.log(LevelSuccess, "Found %d SRV record(s). Resolving target addresses and ports...", len(res.Targets))
	fmt.Fprintln(p.Out, separator)

	for _, t := range res.Targets {
		if t.Unavailable() {
			p.log(LevelWarning, "SRV record: target=., priority=%d, weight=%d: the service is not available at this domain.",
				t.Priority, t.Weight)
			continue
		}
		p.log(LevelInfo, "SRV record: target=%s, port=%s, priority=%d, weight=%d",
			p.paint(sgrMagenta, t.HostName), p.paint(sgrMagenta, fmt.Sprint(t.Port)), t.Priority, t.Weight)
		p.log(LevelAttempt, "  Resolving A (IPv4) and AAAA (IPv6) records for '%s'...", t.HostName)

		p.family(t, "IPv4", t.AddrIPv4, t.Err4)
		p.family(t, "IPv6", t.AddrIPv6, t.Err6)
		if t.HasAddrs() {
			fmt.Fprintln(p.Out, "  ---")
		}
	}
	fmt.Fprintln(p.Out, separator)

	switch {
	case res.Unavailable():
		p.log(LevelWarning, "The SRV record states that no server is available at this domain.")
	case !res.Found():
		p.log(LevelWarning, "No direct IP address was found for the SRV targets.")
		p.log(LevelInfo, "The targets may be aliases (CNAME) or the provider may route differently.")
		p.log(LevelInfo, "A game client can still follow these SRV records.")
		p.log(LevelInfo, "SRV targets and ports found:")
		for _, t := range res.Targets {
			if !t.Unavailable() {
				fmt.Fprintf(p.Out, "  - %s:%d\n", t.HostName, t.Port)
			}
		}
	default:
		p.log(LevelSuccess, "Direct IP and port information is listed above.")
	}
	p.log(LevelInfo, "Remember: hosted servers use dynamic addresses; these may change when the server restarts.")
}

func (p *Printer) family(t *Target, family string, ips []net.IP, err error) {
	for _, ip := range ips {
		p.address(t.HostName, ip.String(), t.Port)
	}
	switch {
	case err == nil:
	case IsNotFound(err):
		p.log(LevelInfo, "    No %s address found for '%s'.", family, t.HostName)
	default:
		p.log(LevelWarning, "    Error resolving %s ('%s'): %v", family, t.HostName, err)
	}
}

func (p *Printer) address(hostname, ip string, port int) {
	fmt.Fprintf(p.Out, "  %s %s\n", p.paint(sgrLightGreen, "Target:"), hostname)
	fmt.Fprintf(p.Out, "     %s %s\n", p.paint(sgrLightYellow, "IP address:"), p.paint(sgrBright, ip))
	fmt.Fprintf(p.Out, "     %s %s\n", p.paint(sgrLightYellow, "Port:"), p.paint(sgrBright, fmt.Sprint(port)))
}

// Error reports a lookup that ended before address resolution, with the
// likely cause.
func (p *Printer) Error(profile Profile, domain string, err error) {
	var qe *QueryError
	switch {
	case errors.Is(err, ErrInvalidDomain):
		p.log(LevelError, "Invalid %s domain format. Example: '%s'", profile.Name, profile.Example())
		p.log(LevelInfo, "%v", err)
	case errors.As(err, &qe) && qe.NotFound():
		p.log(LevelError, "No SRV record found for '%s'.", trimDot(qe.Name))
		p.log(LevelWarning, "The server may be offline, the domain may be mistyped, or its DNS records may not have propagated yet.")
	case errors.As(err, &qe):
		p.log(LevelError, "A DNS error occurred while querying the SRV record: %v (code: %s)", err, queryCode(qe))
	default:
		p.log(LevelError, "Lookup of %s failed: %v", domain, err)
	}
}

// Done writes the closing line of a run.
func (p *Printer) Done() {
	p.log(LevelInfo, "Resolution finished.")
}

func queryCode(qe *QueryError) string {
	if qe.Rcode >= 0 {
		return RcodeName(qe.Rcode)
	}
	return "NO_RESPONSE"
}
