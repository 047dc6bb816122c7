package srvlocate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

// Output formats understood by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Status values of an encoded report.
const (
	StatusFound         = "found"
	StatusNoAddress     = "no_address"
	StatusUnavailable   = "unavailable"
	StatusNotFound      = "not_found"
	StatusInvalidDomain = "invalid_domain"
	StatusResolverError = "resolver_error"
)

// Report is the machine-readable form of a lookup.
type Report struct {
	Domain  string         `json:"domain"`
	Query   string         `json:"query,omitempty"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Targets []ReportTarget `json:"targets,omitempty"`
}

// ReportTarget is one SRV target of a Report.
type ReportTarget struct {
	HostName    string   `json:"hostname"`
	Port        int      `json:"port"`
	Priority    int      `json:"priority"`
	Weight      int      `json:"weight"`
	TTL         uint32   `json:"ttl"`
	Unavailable bool     `json:"unavailable,omitempty"`
	IPv4        []string `json:"ipv4,omitempty"`
	IPv6        []string `json:"ipv6,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// NewReport builds the machine-readable form of a Lookup outcome.
func NewReport(domain string, res *Result, err error) *Report {
	rep := &Report{Domain: domain}
	var qe *QueryError
	switch {
	case errors.Is(err, ErrInvalidDomain):
		rep.Status = StatusInvalidDomain
	case errors.As(err, &qe) && qe.NotFound():
		rep.Status = StatusNotFound
		rep.Query = qe.Name
	case errors.As(err, &qe):
		rep.Status = StatusResolverError
		rep.Query = qe.Name
	case err != nil:
		rep.Status = StatusResolverError
	}
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	rep.Domain = res.Domain
	rep.Query = res.Query
	switch {
	case res.Found():
		rep.Status = StatusFound
	case res.Unavailable():
		rep.Status = StatusUnavailable
	default:
		rep.Status = StatusNoAddress
	}
	for _, t := range res.Targets {
		rt := ReportTarget{
			HostName:    t.HostName,
			Port:        t.Port,
			Priority:    t.Priority,
			Weight:      t.Weight,
			TTL:         t.TTL,
			Unavailable: t.Unavailable(),
		}
		for _, ip := range t.AddrIPv4 {
			rt.IPv4 = append(rt.IPv4, ip.String())
		}
		for _, ip := range t.AddrIPv6 {
			rt.IPv6 = append(rt.IPv6, ip.String())
		}
		for _, w := range multierr.Errors(t.Warnings()) {
			rt.Warnings = append(rt.Warnings, w.Error())
		}
		rep.Targets = append(rep.Targets, rt)
	}
	return rep
}

// Encode writes the outcome of a lookup to w as JSON or YAML.
func Encode(w io.Writer, format, domain string, res *Result, err error) error {
	rep := NewReport(domain, res, err)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		data, err := yaml.Marshal(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
