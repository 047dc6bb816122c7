package srvlocate

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

var (
	// ErrInvalidDomain is returned by Validate and Lookup when the input
	// is not a name inside the provider's namespace. No query is sent.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrNotFound reports that a name has no records of the queried type:
	// the server answered NXDOMAIN, or NOERROR with an empty answer.
	ErrNotFound = errors.New("no records found")
)

// QueryError describes a failed query. Err is ErrNotFound when the name
// simply has no data, the transport error when no server answered, and nil
// when a server answered with a failure RCODE.
type QueryError struct {
	Name   string // queried name
	Type   uint16 // query type, e.g. dns.TypeSRV
	Server string // server that answered, empty if none did
	Rcode  int    // RCODE of the answer, -1 if there was no answer
	Err    error
}

func (e *QueryError) Error() string {
	q := fmt.Sprintf("%s query for %s", dns.TypeToString[e.Type], e.Name)
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", q, e.Err)
	case e.Rcode >= 0:
		return fmt.Sprintf("%s: server %s answered %s", q, e.Server, RcodeName(e.Rcode))
	default:
		return q + ": failed"
	}
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the query failed only because the name has no
// records of the queried type.
func (e *QueryError) NotFound() bool {
	return errors.Is(e.Err, ErrNotFound)
}

// IsNotFound reports whether err, or any error it wraps, is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RcodeName returns the mnemonic for a DNS response code.
func RcodeName(rcode int) string {
	if s, ok := dns.RcodeToString[rcode]; ok {
		return s
	}
	return fmt.Sprintf("RCODE%d", rcode)
}
