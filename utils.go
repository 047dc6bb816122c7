// Package srvlocate finds the public address of a game server that a
// hosting provider publishes behind a DNS SRV record. It queries the SRV
// record for the provider's well-known service name, orders the targets
// by priority and weight, and resolves every target to its IPv4 and IPv6
// addresses.
package srvlocate

import (
	"strings"
)

// trimDot removes leading and trailing dots from a DNS name string.
//
// Example: "node7.example.net." becomes "node7.example.net"
func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// displayName converts a wire-format target name into the form shown to
// operators: no trailing root dot and no presentation escapes.
func displayName(name string) string {
	return dnsUnescape(trimDot(name))
}

// dnsUnescape converts a DNS presentation-escaped string back to its
// original form by processing escape sequences as defined in RFC 1035.
//
// Supported escape sequences:
//   - "\\"    -> backslash character
//   - "\ "    -> space character
//   - "\."    -> dot character
//   - "\DDD"  -> byte with the decimal value DDD
//
// miekg/dns produces these escapes when a target name carries bytes that
// are not valid in a hostname.
func dnsUnescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		switch {
		case i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]):
			num := int(s[i+1]-'0')*100 + int(s[i+2]-'0')*10 + int(s[i+3]-'0')
			b.WriteByte(byte(num))
			i += 3
		case i+1 < len(s):
			b.WriteByte(s[i+1])
			i++
		}
		// A trailing backslash is dropped.
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
