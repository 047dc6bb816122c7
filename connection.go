package srvlocate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// systemResolvConf is where the system resolver configuration is read
// from when no nameservers are given explicitly.
var systemResolvConf = "/etc/resolv.conf"

// FallbackNameservers are queried when the system has no resolv.conf, as
// on Windows, and no servers were given explicitly.
var FallbackNameservers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// errNoServers is returned when neither options nor the resolver
// configuration name a server to query.
var errNoServers = errors.New("no DNS servers configured")

// listNameservers reads the system resolver configuration and returns its
// servers as "host:port" addresses, in configuration order.
func listNameservers(path string) ([]string, error) {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(conf.Servers) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoServers)
	}
	port := conf.Port
	if port == "" {
		port = "53"
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, port))
	}
	return servers, nil
}

// systemNameservers returns the servers of the system resolver
// configuration. A missing configuration file yields FallbackNameservers.
func systemNameservers(log *zap.Logger) ([]string, error) {
	servers, err := listNameservers(systemResolvConf)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("no system resolver configuration, using fallback servers",
			zap.String("path", systemResolvConf),
			zap.Strings("servers", FallbackNameservers))
		return append([]string(nil), FallbackNameservers...), nil
	}
	return servers, err
}

// normalizeServer adds the default DNS port to addresses that lack one.
func normalizeServer(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty server address")
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	host := strings.Trim(addr, "[]")
	if net.ParseIP(host) == nil {
		return "", fmt.Errorf("invalid server address %q", addr)
	}
	return net.JoinHostPort(host, "53"), nil
}

// conn holds the UDP and TCP clients used to talk to the configured
// recursive servers.
type conn struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
	log     *zap.Logger
}

func newConn(servers []string, timeout time.Duration, log *zap.Logger) *conn {
	return &conn{
		servers: servers,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		log:     log,
	}
}

// exchange sends a single recursive query for name/qtype and returns the
// first answer received. Servers are tried in order and the next one is
// asked only when the previous gave no answer at all. A truncated UDP
// answer is repeated over TCP against the same server.
func (c *conn) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		in, rtt, err := c.udp.ExchangeContext(ctx, m, server)
		if err == nil && in.Truncated {
			c.log.Debug("truncated answer, retrying over tcp",
				zap.String("name", m.Question[0].Name), zap.String("server", server))
			in, rtt, err = c.tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil {
			c.log.Warn("query failed",
				zap.String("name", m.Question[0].Name),
				zap.String("type", dns.TypeToString[qtype]),
				zap.String("server", server),
				zap.Error(err))
			lastErr = err
			continue
		}

		c.log.Debug("query answered",
			zap.String("name", m.Question[0].Name),
			zap.String("type", dns.TypeToString[qtype]),
			zap.String("server", server),
			zap.String("rcode", RcodeName(in.Rcode)),
			zap.Int("answers", len(in.Answer)),
			zap.Duration("rtt", rtt))
		return in, server, nil
	}
	if lastErr == nil {
		lastErr = errNoServers
	}
	return nil, "", lastErr
}

// query runs exchange and classifies the outcome. A nil error means the
// answer section holds records of qtype; otherwise the error is a
// *QueryError that either wraps ErrNotFound or describes a failure.
func (c *conn) query(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	in, server, err := c.exchange(ctx, name, qtype)
	if err != nil {
		return nil, &QueryError{Name: name, Type: qtype, Rcode: -1, Err: err}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &QueryError{Name: name, Type: qtype, Server: server, Rcode: in.Rcode,
			Err: fmt.Errorf("%w: %s does not exist", ErrNotFound, trimDot(name))}
	default:
		return nil, &QueryError{Name: name, Type: qtype, Server: server, Rcode: in.Rcode}
	}

	var rrs []dns.RR
	for _, rr := range in.Answer {
		if rr.Header().Rrtype == qtype {
			rrs = append(rrs, rr)
		}
	}
	if len(rrs) == 0 {
		return nil, &QueryError{Name: name, Type: qtype, Server: server, Rcode: in.Rcode,
			Err: fmt.Errorf("%w: %s has no %s records", ErrNotFound, trimDot(name), dns.TypeToString[qtype])}
	}
	return rrs, nil
}
