package srvlocate

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds a single DNS exchange.
	DefaultTimeout = 5 * time.Second

	// DefaultWorkers is the number of targets resolved concurrently.
	DefaultWorkers = 4
)

// clientOpts holds configuration options for the Resolver.
type clientOpts struct {
	profile    Profile
	servers    []string
	resolvConf string
	timeout    time.Duration
	workers    int
	families   IPType
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*clientOpts)

// WithProfile selects the provider namespace and SRV service name.
func WithProfile(p Profile) Option {
	return func(o *clientOpts) {
		o.profile = p
	}
}

// WithNameservers sets the recursive servers to query, overriding the
// system configuration. Addresses without a port use port 53.
func WithNameservers(servers ...string) Option {
	return func(o *clientOpts) {
		o.servers = append(o.servers, servers...)
	}
}

// WithResolvConf reads the servers from a resolv.conf style file other
// than /etc/resolv.conf. Unlike the system file, a missing file is an
// error. Ignored when WithNameservers is used.
func WithResolvConf(path string) Option {
	return func(o *clientOpts) {
		o.resolvConf = path
	}
}

// WithTimeout bounds each DNS exchange. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOpts) {
		o.timeout = d
	}
}

// WithWorkers sets how many SRV targets are resolved concurrently.
// Values below one resolve targets one at a time.
func WithWorkers(n int) Option {
	return func(o *clientOpts) {
		o.workers = n
	}
}

// SelectIPTraffic configures which address families (IPv4, IPv6, or both)
// are resolved for every target.
func SelectIPTraffic(t IPType) Option {
	return func(o *clientOpts) {
		o.families = t
	}
}

// WithLogger sets the logger for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *clientOpts) {
		o.logger = l
	}
}

// Resolver locates game servers published behind SRV records.
// A Resolver holds no state between lookups and is safe for concurrent use.
type Resolver struct {
	profile  Profile
	families IPType
	workers  int
	c        *conn
	log      *zap.Logger
}

// NewResolver creates a Resolver. Unless WithNameservers or WithResolvConf
// is given, the servers are taken from /etc/resolv.conf, or from
// FallbackNameservers on systems without that file.
//
// Returns an error if no usable server can be determined.
func NewResolver(options ...Option) (*Resolver, error) {
	var conf = clientOpts{
		profile:  DefaultProfile,
		timeout:  DefaultTimeout,
		workers:  DefaultWorkers,
		families: IPv4AndIPv6,
	}
	for _, o := range options {
		if o != nil {
			o(&conf)
		}
	}
	if conf.logger == nil {
		conf.logger = zap.NewNop()
	}
	if conf.timeout <= 0 {
		conf.timeout = DefaultTimeout
	}
	if conf.workers < 1 {
		conf.workers = 1
	}
	if conf.families&IPv4AndIPv6 == 0 {
		return nil, fmt.Errorf("no address family selected")
	}
	if conf.profile.Service == "" || conf.profile.Proto == "" {
		return nil, fmt.Errorf("profile %q: missing service or protocol", conf.profile.Name)
	}

	var servers []string
	if len(conf.servers) > 0 {
		for _, s := range conf.servers {
			addr, err := normalizeServer(s)
			if err != nil {
				return nil, err
			}
			servers = append(servers, addr)
		}
	} else {
		var err error
		if conf.resolvConf != "" {
			servers, err = listNameservers(conf.resolvConf)
		} else {
			servers, err = systemNameservers(conf.logger)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Resolver{
		profile:  conf.profile,
		families: conf.families,
		workers:  conf.workers,
		c:        newConn(servers, conf.timeout, conf.logger),
		log:      conf.logger,
	}, nil
}

// Profile returns the provider profile the resolver validates against.
func (r *Resolver) Profile() Profile {
	return r.profile
}

// Nameservers returns the servers queried, in order.
func (r *Resolver) Nameservers() []string {
	return append([]string(nil), r.c.servers...)
}

// Lookup validates domain, queries its SRV record and resolves every
// target to its addresses.
//
// The returned error is ErrInvalidDomain (wrapped) when the input is
// rejected before any query is sent, or a *QueryError for the SRV stage:
// one that wraps ErrNotFound when no record is published, otherwise a
// resolver failure. Address lookups never fail the call; their outcome
// is recorded on each Target.
func (r *Resolver) Lookup(ctx context.Context, domain string) (*Result, error) {
	name, err := r.profile.Validate(domain)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Domain: name,
		Query:  r.profile.QueryName(name),
	}

	rrs, err := r.c.query(ctx, res.Query, dns.TypeSRV)
	if err != nil {
		return nil, err
	}

	var records []*dns.SRV
	for _, rr := range rrs {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	SortRecords(records)
	for _, srv := range records {
		res.Targets = append(res.Targets, NewTarget(srv))
	}
	r.log.Debug("srv records", zap.String("query", res.Query), zap.Int("targets", len(res.Targets)))

	r.resolveTargets(ctx, res.Targets)
	return res, nil
}

// resolveTargets resolves all targets with at most r.workers lookups in
// flight. Each target is written only by its own goroutine, so the slice
// keeps its sorted order.
func (r *Resolver) resolveTargets(ctx context.Context, targets []*Target) {
	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			r.resolveTarget(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

// resolveTarget looks up both address families of a single target. The
// families are independent: an error in one does not stop the other.
func (r *Resolver) resolveTarget(ctx context.Context, t *Target) {
	if t.Unavailable() {
		return
	}
	if r.families&IPv4 != 0 {
		t.AddrIPv4, t.Err4 = r.lookupAddrs(ctx, t.Target, dns.TypeA)
	}
	if r.families&IPv6 != 0 {
		t.AddrIPv6, t.Err6 = r.lookupAddrs(ctx, t.Target, dns.TypeAAAA)
	}
}

func (r *Resolver) lookupAddrs(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	rrs, err := r.c.query(ctx, host, qtype)
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, rr := range rrs {
		switch rr := rr.(type) {
		case *dns.A:
			ips = append(ips, rr.A)
		case *dns.AAAA:
			ips = append(ips, rr.AAAA)
		}
	}
	return ips, nil
}
