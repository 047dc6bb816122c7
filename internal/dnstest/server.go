// Package dnstest provides an in-process recursive-looking DNS server that
// answers from a static zone. It listens on one loopback port over both UDP
// and TCP so that resolvers can be exercised over real wire exchanges.
package dnstest

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
)

// key identifies an RRset in the zone.
type key struct {
	name  string
	qtype uint16
}

func newKey(name string, qtype uint16) key {
	return key{name: strings.ToLower(dns.Fqdn(name)), qtype: qtype}
}

// Server answers queries from its zone. Names with records of any type
// answer NOERROR, other names NXDOMAIN. A CNAME at the queried name is
// followed one step, the way a recursive server returns the chain.
type Server struct {
	udp *dns.Server
	tcp *dns.Server
	pc  net.PacketConn

	mu         sync.Mutex
	zone       map[key][]dns.RR
	names      map[string]bool
	rcodes     map[key]int
	drop       map[key]bool
	truncate   map[key]bool
	queries    []dns.Question
	tcpQueries []dns.Question

	shutdownLock sync.Mutex
	isShutdown   bool
}

// NewServer starts a server on a random loopback port, serving UDP and TCP.
func NewServer() (*Server, error) {
	pc, l, err := listen()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pc:       pc,
		zone:     make(map[key][]dns.RR),
		names:    make(map[string]bool),
		rcodes:   make(map[key]int),
		drop:     make(map[key]bool),
		truncate: make(map[key]bool),
	}

	started := make(chan struct{}, 2)
	notify := func() { started <- struct{}{} }
	s.udp = &dns.Server{PacketConn: pc, Handler: s, NotifyStartedFunc: notify}
	s.tcp = &dns.Server{Listener: l, Handler: s, NotifyStartedFunc: notify}

	errc := make(chan error, 2)
	for _, srv := range []*dns.Server{s.udp, s.tcp} {
		srv := srv
		go func() {
			errc <- srv.ActivateAndServe()
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case err := <-errc:
			pc.Close()
			l.Close()
			return nil, fmt.Errorf("dnstest: server did not start: %v", err)
		}
	}
	return s, nil
}

// listen opens a UDP socket and a TCP listener on the same loopback port.
func listen() (net.PacketConn, net.Listener, error) {
	for i := 0; i < 10; i++ {
		pc, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			return nil, nil, err
		}
		l, err := net.Listen("tcp", pc.LocalAddr().String())
		if err == nil {
			return pc, l, nil
		}
		pc.Close()
	}
	return nil, nil, errors.New("dnstest: no port free for both udp and tcp")
}

// Addr returns the "host:port" address the server listens on.
func (s *Server) Addr() string {
	return s.pc.LocalAddr().String()
}

// AddRR parses records in zone file presentation format, e.g.
// "_minecraft._tcp.a.aternos.me. 60 IN SRV 0 5 25565 node7.example.net.",
// and adds them to the zone.
func (s *Server) AddRR(records ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		rr, err := dns.NewRR(record)
		if err != nil {
			return fmt.Errorf("dnstest: %q: %v", record, err)
		}
		if rr == nil {
			continue
		}
		k := newKey(rr.Header().Name, rr.Header().Rrtype)
		s.zone[k] = append(s.zone[k], rr)
		s.names[k.name] = true
	}
	return nil
}

// MustAddRR is like AddRR but panics on malformed records.
func (s *Server) MustAddRR(records ...string) {
	if err := s.AddRR(records...); err != nil {
		panic(err)
	}
}

// SetRcode makes queries for name/qtype fail with rcode.
func (s *Server) SetRcode(name string, qtype uint16, rcode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcodes[newKey(name, qtype)] = rcode
}

// Drop makes the server ignore queries for name/qtype, so that clients
// time out.
func (s *Server) Drop(name string, qtype uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop[newKey(name, qtype)] = true
}

// Truncate makes UDP answers for name/qtype come back empty with the TC
// bit set. The same question over TCP is answered in full.
func (s *Server) Truncate(name string, qtype uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncate[newKey(name, qtype)] = true
}

// Queries returns the questions received so far over either transport,
// in arrival order.
func (s *Server) Queries() []dns.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dns.Question(nil), s.queries...)
}

// TCPQueries returns the questions received over TCP.
func (s *Server) TCPQueries() []dns.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dns.Question(nil), s.tcpQueries...)
}

// QueryCount returns how many questions of qtype were received.
// dns.TypeANY counts all of them.
func (s *Server) QueryCount(qtype uint16) int {
	var n int
	for _, q := range s.Queries() {
		if qtype == dns.TypeANY || q.Qtype == qtype {
			n++
		}
	}
	return n
}

// Shutdown stops the server and closes its socket.
func (s *Server) Shutdown() error {
	s.shutdownLock.Lock()
	defer s.shutdownLock.Unlock()
	if s.isShutdown {
		return errors.New("dnstest: server is already shutdown")
	}
	s.isShutdown = true
	return multierr.Combine(s.udp.Shutdown(), s.tcp.Shutdown())
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, query *dns.Msg) {
	if len(query.Question) != 1 {
		resp := new(dns.Msg)
		resp.SetRcode(query, dns.RcodeFormatError)
		w.WriteMsg(resp)
		return
	}
	q := query.Question[0]
	k := newKey(q.Name, q.Qtype)
	_, overTCP := w.RemoteAddr().(*net.TCPAddr)

	s.mu.Lock()
	s.queries = append(s.queries, q)
	if overTCP {
		s.tcpQueries = append(s.tcpQueries, q)
	}
	if s.drop[k] {
		s.mu.Unlock()
		return
	}
	var resp *dns.Msg
	if s.truncate[k] && !overTCP {
		resp = new(dns.Msg)
		resp.SetReply(query)
		resp.RecursionAvailable = true
		resp.Truncated = true
	} else {
		resp = s.compose(query, k)
	}
	s.mu.Unlock()

	if err := w.WriteMsg(resp); err != nil {
		// The client may already have given up.
		return
	}
}

// compose builds the answer for k. Must be called with s.mu held.
func (s *Server) compose(query *dns.Msg, k key) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(query)
	resp.RecursionAvailable = true

	if rcode, ok := s.rcodes[k]; ok {
		resp.Rcode = rcode
		return resp
	}

	if rrs, ok := s.zone[k]; ok {
		resp.Answer = append(resp.Answer, rrs...)
		return resp
	}

	if cnames, ok := s.zone[newKey(k.name, dns.TypeCNAME)]; ok && k.qtype != dns.TypeCNAME {
		resp.Answer = append(resp.Answer, cnames...)
		if cname, ok := cnames[0].(*dns.CNAME); ok {
			resp.Answer = append(resp.Answer, s.zone[newKey(cname.Target, k.qtype)]...)
		}
		return resp
	}

	if !s.names[k.name] {
		resp.Rcode = dns.RcodeNameError
	}
	return resp
}
