package srvlocate

import (
	"errors"
	"math/rand"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func srv(priority, weight uint16, target string) *dns.SRV {
	return &dns.SRV{
		Hdr:      dns.RR_Header{Name: "_minecraft._tcp.a.aternos.me.", Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60},
		Priority: priority,
		Weight:   weight,
		Port:     25565,
		Target:   target,
	}
}

func targetNames(records []*dns.SRV) []string {
	var names []string
	for _, r := range records {
		names = append(names, r.Target)
	}
	return names
}

func TestSortRecords(t *testing.T) {
	records := []*dns.SRV{
		srv(10, 5, "A"),
		srv(5, 1, "B"),
		srv(5, 9, "C"),
	}
	SortRecords(records)
	if diff := cmp.Diff([]string{"C", "B", "A"}, targetNames(records)); diff != "" {
		t.Errorf("SortRecords() mismatch (-want +got):\n%s", diff)
	}
}

func TestSortRecordsStableOnTies(t *testing.T) {
	records := []*dns.SRV{
		srv(1, 1, "first"),
		srv(0, 0, "zero"),
		srv(1, 1, "second"),
		srv(1, 1, "third"),
	}
	SortRecords(records)
	if diff := cmp.Diff([]string{"zero", "first", "second", "third"}, targetNames(records)); diff != "" {
		t.Errorf("SortRecords() mismatch (-want +got):\n%s", diff)
	}
}

func TestSortRecordsOrderProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for n := 0; n < 50; n++ {
		var records []*dns.SRV
		for i := 0; i < 1+rnd.Intn(12); i++ {
			records = append(records, srv(uint16(rnd.Intn(4)), uint16(rnd.Intn(4)), "x."))
		}
		SortRecords(records)
		for i := 1; i < len(records); i++ {
			prev, cur := records[i-1], records[i]
			require.LessOrEqual(t, prev.Priority, cur.Priority)
			if prev.Priority == cur.Priority {
				require.GreaterOrEqual(t, prev.Weight, cur.Weight)
			}
		}
	}
}

func TestNewTarget(t *testing.T) {
	tg := NewTarget(srv(5, 9, "node7.example.net."))
	assert.Equal(t, "node7.example.net.", tg.Target)
	assert.Equal(t, "node7.example.net", tg.HostName)
	assert.Equal(t, 25565, tg.Port)
	assert.Equal(t, 5, tg.Priority)
	assert.Equal(t, 9, tg.Weight)
	assert.Equal(t, uint32(60), tg.TTL)
	assert.False(t, tg.HasAddrs())
	assert.False(t, tg.Unavailable())
}

func TestNewTargetUnavailable(t *testing.T) {
	tg := NewTarget(srv(0, 0, "."))
	assert.True(t, tg.Unavailable())
	assert.Equal(t, ".", tg.HostName)

	res := &Result{Targets: []*Target{tg}}
	assert.True(t, res.Unavailable())
	assert.False(t, res.Found())

	res.Targets = append(res.Targets, NewTarget(srv(1, 0, "node7.example.net.")))
	assert.False(t, res.Unavailable())
	assert.False(t, (&Result{}).Unavailable())
}

func TestTargetWarnings(t *testing.T) {
	failure := &QueryError{Name: "node7.example.net.", Type: dns.TypeA, Server: "127.0.0.1:53", Rcode: dns.RcodeServerFailure}
	notFound := &QueryError{Name: "node7.example.net.", Type: dns.TypeAAAA, Rcode: dns.RcodeSuccess, Err: ErrNotFound}

	tg := &Target{Err4: failure, Err6: notFound}
	warn := tg.Warnings()
	require.Error(t, warn)
	assert.Len(t, multierr.Errors(warn), 1)
	assert.True(t, errors.Is(warn, failure))

	tg = &Target{Err6: notFound}
	assert.NoError(t, tg.Warnings())
}

func TestResultAddresses(t *testing.T) {
	res := &Result{Targets: []*Target{
		{HostName: "a.example.net", Port: 1, AddrIPv6: []net.IP{net.ParseIP("2001:db8::1")}, AddrIPv4: []net.IP{net.ParseIP("192.0.2.1")}},
		{HostName: "b.example.net", Port: 2},
		{HostName: "c.example.net", Port: 3, AddrIPv4: []net.IP{net.ParseIP("192.0.2.3")}},
	}}
	require.True(t, res.Found())

	var got []string
	for _, a := range res.Addresses() {
		got = append(got, a.HostName+" "+a.String())
	}
	want := []string{
		"a.example.net 192.0.2.1:1",
		"a.example.net [2001:db8::1]:1",
		"c.example.net 192.0.2.3:3",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Addresses() mismatch (-want +got):\n%s", diff)
	}

	empty := &Result{Targets: []*Target{{HostName: "b.example.net", Port: 2}}}
	assert.False(t, empty.Found())
	assert.Empty(t, empty.Addresses())
}
