package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/elum-utils/srvlocate"
	"github.com/elum-utils/srvlocate/internal/dnstest"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const srvName = "_minecraft._tcp.myserver.aternos.me."

func newZone(t *testing.T) *dnstest.Server {
	t.Helper()
	s, err := dnstest.NewServer()
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown() })
	s.MustAddRR(
		srvName+" 60 IN SRV 0 5 25565 node7.example.net.",
		"node7.example.net. 60 IN A 203.0.113.9",
	)
	return s
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help", []string{"--help"}},
		{"short help", []string{"-h"}},
		{"no domain", nil},
		{"two domains", []string{"a.aternos.me", "b.aternos.me"}},
		{"unknown flag", []string{"--bogus", "a.aternos.me"}},
		{"both families", []string{"--ipv4-only", "--ipv6-only", "a.aternos.me"}},
		{"bad output", []string{"-o", "xml", "a.aternos.me"}},
		{"bad color", []string{"--color", "sometimes", "a.aternos.me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stdout+stderr, "Usage:")
		})
	}
}

func TestRunText(t *testing.T) {
	s := newZone(t)
	code, stdout, _ := execute(t, "--nameserver", s.Addr(), "--color", "never", "myserver.aternos.me")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "[ATTEMPT] Querying DNS SRV record: _minecraft._tcp.myserver.aternos.me")
	assert.Contains(t, stdout, "IP address: 203.0.113.9")
	assert.Contains(t, stdout, "Port: 25565")
	assert.Contains(t, stdout, "[INFO] Resolution finished.")
	assert.NotContains(t, stdout, "\x1b[")
}

func TestRunInvalidDomain(t *testing.T) {
	s := newZone(t)
	code, stdout, _ := execute(t, "--nameserver", s.Addr(), "example.com")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "[ERROR] Invalid aternos domain format. Example: 'myserver.aternos.me'")
	assert.NotContains(t, stdout, "Querying")
	assert.Contains(t, stdout, "Resolution finished.")
	assert.Zero(t, s.QueryCount(dns.TypeANY))
}

func TestRunNotFoundExitsZero(t *testing.T) {
	s := newZone(t)
	code, stdout, _ := execute(t, "--nameserver", s.Addr(), "other.aternos.me")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "[ERROR] No SRV record found for '_minecraft._tcp.other.aternos.me'.")
}

func TestRunJSON(t *testing.T) {
	s := newZone(t)
	code, stdout, _ := execute(t, "--nameserver", s.Addr(), "-o", "json", "myserver.aternos.me")
	require.Equal(t, exitOK, code)

	var rep srvlocate.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, srvlocate.StatusFound, rep.Status)
	require.Len(t, rep.Targets, 1)
	assert.Equal(t, []string{"203.0.113.9"}, rep.Targets[0].IPv4)
}

func TestRunEnvironment(t *testing.T) {
	s := newZone(t)
	t.Setenv("SRVLOCATE_NAMESERVER", s.Addr())
	t.Setenv("SRVLOCATE_OUTPUT", "yaml")
	t.Setenv("SRVLOCATE_IPV4_ONLY", "true")

	code, stdout, _ := execute(t, "myserver.aternos.me")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "status: found")
	assert.Zero(t, s.QueryCount(dns.TypeAAAA))
}

func TestRunConfigFile(t *testing.T) {
	s := newZone(t)
	s.MustAddRR("_minecraft._tcp.box.example.org. 60 IN SRV 0 0 25600 node7.example.net.")

	path := filepath.Join(t.TempDir(), "srvlocate.yaml")
	config := "suffix: example.org\noutput: json\nnameserver:\n  - " + s.Addr() + "\n"
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))

	code, stdout, _ := execute(t, "--config", path, "box.example.org")
	require.Equal(t, exitOK, code)
	var rep srvlocate.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, srvlocate.StatusFound, rep.Status)
	assert.Equal(t, 25600, rep.Targets[0].Port)

	// Flags win over the file.
	code, stdout, _ = execute(t, "--config", path, "-o", "yaml", "box.example.org")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "status: found")
}

func TestRunInternalErrors(t *testing.T) {
	code, _, stderr := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "a.aternos.me")
	assert.Equal(t, exitInternal, code)
	assert.Contains(t, stderr, "reading config")

	code, _, stderr = execute(t, "--nameserver", "not-an-ip", "a.aternos.me")
	assert.Equal(t, exitInternal, code)
	assert.Contains(t, stderr, "invalid server address")
	assert.NotContains(t, stderr, "Usage:")
}

func TestRunVerbose(t *testing.T) {
	s := newZone(t)
	code, _, stderr := execute(t, "-v", "--nameserver", s.Addr(), "myserver.aternos.me")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "query answered")
}
