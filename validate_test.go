package srvlocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "myserver.aternos.me", "myserver.aternos.me"},
		{"trailing dot", "myserver.aternos.me.", "myserver.aternos.me"},
		{"uppercase", "MyServer.Aternos.ME", "myserver.aternos.me"},
		{"whitespace", "  myserver.aternos.me\n", "myserver.aternos.me"},
		{"nested label", "eu.myserver.aternos.me", "eu.myserver.aternos.me"},
		{"hyphen", "my-server.aternos.me", "my-server.aternos.me"},
		{"double hyphen", "my--server.aternos.me", "my--server.aternos.me"},
		{"double hyphen short", "ab--cd.aternos.me", "ab--cd.aternos.me"},
		{"idn", "bücher.aternos.me", "xn--bcher-kva.aternos.me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultProfile.Validate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"aternos.me",
		".aternos.me",
		"myserver.aternos.me.evil.com",
		"myserver.notaternos.me",
		"myserveraternos.me",
		"my..server.aternos.me",
		"example.com",
		"my server.aternos.me",
		"_minecraft._tcp.myserver.aternos.me",
	} {
		_, err := DefaultProfile.Validate(input)
		assert.ErrorIs(t, err, ErrInvalidDomain, "input %q", input)
	}
}

func TestValidateWithoutSuffix(t *testing.T) {
	p := Profile{Name: "any", Service: "minecraft", Proto: "tcp"}

	got, err := p.Validate("play.example.net")
	require.NoError(t, err)
	assert.Equal(t, "play.example.net", got)

	_, err = p.Validate("bad..example.net")
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "_minecraft._tcp.myserver.aternos.me.", DefaultProfile.QueryName("myserver.aternos.me"))

	p := Profile{Service: "_factorio", Proto: "_udp"}
	assert.Equal(t, "_factorio._udp.play.example.net.", p.QueryName("play.example.net."))
}

func TestExample(t *testing.T) {
	assert.Equal(t, "myserver.aternos.me", DefaultProfile.Example())
	assert.Equal(t, "myserver.example.net", Profile{}.Example())
}
