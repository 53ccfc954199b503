package util

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type durations struct {
	Timeout Duration
	Idle    Duration `yaml:"idle"`
}

func TestDurationDecode(t *testing.T) {
	var fromToml durations
	_, err := toml.Decode(`Timeout = "1.5s"
Idle = "2m"`, &fromToml)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, fromToml.Timeout.Duration)
	assert.Equal(t, 2*time.Minute, fromToml.Idle.Duration)

	var fromYaml durations
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 75s\nidle: 60s\n"), &fromYaml))
	assert.Equal(t, 75*time.Second, fromYaml.Timeout.Duration)
	assert.Equal(t, 60*time.Second, fromYaml.Idle.Duration)

	assert.Error(t, yaml.Unmarshal([]byte("timeout: soon\n"), &fromYaml))
}

func TestTimeToLive(t *testing.T) {
	now := time.Unix(1000, 0)
	exp := ExpireAtFrom(now, 90*time.Second)
	assert.Equal(t, int64(1090), exp)
	assert.Equal(t, 90*time.Second, TimeToLiveFrom(exp, now))
	assert.Equal(t, time.Duration(0), TimeToLiveFrom(exp, now.Add(time.Hour)))
}

func TestHexDump(t *testing.T) {
	data := append([]byte("sirena"), 0x00, 0x01, 0xff)
	data = append(data, []byte("0123456789")...)
	assert.Equal(t,
		"00000000  73 69 72 65 6E 61 00 01 FF 30 31 32 33 34 35 36  sirena...0123456\n"+
			"00000010  37 38 39                                         789\n",
		HexDumpString(data))
	assert.Equal(t, "", HexDumpString(nil))
}
