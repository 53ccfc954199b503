package cfg

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirena/pkg/util"
)

type outbound struct {
	ReadTimeout     util.Duration
	ConnectAttempts int
}

type testConfig struct {
	Host     string
	Port     int
	UsePool  bool
	Outbound outbound
}

func TestOverrides(t *testing.T) {
	src := testConfig{Host: "gw.example", Port: 34323, Outbound: outbound{ReadTimeout: util.Duration{Duration: time.Minute}, ConnectAttempts: 5}}
	var c Config
	require.NoError(t, c.ReadFrom(&src))

	for _, o := range []string{"host=10.0.0.2", "UsePool = true", "outbound.readtimeout=3s", "Outbound.ConnectAttempts=2"} {
		require.NoError(t, c.SetOverride(o), o)
	}
	assert.Error(t, c.SetOverride("Port=high"))
	assert.Error(t, c.SetOverride("Outbound=1"))
	assert.Error(t, c.SetOverride("novalue"))

	var dst testConfig
	require.NoError(t, c.WriteTo(&dst))
	assert.Equal(t, testConfig{
		Host:     "10.0.0.2",
		Port:     34323,
		UsePool:  true,
		Outbound: outbound{ReadTimeout: util.Duration{Duration: 3 * time.Second}, ConnectAttempts: 2},
	}, dst)

	assert.Equal(t, "10.0.0.2", c.GetValue("HOST"))
	assert.EqualValues(t, 2, c.GetValue("outbound.connectattempts"))
	assert.Nil(t, c.GetValue("outbound.missing"))
	assert.IsType(t, map[string]interface{}{}, c.GetValue("Outbound"))

	var buf bytes.Buffer
	c.WriteToKVList(&buf)
	assert.Equal(t, "Host=10.0.0.2\nOutbound.ConnectAttempts=2\nOutbound.ReadTimeout=3s\nPort=34323\nUsePool=true\n", buf.String())
}

func TestReadFromFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.toml": "Host = \"gw.example\"\nPort = 1\n[Outbound]\nConnectAttempts = 3\n",
		"a.yaml": "Host: gw.example\nPort: 1\nOutbound:\n  ConnectAttempts: 3\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			var c Config
			require.NoError(t, c.ReadFromFile(path))
			assert.Equal(t, "gw.example", c.GetValue("host"))
			assert.EqualValues(t, 3, c.GetValue("Outbound.ConnectAttempts"))
		})
	}
	path := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	var c Config
	assert.Error(t, c.ReadFromFile(path))
}

func TestMerge(t *testing.T) {
	var base, overrides Config
	require.NoError(t, base.ReadFromToml(bytes.NewBufferString("Host = \"a\"\n[Pool]\nMinSize = 2\nMaxSize = 4\n")))
	require.NoError(t, overrides.ReadFromToml(bytes.NewBufferString("[pool]\nmaxsize = 8\n")))
	require.NoError(t, base.Merge(&overrides))
	assert.EqualValues(t, 8, base.GetValue("Pool.MaxSize"))
	assert.EqualValues(t, 2, base.GetValue("Pool.MinSize"))
	assert.Equal(t, "a", base.GetValue("Host"))
}
