package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
http:
  port: 9090
logging:
  level: debug
upstream:
  url: ws://kernel:9000/events
transports:
  websocket:
    enabled: true
  redis:
    enabled: true
    stream: kernel:events
modules:
  - name: event-broadcast
    config:
      events:
        - content_block:*
        - tool:*
        - orchestrator:complete
      capability_name: broadcast
`

func TestParse_Sample(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", c.HTTP.Bind)
	require.Equal(t, 9090, c.HTTP.Port)
	require.Equal(t, "debug", c.Logging.Level)
	require.Equal(t, "ws://kernel:9000/events", c.Upstream.URL)
	require.Equal(t, 2*time.Second, c.Upstream.FakeInterval)
	require.Equal(t, "broadcast", c.Transports.Capability)
	require.True(t, c.Transports.WebSocket.Enabled)
	require.Equal(t, 64, c.Transports.WebSocket.Buffer)
	require.Equal(t, "localhost:6379", c.Transports.Redis.Addr)
	require.Equal(t, "kernel:events", c.Transports.Redis.Stream)

	require.Len(t, c.Modules, 1)
	require.Equal(t, "event-broadcast", c.Modules[0].Name)
	require.Equal(t, []any{"content_block:*", "tool:*", "orchestrator:complete"}, c.Modules[0].Config["events"])
}

func TestParse_DefaultModule(t *testing.T) {
	c, err := Parse([]byte("upstream:\n  fake: true\n"))
	require.NoError(t, err)
	require.Equal(t, []Module{{Name: "event-broadcast"}}, c.Modules)
	require.Equal(t, "info", c.Logging.Level)
	require.Equal(t, 8080, c.HTTP.Port)
	require.Equal(t, 2*time.Second, c.Transports.Redis.Timeout)
}

func TestParse_EmptyModulesDisablesDefault(t *testing.T) {
	c, err := Parse([]byte("upstream:\n  fake: true\nmodules: []\n"))
	require.NoError(t, err)
	require.NotNil(t, c.Modules)
	require.Empty(t, c.Modules)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("ECHOPBX_HTTP_PORT", "7070")
	t.Setenv("ECHOPBX_CAPABILITY", "ui")
	t.Setenv("ECHOPBX_UPSTREAM_FAKE", "true")
	t.Setenv("ECHOPBX_UPSTREAM_FAKE_INTERVAL", "250ms")

	c, err := Parse([]byte("http:\n  port: 9090\n"))
	require.NoError(t, err)
	require.Equal(t, 7070, c.HTTP.Port)
	require.Equal(t, "ui", c.Transports.Capability)
	require.True(t, c.Upstream.Fake)
	require.Equal(t, 250*time.Millisecond, c.Upstream.FakeInterval)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"no upstream":      "http:\n  port: 80\n",
		"bad port":         "http:\n  port: 70000\nupstream:\n  fake: true\n",
		"bad level":        "logging:\n  level: loud\nupstream:\n  fake: true\n",
		"tls without cert": "http:\n  tls:\n    enabled: true\nupstream:\n  fake: true\n",
		"unnamed module":   "upstream:\n  fake: true\nmodules:\n  - config: {}\n",
		"duplicate module": "upstream:\n  fake: true\nmodules:\n  - name: a\n  - name: a\n",
		"negative redis":   "upstream:\n  fake: true\ntransports:\n  redis:\n    timeout: -1s\n",
		"malformed yaml":   "http: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestParse_NoUpstreamSentinel(t *testing.T) {
	_, err := Parse([]byte("{}"))
	require.ErrorIs(t, err, ErrNoUpstream)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broadcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, c.HTTP.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
