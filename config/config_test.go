package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantumauth-io/rulesign-go/rules"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load([]string{t.TempDir()})
	require.NoError(t, err)

	require.Contains(t, s.Rules.URL, "rules.json")
	require.Equal(t, 10*time.Second, s.Rules.Timeout)
	require.Equal(t, int32(0), s.Rules.MaxRetries)
	require.Equal(t, "auto", s.Rules.Strategy)
	require.Equal(t, 30*time.Second, s.Platform.Timeout)
	require.False(t, s.Cache.Enabled)
	require.Equal(t, 5*time.Minute, s.Cache.TTL)
	require.Equal(t, "6379", s.Cache.Redis.Port)
	require.Equal(t, "info", s.Log.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, `
rules:
  url: https://rules.example/rules.json
  max_retries: 3
  strategy: fixed
platform:
  base_url: https://platform.example
session:
  cookies: "sess=abc; auth_id=99"
  xbc: device
  user_agent: agent/1
cache:
  enabled: true
  redis:
    host: cache.internal
`)

	s, err := Load([]string{dir})
	require.NoError(t, err)

	require.Equal(t, "https://rules.example/rules.json", s.Rules.URL)
	require.Equal(t, 10*time.Second, s.Rules.Timeout)
	require.Equal(t, "https://platform.example", s.Platform.BaseURL)
	require.True(t, s.Cache.Enabled)
	require.Equal(t, "cache.internal", s.Cache.Redis.Host)
	require.Equal(t, "6379", s.Cache.Redis.Port)

	fc, err := s.FetcherConfig()
	require.NoError(t, err)
	require.Equal(t, rules.StrategyFixed, fc.Strategy)
	require.Equal(t, int32(3), fc.Retry.MaxNumRetries)
	require.Equal(t, 2*time.Second, fc.Retry.InitialDelayBeforeRetrying)

	sess, err := s.SessionValue()
	require.NoError(t, err)
	require.Equal(t, "99", sess.UserID())
	require.Equal(t, "device", sess.XBC)
	require.Equal(t, "agent/1", sess.UserAgent)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RULESIGN_PLATFORM_BASE_URL", "https://env.example")
	t.Setenv("RULESIGN_SESSION_XBC", "from-env")
	t.Setenv("RULESIGN_RULES_TIMEOUT", "3s")

	s, err := Load([]string{t.TempDir()})
	require.NoError(t, err)

	require.Equal(t, "https://env.example", s.Platform.BaseURL)
	require.Equal(t, "from-env", s.Session.XBC)
	require.Equal(t, 3*time.Second, s.Rules.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"strategy": "rules:\n  strategy: sideways\n",
		"cookies":  "session:\n  cookies: \"broken\"\n",
		"retries":  "rules:\n  max_retries: -5\n",
		"rulesURL": "rules:\n  url: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]string{writeConfig(t, body)})
			require.Error(t, err)
		})
	}
}

type plain struct {
	Name  string `mapstructure:"name" structs:"name"`
	Count int    `mapstructure:"count" structs:"count"`
}

func TestParseConfigWithoutEmbedded(t *testing.T) {
	dir := writeConfig(t, "name: widget\ncount: 4\n")

	c, err := ParseConfig[plain]([]string{dir})
	require.NoError(t, err)
	require.Equal(t, plain{Name: "widget", Count: 4}, *c)

	_, err = ParseConfig[plain]([]string{t.TempDir()})
	require.Error(t, err)
}
