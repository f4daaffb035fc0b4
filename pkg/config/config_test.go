package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jupiterone/jupiterone-client-go/pkg/client"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
account: acme
token: file-token
graphql_url: https://graphql.eu.jupiterone.io
max_workers: 4
allow_partial_results: true
poll_timeout: 2m
retry:
  max_attempts: 3
  initial_backoff: 250ms
redis:
  addr: localhost:6379
  db: 2
result_cache_ttl: 5m
log:
  level: debug
  pretty: true
`

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Account)
	assert.Equal(t, "file-token", cfg.Token)
	assert.Equal(t, "https://graphql.eu.jupiterone.io", cfg.GraphQLURL)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.True(t, cfg.AllowPartialResults)
	assert.Equal(t, 2*time.Minute, cfg.PollTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 5*time.Minute, cfg.ResultCacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "acount: typo\n"},
		{"bad duration", "poll_timeout: soon\n"},
		{"wrong type", "max_workers: many\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	err = cfg.ApplyEnv(envMap(map[string]string{
		EnvToken:             "env-token",
		EnvURL:               "https://graphql.example.test",
		EnvMaxWorkers:        "8",
		EnvRequestsPerSecond: "2.5",
		EnvResultCacheTTL:    "30s",
		EnvLogLevel:          "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Account, "unset variables keep the file value")
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "https://graphql.example.test", cfg.GraphQLURL)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.ResultCacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level, "empty variables are ignored")
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		EnvMaxWorkers:        "four",
		EnvRequestsPerSecond: "fast",
		EnvResultCacheTTL:    "forever",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.ApplyEnv(envMap(map[string]string{key: value}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	t.Setenv(EnvAccount, "env-acme")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-acme", cfg.Account)
	assert.Equal(t, "file-token", cfg.Token)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv(EnvAccount, "acme")
	t.Setenv(EnvToken, "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Account)
	assert.Equal(t, "secret", cfg.Token)
}

func TestClientConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.DB = 0
	rdb := cfg.RedisClient()
	require.NotNil(t, rdb)
	t.Cleanup(func() { rdb.Close() })

	cc := cfg.ClientConfig(rdb, nil)
	assert.Equal(t, "acme", cc.Account)
	assert.Equal(t, "https://graphql.eu.jupiterone.io", cc.GraphQLURL)
	assert.Equal(t, client.DefaultSyncURL, cc.SyncURL, "unset fields keep the client default")
	assert.Equal(t, 60*time.Second, cc.HTTPTimeout)
	assert.Equal(t, 4, cc.MaxWorkers)
	assert.Equal(t, 3, cc.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cc.Retry.InitialBackoff)
	assert.Equal(t, 30*time.Second, cc.Retry.MaxBackoff)
	assert.Equal(t, 2*time.Minute, cc.PollTimeout)
	assert.Equal(t, 5*time.Minute, cc.ResultCacheTTL)
	assert.True(t, cc.AllowPartialResults)

	c, err := client.New(cc)
	require.NoError(t, err)
	c.Close()
}

func TestClientConfig_WithoutRedis(t *testing.T) {
	cfg := &Config{Account: "acme", Token: "secret", ResultCacheTTL: time.Minute}

	assert.Nil(t, cfg.RedisClient())

	cc := cfg.ClientConfig(nil, nil)
	assert.Zero(t, cc.ResultCacheTTL, "the result cache needs redis")

	_, err := client.New(cc)
	assert.NoError(t, err)
}

func TestLoggingConfig(t *testing.T) {
	buf := &bytes.Buffer{}

	cfg := &Config{Log: LogConfig{Level: "warn", Pretty: true}}
	lc, err := cfg.LoggingConfig(buf)
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.True(t, lc.Pretty)
	assert.Same(t, buf, lc.Output)

	lc, err = (&Config{}).LoggingConfig(buf)
	require.NoError(t, err)
	assert.Equal(t, logging.LevelInfo, lc.Level)

	_, err = (&Config{Log: LogConfig{Level: "loud"}}).LoggingConfig(buf)
	assert.Error(t, err)
}
