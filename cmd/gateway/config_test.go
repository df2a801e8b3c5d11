package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAIL_SERVER", "smtp.example.com")
	t.Setenv("MAIL_FROM", "relay@example.com")
	t.Setenv("CONFIG_FILE", "")
}

func TestReadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.corsOrigins)
	assert.Equal(t, "memory", cfg.counterBackend)
	assert.Equal(t, "none", cfg.rateStatsBackend)
	assert.Equal(t, "gpt-3.5-turbo", cfg.openaiModel)
	assert.Equal(t, 0.7, cfg.openaiTemperature)
	assert.Equal(t, 30*time.Second, cfg.completionTimeout)
	assert.Equal(t, 20*time.Second, cfg.mailTimeout)
	assert.Equal(t, 587, cfg.mailPort)
	assert.True(t, cfg.mailStartTLS)
	assert.False(t, cfg.mailSSLTLS)
	assert.False(t, cfg.usesRedis())
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, http://localhost:3000")
	t.Setenv("RATE_COUNTER_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("MAIL_STARTTLS", "False")
	t.Setenv("MAIL_SSL_TLS", "true")
	t.Setenv("MAIL_PORT", "465")
	t.Setenv("COMPLETION_TIMEOUT", "45s")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, cfg.corsOrigins)
	assert.Equal(t, "redis", cfg.counterBackend)
	assert.True(t, cfg.usesRedis())
	assert.False(t, cfg.mailStartTLS)
	assert.True(t, cfg.mailSSLTLS)
	assert.Equal(t, 465, cfg.mailPort)
	assert.Equal(t, 45*time.Second, cfg.completionTimeout)
}

func TestReadConfig_LowRPSDefaultsBurstToOne(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_RPS", "0.02")

	cfg, err := readConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.rateBurst)
}

func TestReadConfig_YAMLFileThenEnv(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	yml := `
listen_addr: ":9090"
rate_limit:
  enabled: false
  counter_backend: memory
stats:
  backend: memory
  track_keys: true
openai:
  model: gpt-4o-mini
  temperature: 0
  timeout: 10s
mail:
  port: 2525
  starttls: false
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := readConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.listenAddr)
	assert.False(t, cfg.rateEnabled)
	assert.Equal(t, "memory", cfg.rateStatsBackend)
	assert.True(t, cfg.rateStatsTrackKeys)
	assert.Equal(t, "gpt-4o", cfg.openaiModel, "env wins over file")
	assert.Equal(t, 0.0, cfg.openaiTemperature)
	assert.Equal(t, 10*time.Second, cfg.completionTimeout)
	assert.Equal(t, 2525, cfg.mailPort)
	assert.False(t, cfg.mailStartTLS)
	assert.Equal(t, "debug", cfg.log.Level)
	assert.Equal(t, "json", cfg.log.Format)
}

func TestReadConfig_BadFile(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := readConfig()
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = readConfig()
	assert.Error(t, err)
}

func TestReadConfig_Validation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing api key":   {"OPENAI_API_KEY": ""},
		"missing mail host": {"MAIL_SERVER": ""},
		"unknown counter":   {"RATE_COUNTER_BACKEND": "memcached"},
		"unknown stats":     {"RATE_STATS_BACKEND": "kafka"},
		"blank redis addr":  {"RATE_STATS_BACKEND": "redis", "REDIS_ADDR": " "},
		"negative max":      {"CONCURRENCY_MAX": "-1"},
		"unknown log level": {"LOG_LEVEL": "loud"},
		"zero burst":        {"RATE_BURST": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig()
			assert.Error(t, err)
		})
	}
}

func TestReadConfig_MailFromFallsBackToUsername(t *testing.T) {
	setRequired(t)
	t.Setenv("MAIL_FROM", "")
	t.Setenv("MAIL_USERNAME", "user@example.com")

	_, err := readConfig()
	assert.NoError(t, err)
}
