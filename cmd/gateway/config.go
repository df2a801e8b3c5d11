package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"summary-gateway/logging"
)

type config struct {
	listenAddr  string
	corsOrigins []string

	rateEnabled    bool
	rateRPS        float64
	rateBurst      int
	rateKeyHeader  string
	trustXFF       bool
	retryAfter     time.Duration
	addHeaders     bool
	counterBackend string

	redisAddr     string
	redisPassword string
	redisDB       int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsBackend   string
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	openaiAPIKey      string
	openaiBaseURL     string
	openaiModel       string
	openaiTemperature float64
	completionTimeout time.Duration

	mailUsername string
	mailPassword string
	mailFrom     string
	mailServer   string
	mailPort     int
	mailStartTLS bool
	mailSSLTLS   bool
	mailTimeout  time.Duration

	log logging.Config
}

// fileConfig é o formato do arquivo apontado por CONFIG_FILE. Campos
// ausentes mantêm o padrão; o ambiente sempre tem a última palavra.
type fileConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`

	RateLimit struct {
		Enabled        *bool         `yaml:"enabled"`
		RPS            float64       `yaml:"rps"`
		Burst          int           `yaml:"burst"`
		KeyHeader      string        `yaml:"key_header"`
		TrustXFF       *bool         `yaml:"trust_xff"`
		RetryAfter     time.Duration `yaml:"retry_after"`
		AddHeaders     *bool         `yaml:"add_headers"`
		CounterBackend string        `yaml:"counter_backend"`
	} `yaml:"rate_limit"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Stats struct {
		Backend   string        `yaml:"backend"`
		Prefix    string        `yaml:"prefix"`
		TTL       time.Duration `yaml:"ttl"`
		Bucket    string        `yaml:"bucket"`
		TrackKeys *bool         `yaml:"track_keys"`
	} `yaml:"stats"`

	Concurrency struct {
		Max     *int          `yaml:"max"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"concurrency"`

	OpenAI struct {
		APIKey      string        `yaml:"api_key"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model"`
		Temperature *float64      `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"openai"`

	Mail struct {
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		From     string        `yaml:"from"`
		Server   string        `yaml:"server"`
		Port     int           `yaml:"port"`
		StartTLS *bool         `yaml:"starttls"`
		SSLTLS   *bool         `yaml:"ssl_tls"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"mail"`

	Log *logging.Config `yaml:"log"`
}

func defaultConfig() config {
	return config{
		listenAddr:  ":8080",
		corsOrigins: []string{"http://localhost:3000", "http://localhost:5173"},

		rateEnabled:    true,
		rateRPS:        10,
		rateBurst:      20,
		retryAfter:     1 * time.Second,
		counterBackend: "memory",

		redisAddr: "localhost:6379",

		concurrencyMax: 100,

		rateStatsBackend: "none",
		rateStatsPrefix:  "ratelimit:stats",
		rateStatsTTL:     24 * time.Hour,
		rateStatsBucket:  "minute",

		openaiBaseURL:     "https://api.openai.com/v1",
		openaiModel:       "gpt-3.5-turbo",
		openaiTemperature: 0.7,
		completionTimeout: 30 * time.Second,

		mailPort:     587,
		mailStartTLS: true,
		mailTimeout:  20 * time.Second,

		log: logging.DefaultConfig(),
	}
}

// readConfig aplica, nesta ordem: padrões, arquivo YAML (CONFIG_FILE),
// .env e variáveis de ambiente. Valida no final.
func readConfig() (config, error) {
	// .env não sobrescreve o que já está no ambiente
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.listenAddr, fc.ListenAddr)
	if len(fc.CORSOrigins) > 0 {
		cfg.corsOrigins = fc.CORSOrigins
	}

	rl := fc.RateLimit
	setBool(&cfg.rateEnabled, rl.Enabled)
	if rl.RPS > 0 {
		cfg.rateRPS = rl.RPS
	}
	if rl.Burst > 0 {
		cfg.rateBurst = rl.Burst
	}
	setString(&cfg.rateKeyHeader, rl.KeyHeader)
	setBool(&cfg.trustXFF, rl.TrustXFF)
	setDuration(&cfg.retryAfter, rl.RetryAfter)
	setBool(&cfg.addHeaders, rl.AddHeaders)
	setString(&cfg.counterBackend, rl.CounterBackend)

	setString(&cfg.redisAddr, fc.Redis.Addr)
	setString(&cfg.redisPassword, fc.Redis.Password)
	if fc.Redis.DB > 0 {
		cfg.redisDB = fc.Redis.DB
	}

	setString(&cfg.rateStatsBackend, fc.Stats.Backend)
	setString(&cfg.rateStatsPrefix, fc.Stats.Prefix)
	setDuration(&cfg.rateStatsTTL, fc.Stats.TTL)
	setString(&cfg.rateStatsBucket, fc.Stats.Bucket)
	setBool(&cfg.rateStatsTrackKeys, fc.Stats.TrackKeys)

	if fc.Concurrency.Max != nil {
		cfg.concurrencyMax = *fc.Concurrency.Max
	}
	setDuration(&cfg.concurrencyTimeout, fc.Concurrency.Timeout)

	setString(&cfg.openaiAPIKey, fc.OpenAI.APIKey)
	setString(&cfg.openaiBaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.openaiModel, fc.OpenAI.Model)
	if fc.OpenAI.Temperature != nil {
		cfg.openaiTemperature = *fc.OpenAI.Temperature
	}
	setDuration(&cfg.completionTimeout, fc.OpenAI.Timeout)

	setString(&cfg.mailUsername, fc.Mail.Username)
	setString(&cfg.mailPassword, fc.Mail.Password)
	setString(&cfg.mailFrom, fc.Mail.From)
	setString(&cfg.mailServer, fc.Mail.Server)
	if fc.Mail.Port > 0 {
		cfg.mailPort = fc.Mail.Port
	}
	setBool(&cfg.mailStartTLS, fc.Mail.StartTLS)
	setBool(&cfg.mailSSLTLS, fc.Mail.SSLTLS)
	setDuration(&cfg.mailTimeout, fc.Mail.Timeout)

	if fc.Log != nil {
		setString(&cfg.log.Level, fc.Log.Level)
		setString(&cfg.log.Format, fc.Log.Format)
		setString(&cfg.log.File, fc.Log.File)
		if fc.Log.MaxSizeMB > 0 {
			cfg.log.MaxSizeMB = fc.Log.MaxSizeMB
		}
		if fc.Log.MaxBackups > 0 {
			cfg.log.MaxBackups = fc.Log.MaxBackups
		}
		if fc.Log.MaxAgeDays > 0 {
			cfg.log.MaxAgeDays = fc.Log.MaxAgeDays
		}
	}
	return nil
}

func applyEnv(cfg *config) {
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", cfg.listenAddr)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.corsOrigins = splitList(v)
	}

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", cfg.rateEnabled)
	rpsFromEnv := getenvIsSet("RATE_RPS")
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", cfg.rateRPS)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 pode dar a impressão de que
	// o limiter não está funcionando, porque as primeiras ~20 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else if rpsFromEnv && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
		cfg.rateBurst = 1
	}
	cfg.rateKeyHeader = getenvDefault("RATE_KEY_HEADER", cfg.rateKeyHeader)
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", cfg.trustXFF)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", cfg.retryAfter)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", cfg.addHeaders)
	cfg.counterBackend = strings.ToLower(getenvDefault("RATE_COUNTER_BACKEND", cfg.counterBackend))

	cfg.redisAddr = getenvDefault("REDIS_ADDR", cfg.redisAddr)
	cfg.redisPassword = getenvDefault("REDIS_PASSWORD", cfg.redisPassword)
	cfg.redisDB = getenvIntDefault("REDIS_DB", cfg.redisDB)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", cfg.concurrencyMax)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.concurrencyTimeout)

	cfg.rateStatsBackend = strings.ToLower(getenvDefault("RATE_STATS_BACKEND", cfg.rateStatsBackend))
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", cfg.rateStatsPrefix)
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", cfg.rateStatsTTL)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", cfg.rateStatsBucket)
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.rateStatsTrackKeys)

	cfg.openaiAPIKey = getenvDefault("OPENAI_API_KEY", cfg.openaiAPIKey)
	cfg.openaiBaseURL = getenvDefault("OPENAI_BASE_URL", cfg.openaiBaseURL)
	cfg.openaiModel = getenvDefault("OPENAI_MODEL", cfg.openaiModel)
	cfg.openaiTemperature = getenvFloatDefault("OPENAI_TEMPERATURE", cfg.openaiTemperature)
	cfg.completionTimeout = getenvDurationDefault("COMPLETION_TIMEOUT", cfg.completionTimeout)

	cfg.mailUsername = getenvDefault("MAIL_USERNAME", cfg.mailUsername)
	cfg.mailPassword = getenvDefault("MAIL_PASSWORD", cfg.mailPassword)
	cfg.mailFrom = getenvDefault("MAIL_FROM", cfg.mailFrom)
	cfg.mailServer = getenvDefault("MAIL_SERVER", cfg.mailServer)
	cfg.mailPort = getenvIntDefault("MAIL_PORT", cfg.mailPort)
	cfg.mailStartTLS = getenvBoolDefault("MAIL_STARTTLS", cfg.mailStartTLS)
	cfg.mailSSLTLS = getenvBoolDefault("MAIL_SSL_TLS", cfg.mailSSLTLS)
	cfg.mailTimeout = getenvDurationDefault("MAIL_TIMEOUT", cfg.mailTimeout)

	cfg.log.Level = getenvDefault("LOG_LEVEL", cfg.log.Level)
	cfg.log.Format = getenvDefault("LOG_FORMAT", cfg.log.Format)
	cfg.log.File = getenvDefault("LOG_FILE", cfg.log.File)
	cfg.log.MaxSizeMB = getenvIntDefault("LOG_MAX_SIZE_MB", cfg.log.MaxSizeMB)
	cfg.log.MaxBackups = getenvIntDefault("LOG_MAX_BACKUPS", cfg.log.MaxBackups)
	cfg.log.MaxAgeDays = getenvIntDefault("LOG_MAX_AGE_DAYS", cfg.log.MaxAgeDays)
}

func (cfg config) validate() error {
	if cfg.rateRPS <= 0 {
		return errors.New("RATE_RPS must be > 0")
	}
	if cfg.rateBurst <= 0 {
		return errors.New("RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	switch cfg.counterBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_COUNTER_BACKEND must be memory or redis, got %q", cfg.counterBackend)
	}
	switch cfg.rateStatsBackend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("RATE_STATS_BACKEND must be none, memory or redis, got %q", cfg.rateStatsBackend)
	}
	if cfg.usesRedis() && strings.TrimSpace(cfg.redisAddr) == "" {
		return errors.New("REDIS_ADDR is required when a redis backend is selected")
	}
	if strings.TrimSpace(cfg.openaiAPIKey) == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.mailServer) == "" {
		return errors.New("MAIL_SERVER is required")
	}
	if cfg.mailFrom == "" && cfg.mailUsername == "" {
		return errors.New("MAIL_FROM (or MAIL_USERNAME) is required")
	}
	if cfg.completionTimeout <= 0 || cfg.mailTimeout <= 0 {
		return errors.New("COMPLETION_TIMEOUT and MAIL_TIMEOUT must be > 0")
	}
	if _, err := logging.ParseLevel(cfg.log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

func (cfg config) usesRedis() bool {
	return cfg.counterBackend == "redis" || cfg.rateStatsBackend == "redis"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
