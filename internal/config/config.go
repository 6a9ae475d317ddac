// File: internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port                int           `yaml:"port"`
	PublicBaseURL       string        `yaml:"public_base_url"` // used to build statusUrl
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AuthConfig struct {
	// APIKeys maps a shared secret to the client identity it authenticates.
	APIKeys   map[string]string `yaml:"api_keys"`
	AdminIDs  []string          `yaml:"admin_ids"`
	JWTSecret string            `yaml:"jwt_secret"`
	JWTTTL    time.Duration     `yaml:"jwt_ttl"`
	JWTIssuer string            `yaml:"jwt_issuer"`

	// SigningSecret enables signed requests (X-API-Key, X-Timestamp,
	// X-Signature) alongside Bearer credentials.
	SigningSecret string        `yaml:"signing_secret"`
	SignatureSkew time.Duration `yaml:"signature_skew"`
}

type RateLimitConfig struct {
	Capacity        float64  `yaml:"capacity"`
	RefillPerMinute float64  `yaml:"refill_per_minute"`
	ExemptClientIDs []string `yaml:"exempt_client_ids"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory | redis
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type WebhookConfig struct {
	URL               string        `yaml:"url"`
	Secret            string        `yaml:"secret"`
	Timeout           time.Duration `yaml:"timeout"`
	ImmediateAttempts int           `yaml:"immediate_attempts"`
	ReplayInterval    time.Duration `yaml:"replay_interval"` // 0 disables scheduled replay
	MaxReplayAttempts int           `yaml:"max_replay_attempts"`
}

type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type MediaConfig struct {
	DownloaderPath           string        `yaml:"downloader_path"`
	TempDir                  string        `yaml:"temp_dir"`
	AllowedHosts             []string      `yaml:"allowed_hosts"`
	MaxAudioSeconds          float64       `yaml:"max_audio_seconds"`
	DownloadTimeout          time.Duration `yaml:"download_timeout"`
	TranscribeTimeout        time.Duration `yaml:"transcribe_timeout"`
	SummarizeTimeout         time.Duration `yaml:"summarize_timeout"`
	MaxConcurrentFetches     int           `yaml:"max_concurrent_fetches"`
	MaxConcurrentTranscribes int           `yaml:"max_concurrent_transcribes"`
}

type AIConfig struct {
	TranscribeURL   string `yaml:"transcribe_url"` // OpenAI compatible base, e.g. https://api.openai.com/v1
	TranscribeModel string `yaml:"transcribe_model"`
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	SummaryModel    string `yaml:"summary_model"`
	Summarize       bool   `yaml:"summarize"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Worker    WorkerConfig    `yaml:"worker"`
	Media     MediaConfig     `yaml:"media"`
	AI        AIConfig        `yaml:"ai"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file means defaults),
// applies environment overrides for secrets, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults + env only
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	envStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	envStr(&cfg.Webhook.URL, "BILLING_WEBHOOK_URL")
	envStr(&cfg.Webhook.Secret, "WEBHOOK_SECRET")
	envStr(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	envStr(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	envStr(&cfg.Redis.URL, "REDIS_URL")
	envStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	envStr(&cfg.Log.Level, "LOG_LEVEL")
	envStr(&cfg.Auth.SigningSecret, "API_SECRET")
	// API_KEYS_JSON is {"<key>": "<client id>"}, merged over the file's keys.
	if v := strings.TrimSpace(os.Getenv("API_KEYS_JSON")); v != "" {
		var keys map[string]string
		if err := json.Unmarshal([]byte(v), &keys); err == nil {
			if cfg.Auth.APIKeys == nil {
				cfg.Auth.APIKeys = map[string]string{}
			}
			for k, id := range keys {
				cfg.Auth.APIKeys[k] = id
			}
		}
	}
}

func envStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.PollIntervalSeconds <= 0 {
		cfg.Server.PollIntervalSeconds = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Auth.JWTTTL <= 0 {
		cfg.Auth.JWTTTL = 15 * time.Minute
	}
	if cfg.Auth.SignatureSkew <= 0 {
		cfg.Auth.SignatureSkew = 5 * time.Minute
	}
	if cfg.Auth.JWTIssuer == "" {
		cfg.Auth.JWTIssuer = "tttranscribe"
	}
	if cfg.RateLimit.Capacity <= 0 {
		cfg.RateLimit.Capacity = 10
	}
	if cfg.RateLimit.RefillPerMinute <= 0 {
		cfg.RateLimit.RefillPerMinute = 10
	}
	if len(cfg.RateLimit.ExemptClientIDs) == 0 {
		cfg.RateLimit.ExemptClientIDs = []string{"health-probe"}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 48 * time.Hour
	}
	if cfg.Cache.SweepInterval <= 0 {
		cfg.Cache.SweepInterval = time.Hour
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Webhook.ImmediateAttempts <= 0 {
		cfg.Webhook.ImmediateAttempts = 1
	}
	if cfg.Webhook.ImmediateAttempts > 3 {
		cfg.Webhook.ImmediateAttempts = 3
	}
	if cfg.Webhook.MaxReplayAttempts <= 0 {
		cfg.Webhook.MaxReplayAttempts = 10
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = cfg.Worker.Count * 16
	}
	if cfg.Media.DownloaderPath == "" {
		cfg.Media.DownloaderPath = "yt-dlp"
	}
	if cfg.Media.TempDir == "" {
		cfg.Media.TempDir = os.TempDir()
	}
	if cfg.Media.MaxAudioSeconds <= 0 {
		cfg.Media.MaxAudioSeconds = 600
	}
	if cfg.Media.DownloadTimeout <= 0 {
		cfg.Media.DownloadTimeout = 2 * time.Minute
	}
	if cfg.Media.TranscribeTimeout <= 0 {
		cfg.Media.TranscribeTimeout = 5 * time.Minute
	}
	if cfg.Media.SummarizeTimeout <= 0 {
		cfg.Media.SummarizeTimeout = 30 * time.Second
	}
	if cfg.Media.MaxConcurrentFetches <= 0 {
		cfg.Media.MaxConcurrentFetches = 2
	}
	if cfg.Media.MaxConcurrentTranscribes <= 0 {
		cfg.Media.MaxConcurrentTranscribes = 1
	}
	if cfg.AI.TranscribeURL == "" {
		cfg.AI.TranscribeURL = "https://api.openai.com/v1"
	}
	if cfg.AI.TranscribeModel == "" {
		cfg.AI.TranscribeModel = "whisper-1"
	}
	if cfg.AI.SummaryModel == "" {
		cfg.AI.SummaryModel = "gpt-4o-mini"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend %q not supported", c.Cache.Backend)
	}
	if c.Webhook.URL != "" && c.Webhook.Secret == "" {
		return errors.New("webhook.secret is required when webhook.url is set")
	}
	if len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		return errors.New("auth: configure auth.api_keys or auth.jwt_secret")
	}
	return nil
}
