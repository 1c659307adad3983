// Package config loads and validates the process-wide configuration snapshot.
// Configuration is read once at startup and passed by injection; no component
// reads the environment directly.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Auth      AuthConfig      `koanf:"auth"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Redis     RedisConfig     `koanf:"redis"`
	Audit     AuditConfig     `koanf:"audit"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeout bounds the handling of a single inbound request.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// UpstreamConfig describes the orchestrator the gateway forwards to.
type UpstreamConfig struct {
	// BaseURL is the orchestrator root; a trailing slash is tolerated.
	BaseURL string `koanf:"base_url"`
	// SharedSecret is sent as the X-Function-Key header on every call.
	SharedSecret string `koanf:"shared_secret"`
	// Timeout bounds a single outbound call.
	Timeout time.Duration `koanf:"timeout"`
}

type AuthConfig struct {
	// JWTSecret signs the admin session cookie.
	JWTSecret string `koanf:"jwt_secret"`
	// AdminKeyHash is the SHA-256 hex digest of the admin login key.
	AdminKeyHash string `koanf:"admin_key_hash"`
	// SessionTTL is the session cookie lifetime.
	SessionTTL time.Duration `koanf:"session_ttl"`
}

type CORSConfig struct {
	// AllowedOrigins is the origin allow-list. Empty means echo any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	Policies []PolicyConfig `koanf:"policies"`
}

// PolicyConfig is a named fixed-window rate-limit policy.
type PolicyConfig struct {
	Name        string        `koanf:"name"`
	Window      time.Duration `koanf:"window"`
	MaxRequests int           `koanf:"max_requests"`
}

type RedisConfig struct {
	// Addr enables the shared Redis backend for rate-limit counters and job
	// records when non-empty. Empty keeps both in process memory.
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuditConfig struct {
	// DBPath is the SQLite file backing the audit sink.
	DBPath string `koanf:"db_path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile loads configuration from the given YAML file (optional) with
// PULSE_-prefixed environment variables layered on top.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("PULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references so secrets can stay out of the file
	cfg.Upstream.SharedSecret = substituteEnvVars(cfg.Upstream.SharedSecret)
	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Auth.AdminKeyHash = substituteEnvVars(cfg.Auth.AdminKeyHash)
	cfg.Redis.Password = substituteEnvVars(cfg.Redis.Password)

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("upstream.timeout") {
		k.Set("upstream.timeout", "20s")
	}
	if !k.Exists("auth.session_ttl") {
		k.Set("auth.session_ttl", "24h")
	}
	if !k.Exists("audit.db_path") {
		k.Set("audit.db_path", "./data/audit.db")
	}
	if !k.Exists("ratelimit.policies") {
		k.Set("ratelimit.policies", []map[string]interface{}{
			{"name": "default", "window": "1m", "max_requests": 120},
			{"name": "strict", "window": "1m", "max_requests": 30},
		})
	}
}

// Validate fails fast on missing required configuration. Absence of a
// required value is a startup error, not a silent default.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.SharedSecret == "" {
		return fmt.Errorf("upstream.shared_secret is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.AdminKeyHash == "" {
		return fmt.Errorf("auth.admin_key_hash is required")
	}
	if len(c.RateLimit.Policies) == 0 {
		return fmt.Errorf("ratelimit.policies must not be empty")
	}
	seen := make(map[string]struct{}, len(c.RateLimit.Policies))
	for _, p := range c.RateLimit.Policies {
		if p.Name == "" {
			return fmt.Errorf("rate limit policy with empty name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate rate limit policy %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Window <= 0 {
			return fmt.Errorf("rate limit policy %q: window must be positive", p.Name)
		}
		if p.MaxRequests <= 0 {
			return fmt.Errorf("rate limit policy %q: max_requests must be positive", p.Name)
		}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
