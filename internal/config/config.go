package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateRule is an attempt budget for one sensitive action.
type RateRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Config carries every tunable of the access-control core. Values come from
// an optional YAML file (SENTRA_CONFIG) overridden by SENTRA_* environment
// variables.
type Config struct {
	Addr  string `yaml:"addr"`
	PGDSN string `yaml:"pg_dsn"`

	AuthSecret    string        `yaml:"auth_secret"`
	Issuer        string        `yaml:"issuer"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RememberMeTTL time.Duration `yaml:"remember_me_ttl"`

	CookieName     string `yaml:"cookie_name"`
	FallbackHeader string `yaml:"fallback_header"`

	RateLimits map[string]RateRule `yaml:"rate_limits"`

	AdminRoles   []string `yaml:"admin_roles"`
	ManagerRoles []string `yaml:"manager_roles"`

	ThrottleRPS   int   `yaml:"throttle_rps"`
	ThrottleBurst int   `yaml:"throttle_burst"`
	MaxBodyBytes  int64 `yaml:"max_body_bytes"`
}

// Actions with dedicated attempt budgets.
const (
	ActionLogin         = "login"
	ActionPasswordReset = "password_reset"
)

func defaults() Config {
	return Config{
		Addr:           ":8080",
		Issuer:         "sentra",
		AccessTTL:      time.Hour,
		RememberMeTTL:  30 * 24 * time.Hour,
		CookieName:     "sentra_token",
		FallbackHeader: "X-Auth-Token",
		RateLimits: map[string]RateRule{
			ActionLogin:         {Limit: 5, Window: 15 * time.Minute},
			ActionPasswordReset: {Limit: 3, Window: time.Hour},
		},
		AdminRoles:    []string{"super_admin", "admin"},
		ManagerRoles:  []string{"super_admin", "admin", "manager"},
		ThrottleRPS:   50,
		ThrottleBurst: 100,
		MaxBodyBytes:  1 << 20,
	}
}

// Load builds the configuration from file and environment.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("SENTRA_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("SENTRA_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SENTRA_PG_DSN"); v != "" {
		cfg.PGDSN = v
	}
	if v := os.Getenv("SENTRA_AUTH_SECRET"); v != "" {
		cfg.AuthSecret = v
	}
	if v := os.Getenv("SENTRA_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	var err error
	if cfg.AccessTTL, err = envDuration("SENTRA_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RememberMeTTL, err = envDuration("SENTRA_REMEMBER_ME_TTL", cfg.RememberMeTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SENTRA_COOKIE_NAME"); v != "" {
		cfg.CookieName = v
	}
	if v := os.Getenv("SENTRA_FALLBACK_HEADER"); v != "" {
		cfg.FallbackHeader = v
	}
	if cfg.ThrottleRPS, err = envInt("SENTRA_THROTTLE_RPS", cfg.ThrottleRPS); err != nil {
		return Config{}, err
	}
	if cfg.ThrottleBurst, err = envInt("SENTRA_THROTTLE_BURST", cfg.ThrottleBurst); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.AuthSecret) == "" {
		return fmt.Errorf("auth secret is not configured (SENTRA_AUTH_SECRET)")
	}
	if c.AccessTTL <= 0 || c.RememberMeTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	for action, rule := range c.RateLimits {
		if rule.Limit <= 0 || rule.Window <= 0 {
			return fmt.Errorf("rate limit for %q must have positive limit and window", action)
		}
	}
	if len(c.AdminRoles) == 0 || len(c.ManagerRoles) == 0 {
		return fmt.Errorf("role gates must not be empty")
	}
	return nil
}

// Rule returns the attempt budget for an action, falling back to the login
// budget when the action has no dedicated entry.
func (c Config) Rule(action string) RateRule {
	if rule, ok := c.RateLimits[action]; ok {
		return rule
	}
	return c.RateLimits[ActionLogin]
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return d, nil
}

func envInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}
