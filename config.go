package accounts

import (
	"errors"
	"time"

	internalaudit "github.com/clipstream/accounts/internal/audit"
)

// Config is the full engine configuration. Secrets are injected here
// explicitly so tests can run with fixed keys; nothing reads ambient
// environment state.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig carries signing secrets and lifetimes for the two token
// kinds. The secrets must differ.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig bundles hashing cost parameters with password policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is enforced on registration and password change.
	MinLength int
	// InvalidateSessionsOnChange clears the stored refresh token after a
	// password change, forcing re-login on other sessions.
	InvalidateSessionsOnChange bool
}

// SecurityConfig gates the fixed-window rate limiters. Limiting requires
// a Redis client on the Builder.
type SecurityConfig struct {
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a conservative baseline. JWT secrets are
// intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:                     64 * 1024,
			Time:                       3,
			Parallelism:                2,
			SaltLength:                 16,
			KeyLength:                  32,
			MinLength:                  6,
			InvalidateSessionsOnChange: true,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:     true,
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        10,
			LoginCooldownDuration:   5 * time.Minute,
			MaxRefreshAttempts:      30,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks invariants that Build depends on.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT TTLs must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT secrets are required")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password MinLength must be >= 1")
	}
	if c.Security.EnableLoginThrottle && c.Security.MaxLoginAttempts < 1 {
		return errors.New("MaxLoginAttempts must be >= 1 when login throttle is enabled")
	}
	if c.Security.EnableRefreshThrottle && c.Security.MaxRefreshAttempts < 1 {
		return errors.New("MaxRefreshAttempts must be >= 1 when refresh throttle is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *AuditConfig) dispatcherConfig() internalaudit.Config {
	return internalaudit.Config{
		Enabled:    c.Enabled,
		BufferSize: c.BufferSize,
		DropIfFull: c.DropIfFull,
	}
}
