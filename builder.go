package accounts

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/clipstream/accounts/internal/audit"
	"github.com/clipstream/accounts/internal/rate"
	"github.com/clipstream/accounts/jwt"
	"github.com/clipstream/accounts/password"
)

// Builder assembles an [Engine]. Configure it during initialization and
// call Build once; the resulting engine is immutable and safe for
// concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger

	users         UserStore
	subscriptions SubscriptionStore
	uploader      Uploader
	validator     Validator
	auditSink     AuditSink

	built bool
}

// New creates a Builder seeded with [DefaultConfig]. JWT secrets must
// still be supplied through [Builder.WithConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the rate limiters. It is
// only required when a throttle is enabled in [SecurityConfig].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. Without one the engine stays
// silent.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithUserStore supplies the credential store collaborator. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithSubscriptions supplies the subscription store. Without it,
// channel profile lookups report zero counts and subscription
// operations fail.
func (b *Builder) WithSubscriptions(subs SubscriptionStore) *Builder {
	b.subscriptions = subs
	return b
}

// WithUploader supplies the media upload collaborator. Required for
// registration and profile-image updates.
func (b *Builder) WithUploader(up Uploader) *Builder {
	b.uploader = up
	return b
}

// WithValidator supplies the input-shape validator. Optional; without
// one only normalization and password policy apply.
func (b *Builder) WithValidator(v Validator) *Builder {
	b.validator = v
	return b
}

// WithAuditSink supplies the audit sink. Events flow only when
// [AuditConfig].Enabled is also set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires the hasher, token manager,
// limiter, metrics, and audit dispatcher, and returns the ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.uploader == nil {
		return nil, errors.New("uploader required")
	}

	throttling := cfg.Security.EnableLoginThrottle || cfg.Security.EnableRefreshThrottle
	if throttling && b.redis == nil {
		return nil, errors.New("rate limiting requires redis client")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if throttling {
		limiter = rate.New(b.redis, rate.Config{
			EnableLoginThrottle:     cfg.Security.EnableLoginThrottle,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		config:        cfg,
		logger:        logger,
		hasher:        hasher,
		tokens:        tokens,
		limiter:       limiter,
		metrics:       NewMetrics(cfg.Metrics),
		audit:         internalaudit.NewDispatcher(cfg.Audit.dispatcherConfig(), b.auditSink),
		users:         b.users,
		subscriptions: b.subscriptions,
		uploader:      b.uploader,
		validator:     b.validator,
	}
	e.buildFlows()

	b.built = true
	return e, nil
}
