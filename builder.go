package goToken

import (
	"errors"
	"time"

	internalaudit "github.com/Averix07/goToken/internal/audit"
	"github.com/Averix07/goToken/internal/flows"
	"github.com/Averix07/goToken/jwt"
	"github.com/Averix07/goToken/revocation"
	"github.com/Averix07/goToken/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goToken APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	sessionStore SessionStore
	ledger       RevocationLedger
	auditSink    AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithSessionStore describes the withsessionstore operation and its observable behavior.
//
// WithSessionStore may return an error when input validation, dependency calls, or security checks fail.
// WithSessionStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

// WithRevocationLedger describes the withrevocationledger operation and its observable behavior.
//
// WithRevocationLedger may return an error when input validation, dependency calls, or security checks fail.
// WithRevocationLedger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRevocationLedger(ledger RevocationLedger) *Builder {
	b.ledger = ledger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil && (b.sessionStore == nil || b.ledger == nil) {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The codec defaults a zero rotation grace to 30s. The engine's copy must
	// match so revocation horizons cover the whole decode grace window.
	if cfg.JWT.RotationGrace == 0 {
		cfg.JWT.RotationGrace = 30 * time.Second
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	if store == nil {
		store = session.NewStore(
			b.redis,
			cfg.Session.RedisPrefix,
			cfg.Session.SlidingExpiration,
			cfg.Session.JitterEnabled,
			cfg.Session.JitterRange,
		)
	}

	// -------- REVOCATION LEDGER --------
	ledger := b.ledger
	if ledger == nil {
		ledger = revocation.NewLedger(b.redis, cfg.Revocation.RedisPrefix)
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		SigningKey:    cloneBytes(cfg.JWT.SigningKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RotationGrace: cfg.JWT.RotationGrace,
		RequireIAT:    cfg.JWT.RequireIAT,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		RootSecret:    cloneBytes(cfg.JWT.RootSecret),
		DerivedKeyIDs: cfg.JWT.DerivedKeyIDs,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		sessionStore: store,
		ledger:       ledger,
		jwtManager:   jm,
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- FLOW WIRING --------
	engine.flows = flows.New(flows.Deps{
		Verify:         engine.verifyFlowDeps(),
		Rotate:         engine.rotateFlowDeps(),
		Revoke:         engine.revokeFlowDeps(),
		Lifecycle:      engine.lifecycleFlowDeps(),
		NetworkBinding: engine.networkBindingFlowDeps(),
		Introspection:  engine.introspectionFlowDeps(),
	})

	b.built = true

	return engine, nil
}
