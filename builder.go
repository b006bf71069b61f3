package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/events"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine from configuration and collaborators.
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts     AccountStore
	applications ApplicationStore
	totpKeys     TOTPKeyStore
	opaque       OpaqueTokenStore
	otps         OTPStore
	ledger       RevocationLedger
	publisher    EventPublisher

	exchanges []Exchange
	logger    *zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client backing the opaque token store, OTP store,
// JTI ledger and event sink when those are not set explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

// WithApplicationStore enables the clientCredentials→apiKey exchange.
func (b *Builder) WithApplicationStore(s ApplicationStore) *Builder {
	b.applications = s
	return b
}

// WithTOTPKeyStore enables the totp→accessToken exchange.
func (b *Builder) WithTOTPKeyStore(s TOTPKeyStore) *Builder {
	b.totpKeys = s
	return b
}

func (b *Builder) WithOpaqueTokenStore(s OpaqueTokenStore) *Builder {
	b.opaque = s
	return b
}

func (b *Builder) WithOTPStore(s OTPStore) *Builder {
	b.otps = s
	return b
}

func (b *Builder) WithRevocationLedger(l RevocationLedger) *Builder {
	b.ledger = l
	return b
}

// WithEventPublisher sets the delivery sink of generation events.
func (b *Builder) WithEventPublisher(p EventPublisher) *Builder {
	b.publisher = p
	return b
}

// WithExchange registers an additional exchange. Pairs already covered by the
// built-in table fail Build.
func (b *Builder) WithExchange(x Exchange) *Builder {
	b.exchanges = append(b.exchanges, x)
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides the time source used for issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, resolves algorithms and key material and
// assembles the exchange table. The Builder cannot be reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.redis != nil {
		prefix := cfg.Redis.Prefix
		if b.opaque == nil {
			b.opaque = NewRedisOpaqueTokenStore(b.redis, prefix+":opaque")
		}
		if b.otps == nil {
			b.otps = NewRedisOTPStore(b.redis, prefix+":otp")
		}
		if b.ledger == nil {
			b.ledger = NewRedisRevocationLedger(b.redis, prefix+":jti")
		}
		if b.publisher == nil {
			b.publisher = NewRedisPublisher(b.redis, prefix+":events:")
		}
	}
	var limiter *rate.Limiter
	if cfg.Attempts.Enabled {
		if b.redis == nil {
			return nil, errors.New("attempt limiting requires redis")
		}
		limiter = rate.New(b.redis, cfg.Redis.Prefix+":att:", rate.Config{
			MaxFailures: cfg.Attempts.MaxFailures,
			Window:      cfg.Attempts.Window,
		})
	}
	if b.opaque == nil {
		return nil, errors.New("opaque token store required")
	}
	if b.otps == nil {
		return nil, errors.New("otp store required")
	}
	if b.ledger == nil {
		return nil, errors.New("revocation ledger required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	// -------- PASSWORD VERSIONS --------
	passwords, err := password.NewVersions(cfg.Password.CurrentVersion, cfg.Password.Current, cfg.Password.Legacy)
	if err != nil {
		if errors.Is(err, password.ErrUnsupportedAlgorithm) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
		}
		return nil, err
	}

	// -------- SIGNER --------
	alg, err := jwt.ParseAlgorithm(cfg.JWT.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		Algorithm:  alg,
		PrivateKey: cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:  cloneBytes(cfg.JWT.PublicKey),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		KeyID:      cfg.JWT.KeyID,
		VerifyKeys: cfg.JWT.VerifyKeys,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	encryptor, err := jwt.NewEncryptor(jwt.EncryptionConfig{
		Mode:         jwt.EncryptionMode(cfg.Encryption.Mode),
		Key:          cloneBytes(cfg.Encryption.Key),
		ECPrivateKey: cloneBytes(cfg.Encryption.ECPrivateKey),
		ECPublicKey:  cloneBytes(cfg.Encryption.ECPublicKey),
	})
	if err != nil {
		return nil, err
	}

	// -------- EVENTS & METRICS --------
	metrics := NewMetrics(cfg.Metrics)
	dispatcher := events.NewDispatcher(events.Config{
		BufferSize:     cfg.Events.BufferSize,
		DropIfFull:     cfg.Events.DropIfFull,
		PublishTimeout: cfg.Events.PublishTimeout,
	}, b.publisher, func(channel string, event Event, err error) {
		if errors.Is(err, events.ErrDropped) || errors.Is(err, events.ErrClosed) {
			metrics.Inc(MetricEventDropped)
		} else {
			metrics.Inc(MetricEventPublishFailure)
		}
		logger.Warn().Err(err).Str("channel", channel).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event not delivered")
	})

	c := &core{
		cfg:          cfg,
		accounts:     b.accounts,
		applications: b.applications,
		totpKeys:     b.totpKeys,
		opaque:       b.opaque,
		otps:         b.otps,
		ledger:       b.ledger,
		limiter:      limiter,
		passwords:    passwords,
		signer:       signer,
		encryptor:    encryptor,
		events:       dispatcher,
		metrics:      metrics,
		logger:       logger,
		now:          now,
	}

	e := &Engine{
		core:         c,
		basicHeader:  &BasicVerifier{c: c, header: true},
		basicPair:    &BasicVerifier{c: c},
		accessToken:  &JWTProvider{c: c, tokenType: tokenTypeAccess, strategy: cfg.AccessToken, refresh: true},
		idToken:      &JWTProvider{c: c, tokenType: tokenTypeID, strategy: cfg.IDToken},
		apiKey:       &JWTProvider{c: c, tokenType: tokenTypeAPIKey, strategy: cfg.APIKey},
		accessVerify: &JWTVerifier{c: c, tokenType: tokenTypeAccess, strategy: cfg.AccessToken},
	}

	// -------- EXCHANGE TABLE --------
	identifier := &IdentifierVerifier{c: c}
	authCode := &AuthorizationCodeProvider{c: c}
	table := []Exchange{
		{From: TypeBasic, To: TypeAccessToken, Verifier: e.basicHeader, Provider: e.accessToken},
		{From: TypeBasicDomain, To: TypeAccessToken, Verifier: e.basicPair, Provider: e.accessToken},
		{From: TypeOTP, To: TypeAccessToken, Verifier: &OTPVerifier{c: c}, Provider: e.accessToken},
		{From: TypeRefresh, To: TypeAccessToken, Verifier: &OpaqueVerifier{c: c, kind: KindRefreshToken}, Provider: e.accessToken},
		{From: TypeAuthorizationCode, To: TypeAccessToken, Verifier: &OpaqueVerifier{c: c, kind: KindAuthorizationCode}, Provider: e.accessToken},
		{From: TypePasswordless, To: TypeAccessToken, Verifier: &OpaqueVerifier{c: c, kind: KindPasswordless}, Provider: e.accessToken},
		{From: TypeBasic, To: TypeIDToken, Verifier: e.basicHeader, Provider: e.idToken},
		{From: TypeBasic, To: TypeTOTPLinker, Verifier: e.basicHeader, Provider: &TOTPLinkerProvider{c: c}},
		{From: TypeAccessToken, To: TypeAuthorizationCode, Verifier: e.accessVerify, Provider: authCode},
		{From: TypeAccessToken, To: TypeIDToken, Verifier: e.accessVerify, Provider: e.idToken},
		{From: TypeIdentifier, To: TypeOTP, Verifier: identifier, Provider: &OTPProvider{c: c}},
		{From: TypeIdentifier, To: TypePasswordless, Verifier: identifier, Provider: &PasswordlessProvider{c: c}},
	}
	if b.totpKeys != nil {
		table = append(table, Exchange{From: TypeTOTP, To: TypeAccessToken, Verifier: &TOTPVerifier{c: c}, Provider: e.accessToken})
	}
	if b.applications != nil {
		table = append(table, Exchange{From: TypeClientCredentials, To: TypeAPIKey, Verifier: &ClientCredentialsVerifier{c: c}, Provider: e.apiKey})
	}
	table = append(table, b.exchanges...)

	if e.registry, err = newRegistry(table...); err != nil {
		dispatcher.Close()
		return nil, err
	}

	b.built = true
	return e, nil
}
