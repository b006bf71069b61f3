package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// fileConfig is the on-disk and environment shape of the server settings.
type fileConfig struct {
	HTTP     httpConfig     `mapstructure:"http"`
	Log      logConfig      `mapstructure:"log"`
	Postgres postgresConfig `mapstructure:"postgres"`
	Redis    redisConfig    `mapstructure:"redis"`
	Kafka    kafkaConfig    `mapstructure:"kafka"`
	Identity identityConfig `mapstructure:"identity"`
}

type httpConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type postgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type redisConfig struct {
	// Addr empty runs an embedded miniredis.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type kafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type identityConfig struct {
	GlobalDomain string `mapstructure:"global_domain"`

	PasswordAlgorithm string `mapstructure:"password_algorithm"`
	PasswordVersion   int    `mapstructure:"password_version"`

	// PasswordTTL > 0 enables password expiry.
	PasswordTTL time.Duration `mapstructure:"password_ttl"`

	JWTAlgorithm      string `mapstructure:"jwt_algorithm"`
	JWTPrivateKey     string `mapstructure:"jwt_private_key"`
	JWTPrivateKeyFile string `mapstructure:"jwt_private_key_file"`
	JWTPublicKey      string `mapstructure:"jwt_public_key"`
	JWTPublicKeyFile  string `mapstructure:"jwt_public_key_file"`
	JWTIssuer         string `mapstructure:"jwt_issuer"`
	JWTAudience       string `mapstructure:"jwt_audience"`

	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	IDTokenTTL     time.Duration `mapstructure:"id_token_ttl"`
	APIKeyTTL      time.Duration `mapstructure:"api_key_ttl"`

	// EncryptionMode is "", "AES-CBC" or "EC"; EncryptionKey is base64.
	EncryptionMode string `mapstructure:"encryption_mode"`
	EncryptionKey  string `mapstructure:"encryption_key"`

	OTPMode   string        `mapstructure:"otp_mode"`
	OTPLength int           `mapstructure:"otp_length"`
	OTPTTL    time.Duration `mapstructure:"otp_ttl"`

	// MaxFailedAttempts > 0 enables attempt throttling.
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	AttemptWindow     time.Duration `mapstructure:"attempt_window"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	LatencyMetrics bool `mapstructure:"latency_metrics"`
}

func setDefaults(v *viper.Viper) {
	def := goIdentity.DefaultConfig()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.request_timeout", 5*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("redis.prefix", def.Redis.Prefix)

	v.SetDefault("identity.global_domain", def.GlobalDomain)
	v.SetDefault("identity.password_algorithm", string(def.Password.Current.Algorithm))
	v.SetDefault("identity.password_version", def.Password.CurrentVersion)
	v.SetDefault("identity.password_ttl", time.Duration(0))
	v.SetDefault("identity.jwt_algorithm", def.JWT.Algorithm)
	v.SetDefault("identity.jwt_issuer", def.JWT.Issuer)
	v.SetDefault("identity.access_token_ttl", def.AccessToken.TokenTTL)
	v.SetDefault("identity.refresh_ttl", def.AccessToken.RefreshTTL)
	v.SetDefault("identity.id_token_ttl", def.IDToken.TokenTTL)
	v.SetDefault("identity.api_key_ttl", def.APIKey.TokenTTL)
	v.SetDefault("identity.otp_mode", string(def.OTP.Mode))
	v.SetDefault("identity.otp_length", def.OTP.Length)
	v.SetDefault("identity.otp_ttl", def.OTP.TTL)
	v.SetDefault("identity.max_failed_attempts", def.Attempts.MaxFailures)
	v.SetDefault("identity.attempt_window", def.Attempts.Window)
	v.SetDefault("identity.metrics_enabled", def.Metrics.Enabled)
	v.SetDefault("identity.latency_metrics", true)

	// Keys without a default still need registering for AutomaticEnv to
	// reach them during Unmarshal.
	for _, key := range []string{
		"postgres.dsn", "redis.addr", "redis.password", "kafka.topic_prefix",
		"identity.jwt_private_key", "identity.jwt_private_key_file",
		"identity.jwt_public_key", "identity.jwt_public_key_file",
		"identity.jwt_audience", "identity.encryption_mode", "identity.encryption_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("redis.db", 0)
}

// loadConfig layers defaults, the YAML file, the .env file and the process
// environment, in increasing priority. Nested keys map to env vars with "_"
// separators, e.g. IDENTITY_JWT_ISSUER.
func loadConfig(configFile, envFile string) (fileConfig, error) {
	var cfg fileConfig

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// Slices are not split from env by default.
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		v.Set("kafka.brokers", strings.Split(brokers, ","))
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// engineConfig converts the identity section into a goIdentity.Config.
func (c identityConfig) engineConfig() (goIdentity.Config, error) {
	cfg := goIdentity.DefaultConfig()

	cfg.GlobalDomain = c.GlobalDomain
	cfg.Password.CurrentVersion = c.PasswordVersion
	cfg.Password.Current.Algorithm = password.Algorithm(c.PasswordAlgorithm)
	if c.PasswordTTL > 0 {
		cfg.Password.ExpiryEnabled = true
		cfg.Password.TTL = c.PasswordTTL
	}

	cfg.JWT.Algorithm = c.JWTAlgorithm
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience

	var err error
	if cfg.JWT.PrivateKey, err = keyMaterial(c.JWTPrivateKey, c.JWTPrivateKeyFile); err != nil {
		return cfg, fmt.Errorf("jwt private key: %w", err)
	}
	if cfg.JWT.PublicKey, err = keyMaterial(c.JWTPublicKey, c.JWTPublicKeyFile); err != nil {
		return cfg, fmt.Errorf("jwt public key: %w", err)
	}

	cfg.AccessToken.TokenTTL = c.AccessTokenTTL
	cfg.AccessToken.RefreshTTL = c.RefreshTTL
	cfg.IDToken.TokenTTL = c.IDTokenTTL
	cfg.APIKey.TokenTTL = c.APIKeyTTL

	if c.EncryptionMode != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return cfg, fmt.Errorf("encryption key: %w", err)
		}
		cfg.Encryption.Mode = c.EncryptionMode
		if c.EncryptionMode == "EC" {
			cfg.Encryption.ECPrivateKey = key
		} else {
			cfg.Encryption.Key = key
		}
	}

	cfg.OTP.Mode = goIdentity.OTPMode(c.OTPMode)
	cfg.OTP.Length = c.OTPLength
	cfg.OTP.TTL = c.OTPTTL

	if c.MaxFailedAttempts > 0 {
		cfg.Attempts.Enabled = true
		cfg.Attempts.MaxFailures = c.MaxFailedAttempts
		cfg.Attempts.Window = c.AttemptWindow
	}

	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.LatencyMetrics

	return cfg, cfg.Validate()
}

func keyMaterial(inline, file string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, nil
	}
	return os.ReadFile(file)
}
