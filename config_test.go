package goIdentity

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlyKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing private key error")
	}
	cfg = testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{name: "empty global domain", mutate: func(c *Config) { c.GlobalDomain = " " }},
		{name: "minimum above current", mutate: func(c *Config) { c.Password.MinimumVersion = c.Password.CurrentVersion + 1 }},
		{name: "expiry without ttl", mutate: func(c *Config) { c.Password.ExpiryEnabled = true; c.Password.TTL = 0 }},
		{name: "unknown jwt algorithm", mutate: func(c *Config) { c.JWT.Algorithm = "PS999" }, target: ErrUnsupportedAlgorithm},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessToken.TokenTTL = 0 }},
		{name: "negative refresh ttl", mutate: func(c *Config) { c.IDToken.RefreshTTL = -time.Second }},
		{name: "short opaque tokens", mutate: func(c *Config) { c.Opaque.TokenBytes = 8 }},
		{name: "zero linker ttl", mutate: func(c *Config) { c.Opaque.TOTPLinkerTTL = 0 }},
		{name: "unknown otp mode", mutate: func(c *Config) { c.OTP.Mode = "EMOJI" }},
		{name: "short otp", mutate: func(c *Config) { c.OTP.Length = 3 }},
		{name: "bad totp digits", mutate: func(c *Config) { c.TOTP.Default.Digits = 9 }},
		{name: "bad authenticator algorithm", mutate: func(c *Config) {
			c.TOTP.Authenticators = map[string]TOTPStep{"x": {Period: 30, Digits: 6, Algorithm: "MD5"}}
		}, target: ErrUnsupportedAlgorithm},
		{name: "attempts without window", mutate: func(c *Config) { c.Attempts.Enabled = true; c.Attempts.Window = 0 }},
		{name: "missing event channel", mutate: func(c *Config) { c.Events.OTPChannel = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestOTPModeCaseInsensitive(t *testing.T) {
	cfg := testConfig(t)
	cfg.OTP.Mode = "numeric"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("lower-case mode rejected: %v", err)
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := testConfig(t)
	cfg.TOTP.Authenticators = map[string]TOTPStep{"a": cfg.TOTP.Default}
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] ^= 0xff
	clone.TOTP.Authenticators["b"] = cfg.TOTP.Default
	clone.Password.Legacy[9] = cfg.Password.Current

	if cfg.JWT.PrivateKey[0] == clone.JWT.PrivateKey[0] {
		t.Fatal("private key shared")
	}
	if _, ok := cfg.TOTP.Authenticators["b"]; ok {
		t.Fatal("authenticators shared")
	}
	if _, ok := cfg.Password.Legacy[9]; ok {
		t.Fatal("legacy map shared")
	}
}
