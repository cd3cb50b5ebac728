// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads envelope server and CLI settings from YAML with
// environment overrides.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/crypto/aead"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/ratelimit"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
	"gopkg.in/yaml.v3"
)

// Environment variables applied on top of the file.
const (
	EnvSecret     = "ENVELOPE_SECRET"
	EnvSignSecret = "ENVELOPE_SIGN_SECRET"
	EnvDigest     = "ENVELOPE_DIGEST"
	EnvCipher     = "ENVELOPE_CIPHER"
	EnvSerializer = "ENVELOPE_SERIALIZER"
	EnvPort       = "ENVELOPE_PORT"
	EnvLogLevel   = "ENVELOPE_LOG_LEVEL"
)

// Secret encodings understood by DecodeSecret.
const (
	PrefixHex    = "hex:"
	PrefixBase64 = "base64:"
	PrefixFile   = "file:"
)

var (
	ErrMissingSecret = errors.New("config: envelope secret is required")
	ErrInvalidSecret = errors.New("config: invalid secret encoding")
)

// Config represents the complete configuration
type Config struct {
	Envelope EnvelopeConfig `yaml:"envelope"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// EnvelopeConfig selects secrets and algorithms. Secrets accept the
// hex:, base64: and file: prefixes; anything else is used verbatim.
type EnvelopeConfig struct {
	Secret           string        `yaml:"secret"`
	SignSecret       string        `yaml:"sign_secret"`
	Digest           string        `yaml:"digest"`
	Cipher           string        `yaml:"cipher"`
	Serializer       string        `yaml:"serializer"`
	DefaultExpiresIn time.Duration `yaml:"default_expires_in"`
	NonceTracking    bool          `yaml:"nonce_tracking"`
	UsageLimit       int64         `yaml:"usage_limit"`
}

// ServerConfig contains REST server settings
type ServerConfig struct {
	Host            string           `yaml:"host"`
	Port            int              `yaml:"port"`
	ReadTimeout     time.Duration    `yaml:"read_timeout"`
	WriteTimeout    time.Duration    `yaml:"write_timeout"`
	IdleTimeout     time.Duration    `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64            `yaml:"max_body_bytes"`
	RateLimit       ratelimit.Config `yaml:"rate_limit"`
	TLS             TLSConfig        `yaml:"tls"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with every field except the secret set.
func Default() *Config {
	return &Config{
		Envelope: EnvelopeConfig{
			Digest:     verifier.DefaultDigest,
			Cipher:     aead.AES256GCM,
			Serializer: serializer.NameJSON,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit: ratelimit.Config{
				Enabled:           true,
				RequestsPerMinute: ratelimit.DefaultRequestsPerMinute,
				Burst:             50,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse is Load without validation, for callers that layer further
// overrides such as command line flags before validating.
func Parse(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - config path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the ENVELOPE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvSecret); v != "" {
		cfg.Envelope.Secret = v
	}
	if v := os.Getenv(EnvSignSecret); v != "" {
		cfg.Envelope.SignSecret = v
	}
	if v := os.Getenv(EnvDigest); v != "" {
		cfg.Envelope.Digest = v
	}
	if v := os.Getenv(EnvCipher); v != "" {
		cfg.Envelope.Cipher = v
	}
	if v := os.Getenv(EnvSerializer); v != "" {
		cfg.Envelope.Serializer = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Envelope.Validate(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max_body_bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return ratelimit.ErrInvalidRate
	}
	if _, err := ratelimit.ParseTrustedProxies(c.Server.RateLimit.TrustedProxies); err != nil {
		return err
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}
	return nil
}

// Validate checks secrets and algorithm names without building anything.
func (e *EnvelopeConfig) Validate() error {
	if _, err := e.DecodedSecret(); err != nil {
		return err
	}
	if _, err := DecodeSecret(e.SignSecret); err != nil {
		return fmt.Errorf("sign_secret: %w", err)
	}
	if _, err := verifier.NormalizeDigest(e.Digest); err != nil {
		return err
	}
	if _, err := aead.Normalize(e.Cipher); err != nil {
		return fmt.Errorf("%w: %q", err, e.Cipher)
	}
	if _, err := serializer.ByName(e.Serializer); err != nil {
		return err
	}
	if e.DefaultExpiresIn < 0 {
		return fmt.Errorf("invalid default_expires_in: %s", e.DefaultExpiresIn)
	}
	if e.UsageLimit < 0 {
		return fmt.Errorf("invalid usage_limit: %d", e.UsageLimit)
	}
	return nil
}

// DecodedSecret returns the decoded envelope secret, failing when empty.
func (e *EnvelopeConfig) DecodedSecret() ([]byte, error) {
	secret, err := DecodeSecret(e.Secret)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	return secret, nil
}

// VerifierOptions translates the section into verifier options.
func (e *EnvelopeConfig) VerifierOptions(log logger.Logger) ([]verifier.Option, error) {
	s, err := serializer.ByName(e.Serializer)
	if err != nil {
		return nil, err
	}
	opts := []verifier.Option{
		verifier.WithDigest(e.Digest),
		verifier.WithSerializer(s),
		verifier.WithLogger(log),
	}
	if e.DefaultExpiresIn > 0 {
		opts = append(opts, verifier.WithDefaultExpiresIn(e.DefaultExpiresIn))
	}
	return opts, nil
}

// EncryptorOptions translates the section into encryptor options.
func (e *EnvelopeConfig) EncryptorOptions(log logger.Logger) ([]encryptor.Option, error) {
	s, err := serializer.ByName(e.Serializer)
	if err != nil {
		return nil, err
	}
	opts := []encryptor.Option{
		encryptor.WithCipher(e.Cipher),
		encryptor.WithDigest(e.Digest),
		encryptor.WithSerializer(s),
		encryptor.WithNonceTracking(e.NonceTracking),
		encryptor.WithLogger(log),
	}
	signSecret, err := DecodeSecret(e.SignSecret)
	if err != nil {
		return nil, fmt.Errorf("sign_secret: %w", err)
	}
	if len(signSecret) > 0 {
		opts = append(opts, encryptor.WithSignSecret(signSecret))
	}
	if e.DefaultExpiresIn > 0 {
		opts = append(opts, encryptor.WithDefaultExpiresIn(e.DefaultExpiresIn))
	}
	if e.UsageLimit > 0 {
		opts = append(opts, encryptor.WithUsageLimit(e.UsageLimit))
	}
	return opts, nil
}

// DecodeSecret interprets a configured secret. Errors never echo the
// value.
//
//	hex:00ff...      hex bytes
//	base64:AAEC...   standard base64
//	file:/run/key    file contents, trailing newline trimmed
//	anything else    the literal bytes
func DecodeSecret(value string) ([]byte, error) {
	switch {
	case value == "":
		return nil, nil
	case strings.HasPrefix(value, PrefixHex):
		b, err := hex.DecodeString(strings.TrimPrefix(value, PrefixHex))
		if err != nil {
			return nil, fmt.Errorf("%w: hex", ErrInvalidSecret)
		}
		return b, nil
	case strings.HasPrefix(value, PrefixBase64):
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, PrefixBase64))
		if err != nil {
			return nil, fmt.Errorf("%w: base64", ErrInvalidSecret)
		}
		return b, nil
	case strings.HasPrefix(value, PrefixFile):
		// #nosec G304 - secret path is provided by the operator
		b, err := os.ReadFile(strings.TrimPrefix(value, PrefixFile))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
		}
		return []byte(strings.TrimRight(string(b), "\r\n")), nil
	default:
		return []byte(value), nil
	}
}

// Address returns the host:port the server listens on.
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
