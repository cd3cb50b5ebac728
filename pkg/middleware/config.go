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

// Package middleware authenticates requests that carry a signed or
// encrypted envelope. HTTP and gin handlers read the envelope from an
// "Authorization: Envelope <message>" header or a cookie; the gRPC
// interceptor reads it from the "envelope" metadata key. The opened
// payload is stored in the request context.
//
//	v, _ := verifier.New(secret)
//	cfg, _ := middleware.NewConfig(middleware.WithPurpose("session"), middleware.WithCookie("session"))
//	router.Use(middleware.HTTP(middleware.OpenerFunc(v.Verify), cfg))
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
)

const (
	// AuthScheme is the Authorization header scheme.
	AuthScheme = "Envelope"

	// DefaultMetadataKey is the gRPC metadata key holding the envelope.
	DefaultMetadataKey = "envelope"
)

// Opener authenticates a message and returns its payload.
type Opener interface {
	Open(message string, opts ...claims.Option) (any, error)
}

// OpenerFunc adapts verifier.Verifier.Verify or
// encryptor.Encryptor.DecryptAndVerify to an Opener.
type OpenerFunc func(message string, opts ...claims.Option) (any, error)

func (f OpenerFunc) Open(message string, opts ...claims.Option) (any, error) {
	return f(message, opts...)
}

// Sealer produces a message for a value.
type Sealer interface {
	Seal(value any, opts ...claims.Option) (string, error)
}

// SealerFunc adapts verifier.Verifier.Generate or
// encryptor.Encryptor.EncryptAndSign to a Sealer.
type SealerFunc func(value any, opts ...claims.Option) (string, error)

func (f SealerFunc) Seal(value any, opts ...claims.Option) (string, error) {
	return f(value, opts...)
}

// Config holds immutable middleware configuration.
type Config struct {
	purpose     string
	cookieName  string
	metadataKey string
	optional    bool
	logger      logger.Logger
}

// ConfigOption is a functional option for Config.
type ConfigOption func(*Config) error

// NewConfig creates a Config.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		purpose:     claims.DefaultPurpose,
		metadataKey: DefaultMetadataKey,
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("middleware: configuration error: %w", err)
		}
	}
	return cfg, nil
}

// WithPurpose sets the purpose every envelope must carry.
func WithPurpose(purpose string) ConfigOption {
	return func(c *Config) error {
		if purpose == "" {
			return errors.New("purpose must not be empty")
		}
		c.purpose = purpose
		return nil
	}
}

// WithCookie enables reading the envelope from the named cookie when no
// Authorization header is present.
func WithCookie(name string) ConfigOption {
	return func(c *Config) error {
		c.cookieName = name
		return nil
	}
}

// WithMetadataKey overrides the gRPC metadata key.
func WithMetadataKey(key string) ConfigOption {
	return func(c *Config) error {
		if key == "" {
			return errors.New("metadata key must not be empty")
		}
		c.metadataKey = strings.ToLower(key)
		return nil
	}
}

// WithOptional lets requests without an envelope through unauthenticated.
// An envelope that is present but invalid is still rejected.
func WithOptional() ConfigOption {
	return func(c *Config) error {
		c.optional = true
		return nil
	}
}

// WithLogger sets the logger for security events.
func WithLogger(l logger.Logger) ConfigOption {
	return func(c *Config) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

func (c *Config) Purpose() string     { return c.purpose }
func (c *Config) CookieName() string  { return c.cookieName }
func (c *Config) MetadataKey() string { return c.metadataKey }
