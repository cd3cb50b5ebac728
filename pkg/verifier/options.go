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

package verifier

import (
	"errors"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
)

// Option configures a Verifier or LegacyVerifier.
type Option func(*config) error

type config struct {
	digest           string
	serializer       serializer.Serializer
	defaultExpiresIn time.Duration
	now              func() time.Time
	logger           logger.Logger
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		digest:     DefaultDigest,
		serializer: serializer.Default(),
		logger:     logger.NewNopLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithDigest selects the HMAC digest. See Digests for accepted names.
func WithDigest(name string) Option {
	return func(c *config) error {
		digest, err := NormalizeDigest(name)
		if err != nil {
			return err
		}
		c.digest = digest
		return nil
	}
}

// WithSerializer selects the payload codec.
func WithSerializer(s serializer.Serializer) Option {
	return func(c *config) error {
		if s == nil {
			return errors.New("verifier: serializer is nil")
		}
		c.serializer = s
		return nil
	}
}

// WithDefaultExpiresIn sets the lifetime applied to messages generated
// without an explicit expiration. Zero disables it.
func WithDefaultExpiresIn(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return errors.New("verifier: default expiration must not be negative")
		}
		c.defaultExpiresIn = d
		return nil
	}
}

// WithPolicy copies the default expiration and clock from p.
func WithPolicy(p claims.Policy) Option {
	return func(c *config) error {
		if p.DefaultExpiresIn < 0 {
			return errors.New("verifier: default expiration must not be negative")
		}
		c.defaultExpiresIn = p.DefaultExpiresIn
		c.now = p.Now
		return nil
	}
}

// WithClock overrides the clock used for expiration.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		c.now = now
		return nil
	}
}

// WithLogger sets the logger. Messages and secrets are never logged.
func WithLogger(l logger.Logger) Option {
	return func(c *config) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}
