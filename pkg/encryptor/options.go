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

package encryptor

import (
	"errors"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/crypto/aead"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/rand"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// Option configures an Encryptor.
type Option func(*config) error

type config struct {
	signSecret    []byte
	cipher        string
	random        rand.Resolver
	nonceTracking bool
	usageLimit    int64
	serializer    serializer.Serializer
	logger        logger.Logger
	verifierOpts  []verifier.Option
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		cipher:     aead.AES256GCM,
		random:     rand.Default(),
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

// WithSignSecret sets a signing secret distinct from the encryption
// secret. By default the encryption secret signs as well.
func WithSignSecret(secret []byte) Option {
	return func(c *config) error {
		if len(secret) == 0 {
			return verifier.ErrInvalidSecret
		}
		c.signSecret = append([]byte(nil), secret...)
		return nil
	}
}

// WithCipher selects the content-encryption algorithm. Aliases such as
// "aes-256-gcm" and "auto" are accepted.
//
// "auto" resolves per host: AES-256-GCM with AES hardware support,
// ChaCha20-Poly1305 without. Decryption requires the message's enc header
// to match the local cipher, so only use "auto" when every peer sharing the
// secret runs on the same hardware class. Otherwise name the cipher.
func WithCipher(name string) Option {
	return func(c *config) error {
		alg, err := aead.Normalize(name)
		if err != nil {
			return err
		}
		c.cipher = alg
		return nil
	}
}

// WithDigest selects the HMAC digest of the signing layer.
func WithDigest(name string) Option {
	return func(c *config) error {
		c.verifierOpts = append(c.verifierOpts, verifier.WithDigest(name))
		return nil
	}
}

// WithSerializer selects the codec for both the payload and the claims.
// Raw cannot encode claims; use WithPayloadSerializer for it.
func WithSerializer(s serializer.Serializer) Option {
	return func(c *config) error {
		if s == nil {
			return errors.New("encryptor: serializer is nil")
		}
		c.serializer = s
		c.verifierOpts = append(c.verifierOpts, verifier.WithSerializer(s))
		return nil
	}
}

// WithPayloadSerializer selects the codec for the encrypted payload only.
// The claims keep the signing layer's serializer, so Raw is accepted here.
func WithPayloadSerializer(s serializer.Serializer) Option {
	return func(c *config) error {
		if s == nil {
			return errors.New("encryptor: serializer is nil")
		}
		c.serializer = s
		return nil
	}
}

// WithDefaultExpiresIn sets the lifetime applied when a caller supplies
// no expiration.
func WithDefaultExpiresIn(d time.Duration) Option {
	return func(c *config) error {
		c.verifierOpts = append(c.verifierOpts, verifier.WithDefaultExpiresIn(d))
		return nil
	}
}

// WithClock overrides the clock used for expiration.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		c.verifierOpts = append(c.verifierOpts, verifier.WithClock(now))
		return nil
	}
}

// WithRandom sets the source of initialization vectors.
func WithRandom(r rand.Resolver) Option {
	return func(c *config) error {
		if r == nil {
			return errors.New("encryptor: random resolver is nil")
		}
		c.random = r
		return nil
	}
}

// WithNonceTracking refuses to encrypt when an IV repeats. Every IV is
// kept in memory for the lifetime of the Encryptor.
func WithNonceTracking(enabled bool) Option {
	return func(c *config) error {
		c.nonceTracking = enabled
		return nil
	}
}

// WithUsageLimit caps the number of plaintext bytes encrypted under the
// content key. Zero disables the limit.
func WithUsageLimit(bytes int64) Option {
	return func(c *config) error {
		if bytes < 0 {
			return errors.New("encryptor: usage limit must not be negative")
		}
		c.usageLimit = bytes
		return nil
	}
}

// WithLogger sets the logger for both layers.
func WithLogger(l logger.Logger) Option {
	return func(c *config) error {
		if l != nil {
			c.logger = l
			c.verifierOpts = append(c.verifierOpts, verifier.WithLogger(l))
		}
		return nil
	}
}
