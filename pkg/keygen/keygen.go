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

// Package keygen derives envelope secrets. KeyGenerator stretches a
// long-lived application secret with PBKDF2 so that every salt yields an
// independent key; DeriveContentKey expands a high-entropy secret into an
// AEAD content key with HKDF.
package keygen

import (
	"crypto"
	_ "crypto/sha1"
	"crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count (2^16).
	DefaultIterations = 1 << 16

	// DefaultKeyLength is the length returned when GenerateKey is
	// called with a zero length.
	DefaultKeyLength = 64
)

var (
	// ErrInvalidSecret is returned when no secret is supplied.
	ErrInvalidSecret = errors.New("keygen: secret should not be empty")

	// ErrInvalidKeyLength is returned for negative or oversized lengths.
	ErrInvalidKeyLength = errors.New("keygen: invalid key length")

	// ErrInvalidIterations is returned for a non-positive iteration count.
	ErrInvalidIterations = errors.New("keygen: invalid iteration count")

	// ErrInvalidHash is returned when the hash is not linked into the binary.
	ErrInvalidHash = errors.New("keygen: hash function unavailable")
)

// KeyGenerator derives keys from a secret with PBKDF2. It is immutable
// and safe for concurrent use.
type KeyGenerator struct {
	secret     []byte
	iterations int
	hash       crypto.Hash
}

// Option configures a KeyGenerator.
type Option func(*KeyGenerator)

// WithIterations sets the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(g *KeyGenerator) { g.iterations = n }
}

// WithHash sets the PBKDF2 pseudo-random function. Defaults to SHA1.
func WithHash(h crypto.Hash) Option {
	return func(g *KeyGenerator) { g.hash = h }
}

// New creates a KeyGenerator. The secret is copied.
//
//	gen, err := keygen.New(appSecret)
//	signKey, err := gen.GenerateKey([]byte("signed cookie"), 64)
func New(secret []byte, opts ...Option) (*KeyGenerator, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	g := &KeyGenerator{
		secret:     append([]byte(nil), secret...),
		iterations: DefaultIterations,
		hash:       crypto.SHA1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.iterations <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, g.iterations)
	}
	if g.hash == 0 || !g.hash.Available() {
		return nil, ErrInvalidHash
	}
	return g, nil
}

// Iterations returns the configured iteration count.
func (g *KeyGenerator) Iterations() int { return g.iterations }

// GenerateKey derives length bytes for salt. A zero length selects
// DefaultKeyLength.
func (g *KeyGenerator) GenerateKey(salt []byte, length int) ([]byte, error) {
	if length == 0 {
		length = DefaultKeyLength
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyLength, length)
	}
	return pbkdf2.Key(g.secret, salt, g.iterations, length, g.hash.New), nil
}

// CachingKeyGenerator memoizes GenerateKey per salt and length.
type CachingKeyGenerator struct {
	gen   *KeyGenerator
	mu    sync.Mutex
	cache map[string][]byte
}

// NewCaching wraps gen with a cache.
func NewCaching(gen *KeyGenerator) *CachingKeyGenerator {
	return &CachingKeyGenerator{
		gen:   gen,
		cache: make(map[string][]byte),
	}
}

// GenerateKey returns a cached key when one exists. The returned slice is
// a copy the caller may modify.
func (c *CachingKeyGenerator) GenerateKey(salt []byte, length int) ([]byte, error) {
	cacheKey := fmt.Sprintf("%x|%d", salt, length)

	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.cache[cacheKey]
	if !ok {
		var err error
		key, err = c.gen.GenerateKey(salt, length)
		if err != nil {
			return nil, err
		}
		c.cache[cacheKey] = key
	}
	return append([]byte(nil), key...), nil
}

// Len returns the number of cached keys.
func (c *CachingKeyGenerator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// DeriveContentKey expands secret into a length-byte key with
// HKDF-SHA256 and no salt. info separates keys derived from the same
// secret.
func DeriveContentKey(secret, info []byte, length int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	if length <= 0 || length > 255*sha256.Size {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyLength, length)
	}
	key := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), key); err != nil {
		return nil, err
	}
	return key, nil
}
