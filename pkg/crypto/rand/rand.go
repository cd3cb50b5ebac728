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

// Package rand supplies the random source used for initialization
// vectors and salts.
//
// The default resolver reads from crypto/rand. A custom io.Reader may be
// configured for deterministic tests; it must never be used in production
// because repeated output leads to nonce reuse.
//
//	rng, _ := rand.NewResolver(rand.ModeSoftware)
//	iv, err := rng.Rand(12)
//
// All Resolver implementations are safe for concurrent use provided the
// configured reader is.
package rand

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto selects the best available source. Only the software
	// source exists today.
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand.
	ModeSoftware Mode = "software"

	// ModeReader uses Config.Reader.
	ModeReader Mode = "reader"
)

// Config contains RNG configuration.
type Config struct {
	// Mode defaults to ModeAuto.
	Mode Mode

	// Reader is required with ModeReader and ignored otherwise.
	Reader io.Reader
}

// Resolver produces random bytes. It implements io.Reader so it can be
// handed to functions that expect crypto/rand.Reader.
type Resolver interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Read fills p completely or returns an error.
	Read(p []byte) (n int, err error)

	// Available reports whether the source can be used.
	Available() bool

	// Close releases any resources.
	Close() error
}

// NewResolver creates a resolver from a Mode, a *Config or nil.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)

	switch cfg.Mode {
	case ModeAuto, ModeSoftware:
		return &ReaderResolver{reader: rand.Reader}, nil
	case ModeReader:
		if cfg.Reader == nil {
			return nil, fmt.Errorf("rand: mode %s requires a reader", cfg.Mode)
		}
		return &ReaderResolver{reader: cfg.Reader}, nil
	default:
		return nil, fmt.Errorf("rand: unknown RNG mode: %s", cfg.Mode)
	}
}

// Default returns the crypto/rand backed resolver.
func Default() Resolver {
	return &ReaderResolver{reader: rand.Reader}
}

func normalizeConfig(config interface{}) *Config {
	switch v := config.(type) {
	case Mode:
		if v == "" {
			v = ModeAuto
		}
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeAuto}
		}
		cfg := *v
		if cfg.Mode == "" {
			cfg.Mode = ModeAuto
		}
		return &cfg
	default:
		return &Config{Mode: ModeAuto}
	}
}

// ReaderResolver draws bytes from an io.Reader.
type ReaderResolver struct {
	reader io.Reader
}

var _ Resolver = (*ReaderResolver)(nil)

func (r *ReaderResolver) Rand(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("rand: negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *ReaderResolver) Read(p []byte) (int, error) {
	n, err := io.ReadFull(r.reader, p)
	if err != nil {
		return n, fmt.Errorf("rand: read failed: %w", err)
	}
	return n, nil
}

func (r *ReaderResolver) Available() bool {
	return r.reader != nil
}

func (r *ReaderResolver) Close() error {
	return nil
}
