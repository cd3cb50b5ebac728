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
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
)

// LegacyVerifier signs and verifies messages in the older
// "<base64 data>--<hex digest>" layout. It carries no purpose or
// expiration. A LegacyVerifier is immutable and safe for concurrent use.
type LegacyVerifier struct {
	secret     []byte
	digest     string
	method     *jwt.SigningMethodHMAC
	serializer serializer.Serializer
	logger     logger.Logger
}

// NewLegacy creates a LegacyVerifier. The secret is copied.
func NewLegacy(secret []byte, opts ...Option) (*LegacyVerifier, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newLegacy(secret, cfg)
}

func newLegacy(secret []byte, cfg *config) (*LegacyVerifier, error) {
	method, err := signingMethod(cfg.digest)
	if err != nil {
		return nil, err
	}
	return &LegacyVerifier{
		secret:     append([]byte(nil), secret...),
		digest:     cfg.digest,
		method:     method,
		serializer: cfg.serializer,
		logger:     cfg.logger.With(logger.String("component", metrics.ComponentLegacy)),
	}, nil
}

// Digest returns the configured digest name.
func (v *LegacyVerifier) Digest() string { return v.digest }

// Generate serializes value and signs it.
func (v *LegacyVerifier) Generate(value any) (string, error) {
	start := time.Now()
	message, err := v.generate(value)
	observe(v.logger, metrics.OpGenerate, metrics.ComponentLegacy, start, err)
	return message, err
}

func (v *LegacyVerifier) generate(value any) (string, error) {
	dumped, err := serializer.Dump(v.serializer, value)
	if err != nil {
		return "", err
	}
	data := encode(dumped)
	digest, err := v.sign(data)
	if err != nil {
		return "", err
	}
	return data + legacySeparator + digest, nil
}

// ValidMessage reports whether message is a well-formed legacy message
// carrying a matching digest.
func (v *LegacyVerifier) ValidMessage(message string) bool {
	env, err := parseEnvelope(message)
	if err != nil {
		return false
	}
	legacy, ok := env.(legacyEnvelope)
	return ok && v.check(legacy) == nil
}

// Verify returns the deserialized value carried by message. It fails with
// ErrInvalidSignature when the message is malformed or tampered with.
func (v *LegacyVerifier) Verify(message string) (any, error) {
	start := time.Now()
	value, err := v.verify(message)
	observe(v.logger, metrics.OpVerify, metrics.ComponentLegacy, start, err)
	return value, err
}

func (v *LegacyVerifier) verify(message string) (any, error) {
	env, err := parseEnvelope(message)
	if err != nil {
		return nil, err
	}
	legacy, ok := env.(legacyEnvelope)
	if !ok {
		return nil, structural("not a legacy message")
	}
	return v.open(legacy)
}

// Verified behaves like Verify but reports signature failures as an
// absent value. Serialization failures are still returned.
func (v *LegacyVerifier) Verified(message string) (any, bool, error) {
	return absorb(v.Verify(message))
}

func (v *LegacyVerifier) open(env legacyEnvelope) (any, error) {
	if err := v.check(env); err != nil {
		return nil, err
	}
	dumped, err := base64.StdEncoding.Strict().DecodeString(env.data)
	if err != nil {
		return nil, structural("data is not base64")
	}
	return serializer.Load(v.serializer, dumped)
}

func (v *LegacyVerifier) check(env legacyEnvelope) error {
	expected, err := v.sign(env.data)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(env.digest)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (v *LegacyVerifier) sign(data string) (string, error) {
	sum, err := v.method.Sign(data, v.secret)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// absorb turns every failure except a serialization error into an
// absent result.
func absorb(value any, err error) (any, bool, error) {
	if err == nil {
		return value, true, nil
	}
	if errors.Is(err, serializer.ErrSerialization) {
		return nil, false, err
	}
	return nil, false, nil
}

// observe records metrics for a finished operation and logs rejected
// messages at debug level.
func observe(log logger.Logger, op, component string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		reason := Reason(err)
		metrics.RecordFailure(op, component, reason)
		log.Debug("envelope rejected",
			logger.String("operation", op),
			logger.String("reason", reason))
	}
	metrics.RecordOperation(op, component, status, time.Since(start).Seconds())
}
