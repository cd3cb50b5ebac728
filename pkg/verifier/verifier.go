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

// Package verifier signs and verifies tamper-evident messages.
//
// A Verifier produces three-segment messages
//
//	base64(header) "." base64(claims) "." base64(hmac)
//
// where the HMAC covers the first two segments as ASCII text and the
// claims body binds the payload to a purpose and an optional expiration.
// Messages in the older "<data>--<digest>" layout are still accepted and
// verified through an embedded LegacyVerifier.
//
// Verify reports every failure as an error. Verified collapses signature,
// purpose and expiration failures into an absent value and only returns
// serialization errors.
package verifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
)

// HeaderType is the typ value of every header written by a Verifier.
const HeaderType = "JWT"

// Header is the first segment of a current-format message. It is
// written for interoperability and is not consulted during verification.
type Header struct {
	Type       string `json:"typ"`
	Algorithm  string `json:"alg"`
	Serializer string `json:"ser"`
}

// Verifier signs and verifies current-format messages. It is immutable
// after construction and safe for concurrent use.
type Verifier struct {
	secret        []byte
	digest        string
	method        *jwt.SigningMethodHMAC
	serializer    serializer.Serializer
	policy        claims.Policy
	encodedHeader string
	legacy        *LegacyVerifier
	logger        logger.Logger
}

// New creates a Verifier keyed by secret. The secret is copied and never
// logged.
//
//	v, err := verifier.New(secret, verifier.WithDigest(verifier.DigestSHA256))
//	msg, err := v.Generate(payload, claims.For("login"), claims.ExpiresIn(time.Hour))
//	value, err := v.Verify(msg, claims.For("login"))
func New(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSecret
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.serializer.Name() == serializer.NameRaw {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSerializer, cfg.serializer.Name())
	}

	legacy, err := newLegacy(secret, cfg)
	if err != nil {
		return nil, err
	}

	header, err := json.Marshal(Header{
		Type:       HeaderType,
		Algorithm:  cfg.digest,
		Serializer: cfg.serializer.Name(),
	})
	if err != nil {
		return nil, fmt.Errorf("verifier: encode header: %w", err)
	}

	return &Verifier{
		secret:     append([]byte(nil), secret...),
		digest:     cfg.digest,
		method:     legacy.method,
		serializer: cfg.serializer,
		policy: claims.Policy{
			DefaultExpiresIn: cfg.defaultExpiresIn,
			Now:              cfg.now,
		},
		encodedHeader: encode(header),
		legacy:        legacy,
		logger:        cfg.logger.With(logger.String("component", metrics.ComponentVerifier)),
	}, nil
}

// Digest returns the configured digest name.
func (v *Verifier) Digest() string { return v.digest }

// Serializer returns the configured payload codec.
func (v *Verifier) Serializer() serializer.Serializer { return v.serializer }

// Legacy returns the LegacyVerifier sharing this Verifier's key.
func (v *Verifier) Legacy() *LegacyVerifier { return v.legacy }

// Generate wraps value in claims built from opts and signs the result.
func (v *Verifier) Generate(value any, opts ...claims.Option) (string, error) {
	start := time.Now()
	message, err := v.generate(value, opts...)
	observe(v.logger, metrics.OpGenerate, metrics.ComponentVerifier, start, err)
	return message, err
}

func (v *Verifier) generate(value any, opts ...claims.Option) (string, error) {
	c := v.policy.New(value, opts...)
	body, err := serializer.Dump(v.serializer, c.ToMap())
	if err != nil {
		return "", err
	}
	signingInput := v.encodedHeader + currentSeparator + encode(body)
	signature, err := v.method.Sign(signingInput, v.secret)
	if err != nil {
		return "", fmt.Errorf("verifier: sign: %w", err)
	}
	return signingInput + currentSeparator + encode(signature), nil
}

// ValidMessage reports whether message is a well-formed current-format
// message with a matching signature. Purpose and expiration are not
// checked.
func (v *Verifier) ValidMessage(message string) bool {
	env, err := parseEnvelope(message)
	if err != nil {
		return false
	}
	current, ok := env.(currentEnvelope)
	return ok && v.check(current) == nil
}

// Verify authenticates message and checks its claims against opts. Legacy
// messages skip the claims checks since they carry none.
func (v *Verifier) Verify(message string, opts ...claims.Option) (any, error) {
	start := time.Now()
	value, err := v.verify(message, opts...)
	observe(v.logger, metrics.OpVerify, metrics.ComponentVerifier, start, err)
	return value, err
}

func (v *Verifier) verify(message string, opts ...claims.Option) (any, error) {
	env, err := parseEnvelope(message)
	if err != nil {
		return nil, err
	}
	switch e := env.(type) {
	case legacyEnvelope:
		return v.legacy.open(e)
	case currentEnvelope:
		mapping, err := v.openClaims(e)
		if err != nil {
			return nil, err
		}
		return v.policy.Verify(mapping, opts...)
	default:
		return nil, structural("unknown layout")
	}
}

// Verified behaves like Verify but reports signature, purpose, expiration
// and malformed-claims failures as an absent value. Serialization errors
// are returned.
func (v *Verifier) Verified(message string, opts ...claims.Option) (any, bool, error) {
	return absorb(v.Verify(message, opts...))
}

// Claims authenticates message and returns its decoded claims without
// checking purpose or expiration. Legacy messages yield Claims with only
// the payload set.
func (v *Verifier) Claims(message string) (*claims.Claims, error) {
	env, err := parseEnvelope(message)
	if err != nil {
		return nil, err
	}
	switch e := env.(type) {
	case legacyEnvelope:
		value, err := v.legacy.open(e)
		if err != nil {
			return nil, err
		}
		return &claims.Claims{Payload: value}, nil
	case currentEnvelope:
		mapping, err := v.openClaims(e)
		if err != nil {
			return nil, err
		}
		return claims.FromMap(mapping)
	default:
		return nil, structural("unknown layout")
	}
}

func (v *Verifier) openClaims(env currentEnvelope) (map[string]any, error) {
	if err := v.check(env); err != nil {
		return nil, err
	}
	decoded, err := serializer.Load(v.serializer, env.body)
	if err != nil {
		return nil, err
	}
	mapping, ok := claims.Normalize(decoded)
	if !ok {
		return nil, fmt.Errorf("%w: body is %T", claims.ErrMalformedClaims, decoded)
	}
	return mapping, nil
}

func (v *Verifier) check(env currentEnvelope) error {
	if err := v.method.Verify(env.signingInput, env.signature, v.secret); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
