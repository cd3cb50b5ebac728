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

// Package claims models the contents of a signed envelope: an opaque
// payload, the purpose it was issued for and an optional expiration.
//
// Claims travel as a mapping with three well-known keys:
//
//	pld  the payload
//	for  the purpose string
//	exp  the expiration, ISO-8601 UTC with millisecond precision
//
// The exp key is omitted when a message never expires.
package claims

import (
	"fmt"
	"reflect"
	"time"
)

const (
	// DefaultPurpose is used when no purpose is supplied.
	DefaultPurpose = "universal"

	// KeyPayload is the mapping key holding the payload.
	KeyPayload = "pld"

	// KeyPurpose is the mapping key holding the purpose.
	KeyPurpose = "for"

	// KeyExpiration is the mapping key holding the expiration instant.
	KeyExpiration = "exp"

	// TimeFormat is the wire format of the exp claim.
	TimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Claims is the semantic content of an envelope.
type Claims struct {
	Payload   any
	Purpose   string
	ExpiresAt *time.Time
}

// Policy carries the configuration shared by claim construction and
// verification. The zero value never applies a default expiration and
// reads the system clock.
type Policy struct {
	// DefaultExpiresIn is applied when a caller supplies no expiration.
	// Zero disables the default.
	DefaultExpiresIn time.Duration

	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
}

func (p *Policy) now() time.Time {
	if p == nil || p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// New builds Claims using the zero Policy.
func New(payload any, opts ...Option) *Claims {
	return (&Policy{}).New(payload, opts...)
}

// New builds Claims for payload. An absolute expiration wins over a
// relative one; a relative expiration falls back to DefaultExpiresIn.
func (p *Policy) New(payload any, opts ...Option) *Claims {
	o := Apply(opts...)
	return &Claims{
		Payload:   payload,
		Purpose:   o.Purpose(),
		ExpiresAt: p.pickExpiration(o),
	}
}

func (p *Policy) pickExpiration(o *Options) *time.Time {
	if o.hasExpiresAt {
		return utc(o.expiresAt)
	}
	if o.hasExpires {
		return utc(o.expires)
	}

	expiresIn := time.Duration(0)
	if p != nil {
		expiresIn = p.DefaultExpiresIn
	}
	if o.hasExpiresIn {
		expiresIn = o.expiresIn
	}
	if expiresIn == 0 {
		return nil
	}
	t := p.now().Add(expiresIn)
	return &t
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ToMap returns the serialization form of c.
func (c *Claims) ToMap() map[string]any {
	m := map[string]any{
		KeyPayload: c.Payload,
		KeyPurpose: c.Purpose,
	}
	if c.ExpiresAt != nil {
		m[KeyExpiration] = c.ExpiresAt.UTC().Format(TimeFormat)
	}
	return m
}

// Equal reports whether c and other carry the same purpose and payload.
// Expiration does not take part in equality.
func (c *Claims) Equal(other *Claims) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Purpose == other.Purpose && reflect.DeepEqual(c.Payload, other.Payload)
}

// Expired reports whether c has an expiration strictly before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.UTC().After(*c.ExpiresAt)
}

// Verify checks mapping against opts using the zero Policy.
func Verify(mapping map[string]any, opts ...Option) (any, error) {
	return (&Policy{}).Verify(mapping, opts...)
}

// Verify checks the purpose and expiration of a deserialized claims
// mapping and returns its payload.
func (p *Policy) Verify(mapping map[string]any, opts ...Option) (any, error) {
	expected := Apply(opts...).Purpose()

	purpose, ok := mapping[KeyPurpose].(string)
	if !ok || purpose != expected {
		return nil, ErrInvalidPurpose
	}

	if raw, present := mapping[KeyExpiration]; present && raw != nil {
		exp, err := ParseExpiration(raw)
		if err != nil {
			return nil, err
		}
		if p.now().After(exp) {
			return nil, ErrExpiredClaims
		}
	}

	return mapping[KeyPayload], nil
}

// FromMap rebuilds Claims from a mapping without checking purpose or
// expiration.
func FromMap(mapping map[string]any) (*Claims, error) {
	c := &Claims{Payload: mapping[KeyPayload]}

	purpose, ok := mapping[KeyPurpose].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedClaims, KeyPurpose)
	}
	c.Purpose = purpose

	if raw, present := mapping[KeyExpiration]; present && raw != nil {
		exp, err := ParseExpiration(raw)
		if err != nil {
			return nil, err
		}
		c.ExpiresAt = &exp
	}
	return c, nil
}

// ParseExpiration interprets an exp claim. Serializers that decode
// timestamps natively may hand back a time.Time.
func ParseExpiration(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unparsable expiration", ErrMalformedClaims)
		}
		return t.UTC(), nil
	case time.Time:
		return v.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: expiration has type %T", ErrMalformedClaims, raw)
	}
}

// Normalize converts a decoded claims value into a string-keyed mapping.
// Some decoders produce map[any]any for untyped maps.
func Normalize(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
