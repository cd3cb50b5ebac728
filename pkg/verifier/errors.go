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
	"fmt"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
)

var (
	// ErrInvalidSecret is returned when a verifier is constructed without
	// key material.
	ErrInvalidSecret = errors.New("verifier: secret should not be empty")

	// ErrInvalidSignature is returned when a message is structurally
	// invalid or its signature does not match.
	ErrInvalidSignature = errors.New("verifier: invalid signature")

	// ErrStructural accompanies ErrInvalidSignature when the message could
	// not be split or decoded before any signature check took place.
	ErrStructural = errors.New("verifier: malformed message")

	// ErrUnsupportedDigest is returned for digest names without an HMAC
	// signing method.
	ErrUnsupportedDigest = errors.New("verifier: unsupported digest")

	// ErrInvalidSerializer is returned when a serializer cannot carry a
	// claims mapping.
	ErrInvalidSerializer = errors.New("verifier: serializer cannot encode claims")
)

// structural tags err as a malformed message. Callers see
// ErrInvalidSignature and may additionally test for ErrStructural.
func structural(reason string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidSignature, ErrStructural, reason)
}

// Reason maps an error returned by this package to the short label used
// in failure metrics and audit logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStructural):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, claims.ErrInvalidPurpose):
		return "invalid_purpose"
	case errors.Is(err, claims.ErrExpiredClaims):
		return "expired"
	case errors.Is(err, claims.ErrMalformedClaims):
		return "malformed_claims"
	case errors.Is(err, serializer.ErrSerialization):
		return "serialization"
	default:
		return "error"
	}
}
