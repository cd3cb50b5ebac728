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

package claims

import "errors"

var (
	// ErrInvalidPurpose is returned when the purpose carried by a message
	// does not match the purpose expected by the caller.
	ErrInvalidPurpose = errors.New("claims: invalid purpose")

	// ErrMalformedClaims is returned when a claims mapping cannot be
	// interpreted, for example an unparsable expiration.
	ErrMalformedClaims = errors.New("claims: malformed claims")

	// ErrExpiredClaims is returned when the expiration instant has passed.
	ErrExpiredClaims = errors.New("claims: expired")
)
