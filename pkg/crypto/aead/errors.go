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

package aead

import "errors"

var (
	// ErrNonceReuse is returned when a nonce is presented twice to the same
	// tracker. The encryption must be refused.
	ErrNonceReuse = errors.New("aead: nonce reuse detected")

	// ErrUsageLimit is returned when a key has encrypted more bytes than
	// its configured limit.
	ErrUsageLimit = errors.New("aead: key usage limit exceeded")

	// ErrUnsupportedAlgorithm is returned for unknown algorithm names.
	ErrUnsupportedAlgorithm = errors.New("aead: unsupported algorithm")

	// ErrInvalidKeySize is returned when a key does not match the
	// algorithm's key length.
	ErrInvalidKeySize = errors.New("aead: invalid key size")

	// ErrAuthentication is returned when a ciphertext fails to open.
	ErrAuthentication = errors.New("aead: message authentication failed")
)
