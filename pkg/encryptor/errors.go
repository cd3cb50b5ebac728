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

	"github.com/jeremyhahn/go-envelope/pkg/crypto/aead"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// ErrInvalidMessage is returned when a verified bundle cannot be
// decrypted. It carries no detail about which check failed.
var ErrInvalidMessage = errors.New("encryptor: invalid message")

// Reason maps an error returned by an Encryptor to a metrics label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, aead.ErrNonceReuse):
		return "nonce_reuse"
	case errors.Is(err, aead.ErrUsageLimit):
		return "usage_limit"
	default:
		return verifier.Reason(err)
	}
}
