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

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagSize is the authentication tag length shared by every supported
// algorithm.
const TagSize = 16

// KeySize returns the key length in bytes for algorithm, or 0 when the
// algorithm is unknown.
func KeySize(algorithm string) int {
	switch algorithm {
	case AES128GCM:
		return 16
	case AES192GCM:
		return 24
	case AES256GCM:
		return 32
	case ChaCha20Poly1305, XChaCha20Poly1305:
		return chacha20poly1305.KeySize
	default:
		return 0
	}
}

// NonceSize returns the nonce length in bytes for algorithm, or 0 when
// the algorithm is unknown.
func NonceSize(algorithm string) int {
	switch algorithm {
	case AES128GCM, AES192GCM, AES256GCM:
		return 12
	case ChaCha20Poly1305:
		return chacha20poly1305.NonceSize
	case XChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX
	default:
		return 0
	}
}

// New returns a cipher.AEAD for algorithm keyed with key. The returned
// value holds no per-call state and may be shared between goroutines.
func New(algorithm string, key []byte) (cipher.AEAD, error) {
	size := KeySize(algorithm)
	if size == 0 {
		return nil, ErrUnsupportedAlgorithm
	}
	if len(key) != size {
		return nil, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidKeySize, algorithm, size, len(key))
	}

	switch algorithm {
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	}
}

// Seal encrypts plaintext and returns the ciphertext and tag separately,
// the layout used by JWE style bundles.
func Seal(c cipher.AEAD, nonce, plaintext, additionalData []byte) (ciphertext, tag []byte) {
	sealed := c.Seal(nil, nonce, plaintext, additionalData)
	split := len(sealed) - c.Overhead()
	return sealed[:split], sealed[split:]
}

// Open reverses Seal. It returns ErrAuthentication for any failure so
// callers never see cipher internals.
func Open(c cipher.AEAD, nonce, ciphertext, tag, additionalData []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() || len(tag) != c.Overhead() {
		return nil, ErrAuthentication
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
