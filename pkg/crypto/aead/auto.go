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

// Package aead names the content-encryption ciphers an envelope may use
// and builds cipher.AEAD instances for them.
//
// Algorithm identifiers follow JWE naming where one exists (A128GCM,
// A192GCM, A256GCM). The ChaCha20 variants have no registered JWE name
// and use ChaCha20-Poly1305 and XChaCha20-Poly1305. OpenSSL style names
// such as "aes-256-gcm" are accepted as aliases and normalized.
//
// Example usage:
//
//	alg, err := aead.Normalize("aes-256-gcm") // "A256GCM"
//	key := make([]byte, aead.KeySize(alg))
//	c, err := aead.New(alg, key)
//
//	// Pick AES-GCM when the CPU accelerates it, ChaCha20-Poly1305 otherwise
//	alg = aead.SelectOptimal()
package aead

import (
	"runtime"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
	"golang.org/x/sys/cpu"
)

// Algorithm names for AEAD ciphers
const (
	// AES256GCM is AES-256 in Galois/Counter Mode
	AES256GCM = string(jose.A256GCM)

	// AES192GCM is AES-192 in Galois/Counter Mode
	AES192GCM = string(jose.A192GCM)

	// AES128GCM is AES-128 in Galois/Counter Mode
	AES128GCM = string(jose.A128GCM)

	// ChaCha20Poly1305 is ChaCha20-Poly1305 AEAD (RFC 8439)
	ChaCha20Poly1305 = "ChaCha20-Poly1305"

	// XChaCha20Poly1305 is XChaCha20-Poly1305 AEAD with extended nonce
	XChaCha20Poly1305 = "XChaCha20-Poly1305"

	// Auto selects an algorithm from CPU capabilities
	Auto = "auto"
)

// OpenSSL style aliases
const (
	AliasAES256GCM         = "aes-256-gcm"
	AliasAES192GCM         = "aes-192-gcm"
	AliasAES128GCM         = "aes-128-gcm"
	AliasChaCha20Poly1305  = "chacha20-poly1305"
	AliasXChaCha20Poly1305 = "xchacha20-poly1305"
)

// HasAESNI returns true if the CPU has AES-NI (AES New Instructions) support.
//
// Supported architectures:
//   - amd64: Checks X86.HasAES
//   - arm64: Checks ARM64.HasAES
//   - Other architectures return false
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	default:
		return false
	}
}

// SelectOptimal returns AES-256-GCM when the CPU accelerates AES and
// ChaCha20-Poly1305 otherwise.
func SelectOptimal() string {
	if HasAESNI() {
		return AES256GCM
	}
	return ChaCha20Poly1305
}

// Normalize maps an algorithm name or alias to its canonical identifier.
// The empty string selects AES256GCM and "auto" resolves through
// SelectOptimal.
func Normalize(algorithm string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", strings.ToLower(AES256GCM), AliasAES256GCM:
		return AES256GCM, nil
	case strings.ToLower(AES192GCM), AliasAES192GCM:
		return AES192GCM, nil
	case strings.ToLower(AES128GCM), AliasAES128GCM:
		return AES128GCM, nil
	case AliasChaCha20Poly1305:
		return ChaCha20Poly1305, nil
	case AliasXChaCha20Poly1305:
		return XChaCha20Poly1305, nil
	case Auto:
		return SelectOptimal(), nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

// Algorithms lists the canonical identifiers.
func Algorithms() []string {
	return []string{AES128GCM, AES192GCM, AES256GCM, ChaCha20Poly1305, XChaCha20Poly1305}
}

// IsAESGCM returns true if the algorithm is an AES-GCM variant.
func IsAESGCM(algorithm string) bool {
	switch algorithm {
	case AES128GCM, AES192GCM, AES256GCM:
		return true
	default:
		return false
	}
}

// IsChaCha returns true if the algorithm is a ChaCha variant.
func IsChaCha(algorithm string) bool {
	switch algorithm {
	case ChaCha20Poly1305, XChaCha20Poly1305:
		return true
	default:
		return false
	}
}

// ToAlias converts a canonical identifier to its OpenSSL style alias.
// Unknown names are returned unchanged.
func ToAlias(algorithm string) string {
	switch algorithm {
	case AES128GCM:
		return AliasAES128GCM
	case AES192GCM:
		return AliasAES192GCM
	case AES256GCM:
		return AliasAES256GCM
	case ChaCha20Poly1305:
		return AliasChaCha20Poly1305
	case XChaCha20Poly1305:
		return AliasXChaCha20Poly1305
	default:
		return algorithm
	}
}
