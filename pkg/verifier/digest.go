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
	"crypto"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Digest names accepted by WithDigest.
const (
	DigestSHA1   = "SHA1"
	DigestSHA256 = "SHA256"
	DigestSHA384 = "SHA384"
	DigestSHA512 = "SHA512"

	// DefaultDigest matches messages produced by earlier deployments.
	DefaultDigest = DigestSHA1
)

// signingMethodHS1 is HMAC-SHA1. golang-jwt only registers the SHA-2
// family, so the method is assembled here and kept unexported.
var signingMethodHS1 = &jwt.SigningMethodHMAC{Name: "HS1", Hash: crypto.SHA1}

// Digests lists the supported digest names.
func Digests() []string {
	return []string{DigestSHA1, DigestSHA256, DigestSHA384, DigestSHA512}
}

// NormalizeDigest returns the canonical spelling of name. Dashes and case
// are ignored, so "sha-256" and "SHA256" are equivalent.
func NormalizeDigest(name string) (string, error) {
	canonical := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	if canonical == "" {
		return DefaultDigest, nil
	}
	if _, err := signingMethod(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

func signingMethod(digest string) (*jwt.SigningMethodHMAC, error) {
	switch digest {
	case DigestSHA1:
		return signingMethodHS1, nil
	case DigestSHA256:
		return jwt.SigningMethodHS256, nil
	case DigestSHA384:
		return jwt.SigningMethodHS384, nil
	case DigestSHA512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDigest, digest)
	}
}
