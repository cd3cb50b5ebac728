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
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLegacy_EmptySecret(t *testing.T) {
	_, err := NewLegacy(nil)
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = NewLegacy([]byte{})
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestLegacyVerifier_WireFormat(t *testing.T) {
	secret := []byte("Hey, I'm a secret!")
	v, err := NewLegacy(secret)
	require.NoError(t, err)

	msg, err := v.Generate("data")
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString([]byte(`"data"`))
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(data))
	assert.Equal(t, data+"--"+hex.EncodeToString(mac.Sum(nil)), msg)
}

func TestLegacyVerifier_SHA256Digest(t *testing.T) {
	secret := []byte("Hey, I'm a secret!")
	v, err := NewLegacy(secret, WithDigest("sha-256"))
	require.NoError(t, err)
	assert.Equal(t, DigestSHA256, v.Digest())

	msg, err := v.Generate("data")
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString([]byte(`"data"`))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(data))
	assert.Equal(t, data+"--"+hex.EncodeToString(mac.Sum(nil)), msg)
}

func TestLegacyVerifier_RoundTrip(t *testing.T) {
	v, err := NewLegacy([]byte("Hey, I'm a secret!"))
	require.NoError(t, err)

	data := map[string]any{"some": "data", "now": "2010-01-01T00:00:00Z"}
	msg, err := v.Generate(data)
	require.NoError(t, err)

	assert.True(t, v.ValidMessage(msg))
	got, err := v.Verify(msg)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, ok, err := v.Verified(msg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, data, got)
}

func TestLegacyVerifier_InvalidMessages(t *testing.T) {
	v, err := NewLegacy([]byte("Hey, I'm a secret!"))
	require.NoError(t, err)

	msg, err := v.Generate("data")
	require.NoError(t, err)
	data, digest := splitLegacy(t, msg)

	tests := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"no separator", "purejunk"},
		{"empty parts", "--dsa--"},
		{"missing digest", data + "--"},
		{"missing data", "--" + digest},
		{"tampered data", "X" + data + "--" + digest},
		{"tampered digest", data + "--" + flipHex(digest)},
		{"uppercase digest", data + "--" + upper(digest)},
		{"current format", "aGVsbG8=.d29ybGQ=.c2ln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.ValidMessage(tt.message))

			_, err := v.Verify(tt.message)
			assert.ErrorIs(t, err, ErrInvalidSignature)

			got, ok, err := v.Verified(tt.message)
			assert.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestLegacyVerifier_DifferentSecret(t *testing.T) {
	a, err := NewLegacy([]byte("secret-a"))
	require.NoError(t, err)
	b, err := NewLegacy([]byte("secret-b"))
	require.NoError(t, err)

	msg, err := a.Generate("data")
	require.NoError(t, err)
	assert.False(t, b.ValidMessage(msg))
}

func TestLegacyVerifier_SecretIsCopied(t *testing.T) {
	secret := []byte("Hey, I'm a secret!")
	v, err := NewLegacy(secret)
	require.NoError(t, err)

	msg, err := v.Generate("data")
	require.NoError(t, err)

	secret[0] = 'X'
	assert.True(t, v.ValidMessage(msg))
}

func TestLegacyVerifier_SerializationErrorPropagates(t *testing.T) {
	v, err := NewLegacy([]byte("Hey, I'm a secret!"), WithSerializer(brokenLoader{}))
	require.NoError(t, err)

	msg, err := v.Generate("data")
	require.NoError(t, err)

	got, ok, err := v.Verified(msg)
	assert.ErrorIs(t, err, serializer.ErrSerialization)
	assert.ErrorIs(t, err, errBrokenLoad)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func splitLegacy(t *testing.T, msg string) (string, string) {
	t.Helper()
	env, err := parseLegacy(msg)
	require.NoError(t, err)
	return env.data, env.digest
}

func flipHex(s string) string {
	first := byte('0')
	if s[0] == '0' {
		first = '1'
	}
	return string(first) + s[1:]
}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
