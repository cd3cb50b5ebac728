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
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("Hey, I'm a secret!")

var errBrokenLoad = errors.New("broken load")

// brokenLoader dumps JSON but refuses to load anything back.
type brokenLoader struct {
	serializer.JSON
}

func (brokenLoader) Load([]byte) (any, error) {
	return nil, errBrokenLoad
}

func newTestVerifier(t *testing.T, opts ...Option) *Verifier {
	t.Helper()
	v, err := New(testSecret, opts...)
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = New([]byte(""))
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = New(testSecret, WithDigest("MD5"))
	assert.ErrorIs(t, err, ErrUnsupportedDigest)

	_, err = New(testSecret, WithSerializer(serializer.Raw{}))
	assert.ErrorIs(t, err, ErrInvalidSerializer)

	_, err = New(testSecret, WithSerializer(nil))
	assert.Error(t, err)

	_, err = New(testSecret, WithDefaultExpiresIn(-time.Second))
	assert.Error(t, err)
}

func TestNormalizeDigest(t *testing.T) {
	tests := map[string]string{
		"":        DigestSHA1,
		"sha1":    DigestSHA1,
		"SHA-256": DigestSHA256,
		"sha384":  DigestSHA384,
		" SHA512": DigestSHA512,
	}
	for in, want := range tests {
		got, err := NormalizeDigest(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeDigest("whirlpool")
	assert.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestVerifier_WireFormat(t *testing.T) {
	v := newTestVerifier(t)

	msg, err := v.Generate("data")
	require.NoError(t, err)

	parts := strings.Split(msg, ".")
	require.Len(t, parts, 3)

	header, err := base64.StdEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Equal(t, `{"typ":"JWT","alg":"SHA1","ser":"json"}`, string(header))

	body, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Equal(t, `{"for":"universal","pld":"data"}`, string(body))

	mac := hmac.New(sha1.New, testSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), parts[2])
}

func TestVerifier_RoundTrip(t *testing.T) {
	cborSerializer, err := serializer.NewCBOR()
	require.NoError(t, err)

	serializers := []serializer.Serializer{serializer.JSON{}, cborSerializer, serializer.YAML{}}

	for _, digest := range Digests() {
		for _, s := range serializers {
			t.Run(digest+"/"+s.Name(), func(t *testing.T) {
				v := newTestVerifier(t, WithDigest(digest), WithSerializer(s))

				payload := map[string]any{"user": "alice", "role": "admin"}
				msg, err := v.Generate(payload, claims.For("login"))
				require.NoError(t, err)

				assert.True(t, v.ValidMessage(msg))

				got, err := v.Verify(msg, claims.For("login"))
				require.NoError(t, err)
				assert.Equal(t, payload, got)

				got, ok, err := v.Verified(msg, claims.For("login"))
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, payload, got)
			})
		}
	}
}

func TestVerifier_InvalidMessages(t *testing.T) {
	v := newTestVerifier(t)

	msg, err := v.Generate("data")
	require.NoError(t, err)
	parts := strings.Split(msg, ".")

	tests := []struct {
		name       string
		message    string
		structural bool
	}{
		{"empty", "", true},
		{"junk", "purejunk", true},
		{"invalid utf-8", "\xff", true},
		{"empty segments", "..", true},
		{"four segments", msg + ".AAAA", true},
		{"bad base64", parts[0] + ".!!!!." + parts[2], true},
		{"legacy separator", "--dsa--", true},
		{"junk segments", "pure.junk.data", false},
		{"reversed segments", parts[2] + "." + parts[1] + "." + parts[0], false},
		{"swapped body", parts[0] + "." + encode([]byte(`{"for":"universal","pld":"other"}`)) + "." + parts[2], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.ValidMessage(tt.message))

			_, err := v.Verify(tt.message)
			assert.ErrorIs(t, err, ErrInvalidSignature)
			assert.Equal(t, tt.structural, errors.Is(err, ErrStructural))

			got, ok, err := v.Verified(tt.message)
			assert.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestVerifier_DifferentSecretOrDigest(t *testing.T) {
	v := newTestVerifier(t)
	msg, err := v.Generate("data")
	require.NoError(t, err)

	other, err := New([]byte("another secret"))
	require.NoError(t, err)
	assert.False(t, other.ValidMessage(msg))

	sha256 := newTestVerifier(t, WithDigest(DigestSHA256))
	assert.False(t, sha256.ValidMessage(msg))
}

func TestVerifier_Purpose(t *testing.T) {
	v := newTestVerifier(t)

	msg, err := v.Generate("data", claims.For("login"))
	require.NoError(t, err)

	_, err = v.Verify(msg)
	assert.ErrorIs(t, err, claims.ErrInvalidPurpose)

	_, err = v.Verify(msg, claims.For("shipping"))
	assert.ErrorIs(t, err, claims.ErrInvalidPurpose)

	got, ok, err := v.Verified(msg, claims.For("shipping"))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	universal, err := v.Generate("data")
	require.NoError(t, err)
	_, err = v.Verify(universal, claims.For("login"))
	assert.ErrorIs(t, err, claims.ErrInvalidPurpose)

	got, err = v.Verify(universal)
	require.NoError(t, err)
	assert.Equal(t, "data", got)
}

func TestVerifier_Expiration(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	v := newTestVerifier(t, WithClock(func() time.Time { return now }))

	msg, err := v.Generate("data", claims.ExpiresIn(time.Minute))
	require.NoError(t, err)

	now = t0.Add(time.Minute)
	got, err := v.Verify(msg)
	require.NoError(t, err, "a message is valid up to and including its expiration")
	assert.Equal(t, "data", got)

	now = t0.Add(time.Minute + time.Millisecond)
	_, err = v.Verify(msg)
	assert.ErrorIs(t, err, claims.ErrExpiredClaims)

	got, ok, err := v.Verified(msg)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestVerifier_ExpiresAtWinsOverExpiresIn(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	v := newTestVerifier(t, WithClock(func() time.Time { return now }))

	msg, err := v.Generate("data",
		claims.ExpiresAt(t0.Add(time.Hour)),
		claims.ExpiresIn(time.Second))
	require.NoError(t, err)

	now = t0.Add(30 * time.Minute)
	_, err = v.Verify(msg)
	assert.NoError(t, err)

	c, err := v.Claims(msg)
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, c.ExpiresAt.Equal(t0.Add(time.Hour)))
}

func TestVerifier_DefaultExpiresIn(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	v := newTestVerifier(t,
		WithClock(func() time.Time { return now }),
		WithDefaultExpiresIn(time.Hour))

	msg, err := v.Generate("data")
	require.NoError(t, err)

	forever, err := v.Generate("data", claims.NeverExpires())
	require.NoError(t, err)

	now = t0.Add(2 * time.Hour)
	_, err = v.Verify(msg)
	assert.ErrorIs(t, err, claims.ErrExpiredClaims)

	got, err := v.Verify(forever)
	require.NoError(t, err)
	assert.Equal(t, "data", got)
}

func TestVerifier_Claims(t *testing.T) {
	v := newTestVerifier(t)

	exp := time.Date(2030, 6, 1, 8, 30, 0, 0, time.UTC)
	msg, err := v.Generate("data", claims.For("login"), claims.ExpiresAt(exp))
	require.NoError(t, err)

	c, err := v.Claims(msg)
	require.NoError(t, err)
	assert.Equal(t, "data", c.Payload)
	assert.Equal(t, "login", c.Purpose)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, exp.Equal(*c.ExpiresAt))

	_, err = v.Claims("purejunk")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_VerifiesLegacyMessages(t *testing.T) {
	legacy, err := NewLegacy(testSecret)
	require.NoError(t, err)
	v := newTestVerifier(t)

	msg, err := legacy.Generate(map[string]any{"some": "data"})
	require.NoError(t, err)

	assert.Equal(t, FormatLegacy, DetectFormat(msg))
	assert.False(t, v.ValidMessage(msg), "ValidMessage only accepts the current layout")
	assert.True(t, v.Legacy().ValidMessage(msg))

	got, err := v.Verify(msg, claims.For("anything"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"some": "data"}, got)

	c, err := v.Claims(msg)
	require.NoError(t, err)
	assert.Equal(t, "", c.Purpose)
	assert.Nil(t, c.ExpiresAt)

	_, ok, err := v.Verified("--dsa--")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_MalformedClaims(t *testing.T) {
	v := newTestVerifier(t)

	header := encode([]byte(`{"typ":"JWT","alg":"SHA1","ser":"json"}`))
	body := encode([]byte(`"not a mapping"`))
	mac := hmac.New(sha1.New, testSecret)
	mac.Write([]byte(header + "." + body))
	msg := header + "." + body + "." + encode(mac.Sum(nil))

	assert.True(t, v.ValidMessage(msg))

	_, err := v.Verify(msg)
	assert.ErrorIs(t, err, claims.ErrMalformedClaims)

	got, ok, err := v.Verified(msg)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestVerifier_SerializationErrorPropagates(t *testing.T) {
	v := newTestVerifier(t, WithSerializer(brokenLoader{}))

	msg, err := v.Generate("data")
	require.NoError(t, err)

	_, err = v.Verify(msg)
	assert.ErrorIs(t, err, serializer.ErrSerialization)

	got, ok, err := v.Verified(msg)
	assert.ErrorIs(t, err, serializer.ErrSerialization)
	assert.ErrorIs(t, err, errBrokenLoad)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestVerifier_GenerateSerializationError(t *testing.T) {
	v := newTestVerifier(t)

	_, err := v.Generate(make(chan int))
	assert.ErrorIs(t, err, serializer.ErrSerialization)
}

func TestDetectFormat(t *testing.T) {
	v := newTestVerifier(t)
	msg, err := v.Generate("data")
	require.NoError(t, err)

	assert.Equal(t, FormatCurrent, DetectFormat(msg))
	assert.Equal(t, FormatUnknown, DetectFormat("purejunk"))
	assert.Equal(t, "current", FormatCurrent.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "malformed", Reason(structural("x")))
	assert.Equal(t, "invalid_signature", Reason(ErrInvalidSignature))
	assert.Equal(t, "invalid_purpose", Reason(claims.ErrInvalidPurpose))
	assert.Equal(t, "expired", Reason(claims.ErrExpiredClaims))
	assert.Equal(t, "malformed_claims", Reason(claims.ErrMalformedClaims))
	assert.Equal(t, "serialization", Reason(serializer.ErrSerialization))
	assert.Equal(t, "error", Reason(errors.New("other")))
}

func TestVerifier_Concurrent(t *testing.T) {
	v := newTestVerifier(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := v.Generate(map[string]any{"n": "value"}, claims.For("worker"))
			if !assert.NoError(t, err) {
				return
			}
			_, err = v.Verify(msg, claims.For("worker"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestVerifier_WithPolicy(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, WithPolicy(claims.Policy{
		DefaultExpiresIn: time.Minute,
		Now:              func() time.Time { return t0 },
	}))

	msg, err := v.Generate("data")
	require.NoError(t, err)

	c, err := v.Claims(msg)
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, c.ExpiresAt.Equal(t0.Add(time.Minute)))
}
