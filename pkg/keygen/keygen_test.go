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

package keygen

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = New([]byte("secret"), WithIterations(0))
	assert.ErrorIs(t, err, ErrInvalidIterations)

	_, err = New([]byte("secret"), WithHash(crypto.Hash(0)))
	assert.ErrorIs(t, err, ErrInvalidHash)

	gen, err := New([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, DefaultIterations, gen.Iterations())
}

func TestGenerateKey(t *testing.T) {
	secret := []byte("application secret")
	gen, err := New(secret, WithIterations(1000))
	require.NoError(t, err)

	key, err := gen.GenerateKey([]byte("signed cookie"), 32)
	require.NoError(t, err)
	assert.Equal(t, pbkdf2.Key(secret, []byte("signed cookie"), 1000, 32, sha1.New), key)

	other, err := gen.GenerateKey([]byte("encrypted cookie"), 32)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	def, err := gen.GenerateKey([]byte("signed cookie"), 0)
	require.NoError(t, err)
	assert.Len(t, def, DefaultKeyLength)

	_, err = gen.GenerateKey([]byte("salt"), -1)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestGenerateKey_SHA256(t *testing.T) {
	secret := []byte("application secret")
	gen, err := New(secret, WithIterations(1000), WithHash(crypto.SHA256))
	require.NoError(t, err)

	key, err := gen.GenerateKey([]byte("salt"), 32)
	require.NoError(t, err)
	assert.Equal(t, pbkdf2.Key(secret, []byte("salt"), 1000, 32, sha256.New), key)
}

func TestCachingKeyGenerator(t *testing.T) {
	gen, err := New([]byte("application secret"), WithIterations(1000))
	require.NoError(t, err)
	cache := NewCaching(gen)

	var wg sync.WaitGroup
	keys := make([][]byte, 8)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := cache.GenerateKey([]byte("salt"), 32)
			assert.NoError(t, err)
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for _, k := range keys[1:] {
		assert.Equal(t, keys[0], k)
	}
	assert.Equal(t, 1, cache.Len())

	keys[0][0] ^= 0xff
	again, err := cache.GenerateKey([]byte("salt"), 32)
	require.NoError(t, err)
	assert.Equal(t, keys[1], again, "cached keys are returned as copies")

	_, err = cache.GenerateKey([]byte("salt"), 16)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}

func TestDeriveContentKey(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	key, err := DeriveContentKey(secret, []byte("info"), 32)
	require.NoError(t, err)

	want := make([]byte, 32)
	_, err = io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("info")), want)
	require.NoError(t, err)
	assert.Equal(t, want, key)

	other, err := DeriveContentKey(secret, []byte("other"), 32)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = DeriveContentKey(nil, nil, 32)
	assert.ErrorIs(t, err, ErrInvalidSecret)

	_, err = DeriveContentKey(secret, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
