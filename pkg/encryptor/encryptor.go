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

// Package encryptor seals values with an AEAD cipher and signs the
// resulting bundle with a verifier.Verifier.
//
// The bundle carries five dot-joined base64 segments:
//
//	protected-header . content-key . iv . ciphertext . tag
//
// The protected header is {"typ":"JWE + JWS","alg":"dir","enc":<cipher>}.
// The content key is derived from the encryption secret at construction,
// so the content-key segment is a zero placeholder kept for layout
// compatibility. The whole bundle is then the payload of a signed
// message, so purpose and expiration apply to encrypted values too.
package encryptor

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/aead"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/rand"
	"github.com/jeremyhahn/go-envelope/pkg/keygen"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

const (
	// HeaderType is the typ value of the protected header.
	HeaderType = "JWE + JWS"

	// ContentKeyInfo prefixes the HKDF info used to derive content keys.
	ContentKeyInfo = "go-envelope content key"

	bundleSegments = 5
)

// ProtectedHeader is the first bundle segment.
type ProtectedHeader struct {
	Type       string                 `json:"typ"`
	Algorithm  jose.KeyAlgorithm      `json:"alg"`
	Encryption jose.ContentEncryption `json:"enc"`
}

// Encryptor encrypts and signs values. It is safe for concurrent use.
type Encryptor struct {
	cipherID   string
	aead       cipher.AEAD
	keySize    int
	header     []byte
	aad        []byte
	verifier   *verifier.Verifier
	serializer serializer.Serializer
	random     rand.Resolver
	nonces     *aead.NonceTracker
	usage      *aead.BytesTracker
	logger     logger.Logger
}

// New creates an Encryptor. secret keys the cipher and, unless
// WithSignSecret is given, the signature too.
//
//	enc, err := encryptor.New(secret, encryptor.WithCipher("aes-256-gcm"))
//	msg, err := enc.EncryptAndSign(value, claims.For("session"))
//	value, err := enc.DecryptAndVerify(msg, claims.For("session"))
func New(secret []byte, opts ...Option) (*Encryptor, error) {
	if len(secret) == 0 {
		return nil, verifier.ErrInvalidSecret
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	signSecret := cfg.signSecret
	if signSecret == nil {
		signSecret = secret
	}
	v, err := verifier.New(signSecret, cfg.verifierOpts...)
	if err != nil {
		return nil, err
	}

	keySize := aead.KeySize(cfg.cipher)
	key, err := keygen.DeriveContentKey(secret, []byte(ContentKeyInfo+cfg.cipher), keySize)
	if err != nil {
		return nil, err
	}
	c, err := aead.New(cfg.cipher, key)
	if err != nil {
		return nil, err
	}

	header, err := json.Marshal(ProtectedHeader{
		Type:       HeaderType,
		Algorithm:  jose.DIRECT,
		Encryption: jose.ContentEncryption(cfg.cipher),
	})
	if err != nil {
		return nil, err
	}

	e := &Encryptor{
		cipherID:   cfg.cipher,
		aead:       c,
		keySize:    keySize,
		header:     header,
		aad:        additionalData(header),
		verifier:   v,
		serializer: cfg.serializer,
		random:     cfg.random,
		nonces:     aead.NewNonceTracker(cfg.nonceTracking),
		logger:     cfg.logger.With(logger.String("component", metrics.ComponentEncryptor)),
	}
	if cfg.usageLimit > 0 {
		e.usage = aead.NewBytesTracker(true, cfg.usageLimit)
	}
	return e, nil
}

// Cipher returns the canonical content-encryption algorithm.
func (e *Encryptor) Cipher() string { return e.cipherID }

// Verifier returns the signing layer.
func (e *Encryptor) Verifier() *verifier.Verifier { return e.verifier }

// NonceTracker returns the IV tracker. It records nothing unless nonce
// tracking was enabled.
func (e *Encryptor) NonceTracker() *aead.NonceTracker { return e.nonces }

// Unmetered returns an Encryptor sharing e's keys and cipher that tracks
// neither IVs nor usage. Self-tests use it so they leave e's nonce set and
// byte budget untouched.
func (e *Encryptor) Unmetered() *Encryptor {
	u := *e
	u.nonces = aead.NewNonceTracker(false)
	u.usage = nil
	return &u
}

// EncryptAndSign serializes value, encrypts it and signs the bundle with
// claims built from opts.
func (e *Encryptor) EncryptAndSign(value any, opts ...claims.Option) (string, error) {
	start := time.Now()
	message, err := e.encryptAndSign(value, opts...)
	e.observe(metrics.OpEncrypt, start, err)
	return message, err
}

func (e *Encryptor) encryptAndSign(value any, opts ...claims.Option) (string, error) {
	plaintext, err := serializer.Dump(e.serializer, value)
	if err != nil {
		return "", err
	}
	if e.usage != nil {
		if err := e.usage.CheckAndIncrementBytes(int64(len(plaintext))); err != nil {
			return "", err
		}
	}

	iv, err := e.random.Rand(e.aead.NonceSize())
	if err != nil {
		return "", err
	}
	if err := e.nonces.CheckAndRecordNonce(iv); err != nil {
		return "", err
	}

	ciphertext, tag := aead.Seal(e.aead, iv, plaintext, e.aad)
	bundle := strings.Join([]string{
		encode(e.header),
		encode(make([]byte, e.keySize)),
		encode(iv),
		encode(ciphertext),
		encode(tag),
	}, ".")

	return e.verifier.Generate(bundle, opts...)
}

// DecryptAndVerify checks the signature and claims of message, then
// decrypts the bundle it carries. Signing-layer errors are returned
// unchanged; every decryption failure is ErrInvalidMessage.
func (e *Encryptor) DecryptAndVerify(message string, opts ...claims.Option) (any, error) {
	start := time.Now()
	value, err := e.decryptAndVerify(message, opts...)
	e.observe(metrics.OpDecrypt, start, err)
	return value, err
}

func (e *Encryptor) decryptAndVerify(message string, opts ...claims.Option) (any, error) {
	value, err := e.verifier.Verify(message, opts...)
	if err != nil {
		return nil, err
	}
	bundle, ok := value.(string)
	if !ok {
		return nil, ErrInvalidMessage
	}
	plaintext, err := e.open(bundle)
	if err != nil {
		return nil, err
	}
	return serializer.Load(e.serializer, plaintext)
}

// DecryptAndVerified behaves like DecryptAndVerify but reports every
// failure except a serialization error as an absent value.
func (e *Encryptor) DecryptAndVerified(message string, opts ...claims.Option) (any, bool, error) {
	value, err := e.DecryptAndVerify(message, opts...)
	if err == nil {
		return value, true, nil
	}
	if errors.Is(err, serializer.ErrSerialization) {
		return nil, false, err
	}
	return nil, false, nil
}

func (e *Encryptor) open(bundle string) ([]byte, error) {
	parts := strings.Split(bundle, ".")
	if len(parts) != bundleSegments {
		return nil, ErrInvalidMessage
	}
	decoded := make([][]byte, bundleSegments)
	for i, part := range parts {
		raw, err := base64.StdEncoding.Strict().DecodeString(part)
		if err != nil {
			return nil, ErrInvalidMessage
		}
		decoded[i] = raw
	}
	header, key, iv, ciphertext, tag := decoded[0], decoded[1], decoded[2], decoded[3], decoded[4]

	var protected ProtectedHeader
	if err := json.Unmarshal(header, &protected); err != nil {
		return nil, ErrInvalidMessage
	}
	if protected.Algorithm != jose.DIRECT || string(protected.Encryption) != e.cipherID {
		return nil, ErrInvalidMessage
	}
	if len(key) != e.keySize {
		return nil, ErrInvalidMessage
	}

	plaintext, err := aead.Open(e.aead, iv, ciphertext, tag, additionalData(header))
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return plaintext, nil
}

func (e *Encryptor) observe(op string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		reason := Reason(err)
		metrics.RecordFailure(op, metrics.ComponentEncryptor, reason)
		e.logger.Debug("envelope rejected",
			logger.String("operation", op),
			logger.String("reason", reason))
	}
	metrics.RecordOperation(op, metrics.ComponentEncryptor, status, time.Since(start).Seconds())
}

// additionalData renders header as the decimal byte list "[123, 34, ...]".
func additionalData(header []byte) []byte {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range header {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(c)))
	}
	b.WriteByte(']')
	return []byte(b.String())
}

func encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
