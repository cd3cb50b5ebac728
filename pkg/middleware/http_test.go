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

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/correlation"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestVerifier(t *testing.T) *verifier.Verifier {
	t.Helper()
	v, err := verifier.New(testSecret)
	require.NoError(t, err)
	return v
}

func newTestConfig(t *testing.T, opts ...ConfigOption) *Config {
	t.Helper()
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	return cfg
}

// echoPayload writes the payload found in the request context.
var echoPayload = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	payload, ok := PayloadFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
})

func TestNewConfig(t *testing.T) {
	cfg := newTestConfig(t)
	assert.Equal(t, claims.DefaultPurpose, cfg.Purpose())
	assert.Equal(t, DefaultMetadataKey, cfg.MetadataKey())
	assert.Equal(t, "", cfg.CookieName())

	_, err := NewConfig(WithPurpose(""))
	assert.Error(t, err)

	_, err = NewConfig(WithMetadataKey(""))
	assert.Error(t, err)

	cfg = newTestConfig(t, WithMetadataKey("X-Envelope"), WithCookie("session"))
	assert.Equal(t, "x-envelope", cfg.MetadataKey())
	assert.Equal(t, "session", cfg.CookieName())
}

func TestHTTP_AuthorizationHeader(t *testing.T) {
	v := newTestVerifier(t)
	handler := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithPurpose("api")))(echoPayload)

	msg, err := v.Generate("alice", claims.For("api"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Envelope "+msg)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"alice"`, rec.Body.String())
}

func TestHTTP_Rejections(t *testing.T) {
	v := newTestVerifier(t)
	handler := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithPurpose("api")))(echoPayload)

	wrongPurpose, err := v.Generate("alice", claims.For("other"))
	require.NoError(t, err)
	expired, err := v.Generate("alice", claims.For("api"), claims.ExpiresAt(time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		status        int
		reason        string
	}{
		{"missing", "", http.StatusUnauthorized, "missing_envelope"},
		{"bearer scheme", "Bearer abc", http.StatusUnauthorized, "malformed_authorization"},
		{"empty envelope", "Envelope  ", http.StatusUnauthorized, "missing_envelope"},
		{"junk", "Envelope purejunk", http.StatusUnauthorized, "malformed"},
		{"wrong purpose", "Envelope " + wrongPurpose, http.StatusForbidden, "invalid_purpose"},
		{"expired", "Envelope " + expired, http.StatusUnauthorized, "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.reason, body["reason"])
		})
	}
}

func TestHTTP_Optional(t *testing.T) {
	v := newTestVerifier(t)
	handler := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithOptional()))(echoPayload)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Envelope purejunk")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "invalid envelopes are rejected even when optional")
}

func TestHTTP_CookieWithEncryptor(t *testing.T) {
	enc, err := encryptor.New(testSecret)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = SetCookie(rec, SealerFunc(enc.EncryptAndSign), "session", map[string]any{"user": "alice"}, CookieOptions{
		Expires:  time.Now().Add(time.Hour),
		HTTPOnly: true,
		Secure:   true,
	})
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, cookies[0].Value, "alice")

	cfg := newTestConfig(t, WithPurpose("session"), WithCookie("session"))
	handler := HTTP(OpenerFunc(enc.DecryptAndVerify), cfg)(echoPayload)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"alice"}`, rec.Body.String())
}

func TestHTTP_SecurityEventIsRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(&logger.SlogConfig{
		Handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	v := newTestVerifier(t)
	handler := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithLogger(log), WithPurpose("api")))(echoPayload)

	msg, err := v.Generate("alice", claims.For("other"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Envelope "+msg)
	req.Header.Set(correlation.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "envelope authentication failed")
	assert.Contains(t, out, "invalid_purpose")
	assert.Contains(t, out, "req-42")
	assert.Contains(t, out, "[REDACTED]")
	assert.False(t, strings.Contains(out, msg), "the envelope must never be logged verbatim")
}

func TestContextHelpers(t *testing.T) {
	ctx := WithPayload(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "value")
	payload, ok := PayloadFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "value", payload)
	assert.Equal(t, "value", MustPayload(ctx))

	assert.Panics(t, func() {
		MustPayload(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	})
}

func TestHTTP_NullPayloadIsAuthenticated(t *testing.T) {
	v := newTestVerifier(t)
	handler := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithOptional()))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := PayloadFromContext(r.Context())
		assert.True(t, ok)
		assert.Nil(t, payload)
		assert.NotPanics(t, func() { MustPayload(r.Context()) })
		w.WriteHeader(http.StatusOK)
	}))

	msg, err := v.Generate(nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Envelope "+msg)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	echo := HTTP(OpenerFunc(v.Verify), newTestConfig(t, WithOptional()))(echoPayload)
	echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code, "no envelope means no payload")
}

func TestContextHelpers_NilPayload(t *testing.T) {
	ctx := WithPayload(context.Background(), nil)
	payload, ok := PayloadFromContext(ctx)
	assert.True(t, ok)
	assert.Nil(t, payload)
	assert.Nil(t, MustPayload(ctx))

	_, ok = PayloadFromContext(context.Background())
	assert.False(t, ok)
}
