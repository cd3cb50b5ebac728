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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONAdapter(buf *bytes.Buffer, level Level) *SlogAdapter {
	return NewSlogAdapter(&SlogConfig{Format: "json", Output: buf, Level: level})
}

func TestNewSlogAdapter_NilConfig(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	require.NotNil(t, adapter)
	assert.NotNil(t, adapter.Slog())
}

func TestSlogAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelDebug)

	adapter.Info("verified",
		String("purpose", "login"),
		Int("segments", 3),
		Bool("legacy", false),
		Duration("took", time.Millisecond),
		Error(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "verified", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "login", entry["purpose"])
	assert.Equal(t, float64(3), entry["segments"])
	assert.Equal(t, false, entry["legacy"])
	assert.Equal(t, "boom", entry["error"])
}

func TestSlogAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelWarn)

	adapter.Debug("hidden")
	adapter.Info("hidden")
	assert.Empty(t, buf.String())

	adapter.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSlogAdapter_ContextAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelDebug)

	ctx := correlation.WithCorrelationID(context.Background(), "corr-123")
	adapter.WarnContext(ctx, "rejected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-123", entry["correlation_id"])
}

func TestSlogAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	adapter := newJSONAdapter(&buf, LevelDebug)

	child := adapter.With(String("component", "verifier"))
	child.Error("failed")

	assert.Contains(t, buf.String(), `"component":"verifier"`)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "[REDACTED]", Redact("short"))

	msg := "eyJ0eXAiOiJKV1QifQ==.eyJwbGQiOiJ4In0=.c2ln"
	got := Redact(msg)
	assert.True(t, strings.HasPrefix(got, msg[:8]))
	assert.NotContains(t, got, "c2ln")

	assert.Equal(t, Field{Key: "token", Value: "[REDACTED]"}, Redacted("token", "abc"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored", String("k", "v"))
	l.ErrorContext(context.Background(), "ignored")
	assert.Equal(t, l, l.With(String("k", "v")))
}
