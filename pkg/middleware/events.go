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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"google.golang.org/grpc/codes"
)

const (
	EventSuccess = "success"
	EventFailure = "failure"
)

// SecurityEvent is a structured record of one authentication attempt.
// The envelope itself is redacted when logged.
type SecurityEvent struct {
	EventType     string
	Timestamp     time.Time
	RequestID     string
	Transport     string
	Purpose       string
	FailureReason string
	Envelope      string
	Latency       time.Duration
}

// LogValue implements slog.LogValuer.
func (e SecurityEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("event", e.EventType),
		slog.Time("timestamp", e.Timestamp),
		slog.String("request_id", e.RequestID),
		slog.String("transport", e.Transport),
		slog.String("purpose", e.Purpose),
		slog.String("failure_reason", e.FailureReason),
		slog.String("envelope", logger.Redact(e.Envelope)),
		slog.Duration("latency", e.Latency),
	)
}

func logSecurityEvent(ctx context.Context, l logger.Logger, event SecurityEvent) {
	if event.EventType == EventFailure {
		l.WarnContext(ctx, "envelope authentication failed", logger.Any("envelope_event", event))
		return
	}
	l.DebugContext(ctx, "envelope authenticated", logger.Any("envelope_event", event))
}

// Reason returns the failure label for err.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingEnvelope):
		return "missing_envelope"
	case errors.Is(err, ErrMalformedAuthorization):
		return "malformed_authorization"
	default:
		return encryptor.Reason(err)
	}
}

// HTTPStatus maps an opening failure to a response status. Purpose
// mismatches are forbidden; serialization failures are server errors.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, claims.ErrInvalidPurpose):
		return http.StatusForbidden
	case errors.Is(err, serializer.ErrSerialization):
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

// GRPCCode maps an opening failure to a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case errors.Is(err, claims.ErrInvalidPurpose):
		return codes.PermissionDenied
	case errors.Is(err, serializer.ErrSerialization):
		return codes.Internal
	default:
		return codes.Unauthenticated
	}
}

// errorBody is the JSON body written on rejection.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func newErrorBody(err error) errorBody {
	return errorBody{Error: http.StatusText(HTTPStatus(err)), Reason: Reason(err)}
}
