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
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/correlation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor opens the envelope carried in incoming metadata
// and stores the payload in the handler context.
func UnaryServerInterceptor(opener Opener, cfg *Config) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		requestID := correlation.FromIncomingContext(ctx)
		ctx = correlation.WithCorrelationID(ctx, requestID)

		message := ""
		md, ok := metadata.FromIncomingContext(ctx)
		err := ErrMissingEnvelope
		if ok {
			message, err = extractFromMetadata(md, cfg)
		}

		var payload any
		if err == nil {
			payload, err = opener.Open(message, claims.For(cfg.purpose))
		}

		if err != nil && cfg.optional && errors.Is(err, ErrMissingEnvelope) {
			return handler(ctx, req)
		}

		event := SecurityEvent{
			EventType: EventSuccess,
			Timestamp: time.Now(),
			RequestID: requestID,
			Transport: "grpc",
			Purpose:   cfg.purpose,
			Envelope:  message,
			Latency:   time.Since(start),
		}
		if err != nil {
			event.EventType = EventFailure
			event.FailureReason = Reason(err)
			logSecurityEvent(ctx, cfg.logger, event)
			return nil, status.Error(GRPCCode(err), Reason(err))
		}
		logSecurityEvent(ctx, cfg.logger, event)

		return handler(WithPayload(ctx, payload), req)
	}
}
