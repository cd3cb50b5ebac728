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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/correlation"
)

// HTTP returns net/http middleware that opens the request envelope with
// opener and stores the payload in the request context.
func HTTP(opener Opener, cfg *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, payload, err := authenticate(r, opener, cfg, "http")
			if err != nil {
				if cfg.optional && errors.Is(err, ErrMissingEnvelope) {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(HTTPStatus(err))
				_ = json.NewEncoder(w).Encode(newErrorBody(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPayload(ctx, payload)))
		})
	}
}

// authenticate is shared by the HTTP and gin middleware.
func authenticate(r *http.Request, opener Opener, cfg *Config, transport string) (ctx context.Context, payload any, err error) {
	start := time.Now()
	requestID := correlation.GetCorrelationID(r.Context())
	if requestID == "" {
		requestID = correlation.FromRequest(r)
	}
	ctx = correlation.WithCorrelationID(r.Context(), requestID)

	message, err := extractFromRequest(r, cfg)
	if err == nil {
		payload, err = opener.Open(message, claims.For(cfg.purpose))
	}

	event := SecurityEvent{
		EventType: EventSuccess,
		Timestamp: time.Now(),
		RequestID: requestID,
		Transport: transport,
		Purpose:   cfg.purpose,
		Envelope:  message,
		Latency:   time.Since(start),
	}
	if err != nil {
		if cfg.optional && errors.Is(err, ErrMissingEnvelope) {
			return ctx, nil, err
		}
		event.EventType = EventFailure
		event.FailureReason = Reason(err)
	}
	logSecurityEvent(ctx, cfg.logger, event)
	return ctx, payload, err
}
