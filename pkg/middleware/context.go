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

import "context"

type contextKey string

const payloadContextKey contextKey = "github.com/jeremyhahn/go-envelope/middleware:payload"

// payloadBox lets a nil payload from an authenticated envelope be told
// apart from a missing one.
type payloadBox struct{ v any }

// WithPayload stores an opened payload in ctx.
func WithPayload(ctx context.Context, payload any) context.Context {
	return context.WithValue(ctx, payloadContextKey, payloadBox{v: payload})
}

// PayloadFromContext returns the payload stored by the middleware. ok is
// true whenever an envelope was opened, even if its payload is nil.
func PayloadFromContext(ctx context.Context) (any, bool) {
	box, ok := ctx.Value(payloadContextKey).(payloadBox)
	return box.v, ok
}

// MustPayload returns the payload or panics. Use only behind a
// non-optional middleware.
func MustPayload(ctx context.Context) any {
	payload, ok := PayloadFromContext(ctx)
	if !ok {
		panic("middleware: payload not found in context")
	}
	return payload
}
