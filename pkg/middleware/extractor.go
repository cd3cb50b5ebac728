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
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

var (
	// ErrMissingEnvelope is returned when a request carries no envelope.
	ErrMissingEnvelope = errors.New("middleware: envelope not found")

	// ErrMalformedAuthorization is returned for an Authorization header
	// that does not use the Envelope scheme.
	ErrMalformedAuthorization = errors.New("middleware: expected 'Envelope <message>' authorization")
)

// extractFromRequest reads the Authorization header first, then the
// configured cookie.
func extractFromRequest(r *http.Request, cfg *Config) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return parseAuthorization(header)
	}
	if cfg.cookieName != "" {
		if cookie, err := r.Cookie(cfg.cookieName); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value, nil
			}
		}
	}
	return "", ErrMissingEnvelope
}

func extractFromMetadata(md metadata.MD, cfg *Config) (string, error) {
	values := md.Get(cfg.metadataKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", ErrMissingEnvelope
	}
	return strings.TrimSpace(values[0]), nil
}

func parseAuthorization(header string) (string, error) {
	scheme, message, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) {
		return "", ErrMalformedAuthorization
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrMissingEnvelope
	}
	return message, nil
}
