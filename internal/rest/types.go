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

package rest

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
)

// ClaimsParams carries the purpose and expiration of a request.
type ClaimsParams struct {
	Purpose   string     `json:"purpose,omitempty"`
	ExpiresIn string     `json:"expires_in,omitempty"` // Go duration, e.g. "15m"
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// options converts the parameters into claims options. An empty purpose
// keeps the library default.
func (p ClaimsParams) options() ([]claims.Option, error) {
	var opts []claims.Option
	if p.Purpose != "" {
		opts = append(opts, claims.For(p.Purpose))
	}
	if p.ExpiresIn != "" {
		d, err := time.ParseDuration(p.ExpiresIn)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: expires_in must be a positive duration", ErrInvalidRequest)
		}
		opts = append(opts, claims.ExpiresIn(d))
	}
	if p.ExpiresAt != nil {
		opts = append(opts, claims.ExpiresAt(*p.ExpiresAt))
	}
	return opts, nil
}

// GenerateRequest represents a signing request.
type GenerateRequest struct {
	ClaimsParams
	Payload any  `json:"payload"`
	Legacy  bool `json:"legacy,omitempty"` // sign in the legacy "data--digest" layout
}

// EncryptRequest represents an encryption request.
type EncryptRequest struct {
	ClaimsParams
	Payload any `json:"payload"`
}

// OpenRequest represents a verify or decrypt request.
type OpenRequest struct {
	Message string `json:"message"`
	Purpose string `json:"purpose,omitempty"`
}

// MessageResponse carries a sealed message.
type MessageResponse struct {
	Message string `json:"message"`
	Format  string `json:"format,omitempty"`
}

// PayloadResponse carries an opened payload.
type PayloadResponse struct {
	Payload any    `json:"payload"`
	Format  string `json:"format,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}
