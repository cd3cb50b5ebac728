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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/aead"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/serializer"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// mapErrorToStatusCode maps errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, claims.ErrInvalidPurpose):
		return http.StatusForbidden
	case errors.Is(err, verifier.ErrInvalidSignature),
		errors.Is(err, claims.ErrExpiredClaims):
		return http.StatusUnauthorized
	case errors.Is(err, claims.ErrMalformedClaims),
		errors.Is(err, encryptor.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, serializer.ErrSerialization):
		return http.StatusUnprocessableEntity
	case errors.Is(err, aead.ErrUsageLimit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the mapped status with a reason label. Only request
// errors carry their message; envelope failures are reduced to the label.
func (h *HandlerContext) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := mapErrorToStatusCode(err)
	resp := ErrorResponse{
		Error:  http.StatusText(code),
		Reason: encryptor.Reason(err),
		Code:   code,
	}
	if errors.Is(err, ErrInvalidRequest) {
		resp.Reason = "invalid_request"
		resp.Message = err.Error()
	}
	if code == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", logger.Error(err))
	}
	writeJSON(w, resp, code)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
