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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/health"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// HealthChecker is the subset of health.Checker used by the handlers.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// HandlerContext holds the dependencies shared by every handler.
type HandlerContext struct {
	verifier      *verifier.Verifier
	encryptor     *encryptor.Encryptor
	healthChecker HealthChecker
	version       string
	started       time.Time
	maxBodyBytes  int64
	logger        logger.Logger
}

// decode reads a JSON body into dst, rejecting unknown fields and
// trailing data.
func (h *HandlerContext) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrInvalidRequest)
	}
	return nil
}

func (req OpenRequest) validate() error {
	if req.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	return nil
}

func (req OpenRequest) options() []claims.Option {
	if req.Purpose == "" {
		return nil
	}
	return []claims.Option{claims.For(req.Purpose)}
}

// GenerateHandler handles POST /api/v1/messages/generate.
func (h *HandlerContext) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if req.Legacy {
		if req.Purpose != "" || req.ExpiresIn != "" || req.ExpiresAt != nil {
			h.handleError(w, r, fmt.Errorf("%w: legacy messages carry no purpose or expiration", ErrInvalidRequest))
			return
		}
		msg, err := h.verifier.Legacy().Generate(req.Payload)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, MessageResponse{Message: msg, Format: verifier.FormatLegacy.String()}, http.StatusOK)
		return
	}

	opts, err := req.options()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	msg, err := h.verifier.Generate(req.Payload, opts...)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, MessageResponse{Message: msg, Format: verifier.FormatCurrent.String()}, http.StatusOK)
}

// VerifyHandler handles POST /api/v1/messages/verify. Both message
// layouts are accepted.
func (h *HandlerContext) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.handleError(w, r, err)
		return
	}

	payload, err := h.verifier.Verify(req.Message, req.options()...)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, PayloadResponse{Payload: payload, Format: verifier.DetectFormat(req.Message).String()}, http.StatusOK)
}

// EncryptHandler handles POST /api/v1/messages/encrypt.
func (h *HandlerContext) EncryptHandler(w http.ResponseWriter, r *http.Request) {
	var req EncryptRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	msg, err := h.encryptor.EncryptAndSign(req.Payload, opts...)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, MessageResponse{Message: msg, Format: verifier.FormatCurrent.String()}, http.StatusOK)
}

// DecryptHandler handles POST /api/v1/messages/decrypt.
func (h *HandlerContext) DecryptHandler(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.handleError(w, r, err)
		return
	}

	payload, err := h.encryptor.DecryptAndVerify(req.Message, req.options()...)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, PayloadResponse{Payload: payload}, http.StatusOK)
}
