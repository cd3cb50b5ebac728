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
	"net/http"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
)

// CookieOptions controls the attributes of an issued cookie. Expires is
// also used as the envelope expiration when set.
type CookieOptions struct {
	Purpose  string
	Path     string
	Domain   string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// SetCookie seals value with sealer and writes it as cookie name. The
// cookie name doubles as the purpose unless opts.Purpose is set.
func SetCookie(w http.ResponseWriter, sealer Sealer, name string, value any, opts CookieOptions) error {
	purpose := opts.Purpose
	if purpose == "" {
		purpose = name
	}
	claimOpts := []claims.Option{claims.For(purpose)}
	if !opts.Expires.IsZero() {
		claimOpts = append(claimOpts, claims.ExpiresAt(opts.Expires))
	}

	message, err := sealer.Seal(value, claimOpts...)
	if err != nil {
		return err
	}

	path := opts.Path
	if path == "" {
		path = "/"
	}
	sameSite := opts.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    message,
		Path:     path,
		Domain:   opts.Domain,
		Expires:  opts.Expires,
		Secure:   opts.Secure,
		HttpOnly: opts.HTTPOnly,
		SameSite: sameSite,
	})
	return nil
}
