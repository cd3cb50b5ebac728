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

	"github.com/gin-gonic/gin"
)

// GinPayloadKey is the gin context key holding the opened payload.
const GinPayloadKey = "envelope.payload"

// Gin returns a gin middleware with the same contract as HTTP. The
// payload is available from both c.Get(GinPayloadKey) and
// PayloadFromContext(c.Request.Context()).
func Gin(opener Opener, cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, payload, err := authenticate(c.Request, opener, cfg, "gin")
		if err != nil {
			if cfg.optional && errors.Is(err, ErrMissingEnvelope) {
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(HTTPStatus(err), newErrorBody(err))
			return
		}

		c.Request = c.Request.WithContext(WithPayload(ctx, payload))
		c.Set(GinPayloadKey, payload)
		c.Next()
	}
}
