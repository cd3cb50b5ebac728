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

package claims

import "time"

// Options collects the purpose and expiration settings supplied to
// Generate and Verify style calls. The zero value selects the default
// purpose and the policy's default expiration.
type Options struct {
	purpose *string

	expiresAt    *time.Time
	hasExpiresAt bool

	expires    *time.Time
	hasExpires bool

	expiresIn    time.Duration
	hasExpiresIn bool
}

// Option configures Options.
type Option func(*Options)

// For sets the purpose a message is generated for, or the purpose a
// verifier expects.
func For(purpose string) Option {
	return func(o *Options) {
		o.purpose = &purpose
	}
}

// ExpiresAt sets an absolute expiration. A zero time means the message
// never expires, regardless of any relative default.
func ExpiresAt(t time.Time) Option {
	return func(o *Options) {
		o.hasExpiresAt = true
		if t.IsZero() {
			o.expiresAt = nil
			return
		}
		o.expiresAt = &t
	}
}

// Expires is an alias of ExpiresAt with lower precedence.
func Expires(t time.Time) Option {
	return func(o *Options) {
		o.hasExpires = true
		if t.IsZero() {
			o.expires = nil
			return
		}
		o.expires = &t
	}
}

// ExpiresIn sets a relative expiration resolved against the clock at
// construction time.
func ExpiresIn(d time.Duration) Option {
	return func(o *Options) {
		o.hasExpiresIn = true
		o.expiresIn = d
	}
}

// NeverExpires suppresses the policy's default relative expiration.
func NeverExpires() Option {
	return ExpiresIn(0)
}

// Apply folds opts into a new Options value.
func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Purpose returns the configured purpose or DefaultPurpose.
func (o *Options) Purpose() string {
	if o == nil || o.purpose == nil {
		return DefaultPurpose
	}
	return *o.purpose
}
