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

package aead

import (
	"fmt"
	"sync/atomic"
)

// DefaultBytesLimit caps the plaintext encrypted under one key with
// random 96-bit nonces, following NIST SP 800-38D guidance.
const DefaultBytesLimit int64 = 64 * 1024 * 1024 * 1024

// BytesTracker counts plaintext bytes encrypted under one key and refuses
// to exceed a limit. Safe for concurrent use.
type BytesTracker struct {
	enabled bool
	limit   int64
	used    atomic.Int64
}

// NewBytesTracker creates a tracker. A zero limit selects
// DefaultBytesLimit.
func NewBytesTracker(enabled bool, limit int64) *BytesTracker {
	if limit <= 0 {
		limit = DefaultBytesLimit
	}
	return &BytesTracker{enabled: enabled, limit: limit}
}

// CheckAndIncrementBytes adds n to the counter unless doing so would
// exceed the limit, in which case the counter is left unchanged.
func (bt *BytesTracker) CheckAndIncrementBytes(n int64) error {
	if !bt.enabled {
		return nil
	}
	total := bt.used.Add(n)
	if total > bt.limit {
		bt.used.Add(-n)
		return fmt.Errorf("%w: %d of %d bytes used", ErrUsageLimit, total-n, bt.limit)
	}
	return nil
}

// BytesEncrypted returns the running total.
func (bt *BytesTracker) BytesEncrypted() int64 {
	return bt.used.Load()
}

// Remaining returns the bytes left before the limit.
func (bt *BytesTracker) Remaining() int64 {
	if r := bt.limit - bt.used.Load(); r > 0 {
		return r
	}
	return 0
}

// Limit returns the configured limit.
func (bt *BytesTracker) Limit() int64 {
	return bt.limit
}

// IsEnabled reports whether the limit is enforced.
func (bt *BytesTracker) IsEnabled() bool {
	return bt.enabled
}
