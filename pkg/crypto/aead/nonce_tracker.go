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
	"encoding/hex"
	"sync"
)

// NonceTracker remembers every nonce used with one key and rejects
// repeats. Reusing a GCM nonce under the same key exposes the
// authentication key; reusing a ChaCha20 nonce leaks keystream.
//
// Memory grows with every encryption, so tracking is opt-in and meant
// for bounded-lifetime keys.
//
//	tracker := aead.NewNonceTracker(true)
//	if err := tracker.CheckAndRecordNonce(iv); err != nil {
//	    return err
//	}
type NonceTracker struct {
	enabled bool
	nonces  map[string]struct{}
	mu      sync.RWMutex
}

// NewNonceTracker creates a tracker. A disabled tracker accepts every
// nonce and records nothing.
func NewNonceTracker(enabled bool) *NonceTracker {
	return &NonceTracker{
		enabled: enabled,
		nonces:  make(map[string]struct{}),
	}
}

// CheckAndRecordNonce records nonce, returning ErrNonceReuse if it was
// already present. The check and the insert happen under one lock.
func (nt *NonceTracker) CheckAndRecordNonce(nonce []byte) error {
	if !nt.IsEnabled() {
		return nil
	}

	key := hex.EncodeToString(nonce)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	if _, exists := nt.nonces[key]; exists {
		return ErrNonceReuse
	}
	nt.nonces[key] = struct{}{}
	return nil
}

// Contains reports whether nonce has been recorded.
func (nt *NonceTracker) Contains(nonce []byte) bool {
	if !nt.IsEnabled() {
		return false
	}

	nt.mu.RLock()
	defer nt.mu.RUnlock()

	_, exists := nt.nonces[hex.EncodeToString(nonce)]
	return exists
}

// Count returns the number of recorded nonces.
func (nt *NonceTracker) Count() int {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return len(nt.nonces)
}

// Clear forgets every recorded nonce. Only safe after the key changes.
func (nt *NonceTracker) Clear() {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.nonces = make(map[string]struct{})
}

// IsEnabled reports whether tracking is active.
func (nt *NonceTracker) IsEnabled() bool {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return nt.enabled
}

// SetEnabled toggles tracking. Recorded nonces are kept.
func (nt *NonceTracker) SetEnabled(enabled bool) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.enabled = enabled
}
