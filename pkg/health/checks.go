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

package health

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/rand"
)

// probePurpose is the purpose of self-test messages. It keeps probe
// messages from being accepted anywhere else.
const probePurpose = "health-probe"

// Generator and Opener are satisfied by method values such as
// verifier.Verifier.Generate and encryptor.Encryptor.DecryptAndVerify.
type (
	Generator func(value any, opts ...claims.Option) (string, error)
	Opener    func(message string, opts ...claims.Option) (any, error)
)

// RoundTripCheck seals a probe value with generate and opens it again
// with open. It reports unhealthy when either side fails or the value
// does not survive.
func RoundTripCheck(name string, generate Generator, open Opener) CheckFunc {
	return func(ctx context.Context) CheckResult {
		probe := map[string]any{"probe": name}

		message, err := generate(probe, claims.For(probePurpose))
		if err != nil {
			return unhealthy(name, "generate failed", err)
		}
		got, err := open(message, claims.For(probePurpose))
		if err != nil {
			return unhealthy(name, "verify failed", err)
		}
		if !reflect.DeepEqual(got, probe) {
			return unhealthy(name, "round trip mismatch", fmt.Errorf("got %T", got))
		}
		return CheckResult{Name: name, Status: StatusHealthy, Message: "round trip ok"}
	}
}

// RandomCheck draws a few bytes from r.
func RandomCheck(r rand.Resolver) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if !r.Available() {
			return CheckResult{Name: "random", Status: StatusUnhealthy, Message: "random source unavailable"}
		}
		if _, err := r.Rand(16); err != nil {
			return unhealthy("random", "read failed", err)
		}
		return CheckResult{Name: "random", Status: StatusHealthy}
	}
}

func unhealthy(name, message string, err error) CheckResult {
	return CheckResult{Name: name, Status: StatusUnhealthy, Message: message, Error: err.Error()}
}
