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

// Package rest exposes envelope generation, verification, encryption and
// decryption over HTTP.
//
//	server, _ := rest.NewServer(&rest.Config{
//	    Addr:      ":8080",
//	    Verifier:  v,
//	    Encryptor: e,
//	})
//	go server.Start()
//	defer server.Stop(ctx)
//
// # API Endpoints
//
//   - POST /api/v1/messages/generate  sign a payload
//   - POST /api/v1/messages/verify    verify a signed message
//   - POST /api/v1/messages/encrypt   encrypt and sign a payload
//   - POST /api/v1/messages/decrypt   verify and decrypt a message
//   - GET  /health, /health/live, /health/ready, /health/startup
//   - GET  /metrics
//
// Rejected envelopes return a JSON body with a short reason label:
//
//	{"error": "Unauthorized", "reason": "expired", "code": 401}
//
// Reasons never include message text or key material.
package rest
