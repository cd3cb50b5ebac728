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

package verifier

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

const (
	legacySeparator  = "--"
	currentSeparator = "."
)

// Format identifies the wire layout of a message.
type Format int

const (
	FormatUnknown Format = iota
	FormatLegacy
	FormatCurrent
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// DetectFormat reports which layout message appears to use without
// checking its signature.
func DetectFormat(message string) Format {
	env, err := parseEnvelope(message)
	if err != nil {
		return FormatUnknown
	}
	return env.format()
}

// envelope is either a legacyEnvelope or a currentEnvelope.
type envelope interface {
	format() Format
}

// legacyEnvelope is "<b64 data>--<hex digest>".
type legacyEnvelope struct {
	data   string
	digest string
}

func (legacyEnvelope) format() Format { return FormatLegacy }

// currentEnvelope is "<b64 header>.<b64 body>.<b64 signature>" with the
// body and signature already decoded.
type currentEnvelope struct {
	signingInput string
	body         []byte
	signature    []byte
}

func (currentEnvelope) format() Format { return FormatCurrent }

// parseEnvelope sniffs message and splits it into its parts. The legacy
// separator never appears in standard base64 text, so its presence
// selects the legacy layout.
func parseEnvelope(message string) (envelope, error) {
	if message == "" {
		return nil, structural("empty message")
	}
	if !utf8.ValidString(message) {
		return nil, structural("message is not valid UTF-8")
	}
	if strings.Contains(message, legacySeparator) {
		return parseLegacy(message)
	}

	parts := strings.Split(message, currentSeparator)
	if len(parts) != 3 {
		return nil, structural("expected three segments")
	}
	decoded := make([][]byte, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, structural("empty segment")
		}
		raw, err := base64.StdEncoding.Strict().DecodeString(part)
		if err != nil {
			return nil, structural("segment is not base64")
		}
		decoded[i] = raw
	}
	return currentEnvelope{
		signingInput: parts[0] + currentSeparator + parts[1],
		body:         decoded[1],
		signature:    decoded[2],
	}, nil
}

func parseLegacy(message string) (legacyEnvelope, error) {
	parts := strings.Split(message, legacySeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return legacyEnvelope{}, structural("expected data and digest")
	}
	return legacyEnvelope{data: parts[0], digest: parts[1]}, nil
}

func encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
