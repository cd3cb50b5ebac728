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

// Package serializer defines the payload codec used by verifiers and
// encryptors, along with the implementations shipped with go-envelope.
package serializer

import (
	"errors"
	"fmt"
	"strings"
)

const (
	NameJSON = "json"
	NameCBOR = "cbor"
	NameYAML = "yaml"
	NameRaw  = "raw"
)

// ErrSerialization is returned when a value cannot be dumped or loaded.
// It is never absorbed by verified-style calls.
var ErrSerialization = errors.New("serializer: serialization failed")

// ErrUnknownSerializer is returned by ByName for unsupported names.
var ErrUnknownSerializer = errors.New("serializer: unknown serializer")

// Serializer converts application values to bytes and back. Load must
// return an error rather than silently dropping data it cannot represent.
type Serializer interface {
	// Name identifies the serializer in envelope headers.
	Name() string

	// Dump encodes v.
	Dump(v any) ([]byte, error)

	// Load decodes data.
	Load(data []byte) (any, error)
}

// Default returns the JSON serializer.
func Default() Serializer {
	return JSON{}
}

// ByName returns the built-in serializer registered under name.
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON{}, nil
	case NameCBOR:
		c, err := NewCBOR()
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameYAML, "yml":
		return YAML{}, nil
	case NameRaw:
		return Raw{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializer, name)
	}
}

// Names lists the built-in serializer names.
func Names() []string {
	return []string{NameJSON, NameCBOR, NameYAML, NameRaw}
}

// Dump calls s.Dump and wraps any failure in ErrSerialization.
func Dump(s Serializer, v any) ([]byte, error) {
	data, err := s.Dump(v)
	if err != nil {
		return nil, wrap(s, "dump", err)
	}
	return data, nil
}

// Load calls s.Load and wraps any failure in ErrSerialization.
func Load(s Serializer, data []byte) (any, error) {
	v, err := s.Load(data)
	if err != nil {
		return nil, wrap(s, "load", err)
	}
	return v, nil
}

func wrap(s Serializer, op string, err error) error {
	if errors.Is(err, ErrSerialization) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrSerialization, s.Name(), op, err)
}
