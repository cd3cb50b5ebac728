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

package serializer

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes values as RFC 8949 CBOR. Maps decode to map[string]any so
// claims mappings look the same as with JSON. Maps with non-string keys
// fail to load.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR returns a CBOR serializer using canonical encoding and
// RFC 3339 timestamps.
func NewCBOR() (*CBOR, error) {
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return nil, err
	}

	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}

	return &CBOR{enc: enc, dec: dec}, nil
}

func (c *CBOR) Name() string { return NameCBOR }

func (c *CBOR) Dump(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *CBOR) Load(data []byte) (any, error) {
	var v any
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
