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
	"errors"
	"fmt"
)

var errRawType = errors.New("raw serializer accepts only []byte and string")

// Raw passes bytes through unchanged. It is only usable where the value
// is already a byte string, such as legacy verifiers carrying opaque
// tokens. Load always returns a string.
type Raw struct{}

func (Raw) Name() string { return NameRaw }

func (Raw) Dump(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("%w: got %T", errRawType, v)
	}
}

func (Raw) Load(data []byte) (any, error) {
	return string(data), nil
}
