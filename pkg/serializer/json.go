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

import "encoding/json"

// JSON encodes values with encoding/json. Numbers load as float64 and
// objects as map[string]any.
type JSON struct{}

func (JSON) Name() string { return NameJSON }

func (JSON) Dump(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Load(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
