// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode applies Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is what
// lets record hashes double as content identifiers.
var encMode = mustEncMode()

// decMode accepts standard CBOR and silently ignores unknown fields,
// so older binaries can read records written by newer ones.
var decMode = mustDecMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	options := cbor.DecOptions{
		// Records only use string map keys. When the decoder's target
		// is any (e.g. diagnostic dumps), it must pick a concrete Go
		// map type; the CBOR default map[interface{}]interface{} is
		// incompatible with encoding/json and most Go code expecting
		// map[string]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	mode, err := options.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
	return mode
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data. Used by the CLI to inspect record payloads
// without a schema.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
