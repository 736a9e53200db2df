// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides changegate's standard CBOR encoding
// configuration.
//
// Changegate uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: CLI --json output, rules files
//     (JSONC), and the signal formats CI platforms consume.
//   - CBOR for internal state: decision records persisted under the
//     state directory.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which keeps record fingerprints stable across runs and
// binaries.
//
// Usage:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. Example:
//     the ruleset digest payload.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor` tags
//     are absent, so a single `json` tag controls field naming and
//     omitempty for both formats. Example: the decision record, which
//     the store persists as CBOR and history --json prints.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
