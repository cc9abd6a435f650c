// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides nixcall's CBOR encoding configuration.
//
// CBOR is used where bytes must be stable: evaluation cache keys are
// hashes of an encoded request, so the same request must always encode
// to the same bytes. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. The same encoder backs "nixcall eval
// --format cbor".
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//	err = codec.NewEncoder(os.Stdout).Encode(value)
//
// Types implementing encoding.TextMarshaler, such as nix.StorePath,
// encode as CBOR text strings.
package codec
