// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nix

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/nixcall/lib/lines"
)

// Decoder turns a process's stdout into a value. Decode runs on its
// own goroutine while the process is still running; it should read
// until it has what it needs; the runner discards anything left.
type Decoder[T any] interface {
	Decode(stdout io.Reader) (T, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc[T any] func(stdout io.Reader) (T, error)

// Decode calls f(stdout).
func (f DecoderFunc[T]) Decode(stdout io.Reader) (T, error) {
	return f(stdout)
}

// JSONDecoder returns a Decoder that expects exactly one JSON value,
// optionally surrounded by whitespace.
func JSONDecoder[T any]() Decoder[T] {
	return jsonDecoder[T]{}
}

// LinesDecoder returns a Decoder that collects stdout line by line.
func LinesDecoder() Decoder[[]string] {
	return DecoderFunc[[]string](lines.Collect)
}

type jsonDecoder[T any] struct{}

func (jsonDecoder[T]) Decode(stdout io.Reader) (T, error) {
	var value T
	decoder := json.NewDecoder(stdout)
	if err := decoder.Decode(&value); err != nil {
		return value, err
	}

	// nix-instantiate prints one value and a newline. Anything else
	// means the output is not what we asked for.
	token, err := decoder.Token()
	if errors.Is(err, io.EOF) {
		return value, nil
	}
	if err != nil {
		return value, err
	}
	return value, fmt.Errorf("unexpected %v after JSON value", token)
}

// recordingDecoder decodes through an inner decoder while keeping a
// copy of every byte it consumed, for storage in a ValueCache.
type recordingDecoder[T any] struct {
	decoder Decoder[T]
	output  bytes.Buffer
}

func (r *recordingDecoder[T]) Decode(stdout io.Reader) (T, error) {
	return r.decoder.Decode(io.TeeReader(stdout, &r.output))
}

// storePathDecoder reads one store path per line.
type storePathDecoder struct{}

func (storePathDecoder) Decode(stdout io.Reader) ([]StorePath, error) {
	var paths []StorePath
	for line, err := range lines.NewReader(stdout).All() {
		if err != nil {
			return paths, err
		}
		paths = append(paths, NewStorePath(line))
	}
	return paths, nil
}
