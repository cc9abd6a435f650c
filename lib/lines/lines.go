// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lines

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

// Reader reads lines from an underlying stream on demand.
type Reader struct {
	reader *bufio.Reader
	done   bool
}

// NewReader returns a Reader over r. If r is already a *bufio.Reader it
// is used directly.
func NewReader(r io.Reader) *Reader {
	buffered, ok := r.(*bufio.Reader)
	if !ok {
		buffered = bufio.NewReader(r)
	}
	return &Reader{reader: buffered}
}

// Next returns the next line with its "\n" removed. It returns io.EOF
// after the last line. Any other error is a read failure from the
// underlying stream; the Reader is finished after the first error.
func (r *Reader) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}

	line, err := r.reader.ReadString('\n')
	if err != nil {
		r.done = true
		if errors.Is(err, io.EOF) {
			// A partial last line counts as a line. An empty read at
			// EOF means the previous line was the last one.
			if line == "" {
				return "", io.EOF
			}
			return line, nil
		}
		return "", err
	}

	return strings.TrimSuffix(line, "\n"), nil
}

// All returns an iterator over the remaining lines. Iteration stops at
// end of stream; a read failure is yielded once as the final pair with
// an empty line.
func (r *Reader) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Collect reads every remaining line from r. On a read failure it
// returns the lines read so far along with the error.
func Collect(r io.Reader) ([]string, error) {
	var collected []string
	for line, err := range NewReader(r).All() {
		if err != nil {
			return collected, err
		}
		collected = append(collected, line)
	}
	return collected, nil
}
