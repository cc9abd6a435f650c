// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lines splits a byte stream into newline-terminated lines.
//
// A [Reader] yields each line without its trailing "\n". A final line
// with no terminating newline is still returned. Lines are Go strings,
// which hold arbitrary bytes, so output containing invalid UTF-8 (file
// names, compiler diagnostics in legacy encodings) passes through
// byte-for-byte with no replacement characters.
//
// Unlike bufio.Scanner there is no maximum line length: a process that
// prints a multi-megabyte line on stderr must not cause the rest of its
// output to be dropped.
//
// A Reader is one-pass. Once it reports the end of the stream it keeps
// reporting it.
package lines
