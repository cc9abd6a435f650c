// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package evalcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/nixcall/lib/codec"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

// entryVersion is written into every entry. Entries with any other
// version are treated as corrupt.
const entryVersion = 1

// entry is the on-disk record.
type entry struct {
	Version     int         `cbor:"version"`
	Compression Compression `cbor:"compression"`
	Size        int         `cbor:"size"`
	Payload     []byte      `cbor:"payload"`
}

// Cache is a directory of evaluation results. Safe for concurrent use
// by multiple goroutines and processes: entries are immutable once
// renamed into place, and concurrent stores of the same key write
// identical content.
type Cache struct {
	dir         string
	compression Compression
	logger      *slog.Logger
}

var _ nix.ValueCache = (*Cache)(nil)

// Open returns a cache rooted at dir, creating it if needed. New
// entries are written with compression. A nil logger discards.
func Open(dir string, compression Compression, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("evalcache: directory is required")
	}
	if compression != CompressionNone && compression != CompressionLZ4 && compression != CompressionZstd {
		return nil, fmt.Errorf("evalcache: unsupported compression %s", compression)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("evalcache: creating %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{dir: dir, compression: compression, logger: logger}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// entryPath returns the sharded location of key.
func (c *Cache) entryPath(key Key) string {
	hexKey := key.String()
	return filepath.Join(c.dir, hexKey[:2], hexKey+".entry")
}

// Lookup implements [nix.ValueCache]. A missing entry is a miss. An
// entry that cannot be decoded is removed, logged, and reported as a
// miss so the caller re-evaluates and overwrites it.
func (c *Cache) Lookup(request nix.CacheRequest) ([]byte, bool, error) {
	key, err := DeriveKey(request)
	if err != nil {
		return nil, false, err
	}
	path := c.entryPath(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("evalcache: reading %s: %w", path, err)
	}

	output, err := decodeEntry(data)
	if err != nil {
		c.logger.Warn("discarding corrupt evaluation cache entry",
			"path", path,
			"error", err,
		)
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			c.logger.Warn("removing corrupt evaluation cache entry failed",
				"path", path,
				"error", removeErr,
			)
		}
		return nil, false, nil
	}

	c.logger.Debug("evaluation cache entry read",
		"key", key.String(),
		"size", len(output),
	)
	return output, true, nil
}

// Store implements [nix.ValueCache].
func (c *Cache) Store(request nix.CacheRequest, output []byte) error {
	key, err := DeriveKey(request)
	if err != nil {
		return err
	}

	record := entry{
		Version:     entryVersion,
		Compression: c.compression,
		Size:        len(output),
	}
	payload, err := compress(output, c.compression)
	if errors.Is(err, errIncompressible) {
		record.Compression = CompressionNone
		payload = output
	} else if err != nil {
		return fmt.Errorf("evalcache: %w", err)
	}
	record.Payload = payload

	encoded, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("evalcache: encoding entry: %w", err)
	}

	path := c.entryPath(key)
	if err := writeAtomic(path, encoded); err != nil {
		return fmt.Errorf("evalcache: %w", err)
	}

	c.logger.Debug("evaluation cache entry written",
		"key", key.String(),
		"size", len(output),
		"stored", len(payload),
		"compression", record.Compression.String(),
	)
	return nil
}

func decodeEntry(data []byte) ([]byte, error) {
	var record entry
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	if record.Version != entryVersion {
		return nil, fmt.Errorf("entry version %d, expected %d", record.Version, entryVersion)
	}
	if record.Size < 0 {
		return nil, fmt.Errorf("negative entry size %d", record.Size)
	}
	return decompress(record.Payload, record.Compression, record.Size)
}

// writeAtomic writes data to a temporary file beside path and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	temporary, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary entry: %w", err)
	}
	temporaryPath := temporary.Name()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming entry into place: %w", err)
	}
	return nil
}
