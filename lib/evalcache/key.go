// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package evalcache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/nixcall/lib/codec"
	"github.com/bureau-foundation/nixcall/lib/nix"
)

// Key is the 32-byte BLAKE3 address of a cache entry.
type Key [32]byte

// String returns the lower-case hex encoding of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// keyDomain separates cache keys from any other BLAKE3 use of the same
// bytes. ASCII "nixcall.evalcache.key", zero-padded to 32 bytes.
var keyDomain = [32]byte{
	'n', 'i', 'x', 'c', 'a', 'l', 'l', '.', 'e', 'v', 'a', 'l', 'c', 'a', 'c', 'h',
	'e', '.', 'k', 'e', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// keyVersion is bumped whenever the key material changes shape.
const keyVersion = 2

type keyMaterial struct {
	Version    int              `cbor:"version"`
	Request    nix.CacheRequest `cbor:"request"`
	FileDigest []byte           `cbor:"file_digest,omitempty"`
}

// DeriveKey computes the cache key for request. For file inputs the
// file path is made absolute and its content is hashed; a directory
// input hashes its default.nix, as nix-instantiate would evaluate it.
func DeriveKey(request nix.CacheRequest) (Key, error) {
	material := keyMaterial{Version: keyVersion, Request: request}

	if request.File != "" {
		absolute, err := filepath.Abs(request.File)
		if err != nil {
			return Key{}, fmt.Errorf("resolving %s: %w", request.File, err)
		}
		material.Request.File = absolute

		digest, err := hashInputFile(absolute)
		if err != nil {
			return Key{}, err
		}
		material.FileDigest = digest[:]
	}

	encoded, err := codec.Marshal(material)
	if err != nil {
		return Key{}, fmt.Errorf("encoding cache key material: %w", err)
	}

	hasher, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		return Key{}, fmt.Errorf("initializing keyed hash: %w", err)
	}
	if _, err := hasher.Write(encoded); err != nil {
		return Key{}, err
	}

	var key Key
	copy(key[:], hasher.Sum(nil))
	return key, nil
}

// hashInputFile streams the evaluated file through BLAKE3.
func hashInputFile(path string) ([32]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hashing input %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "default.nix")
	}

	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hashing input %s: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing input %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
