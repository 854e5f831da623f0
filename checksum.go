// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/md4" //nolint:staticcheck // archive checksums are MD4 block checksums.
)

// ChecksumFunc computes the 32-bit identity of an archive from its content
// stream.
type ChecksumFunc func(r io.Reader) (uint32, error)

// MD4BlockChecksum hashes r with MD4 and folds the digest into 32 bits by
// XOR of its four little-endian words.
func MD4BlockChecksum(r io.Reader) (uint32, error) {
	return foldedChecksum(md4.New(), r)
}

// Blake3Checksum hashes r with BLAKE3-256 and folds the digest into 32 bits.
func Blake3Checksum(r io.Reader) (uint32, error) {
	return foldedChecksum(blake3.New(), r)
}

// BlockChecksum computes the default MD4 block checksum of data.
func BlockChecksum(data []byte) uint32 {
	h := md4.New()
	_, _ = h.Write(data)
	return foldDigest(h.Sum(nil))
}

// foldedChecksum streams r into h and folds the digest.
func foldedChecksum(h hash.Hash, r io.Reader) (uint32, error) {
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}

	return foldDigest(h.Sum(nil)), nil
}

// foldDigest XORs little-endian 32-bit words of sum.
func foldDigest(sum []byte) uint32 {
	var v uint32
	for i := 0; i+4 <= len(sum); i += 4 {
		v ^= binary.LittleEndian.Uint32(sum[i : i+4])
	}

	return v
}

// archiveChecksum applies fn to the canonical content stream of h, so the
// result depends on member names and decoded bytes only, not on how the
// container stores or compresses them.
func archiveChecksum(h ArchiveHandle, fn ChecksumFunc) (uint32, error) {
	return fn(newContentReader(h))
}

// contentReader streams the members of an archive as records of lowercase
// name, 0x00, little-endian uint64 size and decoded content, in name order.
type contentReader struct {
	h     ArchiveHandle
	names []string
	cur   bytes.Reader
}

func newContentReader(h ArchiveHandle) *contentReader {
	names := h.List("", "")
	for i := range names {
		names[i] = lookupKey(names[i])
	}
	sort.Strings(names)

	return &contentReader{h: h, names: names}
}

// Read implements io.Reader.
func (c *contentReader) Read(p []byte) (int, error) {
	for c.cur.Len() == 0 {
		if len(c.names) == 0 {
			return 0, io.EOF
		}

		name := c.names[0]
		c.names = c.names[1:]

		data, err := c.h.ReadFile(name)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", name, err)
		}

		record := make([]byte, 0, len(name)+9+len(data))
		record = append(record, name...)
		record = append(record, 0)
		record = binary.LittleEndian.AppendUint64(record, uint64(len(data)))
		record = append(record, data...)
		c.cur.Reset(record)
	}

	return c.cur.Read(p)
}
