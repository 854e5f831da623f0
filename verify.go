// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"crypto/sha1" //nolint:gosec // Trailer format requires SHA1.
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ArchiveReport describes a verified PBO archive.
type ArchiveReport struct {
	// Headers are the header pairs in file order.
	Headers []HeaderPair `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Entries are the entry records in table order.
	Entries []EntryInfo `json:"entries" yaml:"entries"`
	// Trailer is the stored SHA1 trailer when HasTrailer is set.
	Trailer [pboShaSize]byte `json:"-" yaml:"-"`
	// HasTrailer reports whether the archive ends with a SHA1 trailer.
	HasTrailer bool `json:"has_trailer" yaml:"has_trailer"`
}

// VerifyArchive opens the PBO at name, checks the SHA1 trailer against the
// archive bytes and decodes every entry payload.
func VerifyArchive(fsys afero.Fs, name string) (*ArchiveReport, error) {
	h, err := PBOStore{IgnorePrefix: true}.Open(fsys, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	r, ok := h.(*pboReader)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected handle %T", name, h)
	}

	report := &ArchiveReport{Headers: r.Headers(), Entries: r.Entries()}
	report.Trailer, report.HasTrailer = r.SHA1Trailer()

	if report.HasTrailer {
		sum, err := hashArchiveBody(fsys, name)
		if err != nil {
			return nil, err
		}
		if sum != report.Trailer {
			return nil, fmt.Errorf("%w: %s stores %x, content hashes to %x", ErrChecksumMismatch, name, report.Trailer, sum)
		}
	}

	for _, e := range report.Entries {
		data, err := r.ReadFile(e.Path)
		if err != nil {
			return nil, err
		}

		want := e.DataSize
		if e.IsCompressed() {
			want = e.OriginalSize
		}
		if uint32(len(data)) != want { //nolint:gosec // bounded by entry sizes
			return nil, fmt.Errorf("%w: %s decodes to %d bytes, want %d", ErrInvalidEntryOffset, e.Path, len(data), want)
		}
	}

	return report, nil
}

// hashArchiveBody returns the SHA1 of name without its 0x00 + SHA1 trailer.
func hashArchiveBody(fsys afero.Fs, name string) ([pboShaSize]byte, error) {
	var sum [pboShaSize]byte

	f, err := fsys.Open(name)
	if err != nil {
		return sum, fmt.Errorf("open PBO: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return sum, fmt.Errorf("stat: %w", err)
	}

	h := sha1.New() //nolint:gosec // Trailer format requires SHA1.
	if _, err := io.CopyN(h, f, fi.Size()-pboShaSize-1); err != nil {
		return sum, fmt.Errorf("hash %s: %w", name, err)
	}

	copy(sum[:], h.Sum(nil))
	return sum, nil
}
