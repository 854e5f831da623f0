// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/woozymasta/lzss"
)

// PBO binary layout and format limits.
const (
	pboHeaderSize = 21      // fixed PBO header size in bytes
	pboShaSize    = 20      // SHA1 digest size in trailer
	pboMaxNameLen = 512     // max entry filename length
	pboMaxData    = 1 << 32 // max addressable payload in classic PBO (4 GiB)

	// pboScanChunkSize is a chunk size used by null-terminated string scanner.
	pboScanChunkSize = 256
	// pboEntryBufferSize is a sequential read buffer for entry table parsing.
	pboEntryBufferSize = 64 * 1024
)

// MimeType is the 4-byte PBO entry type (stored little-endian).
type MimeType uint32

// PBO entry mime constants.
const (
	// MimeHeader marks the first header record ("Vers").
	MimeHeader MimeType = 0x56657273
	// MimeCompress marks LZSS-compressed data ("Cprs").
	MimeCompress MimeType = 0x43707273
	// MimeNil marks uncompressed or terminator entry.
	MimeNil MimeType = 0x00000000
)

// EntryInfo describes a single parsed PBO entry.
type EntryInfo struct {
	// Path is the entry path as stored in archive index.
	Path string `json:"path" yaml:"path"`
	// Offset is byte offset of entry payload.
	Offset uint32 `json:"offset" yaml:"offset"`
	// DataSize is stored payload size in bytes.
	DataSize uint32 `json:"data_size" yaml:"data_size"`
	// OriginalSize is uncompressed size for compressed entries; zero otherwise.
	OriginalSize uint32 `json:"original_size,omitempty" yaml:"original_size,omitempty"`
	// TimeStamp is Unix timestamp from entry record.
	TimeStamp uint32 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	// MimeType stores entry mime marker.
	MimeType MimeType `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

// IsCompressed reports whether this entry is stored with LZSS compression.
func (e *EntryInfo) IsCompressed() bool {
	return e.MimeType == MimeCompress || (e.OriginalSize != 0 && e.DataSize < e.OriginalSize)
}

// HeaderPair is a PBO header key-value pair kept in file order.
type HeaderPair struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// OffsetMode controls how the PBO reader resolves payload offsets.
type OffsetMode string

// Reader offset resolution modes.
const (
	// OffsetModeSequential ignores stored index offsets and derives payload offsets sequentially.
	OffsetModeSequential OffsetMode = "sequential"
	// OffsetModeStoredCompat uses valid non-zero stored offsets and falls back to sequential.
	OffsetModeStoredCompat OffsetMode = "stored_compat"
)

// PBOStore opens ".pbo" archives. Entries are mounted under the archive
// "prefix" header unless IgnorePrefix is set.
type PBOStore struct {
	// OffsetMode selects payload offset resolution; empty means sequential.
	OffsetMode OffsetMode `json:"offset_mode,omitempty" yaml:"offset_mode,omitempty"`
	// IgnorePrefix serves entries by their stored path only.
	IgnorePrefix bool `json:"ignore_prefix,omitempty" yaml:"ignore_prefix,omitempty"`
}

// Ext returns ".pbo".
func (PBOStore) Ext() string {
	return ".pbo"
}

// Open parses the archive index and keeps the file open for payload reads.
func (s PBOStore) Open(fsys afero.Fs, name string) (ArchiveHandle, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open PBO: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := newPBOReader(f, fi.Size(), s.OffsetMode)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	r.file = f
	prefix := ""
	if !s.IgnorePrefix {
		prefix = r.Header("prefix")
	}
	r.buildIndex(prefix)

	return r, nil
}

// pboReader is the PBO archive handle.
type pboReader struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// file is the owned archive file, closed by Close.
	file afero.File
	// index maps mounted logical names to entry positions.
	index *entryIndex[int]
	// headers are kept in parse order.
	headers []HeaderPair
	// entries stores parsed immutable entry metadata.
	entries []EntryInfo
	// mu guards closed state and close operation.
	mu sync.Mutex
	// sha1Trailer stores optional trailer hash when present.
	sha1Trailer [pboShaSize]byte
	// hasTrailer reports whether trailing 0x00 + SHA1 was detected.
	hasTrailer bool
	// closed reports whether Close was already called.
	closed bool
}

// newPBOReader parses PBO structures from ra.
func newPBOReader(ra io.ReaderAt, size int64, mode OffsetMode) (*pboReader, error) {
	if mode == "" {
		mode = OffsetModeSequential
	}

	r := &pboReader{ra: ra}
	headers, off, err := parsePBOHeaders(ra)
	if err != nil {
		return nil, err
	}
	r.headers = headers

	entriesEnd, err := r.parseEntries(ra, off, size)
	if err != nil {
		return nil, err
	}

	if err := resolveEntryOffsets(r.entries, entriesEnd, size, mode); err != nil {
		return nil, err
	}

	if size >= pboShaSize+1 {
		var tail [pboShaSize + 1]byte
		if _, err := ra.ReadAt(tail[:], size-int64(len(tail))); err == nil && tail[0] == 0x00 {
			r.hasTrailer = true
			copy(r.sha1Trailer[:], tail[1:])
		}
	}

	return r, nil
}

// buildIndex mounts entries under prefix.
func (r *pboReader) buildIndex(prefix string) {
	prefix = NormalizePath(prefix)
	r.index = newEntryIndex[int](len(r.entries))
	for i := range r.entries {
		name := NormalizePath(r.entries[i].Path)
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "/" + name
		}

		r.index.add(name, i)
	}
	r.index.finish()
}

// Header returns the value of the first header with key (case-insensitive).
func (r *pboReader) Header(key string) string {
	for _, h := range r.headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}

	return ""
}

// Headers returns parsed headers in file order.
func (r *pboReader) Headers() []HeaderPair {
	out := make([]HeaderPair, len(r.headers))
	copy(out, r.headers)
	return out
}

// Entries returns a copy of parsed entries.
func (r *pboReader) Entries() []EntryInfo {
	out := make([]EntryInfo, len(r.entries))
	copy(out, r.entries)
	return out
}

// SHA1Trailer returns parsed 20-byte trailer hash when present.
func (r *pboReader) SHA1Trailer() ([pboShaSize]byte, bool) {
	return r.sha1Trailer, r.hasTrailer
}

// Contains reports whether the mounted name exists.
func (r *pboReader) Contains(name string) bool {
	_, ok := r.index.get(name)
	return ok
}

// List returns mounted names under prefix ending in ext.
func (r *pboReader) List(prefix, ext string) []string {
	return r.index.list(prefix, ext)
}

// ReadFile reads full (decompressed) content of the mounted name.
func (r *pboReader) ReadFile(name string) ([]byte, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	i, ok := r.index.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	info := &r.entries[i]
	sr := io.NewSectionReader(r.ra, int64(info.Offset), int64(info.DataSize))
	if !info.IsCompressed() {
		data := make([]byte, info.DataSize)
		if _, err := io.ReadFull(sr, data); err != nil {
			return nil, fmt.Errorf("read entry %s: %w", name, err)
		}

		return data, nil
	}

	outLen, err := checkedUint32ToInt(info.OriginalSize)
	if err != nil {
		return nil, fmt.Errorf("resolve output size for %s: %w", name, err)
	}

	var buf bytes.Buffer
	buf.Grow(outLen)
	if _, err := lzss.DecompressToWriter(&buf, sr, outLen, nil); err != nil {
		return nil, fmt.Errorf("decompress entry %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// Close closes the underlying file.
func (r *pboReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}

// parsePBOHeaders parses fixed header and key-value header pairs and returns entry table offset.
func parsePBOHeaders(ra io.ReaderAt) ([]HeaderPair, int64, error) {
	header := make([]byte, pboHeaderSize)
	if _, err := ra.ReadAt(header, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("%w: short header", ErrInvalidHeader)
		}

		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	// The first directory entry must be "Vers".
	if MimeType(binary.LittleEndian.Uint32(header[1:5])) != MimeHeader {
		return nil, 0, ErrInvalidHeader
	}

	var headers []HeaderPair
	off := int64(pboHeaderSize)
	for {
		key, n, err := readNullTerminated(ra, off)
		if err != nil {
			return nil, 0, fmt.Errorf("read header key: %w", err)
		}

		off += int64(n)
		if key == "" {
			return headers, off, nil
		}

		value, n, err := readNullTerminated(ra, off)
		if err != nil {
			return nil, 0, fmt.Errorf("read header value: %w", err)
		}

		off += int64(n)
		headers = append(headers, HeaderPair{Key: key, Value: value})
	}
}

// parseEntries parses entry records from index table and returns payload start offset.
func (r *pboReader) parseEntries(ra io.ReaderAt, tableOffset int64, size int64) (int64, error) {
	if tableOffset >= size {
		return 0, fmt.Errorf("read entry filename: %w", io.EOF)
	}

	br := bufio.NewReaderSize(io.NewSectionReader(ra, tableOffset, size-tableOffset), pboEntryBufferSize)
	off := tableOffset
	for {
		filename, err := br.ReadString(0)
		if err != nil {
			return 0, fmt.Errorf("read entry filename: %w", err)
		}

		off += int64(len(filename))
		filename = filename[:len(filename)-1]

		var fields [20]byte
		if _, err := io.ReadFull(br, fields[:]); err != nil {
			return 0, fmt.Errorf("read entry fields: %w", err)
		}

		off += int64(len(fields))
		entry := EntryInfo{
			Path:         filename,
			MimeType:     MimeType(binary.LittleEndian.Uint32(fields[0:4])),
			OriginalSize: binary.LittleEndian.Uint32(fields[4:8]),
			Offset:       binary.LittleEndian.Uint32(fields[8:12]),
			TimeStamp:    binary.LittleEndian.Uint32(fields[12:16]),
			DataSize:     binary.LittleEndian.Uint32(fields[16:20]),
		}

		if filename == "" && entry == (EntryInfo{}) {
			return off, nil
		}

		if len(filename) > pboMaxNameLen {
			return 0, ErrFileNameTooLong
		}

		r.entries = append(r.entries, entry)
	}
}

// resolveEntryOffsets applies the offset policy and validates payload bounds.
func resolveEntryOffsets(entries []EntryInfo, dataStart int64, totalSize int64, mode OffsetMode) error {
	switch mode {
	case OffsetModeSequential:
		if err := assignSequentialOffsets(entries, dataStart); err != nil {
			return err
		}
	case OffsetModeStoredCompat:
		if !assignStoredOffsets(entries, dataStart, totalSize) {
			if err := assignSequentialOffsets(entries, dataStart); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown offset mode %q", ErrInvalidEntryOffset, mode)
	}

	for i := range entries {
		offset := int64(entries[i].Offset)
		end := offset + int64(entries[i].DataSize)
		if offset < dataStart || end > totalSize {
			return fmt.Errorf("%w: entry %s payload out of file bounds", ErrInvalidEntryOffset, entries[i].Path)
		}
	}

	return nil
}

// assignSequentialOffsets derives payload offsets from dataStart and previous entry sizes.
func assignSequentialOffsets(entries []EntryInfo, dataStart int64) error {
	if dataStart < 0 || uint64(dataStart) > uint64(math.MaxUint32) {
		return fmt.Errorf("%w: data start offset %d", ErrSizeOverflow, dataStart)
	}

	current := uint32(dataStart) //nolint:gosec // bounded above
	for i := range entries {
		entries[i].Offset = current

		if uint64(entries[i].DataSize) > uint64(math.MaxUint32-current) {
			return fmt.Errorf("%w: entry %s size would exceed 4 GiB", ErrSizeOverflow, entries[i].Path)
		}

		current += entries[i].DataSize
	}

	return nil
}

// assignStoredOffsets applies stored absolute offsets when every entry has a
// monotonic in-bounds one. Entries are left untouched otherwise.
func assignStoredOffsets(entries []EntryInfo, dataStart int64, totalSize int64) bool {
	prev := dataStart
	for i := range entries {
		offset := int64(entries[i].Offset)
		end := offset + int64(entries[i].DataSize)
		if entries[i].Offset == 0 || offset < prev || end > totalSize {
			return false
		}

		prev = offset
	}

	return len(entries) > 0
}

// readNullTerminated reads a zero-terminated string from ReaderAt starting at offset.
func readNullTerminated(ra io.ReaderAt, offset int64) (string, int, error) {
	var (
		out   []byte
		chunk [pboScanChunkSize]byte
		total int
	)

	for {
		n, err := ra.ReadAt(chunk[:], offset+int64(total))
		if n > 0 {
			part := chunk[:n]
			if idx := bytes.IndexByte(part, 0); idx >= 0 {
				out = append(out, part[:idx]...)
				return string(out), total + idx + 1, nil
			}

			out = append(out, part...)
			total += n
		}

		if err != nil {
			return "", 0, err
		}

		if n == 0 {
			return "", 0, io.EOF
		}
	}
}

// checkedUint32ToInt converts uint32 to int with platform-safe overflow check.
func checkedUint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, ErrSizeOverflow
	}

	return int(v), nil
}
