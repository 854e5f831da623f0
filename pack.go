// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // Trailer format requires SHA1.
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/woozymasta/lzss"
	"github.com/woozymasta/pathrules"
	"go.uber.org/zap"
)

// Archive builder defaults.
const (
	// DefaultMinCompressSize is the smallest payload tried for compression.
	DefaultMinCompressSize uint32 = 512
	// DefaultMaxCompressSize is the largest payload tried for compression.
	DefaultMaxCompressSize uint32 = 16 * 1024 * 1024
	// defaultBuildBuffer is the output buffer size.
	defaultBuildBuffer = 256 * 1024
)

// BuildOptions configures BuildArchive.
type BuildOptions struct {
	// Logger receives per-entry debug logs. Default is zap.NewNop().
	Logger *zap.Logger `json:"-" yaml:"-"`
	// Prefix is written as the "prefix" header; archives are mounted under it.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Headers are extra header pairs written after the prefix.
	Headers []HeaderPair `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Include selects source files; empty includes every file.
	Include []pathrules.Rule `json:"include,omitempty" yaml:"include,omitempty"`
	// Compress selects LZSS compression candidates; empty disables compression.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// MatcherOptions apply to Include and Compress rules.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitempty"`
	// MinCompressSize is the smallest candidate size. Default is DefaultMinCompressSize.
	MinCompressSize uint32 `json:"min_compress_size,omitempty" yaml:"min_compress_size,omitempty"`
	// MaxCompressSize is the largest candidate size. Default is DefaultMaxCompressSize.
	MaxCompressSize uint32 `json:"max_compress_size,omitempty" yaml:"max_compress_size,omitempty"`
	// Verify reopens the written archive and checks it with VerifyArchive.
	Verify bool `json:"verify,omitempty" yaml:"verify,omitempty"`
}

// BuildResult summarizes a built archive.
type BuildResult struct {
	// Entries is the number of packed files.
	Entries int `json:"entries" yaml:"entries"`
	// CompressedEntries is the number of files stored LZSS-compressed.
	CompressedEntries int `json:"compressed_entries" yaml:"compressed_entries"`
	// RawBytes is the total payload size before compression.
	RawBytes int64 `json:"raw_bytes" yaml:"raw_bytes"`
	// DataSize is the total stored payload size.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// Checksum is the SHA1 trailer appended to the archive.
	Checksum [pboShaSize]byte `json:"-" yaml:"-"`
	// Duration is the wall time spent building.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// buildEntry is one source file staged for packing.
type buildEntry struct {
	modTime time.Time
	path    string
	source  string
	payload []byte
	info    EntryInfo
}

// applyDefaults fills zero-valued build options with defaults.
func (opts *BuildOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.MinCompressSize == 0 {
		opts.MinCompressSize = DefaultMinCompressSize
	}

	if opts.MaxCompressSize == 0 || opts.MaxCompressSize <= opts.MinCompressSize {
		opts.MaxCompressSize = DefaultMaxCompressSize
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// BuildArchive packs the files under srcDir into a PBO at outPath and
// appends the SHA1 trailer. Entries are sorted by path; paths differing
// only in case are rejected.
func BuildArchive(ctx context.Context, fsys afero.Fs, srcDir, outPath string, opts BuildOptions) (*BuildResult, error) {
	startedAt := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	include, err := newRuleMatcher(opts.Include, opts.MatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("compile include rules: %w", err)
	}

	compress, err := newRuleMatcher(opts.Compress, opts.MatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("compile compress rules: %w", err)
	}

	entries, err := collectBuildEntries(ctx, fsys, srcDir, outPath, include)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, ErrEmptyInputs
	}

	res := &BuildResult{Entries: len(entries)}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := stageBuildEntry(fsys, &entries[i], opts, compress); err != nil {
			return nil, err
		}

		if entries[i].info.MimeType == MimeCompress {
			res.RawBytes += int64(entries[i].info.OriginalSize)
			res.CompressedEntries++
		} else {
			res.RawBytes += int64(entries[i].info.DataSize)
		}
		res.DataSize += int64(entries[i].info.DataSize)

		opts.Logger.Debug("staged entry",
			zap.String("path", entries[i].path),
			zap.Uint32("data_size", entries[i].info.DataSize),
			zap.Bool("compressed", entries[i].info.MimeType == MimeCompress),
		)
	}

	if res.DataSize > pboMaxData {
		return nil, fmt.Errorf("%w: data %d exceeds 4 GiB", ErrSizeOverflow, res.DataSize)
	}

	sum, err := writeArchiveFile(fsys, outPath, entries, buildHeaders(opts))
	if err != nil {
		return nil, err
	}

	res.Checksum = sum
	if opts.Verify {
		report, err := VerifyArchive(fsys, outPath)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", outPath, err)
		}
		if len(report.Entries) != res.Entries || report.Trailer != sum {
			return nil, fmt.Errorf("verify %s: %w", outPath, ErrChecksumMismatch)
		}
	}

	res.Duration = time.Since(startedAt)
	opts.Logger.Info("archive built",
		zap.String("path", outPath),
		zap.Int("entries", res.Entries),
		zap.Int("compressed", res.CompressedEntries),
		zap.Int64("data_size", res.DataSize),
	)

	return res, nil
}

// collectBuildEntries walks srcDir and returns included files sorted by
// archive path.
func collectBuildEntries(
	ctx context.Context,
	fsys afero.Fs,
	srcDir, outPath string,
	include *ruleMatcher,
) ([]buildEntry, error) {
	var entries []buildEntry
	outAbs := filepath.Clean(outPath)

	err := afero.Walk(fsys, srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if fi.IsDir() || filepath.Clean(p) == outAbs {
			return nil
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}

		rel = filepath.ToSlash(rel)
		if include != nil && !include.Match(rel) {
			return nil
		}

		archivePath, err := normalizeArchiveEntryPath(rel)
		if err != nil {
			return err
		}
		if len(archivePath) > pboMaxNameLen {
			return fmt.Errorf("%w: %s", ErrFileNameTooLong, archivePath)
		}

		entries = append(entries, buildEntry{
			path:    archivePath,
			source:  p,
			modTime: fi.ModTime(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", srcDir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].path < entries[j].path
	})

	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		key := strings.ToLower(e.path)
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateEntryPath, prev, e.path)
		}
		seen[key] = e.path
	}

	return entries, nil
}

// stageBuildEntry reads the source and picks the stored payload. A compressed
// payload is kept only when it is smaller than the raw one.
func stageBuildEntry(fsys afero.Fs, e *buildEntry, opts BuildOptions, compress *ruleMatcher) error {
	raw, err := afero.ReadFile(fsys, e.source)
	if err != nil {
		return fmt.Errorf("read input %s: %w", e.source, err)
	}

	if int64(len(raw)) > pboMaxData-1 {
		return fmt.Errorf("%w: entry %s", ErrSizeOverflow, e.path)
	}

	e.payload = raw
	e.info = EntryInfo{
		Path:      e.path,
		DataSize:  uint32(len(raw)), //nolint:gosec // bounded above
		TimeStamp: timeToUint32(e.modTime),
		MimeType:  MimeNil,
	}

	size := uint32(len(raw)) //nolint:gosec // bounded above
	if compress == nil || size < opts.MinCompressSize || size > opts.MaxCompressSize || !compress.Match(e.path) {
		return nil
	}

	packed, err := lzss.Compress(raw, lzss.DefaultCompressOptions())
	if err != nil {
		return fmt.Errorf("compress %s: %w", e.path, err)
	}

	if len(packed) >= len(raw) {
		return nil
	}

	e.payload = packed
	e.info.MimeType = MimeCompress
	e.info.OriginalSize = size
	e.info.DataSize = uint32(len(packed)) //nolint:gosec // smaller than raw
	return nil
}

// buildHeaders returns the header pairs in write order.
func buildHeaders(opts BuildOptions) []HeaderPair {
	headers := make([]HeaderPair, 0, len(opts.Headers)+1)
	if prefix := strings.ReplaceAll(NormalizePath(opts.Prefix), "/", `\`); prefix != "" {
		headers = append(headers, HeaderPair{Key: "prefix", Value: prefix})
	}

	for _, h := range opts.Headers {
		if strings.EqualFold(strings.TrimSpace(h.Key), "prefix") {
			continue
		}

		headers = append(headers, h)
	}

	return headers
}

// writeArchiveFile writes header, entry table, payloads and the SHA1 trailer
// to outPath. The digest is taken over every byte before the trailer.
func writeArchiveFile(fsys afero.Fs, outPath string, entries []buildEntry, headers []HeaderPair) ([pboShaSize]byte, error) {
	var sum [pboShaSize]byte

	if dir := filepath.Dir(outPath); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return sum, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := fsys.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return sum, fmt.Errorf("create PBO file: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	h := sha1.New() //nolint:gosec // Trailer format requires SHA1.
	w := bufio.NewWriterSize(io.MultiWriter(f, h), defaultBuildBuffer)

	header := make([]byte, pboHeaderSize)
	binary.LittleEndian.PutUint32(header[1:5], uint32(MimeHeader))
	if _, err := w.Write(header); err != nil {
		return sum, fmt.Errorf("write header: %w", err)
	}

	for _, pair := range headers {
		if err := writeCString(w, pair.Key); err != nil {
			return sum, fmt.Errorf("write header key: %w", err)
		}
		if err := writeCString(w, pair.Value); err != nil {
			return sum, fmt.Errorf("write header value: %w", err)
		}
	}

	if err := w.WriteByte(0); err != nil {
		return sum, fmt.Errorf("write header terminator: %w", err)
	}

	var fields [20]byte
	for _, e := range entries {
		if err := writeCString(w, e.path); err != nil {
			return sum, fmt.Errorf("write entry path: %w", err)
		}

		binary.LittleEndian.PutUint32(fields[0:4], uint32(e.info.MimeType))
		binary.LittleEndian.PutUint32(fields[4:8], e.info.OriginalSize)
		// Offsets stay zero; readers derive them sequentially.
		binary.LittleEndian.PutUint32(fields[8:12], 0)
		binary.LittleEndian.PutUint32(fields[12:16], e.info.TimeStamp)
		binary.LittleEndian.PutUint32(fields[16:20], e.info.DataSize)
		if _, err := w.Write(fields[:]); err != nil {
			return sum, fmt.Errorf("write entry %s: %w", e.path, err)
		}
	}

	clear(fields[:])
	if err := w.WriteByte(0); err != nil {
		return sum, fmt.Errorf("write entries terminator: %w", err)
	}
	if _, err := w.Write(fields[:]); err != nil {
		return sum, fmt.Errorf("write entries tail fields: %w", err)
	}

	for _, e := range entries {
		if _, err := w.Write(e.payload); err != nil {
			return sum, fmt.Errorf("write payload %s: %w", e.path, err)
		}
	}

	if err := w.Flush(); err != nil {
		return sum, fmt.Errorf("flush payloads: %w", err)
	}

	copy(sum[:], h.Sum(nil))
	if _, err := f.Write(append([]byte{0x00}, sum[:]...)); err != nil {
		return sum, fmt.Errorf("write SHA1 trailer: %w", err)
	}

	if err := f.Close(); err != nil {
		return sum, fmt.Errorf("close PBO file: %w", err)
	}
	f = nil

	return sum, nil
}

// writeCString writes s followed by a zero byte.
func writeCString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString(s); err != nil {
		return err
	}

	return w.WriteByte(0)
}

// timeToUint32 clamps t to the unsigned 32-bit Unix range.
func timeToUint32(t time.Time) uint32 {
	u := t.Unix()
	if u < 0 {
		return 0
	}

	if u > 0xffffffff {
		return 0xffffffff
	}

	return uint32(u)
}

// ruleMatcher holds compiled path rules.
type ruleMatcher struct {
	matcher *pathrules.Matcher
}

// newRuleMatcher compiles rules. No rules yield a nil matcher.
func newRuleMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*ruleMatcher, error) {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{Action: rule.Action, Pattern: pattern})
	}

	if len(normalized) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(normalized, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	return &ruleMatcher{matcher: matcher}, nil
}

// Match reports whether path is included by the rules.
func (m *ruleMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}
