// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"context"
	"crypto/sha1" //nolint:gosec // trailer verification
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/woozymasta/pathrules"
)

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}

	return rules
}

// openTestPBO opens a built archive with store and returns its reader.
func openTestPBO(t *testing.T, fsys afero.Fs, name string, store PBOStore) *pboReader {
	t.Helper()

	h, err := store.Open(fsys, name)
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	t.Cleanup(func() { _ = h.Close() })

	r, ok := h.(*pboReader)
	if !ok {
		t.Fatalf("handle type %T", h)
	}

	return r
}

func TestBuildArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	readme := strings.Repeat("pakfs overlay ", 100)
	binary := strings.Repeat("\x01\x02\x03", 200)
	files := map[string]string{
		"config.cpp":      "class CfgPatches {};",
		"data/b.bin":      binary,
		"docs/readme.txt": readme,
		"notes/small.txt": "tiny",
	}

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		writeTestFile(t, fsys, "/src/"+name, content)
	}

	res, err := BuildArchive(context.Background(), fsys, "/src", "/out/demo.pbo", BuildOptions{
		Prefix: "mods/demo",
		Headers: []HeaderPair{
			{Key: "product", Value: "pakfs"},
			{Key: "Prefix", Value: "ignored"},
		},
		Compress: includeRules("*.txt"),
	})
	if err != nil {
		t.Fatalf("BuildArchive: %v", err)
	}

	var raw int64
	for _, content := range files {
		raw += int64(len(content))
	}
	if res.Entries != 4 || res.CompressedEntries != 1 || res.RawBytes != raw {
		t.Fatalf("result=%+v, want 4 entries, 1 compressed, %d raw bytes", res, raw)
	}
	if res.DataSize >= res.RawBytes {
		t.Fatalf("DataSize=%d not below RawBytes=%d", res.DataSize, res.RawBytes)
	}

	r := openTestPBO(t, fsys, "/out/demo.pbo", PBOStore{})

	wantHeaders := []HeaderPair{{Key: "prefix", Value: `mods\demo`}, {Key: "product", Value: "pakfs"}}
	if got := r.Headers(); !slices.Equal(got, wantHeaders) {
		t.Fatalf("headers=%v, want %v", got, wantHeaders)
	}

	var paths []string
	for _, e := range r.Entries() {
		paths = append(paths, e.Path)
		if e.Path == `docs\readme.txt` && e.MimeType != MimeCompress {
			t.Fatalf("readme mime=%#x, want compressed", e.MimeType)
		}
		if e.Path == `notes\small.txt` && e.MimeType != MimeNil {
			t.Fatalf("small.txt compressed below the minimum size")
		}
	}
	wantPaths := []string{"config.cpp", `data\b.bin`, `docs\readme.txt`, `notes\small.txt`}
	if !slices.Equal(paths, wantPaths) {
		t.Fatalf("entries=%v, want %v", paths, wantPaths)
	}

	for name, content := range files {
		data, err := r.ReadFile("MODS/Demo/" + name)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if string(data) != content {
			t.Fatalf("ReadFile(%s) content mismatch", name)
		}
	}

	trailer, ok := r.SHA1Trailer()
	if !ok || trailer != res.Checksum {
		t.Fatalf("trailer=%x ok=%v, want %x", trailer, ok, res.Checksum)
	}

	data, err := afero.ReadFile(fsys, "/out/demo.pbo")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if sum := sha1.Sum(data[:len(data)-pboShaSize-1]); sum != res.Checksum { //nolint:gosec // trailer verification
		t.Fatalf("trailer digest=%x, want %x", res.Checksum, sum)
	}

	bare := openTestPBO(t, fsys, "/out/demo.pbo", PBOStore{IgnorePrefix: true})
	if !bare.Contains("config.cpp") || bare.Contains("mods/demo/config.cpp") {
		t.Fatal("IgnorePrefix did not mount entries at their stored paths")
	}
}

func TestBuildArchiveIncludeRules(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/src/config.cpp", "c")
	writeTestFile(t, fsys, "/src/scripts/main.c", "m")
	writeTestFile(t, fsys, "/src/scripts/tmp/a.c", "a")

	res, err := BuildArchive(context.Background(), fsys, "/src", "/out.pbo", BuildOptions{
		Include: []pathrules.Rule{
			{Action: pathrules.ActionInclude, Pattern: "scripts/**"},
			{Action: pathrules.ActionExclude, Pattern: "scripts/tmp/**"},
		},
	})
	if err != nil {
		t.Fatalf("BuildArchive: %v", err)
	}
	if res.Entries != 1 {
		t.Fatalf("Entries=%d, want 1", res.Entries)
	}

	r := openTestPBO(t, fsys, "/out.pbo", PBOStore{})
	if !r.Contains("scripts/main.c") || r.Contains("config.cpp") {
		t.Fatalf("entries=%v", r.Entries())
	}
}

func TestBuildArchiveErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty inputs", func(t *testing.T) {
		t.Parallel()

		fsys := afero.NewMemMapFs()
		if err := fsys.MkdirAll("/src", 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}

		_, err := BuildArchive(context.Background(), fsys, "/src", "/out.pbo", BuildOptions{})
		if !errors.Is(err, ErrEmptyInputs) {
			t.Fatalf("err=%v, want ErrEmptyInputs", err)
		}
	})

	t.Run("case-insensitive duplicate", func(t *testing.T) {
		t.Parallel()

		fsys := afero.NewMemMapFs()
		writeTestFile(t, fsys, "/src/Data.txt", "a")
		writeTestFile(t, fsys, "/src/data.txt", "b")

		_, err := BuildArchive(context.Background(), fsys, "/src", "/out.pbo", BuildOptions{})
		if !errors.Is(err, ErrDuplicateEntryPath) {
			t.Fatalf("err=%v, want ErrDuplicateEntryPath", err)
		}
	})

	t.Run("invalid rule", func(t *testing.T) {
		t.Parallel()

		fsys := afero.NewMemMapFs()
		writeTestFile(t, fsys, "/src/a.txt", "a")

		_, err := BuildArchive(context.Background(), fsys, "/src", "/out.pbo", BuildOptions{
			Compress: []pathrules.Rule{{Action: pathrules.ActionUnknown, Pattern: "*.txt"}},
		})
		if !errors.Is(err, ErrInvalidPattern) {
			t.Fatalf("err=%v, want ErrInvalidPattern", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		fsys := afero.NewMemMapFs()
		writeTestFile(t, fsys, "/src/a.txt", "a")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := BuildArchive(ctx, fsys, "/src", "/out.pbo", BuildOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", err)
		}
	})
}

func TestPBOStoreRejectsBadHeader(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/bad.pbo", "this is not a pbo archive at all")

	if _, err := (PBOStore{}).Open(fsys, "/bad.pbo"); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("err=%v, want ErrInvalidHeader", err)
	}
}

func TestRuleMatcherMatch(t *testing.T) {
	t.Parallel()

	matcher, err := newRuleMatcher(includeRules(
		"*.paa",
		"textures/",
		"/addons/sounds/**/*.ogg",
	), pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{name: "extension rule", path: `foo\bar\a.paa`, want: true},
		{name: "dir-only rule", path: "addons/textures/a.bin", want: true},
		{name: "anchored root match", path: "addons/sounds/music/a.ogg", want: true},
		{name: "anchored root miss", path: "x/addons/sounds/music/a.ogg", want: false},
		{name: "no match", path: "addons/scripts/config.bin", want: false},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := matcher.Match(tc.path); got != tc.want {
				t.Fatalf("Match(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestRuleMatcherWithoutRules(t *testing.T) {
	t.Parallel()

	matcher, err := newRuleMatcher([]pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "  "}}, pathrules.MatcherOptions{})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if matcher != nil {
		t.Fatal("blank rules must yield a nil matcher")
	}
	if matcher.Match("a.txt") {
		t.Fatal("nil matcher matched")
	}
}

func TestTimeToUint32(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   time.Time
		want uint32
	}{
		{in: time.Unix(-5, 0), want: 0},
		{in: time.Unix(1700000000, 0), want: 1700000000},
		{in: time.Unix(1<<33, 0), want: 0xffffffff},
	}

	for _, tc := range testCases {
		if got := timeToUint32(tc.in); got != tc.want {
			t.Fatalf("timeToUint32(%v)=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestVerifyArchive(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/src/config.cpp", "class CfgPatches {};")
	writeTestFile(t, fsys, "/src/docs/readme.txt", strings.Repeat("pakfs ", 200))

	res, err := BuildArchive(context.Background(), fsys, "/src", "/out.pbo", BuildOptions{
		Prefix:   "mods/demo",
		Compress: includeRules("*.txt"),
		Verify:   true,
	})
	if err != nil {
		t.Fatalf("BuildArchive: %v", err)
	}

	report, err := VerifyArchive(fsys, "/out.pbo")
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if len(report.Entries) != res.Entries {
		t.Fatalf("entries=%d, want %d", len(report.Entries), res.Entries)
	}
	if !report.HasTrailer || report.Trailer != res.Checksum {
		t.Fatalf("trailer=%x ok=%v, want %x", report.Trailer, report.HasTrailer, res.Checksum)
	}
	if len(report.Headers) != 1 || report.Headers[0].Value != `mods\demo` {
		t.Fatalf("headers=%v", report.Headers)
	}

	data, err := afero.ReadFile(fsys, "/out.pbo")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	data[len(data)-pboShaSize-2] ^= 0xff
	if err := afero.WriteFile(fsys, "/tampered.pbo", data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := VerifyArchive(fsys, "/tampered.pbo"); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err=%v, want ErrChecksumMismatch", err)
	}
}
