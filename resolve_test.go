// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
)

func TestResolveRejectsTraversal(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/base/secret", "secret")
	writeTestFile(t, fsys, "/base/base/a/b", "b")

	metrics := NewMetrics(prometheus.NewRegistry())
	fs := startTestFS(t, Options{Fs: fsys, Metrics: metrics, Roots: Roots{Base: "/base"}})

	for _, name := range []string{"../secret", "a::b", "a/../../secret", ""} {
		if _, err := fs.ReadFile(name); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("ReadFile(%q) err=%v, want ErrInvalidPath", name, err)
		}
	}

	if got := testutil.ToFloat64(metrics.resolves.WithLabelValues(outcomeRejected)); got != 4 {
		t.Fatalf("rejected resolves=%v, want 4", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/base/base/dir/file.txt", "x")
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	if _, err := fs.ReadFile("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	// Directories are not files.
	if _, err := fs.OpenFileRead("dir"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("directory err=%v, want ErrNotFound", err)
	}
}

func TestResolveFlags(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	buildTestPBO(t, fsys, "/base/base/pak0.pbo", "", map[string]string{"a.txt": "archive"})
	writeTestFile(t, fsys, "/base/base/a.txt", "loose")

	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	testCases := []struct {
		name  string
		flags SearchFlags
		want  string
	}{
		{name: "all", flags: SearchAll, want: "archive"},
		{name: "dirs only", flags: SearchDirs, want: "loose"},
		{name: "archives only", flags: SearchArchives, want: "archive"},
	}

	for _, tc := range testCases {
		f, err := fs.Resolve("a.txt", tc.flags, ReadOptions{})
		if err != nil {
			t.Fatalf("%s: Resolve: %v", tc.name, err)
		}

		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			t.Fatalf("%s: read: %v", tc.name, err)
		}
		if string(data) != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, data, tc.want)
		}
	}

	if _, err := fs.Resolve("a.txt", SearchAddons, ReadOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("addons only err=%v, want ErrNotFound", err)
	}
}

func TestReferencedChecksums(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	sum0 := buildTestPBO(t, fsys, "/base/base/pak0.pbo", "", map[string]string{"a.txt": "a"})
	buildTestPBO(t, fsys, "/base/base/pak1.pbo", "", map[string]string{"b.txt": "b"})

	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	f, err := fs.Resolve("b.txt", SearchAll|NoReference, ReadOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_ = f.Close()

	if got := fs.ReferencedChecksums(); len(got) != 0 {
		t.Fatalf("referenced after NoReference read=%v, want none", got)
	}

	readString(t, fs, "a.txt")
	if got := fs.ReferencedChecksums(); !slices.Equal(got, []uint32{sum0}) {
		t.Fatalf("referenced=%v, want [%d]", got, sum0)
	}
}

func TestFileIsInArchive(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	buildTestPBO(t, fsys, "/base/base/pak0.pbo", "textures", map[string]string{"wall.tga": "w"})
	writeTestFile(t, fsys, "/base/base/loose.txt", "l")

	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	if !fs.FileIsInArchive("textures/wall.tga") {
		t.Fatal("textures/wall.tga not reported in archive")
	}
	if !fs.FileIsInArchive(`TEXTURES\Wall.tga`) {
		t.Fatal("lookup is not case-insensitive")
	}
	if fs.FileIsInArchive("loose.txt") {
		t.Fatal("loose file reported in archive")
	}
	if fs.FileIsInArchive("../textures/wall.tga") {
		t.Fatal("traversal path reported in archive")
	}
}

func TestFileReadOnlyHandle(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writeTestFile(t, fsys, "/base/base/a.txt", "abc")
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	f, err := fs.OpenFileRead("a.txt")
	if err != nil {
		t.Fatalf("OpenFileRead: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write([]byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Write err=%v, want ErrReadOnly", err)
	}
	if f.Name() != "a.txt" || f.FullPath() != "/base/base/a.txt" || f.Size() != 3 {
		t.Fatalf("Name=%q FullPath=%q Size=%d", f.Name(), f.FullPath(), f.Size())
	}
	if f.Origin().Kind != KindDirectory || f.Origin().Root != "/base" {
		t.Fatalf("origin=%+v", f.Origin())
	}

	if _, err := f.Seek(1, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	rest, err := io.ReadAll(f)
	if err != nil || string(rest) != "bc" {
		t.Fatalf("read after seek=%q, %v", rest, err)
	}
}
