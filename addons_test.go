// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/spf13/afero"
)

// addonFixture builds addons X (requires Y), Y and Z under /base/base.
func addonFixture(t *testing.T) (fsys afero.Fs, sumX, sumY, sumZ uint32) {
	t.Helper()

	fsys = afero.NewMemMapFs()
	sumY = buildTestPBO(t, fsys, "/base/base/addon_y.pbo", "", map[string]string{
		"addon.yaml":   "maps: []\n",
		"y/shared.txt": "y",
	})
	sumX = buildTestPBO(t, fsys, "/base/base/addon_x.pbo", "", map[string]string{
		"addon.yaml": fmt.Sprintf("requires: [%d]\nmaps:\n  - path: maps/x.map\n", sumY),
		"x/only.txt": "x",
	})
	sumZ = buildTestPBO(t, fsys, "/base/base/addon_z.pbo", "", map[string]string{
		"addon.json": `{
			// comment stripped by jsonc
			"maps": [{"path": "maps/z.map", "name": "Z"}],
		}`,
		"z/only.txt": "z",
	})
	buildTestPBO(t, fsys, "/base/base/pak0.pbo", "", map[string]string{"core.txt": "core"})

	return fsys, sumX, sumY, sumZ
}

// checksums returns archive checksums of infos in order.
func checksums(infos []SearchPathInfo) []uint32 {
	var out []uint32
	for _, info := range infos {
		if info.Kind == KindArchive {
			out = append(out, info.Checksum)
		}
	}

	return out
}

func TestAddonDependencyClosure(t *testing.T) {
	t.Parallel()

	fsys, sumX, sumY, sumZ := addonFixture(t)

	fs := New(Options{Fs: fsys, Roots: Roots{Base: "/base"}})
	fs.SetRestartChecksums(nil, []uint32{sumX})
	if err := fs.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	t.Cleanup(func() { _ = fs.Shutdown() })

	for _, sum := range []uint32{sumX, sumY} {
		a, ok := fs.ArchiveForChecksum(sum, false)
		if !ok {
			t.Fatalf("addon %d not on the search list", sum)
		}
		if !a.AddonSearch() {
			t.Fatalf("addon %s not enabled", a.Path)
		}
	}

	pool := checksums(fs.AddonPool())
	if !slices.Equal(pool, []uint32{sumZ}) {
		t.Fatalf("addon pool=%v, want [%d]", pool, sumZ)
	}

	if pending := fs.PendingAddons(); len(pending) != 0 {
		t.Fatalf("pending=%v, want empty", pending)
	}

	if got := readString(t, fs, "y/shared.txt"); got != "y" {
		t.Fatalf("y/shared.txt=%q", got)
	}
}

func TestAddonPoolKeepsOrder(t *testing.T) {
	t.Parallel()

	fsys, sumX, sumY, sumZ := addonFixture(t)
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	// Active order is descending by filename: z, y, x.
	pool := checksums(fs.AddonPool())
	if want := []uint32{sumZ, sumY, sumX}; !slices.Equal(pool, want) {
		t.Fatalf("addon pool=%v, want %v", pool, want)
	}

	active := checksums(fs.SearchPaths())
	if len(active) != 1 {
		t.Fatalf("active archives=%v, want only pak0", active)
	}
}

func TestSearchAllAddons(t *testing.T) {
	t.Parallel()

	fsys, _, _, _ := addonFixture(t)
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}, SearchAllAddons: true})

	if pool := fs.AddonPool(); len(pool) != 0 {
		t.Fatalf("addon pool=%v, want empty", pool)
	}
	if got := readString(t, fs, "z/only.txt"); got != "z" {
		t.Fatalf("z/only.txt=%q", got)
	}
}

func TestUnknownPendingAddonIsDropped(t *testing.T) {
	t.Parallel()

	fsys, _, _, _ := addonFixture(t)
	fs := New(Options{Fs: fsys, Roots: Roots{Base: "/base"}})
	fs.SetRestartChecksums(nil, []uint32{0x1234})
	if err := fs.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	t.Cleanup(func() { _ = fs.Shutdown() })

	if pending := fs.PendingAddons(); len(pending) != 0 {
		t.Fatalf("pending=%v, want empty", pending)
	}
	if pool := fs.AddonPool(); len(pool) != 3 {
		t.Fatalf("addon pool has %d entries, want 3", len(pool))
	}
}

func TestFindFileSchedulesAddon(t *testing.T) {
	t.Parallel()

	fsys, _, _, sumZ := addonFixture(t)
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	if got := fs.FindFile("core.txt", true); got != FindYes {
		t.Fatalf("FindFile(core.txt)=%v, want yes", got)
	}
	if got := fs.FindFile("missing.txt", true); got != FindNo {
		t.Fatalf("FindFile(missing.txt)=%v, want no", got)
	}
	if got := fs.FindFile("z/only.txt", false); got != FindAddon {
		t.Fatalf("FindFile(z/only.txt)=%v, want addon", got)
	}
	if pending := fs.PendingAddons(); len(pending) != 0 {
		t.Fatalf("pending without scheduling=%v", pending)
	}

	if got := fs.FindFile("z/only.txt", true); got != FindAddon {
		t.Fatalf("FindFile(z/only.txt, schedule)=%v, want addon", got)
	}
	if pending := fs.PendingAddons(); !slices.Equal(pending, []uint32{sumZ}) {
		t.Fatalf("pending=%v, want [%d]", pending, sumZ)
	}

	if err := fs.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if got := fs.FindFile("z/only.txt", false); got != FindYes {
		t.Fatalf("FindFile after Restart=%v, want yes", got)
	}
	if _, ok := fs.ArchiveForChecksum(sumZ, false); !ok {
		t.Fatal("addon z not on the search list after Restart")
	}
}

func TestPoolReadsAreNotReferenced(t *testing.T) {
	t.Parallel()

	fsys, _, _, sumZ := addonFixture(t)
	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	f, err := fs.OpenFileRead("z/only.txt")
	if err != nil {
		t.Fatalf("OpenFileRead: %v", err)
	}
	_ = f.Close()

	if !f.Origin().Pool || f.Origin().Checksum != sumZ {
		t.Fatalf("origin=%+v, want pool addon z", f.Origin())
	}

	a, ok := fs.ArchiveForChecksum(sumZ, true)
	if !ok || a.Referenced() {
		t.Fatalf("pool archive found=%v referenced=%v", ok, ok && a.Referenced())
	}
}

func TestParseAddonManifest(t *testing.T) {
	t.Parallel()

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		info, err := ParseAddonManifest([]byte("requires: [7, 9, 7]\nmaps:\n  - path: maps/a.map\n    size: large\n"), false)
		if err != nil {
			t.Fatalf("ParseAddonManifest: %v", err)
		}
		if !slices.Equal(info.Dependencies, []uint32{7, 9}) {
			t.Fatalf("Dependencies=%v, want [7 9]", info.Dependencies)
		}
		if len(info.Maps) != 1 || info.Maps[0]["size"] != "large" {
			t.Fatalf("Maps=%v", info.Maps)
		}
	})

	t.Run("json with comments", func(t *testing.T) {
		t.Parallel()

		data := []byte(`{
			/* block */
			"requires": [4294967295], // max checksum
		}`)
		info, err := ParseAddonManifest(data, true)
		if err != nil {
			t.Fatalf("ParseAddonManifest: %v", err)
		}
		if !slices.Equal(info.Dependencies, []uint32{0xffffffff}) {
			t.Fatalf("Dependencies=%v", info.Dependencies)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAddonManifest([]byte("requires: [not-a-number]\n"), false)
		if !errors.Is(err, ErrInvalidManifest) {
			t.Fatalf("err=%v, want ErrInvalidManifest", err)
		}
	})
}

func TestBadManifestKeepsAddonFlag(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	sum := buildTestPBO(t, fsys, "/base/base/addon.pbo", "", map[string]string{
		"addon.yaml": "requires: {broken\n",
		"a.txt":      "a",
	})

	fs := startTestFS(t, Options{Fs: fsys, Roots: Roots{Base: "/base"}})

	a, ok := fs.ArchiveForChecksum(sum, true)
	if !ok {
		t.Fatal("addon archive not found")
	}
	if !a.Addon || a.Info != nil {
		t.Fatalf("Addon=%v Info=%v, want addon with nil info", a.Addon, a.Info)
	}
	if pool := fs.AddonPool(); len(pool) != 1 {
		t.Fatalf("addon pool=%v, want the addon", pool)
	}
}
