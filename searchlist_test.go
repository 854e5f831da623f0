// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"slices"
	"testing"
)

// listRoots returns directory roots in priority order.
func listRoots(l *SearchList) []string {
	var out []string
	for _, e := range l.All() {
		if e.Kind == KindDirectory {
			out = append(out, e.Dir.Root)
		}
	}

	return out
}

func TestSearchListOrder(t *testing.T) {
	t.Parallel()

	var l SearchList
	l.PushFront(DirectoryEntry("/a", "base"))
	l.PushFront(DirectoryEntry("/b", "base"))
	l.Append(DirectoryEntry("/z", "base"))
	l.InsertAt(1, DirectoryEntry("/m", "base"))

	want := []string{"/b", "/m", "/a", "/z"}
	if got := listRoots(&l); !slices.Equal(got, want) {
		t.Fatalf("order=%v, want %v", got, want)
	}

	removed := l.RemoveAt(2)
	if removed.Dir.Root != "/a" {
		t.Fatalf("RemoveAt(2)=%q, want /a", removed.Dir.Root)
	}

	// The freed slot is reused without disturbing order.
	l.PushFront(DirectoryEntry("/c", "base"))
	want = []string{"/c", "/b", "/m", "/z"}
	if got := listRoots(&l); !slices.Equal(got, want) {
		t.Fatalf("order after reuse=%v, want %v", got, want)
	}
	if len(l.slots) != 4 {
		t.Fatalf("arena slots=%d, want 4", len(l.slots))
	}

	if l.Len() != 4 || l.At(0).Dir.Root != "/c" {
		t.Fatalf("Len=%d At(0)=%q", l.Len(), l.At(0).Dir.Root)
	}

	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("Len after Reset=%d, want 0", l.Len())
	}
}

func TestSearchListArchives(t *testing.T) {
	t.Parallel()

	a0 := NewArchive("/base/base/pak0.pbo", 1, nil)
	a1 := NewArchive("/base/base/pak1.pbo", 2, nil)

	var l SearchList
	l.Append(ArchiveEntry(a1))
	l.Append(DirectoryEntry("/base", "base"))
	l.Append(ArchiveEntry(a0))

	var got []uint32
	for a := range l.Archives() {
		got = append(got, a.Checksum)
	}

	if want := []uint32{2, 1}; !slices.Equal(got, want) {
		t.Fatalf("archives=%v, want %v", got, want)
	}

	entries := l.Entries()
	if len(entries) != 3 || entries[1].Kind != KindDirectory {
		t.Fatalf("entries=%+v", entries)
	}
}

func TestSearchListInsertOutOfRange(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range insert")
		}
	}()

	var l SearchList
	l.InsertAt(1, DirectoryEntry("/a", "base"))
}

func TestEntryKindString(t *testing.T) {
	t.Parallel()

	if got := KindDirectory.String(); got != "directory" {
		t.Fatalf("KindDirectory.String()=%q", got)
	}
	if got := KindArchive.String(); got != "archive" {
		t.Fatalf("KindArchive.String()=%q", got)
	}
	if got := EntryKind(9).String(); got != "kind(9)" {
		t.Fatalf("EntryKind(9).String()=%q", got)
	}
}
