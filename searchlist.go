// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"iter"
)

// SearchList is an ordered overlay of search entries. Entries are stored in an
// arena and ordered by a slice of arena slots; position 0 has the highest
// priority. The list is mutated only while the filesystem is being built or
// torn down.
type SearchList struct {
	// slots is the entry arena. Removed slots are recycled through free.
	slots []Entry
	// order holds slot indices in priority order.
	order []int
	// free lists reusable slot indices.
	free []int
}

// Len returns the number of entries.
func (l *SearchList) Len() int {
	if l == nil {
		return 0
	}

	return len(l.order)
}

// At returns the entry at priority position i.
func (l *SearchList) At(i int) Entry {
	return l.slots[l.order[i]]
}

// InsertAt places e at position i, shifting later entries down.
// i must be in [0, Len()].
func (l *SearchList) InsertAt(i int, e Entry) {
	if i < 0 || i > len(l.order) {
		panic(fmt.Sprintf("pakfs: search list insert position %d out of range [0,%d]", i, len(l.order)))
	}

	slot := l.alloc(e)
	l.order = append(l.order, 0)
	copy(l.order[i+1:], l.order[i:])
	l.order[i] = slot
}

// PushFront inserts e at the highest priority.
func (l *SearchList) PushFront(e Entry) {
	l.InsertAt(0, e)
}

// Append inserts e at the lowest priority.
func (l *SearchList) Append(e Entry) {
	l.InsertAt(len(l.order), e)
}

// RemoveAt removes and returns the entry at position i.
func (l *SearchList) RemoveAt(i int) Entry {
	slot := l.order[i]
	e := l.slots[slot]

	l.order = append(l.order[:i], l.order[i+1:]...)
	l.slots[slot] = Entry{}
	l.free = append(l.free, slot)

	return e
}

// All iterates entries in priority order.
func (l *SearchList) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		if l == nil {
			return
		}

		for i, slot := range l.order {
			if !yield(i, l.slots[slot]) {
				return
			}
		}
	}
}

// Archives iterates archive entries in priority order.
func (l *SearchList) Archives() iter.Seq[*Archive] {
	return func(yield func(*Archive) bool) {
		for _, e := range l.All() {
			if e.Kind == KindArchive && !yield(e.Archive) {
				return
			}
		}
	}
}

// Entries returns a copy of entries in priority order.
func (l *SearchList) Entries() []Entry {
	out := make([]Entry, 0, l.Len())
	for _, e := range l.All() {
		out = append(out, e)
	}

	return out
}

// Reset drops all entries without closing archives.
func (l *SearchList) Reset() {
	l.slots = nil
	l.order = nil
	l.free = nil
}

// alloc stores e in a free or new arena slot and returns its index.
func (l *SearchList) alloc(e Entry) int {
	if n := len(l.free); n > 0 {
		slot := l.free[n-1]
		l.free = l.free[:n-1]
		l.slots[slot] = e
		return slot
	}

	l.slots = append(l.slots, e)
	return len(l.slots) - 1
}
