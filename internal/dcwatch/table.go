// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// WatchEntry pairs a subscription with the absolute, normalized path it observes.
type WatchEntry struct {
	ID   WatchID
	Path string
}

// WatchTable is the single source of truth for what is currently being observed.
//
// A path is observed by at most one watch. It is not safe for concurrent use. The
// Dispatcher which owns it is its only mutator.
type WatchTable struct {
	paths map[WatchID]string

	// ids is the reverse index of paths.
	ids map[string]WatchID
}

// NewWatchTable returns an empty table.
func NewWatchTable() *WatchTable {
	return &WatchTable{
		paths: make(map[WatchID]string),
		ids:   make(map[string]WatchID),
	}
}

// Install inserts or overwrites the mapping.
//
// A different watch previously mapped to the same path is evicted and returned.
func (t *WatchTable) Install(id WatchID, path string) (evicted WatchID) {
	path = NormalizePath(path)

	if old, ok := t.paths[id]; ok && t.ids[old] == id {
		delete(t.ids, old)
	}
	if prev, ok := t.ids[path]; ok && prev != id {
		delete(t.paths, prev)
		evicted = prev
	}

	t.paths[id] = path
	t.ids[path] = id
	return evicted
}

// Resolve returns the path watched by id.
func (t *WatchTable) Resolve(id WatchID) (string, error) {
	p, ok := t.paths[id]
	if !ok {
		return "", errors.Wrapf(ErrUnknownWatch, "watch [%s]", id)
	}
	return p, nil
}

// Remove deletes the mapping if present.
func (t *WatchTable) Remove(id WatchID) {
	p, ok := t.paths[id]
	if !ok {
		return
	}
	delete(t.paths, id)
	if t.ids[p] == id {
		delete(t.ids, p)
	}
}

// RemoveTree deletes every entry at or below path and returns them sorted by path.
func (t *WatchTable) RemoveTree(path string) (removed []WatchEntry) {
	path = NormalizePath(path)
	for id, p := range t.paths {
		if p == path || IsDescendant(p, path) {
			removed = append(removed, WatchEntry{ID: id, Path: p})
		}
	}
	for _, e := range removed {
		t.Remove(e.ID)
	}
	sortEntries(removed)
	return removed
}

// IsEmpty returns true if no watch is installed.
func (t *WatchTable) IsEmpty() bool {
	return len(t.paths) == 0
}

// Len returns the count of installed watches.
func (t *WatchTable) Len() int {
	return len(t.paths)
}

// Lookup finds the watch that observes the path, if any.
func (t *WatchTable) Lookup(path string) (WatchID, bool) {
	id, ok := t.ids[NormalizePath(path)]
	return id, ok
}

// Rebase rewrites every entry at or below from so that it lives below to instead.
//
// Entries already at a rewritten path are evicted. It returns the count of rewritten entries.
func (t *WatchTable) Rebase(from, to string) int {
	from, to = NormalizePath(from), NormalizePath(to)
	if from == to {
		return 0
	}

	var moved []WatchEntry
	for id, p := range t.paths {
		if p == from || IsDescendant(p, from) {
			moved = append(moved, WatchEntry{ID: id, Path: RebasePath(p, from, to)})
		}
	}
	for _, e := range moved {
		t.Remove(e.ID)
	}
	for _, e := range moved {
		t.Install(e.ID, e.Path)
	}
	return len(moved)
}

// RebasePath rewrites p, which must be at or below from, to live below to instead.
func RebasePath(p, from, to string) string {
	p, from, to = NormalizePath(p), NormalizePath(from), NormalizePath(to)
	if p == from {
		return to
	}
	return JoinPath(to, strings.TrimPrefix(p[len(from):], Separator))
}

// Entries returns a copy of all mappings sorted by path.
func (t *WatchTable) Entries() []WatchEntry {
	entries := make([]WatchEntry, 0, len(t.paths))
	for id, p := range t.paths {
		entries = append(entries, WatchEntry{ID: id, Path: p})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []WatchEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path == entries[j].Path {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Path < entries[j].Path
	})
}
