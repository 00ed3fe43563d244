// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"sort"
)

// DefaultMoveTimeout is how many notifications a move half waits for its counterpart.
const DefaultMoveTimeout = 5

// PendingMove is one buffered half of a move.
type PendingMove struct {
	Cookie int

	// Path is the resolved path of the half, with a trailing separator for directories.
	Path string

	// Half is MovedFrom or MovedTo.
	Half Flag

	IsDir bool

	// ExpiresAt is the event count at which the half is demoted to a plain create/delete.
	ExpiresAt uint64
}

// Demote returns the plain event which replaces an unpaired half.
func (p PendingMove) Demote() Event {
	if p.Half == MovedTo {
		if p.IsDir {
			return Event{Op: NewDirectory, Path: p.Path}
		}
		return Event{Op: NewFile, Path: p.Path}
	}
	if p.IsDir {
		return Event{Op: DeletedDirectory, Path: p.Path}
	}
	return Event{Op: DeletedFile, Path: p.Path}
}

// MoveResult is the outcome of MoveCorrelator.Observe.
type MoveResult struct {
	// Paired is false if the half was buffered.
	Paired bool

	From string
	To   string
}

// MoveCorrelator pairs MovedFrom/MovedTo halves by cookie within a window measured
// in notifications, not wall-clock time.
//
// It is not safe for concurrent use.
type MoveCorrelator struct {
	// Timeout is the window length in notifications.
	Timeout uint64

	pending map[int]PendingMove
}

// NewMoveCorrelator returns an empty correlator. A timeout of zero selects DefaultMoveTimeout.
func NewMoveCorrelator(timeout uint64) *MoveCorrelator {
	if timeout == 0 {
		timeout = DefaultMoveTimeout
	}
	return &MoveCorrelator{Timeout: timeout, pending: make(map[int]PendingMove)}
}

// Observe records one half or completes a pair.
//
// The returned pair is oriented (from, to) regardless of arrival order. A second half
// in the same direction replaces the pending one without emitting a move.
func (m *MoveCorrelator) Observe(cookie int, path string, half Flag, isDir bool, now uint64) MoveResult {
	if p, ok := m.pending[cookie]; ok && p.Half != half {
		delete(m.pending, cookie)
		if half == MovedTo {
			return MoveResult{Paired: true, From: p.Path, To: path}
		}
		return MoveResult{Paired: true, From: path, To: p.Path}
	}

	m.pending[cookie] = PendingMove{
		Cookie:    cookie,
		Path:      path,
		Half:      half,
		IsDir:     isDir,
		ExpiresAt: now + m.Timeout,
	}
	return MoveResult{}
}

// ExpireUpTo removes and returns every pending half whose deadline is at or before now.
//
// Results are ordered by deadline, then cookie, so replays are deterministic.
func (m *MoveCorrelator) ExpireUpTo(now uint64) (expired []PendingMove) {
	for cookie, p := range m.pending {
		if p.ExpiresAt <= now {
			expired = append(expired, p)
			delete(m.pending, cookie)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].ExpiresAt == expired[j].ExpiresAt {
			return expired[i].Cookie < expired[j].Cookie
		}
		return expired[i].ExpiresAt < expired[j].ExpiresAt
	})
	return expired
}

// Len returns the count of pending halves.
func (m *MoveCorrelator) Len() int {
	return len(m.pending)
}
