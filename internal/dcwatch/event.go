// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"strings"
)

// WatchID identifies one live subscription. It is opaque to the engine.
type WatchID string

// Flag is one member of a raw notification mask.
type Flag uint8

const (
	FlagUnknown Flag = iota
	IsDirectory
	Created
	ClosedAfterWrite
	Deleted
	DeletedSelf
	MovedFrom
	MovedTo
	MoveSelf
	Ignored
)

var flagNames = map[Flag]string{
	IsDirectory:      "IN_ISDIR",
	Created:          "IN_CREATE",
	ClosedAfterWrite: "IN_CLOSE_WRITE",
	Deleted:          "IN_DELETE",
	DeletedSelf:      "IN_DELETE_SELF",
	MovedFrom:        "IN_MOVED_FROM",
	MovedTo:          "IN_MOVED_TO",
	MoveSelf:         "IN_MOVE_SELF",
	Ignored:          "IN_IGNORED",
}

// ParseFlag converts an inotify-style wire name, e.g. "IN_CLOSE_WRITE", to a Flag.
//
// Unrecognized names return FlagUnknown.
func ParseFlag(s string) Flag {
	s = strings.ToUpper(strings.TrimSpace(s))
	for f, name := range flagNames {
		if name == s {
			return f
		}
	}
	return FlagUnknown
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return "IN_UNKNOWN"
}

// IsAction returns true for every flag except IsDirectory and FlagUnknown.
func (f Flag) IsAction() bool {
	return f != IsDirectory && f != FlagUnknown
}

// IsMoveHalf returns true for MovedFrom and MovedTo.
func (f Flag) IsMoveHalf() bool {
	return f == MovedFrom || f == MovedTo
}

// Mask holds the flags of one notification in the order they were delivered.
type Mask []Flag

// ParseMask converts wire names to a Mask, preserving order.
func ParseMask(names []string) Mask {
	m := make(Mask, 0, len(names))
	for _, n := range names {
		m = append(m, ParseFlag(n))
	}
	return m
}

// Has returns true if the flag is present.
func (m Mask) Has(f Flag) bool {
	for _, candidate := range m {
		if candidate == f {
			return true
		}
	}
	return false
}

// Action returns the last action flag in the mask.
//
// A well-formed mask has exactly one. The count of action flags is also returned
// so callers can report malformed masks.
func (m Mask) Action() (action Flag, count int) {
	for _, f := range m {
		if f.IsAction() {
			action = f
			count++
		}
	}
	return action, count
}

// Strings returns the wire names.
func (m Mask) Strings() []string {
	s := make([]string, len(m))
	for n, f := range m {
		s[n] = f.String()
	}
	return s
}

// RawNotification is one low-level change notification from the stream.
type RawNotification struct {
	// Watch identifies the subscription which produced the notification.
	Watch WatchID

	// Mask holds the flags in delivery order.
	Mask Mask

	// Cookie correlates the two halves of a move. It is nil when absent.
	Cookie *int

	// Name is the entry name relative to the watched directory.
	//
	// It is only meaningful if HasName is true. An absent name means the notification
	// concerns the watched node itself.
	Name string

	HasName bool
}

// Op is the kind of a semantic event.
type Op uint8

const (
	NewFile Op = iota + 1
	DeletedFile
	MovedFile
	NewDirectory
	DeletedDirectory
	MovedDirectory
)

func (o Op) String() string {
	switch o {
	case NewFile:
		return "NewFile"
	case DeletedFile:
		return "DeletedFile"
	case MovedFile:
		return "MovedFile"
	case NewDirectory:
		return "NewDirectory"
	case DeletedDirectory:
		return "DeletedDirectory"
	case MovedDirectory:
		return "MovedDirectory"
	default:
		return "Unknown"
	}
}

// ParseOp is the inverse of Op.String. It returns 0 for unknown names.
func ParseOp(s string) Op {
	for o := NewFile; o <= MovedDirectory; o++ {
		if strings.EqualFold(o.String(), s) {
			return o
		}
	}
	return 0
}

// IsMove returns true for MovedFile and MovedDirectory.
func (o Op) IsMove() bool {
	return o == MovedFile || o == MovedDirectory
}

// IsDir returns true for the directory ops.
func (o Op) IsDir() bool {
	return o == NewDirectory || o == DeletedDirectory || o == MovedDirectory
}

// Event is a high-level, application-meaningful change.
type Event struct {
	Op Op

	// Path is the affected path, or the origin of a move.
	//
	// Directory paths end with a separator.
	Path string

	// To is the destination of a move. It is empty for other ops.
	To string
}

// Child is one entry of a remote directory listing.
type Child struct {
	Name  string
	IsDir bool
}
