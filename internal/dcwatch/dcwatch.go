// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dcwatch converts a stream of raw, per-inode change notifications from a remote
// namespace into high-level file/directory events, and maintains the watches required to
// observe whole subtrees.
package dcwatch

import (
	"context"
)

// Subscriber creates subscriptions and lists directories on the remote namespace.
//
// Errors should be *RejectedError when the server declined the request and
// *TransportError for network-level failures.
type Subscriber interface {
	// InstallWatch subscribes to change notifications for one directory.
	InstallWatch(ctx context.Context, path string) (WatchID, error)

	// ListChildren returns the immediate children of a directory.
	ListChildren(ctx context.Context, path string) ([]Child, error)
}

// Source produces raw notifications in arrival order.
//
// Next blocks until a notification is available, the stream ends (io.EOF or a transport
// error), or ctx is done.
type Source interface {
	Next(ctx context.Context) (RawNotification, error)
}

// Sink reacts to semantic events.
//
// Methods are called from the dispatch goroutine, one event at a time. Implementations
// may continue work in the background but must finish or abandon it before Close returns.
type Sink interface {
	OnNewFile(path string)
	OnDeletedFile(path string)
	OnMovedFile(from, to string)
	OnNewDirectory(path string)
	OnDeletedDirectory(path string)
	OnMovedDirectory(from, to string)

	// Close is called exactly once, at shutdown.
	Close() error
}

// NopSink ignores all events. Embed it to implement only some Sink methods.
type NopSink struct{}

func (NopSink) OnNewFile(string)                {}
func (NopSink) OnDeletedFile(string)            {}
func (NopSink) OnMovedFile(string, string)      {}
func (NopSink) OnNewDirectory(string)           {}
func (NopSink) OnDeletedDirectory(string)       {}
func (NopSink) OnMovedDirectory(string, string) {}
func (NopSink) Close() error                    { return nil }

// Deliver calls the Sink method which matches the event's Op.
func Deliver(s Sink, e Event) {
	switch e.Op {
	case NewFile:
		s.OnNewFile(e.Path)
	case DeletedFile:
		s.OnDeletedFile(e.Path)
	case MovedFile:
		s.OnMovedFile(e.Path, e.To)
	case NewDirectory:
		s.OnNewDirectory(e.Path)
	case DeletedDirectory:
		s.OnDeletedDirectory(e.Path)
	case MovedDirectory:
		s.OnMovedDirectory(e.Path, e.To)
	}
}

// SinkFunc adapts a single event callback to Sink.
type SinkFunc func(Event)

func (f SinkFunc) OnNewFile(p string)          { f(Event{Op: NewFile, Path: p}) }
func (f SinkFunc) OnDeletedFile(p string)      { f(Event{Op: DeletedFile, Path: p}) }
func (f SinkFunc) OnMovedFile(from, to string) { f(Event{Op: MovedFile, Path: from, To: to}) }
func (f SinkFunc) OnNewDirectory(p string)     { f(Event{Op: NewDirectory, Path: p}) }
func (f SinkFunc) OnDeletedDirectory(p string) { f(Event{Op: DeletedDirectory, Path: p}) }
func (f SinkFunc) OnMovedDirectory(from, to string) {
	f(Event{Op: MovedDirectory, Path: from, To: to})
}
func (f SinkFunc) Close() error { return nil }

var (
	_ Sink = NopSink{}
	_ Sink = SinkFunc(nil)
)
