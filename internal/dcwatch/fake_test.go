// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// fakeNamespace is an in-memory remote tree which records every request.
type fakeNamespace struct {
	// dirs holds the absolute path of every directory.
	dirs map[string]bool

	// rejectInstall holds paths whose subscription is declined.
	rejectInstall map[string]bool

	// failList holds paths whose listing fails at the transport level.
	failList map[string]bool

	// installCalls holds the path of every InstallWatch call, in order.
	installCalls []string

	ids map[string]dcwatch.WatchID
}

func newFakeNamespace(dirs ...string) *fakeNamespace {
	f := &fakeNamespace{
		dirs:          map[string]bool{},
		rejectInstall: map[string]bool{},
		failList:      map[string]bool{},
		ids:           map[string]dcwatch.WatchID{},
	}
	for _, d := range dirs {
		f.dirs[d] = true
	}
	return f
}

func (f *fakeNamespace) InstallWatch(ctx context.Context, path string) (dcwatch.WatchID, error) {
	f.installCalls = append(f.installCalls, path)
	if f.rejectInstall[path] || !f.dirs[path] {
		return "", &dcwatch.RejectedError{Op: dcwatch.OpInstall, Path: path, Status: 403, Message: "forbidden"}
	}
	id := dcwatch.WatchID(fmt.Sprintf("sub-%d", len(f.ids)+1))
	f.ids[path] = id
	return id, nil
}

func (f *fakeNamespace) ListChildren(ctx context.Context, path string) (children []dcwatch.Child, err error) {
	if f.failList[path] {
		return nil, &dcwatch.TransportError{Op: dcwatch.OpList, Path: path, Err: io.ErrUnexpectedEOF}
	}
	var names []string
	for d := range f.dirs {
		if dcwatch.IsDescendant(d, path) && !strings.Contains(strings.TrimPrefix(d[len(path):], "/"), "/") {
			names = append(names, strings.TrimPrefix(d[len(path):], "/"))
		}
	}
	sort.Strings(names)
	for _, n := range names {
		children = append(children, dcwatch.Child{Name: n, IsDir: true})
	}
	// files are listed too and must be ignored by the installer
	children = append(children, dcwatch.Child{Name: "file.txt"})
	return children, nil
}

// id returns the watch id assigned to the path, or panics.
func (f *fakeNamespace) id(path string) dcwatch.WatchID {
	id, ok := f.ids[path]
	if !ok {
		panic("no watch for " + path)
	}
	return id
}

var _ dcwatch.Subscriber = (*fakeNamespace)(nil)

// recordingSink collects events and close calls.
type recordingSink struct {
	events []dcwatch.Event
	closed int
	panic  bool
}

func (s *recordingSink) record(e dcwatch.Event) {
	if s.panic {
		panic("activity failure")
	}
	s.events = append(s.events, e)
}

func (s *recordingSink) OnNewFile(p string) { s.record(dcwatch.Event{Op: dcwatch.NewFile, Path: p}) }
func (s *recordingSink) OnDeletedFile(p string) {
	s.record(dcwatch.Event{Op: dcwatch.DeletedFile, Path: p})
}
func (s *recordingSink) OnMovedFile(from, to string) {
	s.record(dcwatch.Event{Op: dcwatch.MovedFile, Path: from, To: to})
}
func (s *recordingSink) OnNewDirectory(p string) {
	s.record(dcwatch.Event{Op: dcwatch.NewDirectory, Path: p})
}
func (s *recordingSink) OnDeletedDirectory(p string) {
	s.record(dcwatch.Event{Op: dcwatch.DeletedDirectory, Path: p})
}
func (s *recordingSink) OnMovedDirectory(from, to string) {
	s.record(dcwatch.Event{Op: dcwatch.MovedDirectory, Path: from, To: to})
}
func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

// sliceSource replays notifications then returns err (io.EOF if nil).
type sliceSource struct {
	notifications []dcwatch.RawNotification
	err           error

	// onNext, if set, is called before each notification is returned.
	onNext func(n int)

	pos int
}

func (s *sliceSource) Next(ctx context.Context) (dcwatch.RawNotification, error) {
	if s.pos >= len(s.notifications) {
		if s.err != nil {
			return dcwatch.RawNotification{}, s.err
		}
		return dcwatch.RawNotification{}, io.EOF
	}
	if s.onNext != nil {
		s.onNext(s.pos)
	}
	n := s.notifications[s.pos]
	s.pos++
	return n, nil
}

func cookie(c int) *int {
	return &c
}

// named returns a notification about an entry of the watched directory.
func named(id dcwatch.WatchID, name string, flags ...dcwatch.Flag) dcwatch.RawNotification {
	return dcwatch.RawNotification{Watch: id, Mask: dcwatch.Mask(flags), Name: name, HasName: true}
}

// self returns a notification about the watched directory itself.
func self(id dcwatch.WatchID, flags ...dcwatch.Flag) dcwatch.RawNotification {
	return dcwatch.RawNotification{Watch: id, Mask: dcwatch.Mask(flags)}
}

// moved returns a move half.
func moved(id dcwatch.WatchID, name string, c int, flags ...dcwatch.Flag) dcwatch.RawNotification {
	n := named(id, name, flags...)
	n.Cookie = cookie(c)
	return n
}
