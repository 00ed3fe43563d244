// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package localfs produces dcwatch notifications from a local directory tree.
//
// It lets the engine run against a workstation directory without a dCache server. fsnotify
// does not expose move cookies, so a rename is reported as an unpaired MovedFrom which
// expires into a delete, and the destination arrives as a create.
package localfs

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	"github.com/codeactual/dcwatch/internal/cage/os/file/watcher"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

const (
	// DefaultDebounce coalesces bursts of writes to one file into one ClosedAfterWrite.
	DefaultDebounce = 250 * time.Millisecond

	queueSize = 1024
)

// Source watches local directories. It implements dcwatch.Subscriber and dcwatch.Source.
type Source struct {
	log *zap.Logger
	w   watcher.Watcher

	mu    sync.Mutex
	ids   map[string]dcwatch.WatchID
	paths map[dcwatch.WatchID]string

	// removed holds watched directories whose removal was already reported, because the
	// parent and the directory's own watch both report it.
	removed map[string]bool

	cookie int

	queue chan dcwatch.RawNotification
	done  chan struct{}

	closeOnce sync.Once
}

// New returns a Source which reports writes after they settle for the debounce interval.
func New(log *zap.Logger, debounce time.Duration) (*Source, error) {
	log = cage_zap.OrNop(log)

	w := new(watcher.Fsnotify)
	w.Debounce(debounce)

	s := &Source{
		log:     log,
		w:       w,
		ids:     map[string]dcwatch.WatchID{},
		paths:   map[dcwatch.WatchID]string{},
		removed: map[string]bool{},
		queue:   make(chan dcwatch.RawNotification, queueSize),
		done:    make(chan struct{}),
	}
	if err := w.AddSubscriber(s); err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// InstallWatch starts watching one directory and returns a new ksuid as its id.
func (s *Source) InstallWatch(ctx context.Context, path string) (dcwatch.WatchID, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", &dcwatch.RejectedError{Op: dcwatch.OpInstall, Path: path, Status: statusOf(err), Message: err.Error()}
	}
	if !fi.IsDir() {
		return "", &dcwatch.RejectedError{Op: dcwatch.OpInstall, Path: path, Status: 400, Message: "not a directory"}
	}

	if err = s.w.AddPath(path); err != nil {
		return "", &dcwatch.TransportError{Op: dcwatch.OpInstall, Path: path, Err: err}
	}

	id := dcwatch.WatchID(ksuid.New().String())

	s.mu.Lock()
	if old, ok := s.ids[path]; ok {
		delete(s.paths, old)
	}
	s.ids[path] = id
	s.paths[id] = path
	delete(s.removed, path)
	s.mu.Unlock()

	return id, nil
}

// ListChildren reads the directory.
func (s *Source) ListChildren(ctx context.Context, path string) ([]dcwatch.Child, error) {
	infos, err := ioutil.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, &dcwatch.RejectedError{Op: dcwatch.OpList, Path: path, Status: statusOf(err), Message: err.Error()}
		}
		return nil, &dcwatch.TransportError{Op: dcwatch.OpList, Path: path, Err: err}
	}

	children := make([]dcwatch.Child, 0, len(infos))
	for _, fi := range infos {
		children = append(children, dcwatch.Child{Name: fi.Name(), IsDir: fi.IsDir()})
	}
	return children, nil
}

// Next blocks until a notification is available. io.EOF is returned after Close.
func (s *Source) Next(ctx context.Context) (dcwatch.RawNotification, error) {
	select {
	case <-ctx.Done():
		return dcwatch.RawNotification{}, ctx.Err()
	case n := <-s.queue:
		return n, nil
	case <-s.done:
		return dcwatch.RawNotification{}, io.EOF
	}
}

// Close stops all watches and ends the notification stream.
func (s *Source) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.done)
		err = errors.Wrap(s.w.Close(), "failed to close watcher")
	})
	return err
}

// Event implements watcher.Subscriber.
func (s *Source) Event(e watcher.Event) {
	for _, n := range s.translate(e) {
		select {
		case s.queue <- n:
		case <-s.done:
			return
		}
	}
}

// Error implements watcher.Subscriber. Watcher errors are logged and do not end the stream.
func (s *Source) Error(err error) {
	if watcher.IsOverflow(err) {
		s.log.Error("events were lost, watched trees may be out of sync", cage_zap.Tag("localfs"), zap.Error(err))
		return
	}
	s.log.Warn("watcher error", cage_zap.Tag("localfs"), zap.Error(err))
}

// translate maps one fsnotify-level event to inotify-style notifications.
func (s *Source) translate(e watcher.Event) (notifications []dcwatch.RawNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, name := filepath.Dir(e.Path), filepath.Base(e.Path)
	parentID, parentWatched := s.ids[dir]
	selfID, selfWatched := s.ids[e.Path]

	entry := func(flags ...dcwatch.Flag) dcwatch.RawNotification {
		return dcwatch.RawNotification{Watch: parentID, Mask: dcwatch.Mask(flags), Name: name, HasName: true}
	}

	switch e.Op {
	case watcher.Create:
		delete(s.removed, e.Path)
		if !parentWatched {
			return nil
		}
		if fi, err := os.Lstat(e.Path); err == nil && fi.IsDir() {
			return []dcwatch.RawNotification{entry(dcwatch.Created, dcwatch.IsDirectory)}
		}
		return []dcwatch.RawNotification{entry(dcwatch.Created)}

	case watcher.Write:
		if !parentWatched {
			return nil
		}
		return []dcwatch.RawNotification{entry(dcwatch.ClosedAfterWrite)}

	case watcher.Remove:
		if s.removed[e.Path] {
			return nil
		}
		if parentWatched {
			if selfWatched {
				notifications = append(notifications, entry(dcwatch.Deleted, dcwatch.IsDirectory))
			} else {
				notifications = append(notifications, entry(dcwatch.Deleted))
			}
		}
		if selfWatched {
			s.removed[e.Path] = true
			notifications = append(notifications, s.forget(e.Path, selfID)...)
		}
		return notifications

	case watcher.Rename:
		if s.removed[e.Path] {
			return nil
		}
		if parentWatched {
			s.cookie++
			n := entry(dcwatch.MovedFrom)
			if selfWatched {
				n = entry(dcwatch.MovedFrom, dcwatch.IsDirectory)
			}
			cookie := s.cookie
			n.Cookie = &cookie
			notifications = append(notifications, n)
		}
		if selfWatched {
			// fsnotify keeps reporting the moved directory under its old path, so stop
			// watching it. A destination inside the tree arrives as a Create.
			s.removed[e.Path] = true
			if err := s.w.RemovePath(e.Path); err != nil {
				s.log.Debug("failed to remove watch of renamed directory", cage_zap.Tag("localfs"), zap.Error(err))
			}
			notifications = append(notifications, s.forget(e.Path, selfID)...)
		}
		return notifications
	}

	return nil
}

// forget drops a watched directory and returns the notification which invalidates its watch.
func (s *Source) forget(path string, id dcwatch.WatchID) []dcwatch.RawNotification {
	delete(s.ids, path)
	delete(s.paths, id)
	return []dcwatch.RawNotification{{Watch: id, Mask: dcwatch.Mask{dcwatch.Ignored, dcwatch.IsDirectory}}}
}

func statusOf(err error) int {
	switch {
	case os.IsNotExist(err):
		return 404
	case os.IsPermission(err):
		return 403
	default:
		return 500
	}
}

var (
	_ dcwatch.Subscriber = (*Source)(nil)
	_ dcwatch.Source     = (*Source)(nil)
	_ watcher.Subscriber = (*Source)(nil)
)
