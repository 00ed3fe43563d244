// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
	tp_time "github.com/codeactual/dcwatch/internal/third_party/gist.github.com/time"
)

type Fsnotify struct {
	// Clock drives debounce timers. RealClock is used if nil.
	Clock cage_time.Clock

	mu sync.Mutex

	watcher     *fsnotify.Watcher
	subscribers []Subscriber
	done        chan struct{}
	stopped     chan struct{}

	// debouncers indexes cage/time.Debounce compatible functions by Write event path.
	debouncers map[string]func(interface{})

	debounceInterval time.Duration
}

func (w *Fsnotify) AddSubscriber(sub Subscriber) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, sub)
	return nil
}

func (w *Fsnotify) AddPath(name string) (err error) {
	w.mu.Lock()
	if w.watcher == nil {
		w.watcher, err = fsnotify.NewWatcher()
		if err != nil {
			w.mu.Unlock()
			return errors.Wrap(err, "failed to create new watcher")
		}

		w.done = make(chan struct{})
		w.stopped = make(chan struct{})
		go w.monitor(w.watcher, w.done, w.stopped)
	}
	fw := w.watcher
	w.mu.Unlock()

	abs, err := filepath.Abs(name)
	if err != nil {
		return errors.Wrapf(err, "failed to get absolute path of [%s]", name)
	}

	if err = fw.Add(abs); err != nil {
		return errors.Wrapf(err, "failed to add watcher path [%s]", abs)
	}

	return nil
}

func (w *Fsnotify) RemovePath(name string) (err error) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()

	if fw == nil {
		return errors.Errorf("failed to remove watcher path [%s]: watcher not started", name)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return errors.Wrapf(err, "failed to get absolute path of [%s]", name)
	}

	if err = fw.Remove(abs); err != nil {
		return errors.Wrapf(err, "failed to remove watcher path [%s]", abs)
	}

	return nil
}

// Close stops monitoring. It is a no-op if AddPath was never called.
func (w *Fsnotify) Close() (err error) {
	w.mu.Lock()
	fw := w.watcher
	done, stopped := w.done, w.stopped
	w.watcher = nil
	w.subscribers = nil
	w.debouncers = nil
	w.mu.Unlock()

	if fw == nil {
		return nil
	}

	close(done)
	err = errors.Wrap(fw.Close(), "failed to close fsnotify watcher")
	<-stopped
	return err
}

// monitor defines the goroutine that dispatches all event/error details to
// to subscribers.
func (w *Fsnotify) monitor(fw *fsnotify.Watcher, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case <-done:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Name == "" {
				// E.g. if a directory is passed to AddPath and then Close is called, an empty Event
				// is still spammed here if a file is created in that directory after Close.
				// https://github.com/fsnotify/fsnotify/issues/140#issuecomment-217539670
				continue
			}

			op := w.filterOp(event.Op)
			if op == 0 {
				continue
			}

			filteredEvent := Event{Path: event.Name, Op: op}

			w.mu.Lock()
			interval := w.debounceInterval
			w.mu.Unlock()

			if op == Write && interval > 0 {
				w.debouncer(event.Name, interval, done)(filteredEvent)
			} else {
				w.broadcastEvent(filteredEvent)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			for _, s := range w.copySubscribers() {
				s.Error(err)
			}
		}
	}
}

// debouncer returns the debounced broadcast function of a path, creating it if needed.
//
// Debouncers exit when done is closed.
func (w *Fsnotify) debouncer(name string, interval time.Duration, done <-chan struct{}) func(interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debouncers == nil {
		w.debouncers = make(map[string]func(interface{}))
	}
	if w.debouncers[name] == nil {
		clock := w.Clock
		if clock == nil {
			clock = cage_time.RealClock{}
		}
		w.debouncers[name] = tp_time.Debounce(clock, interval, w.broadcastEvent, done)
	}
	return w.debouncers[name]
}

func (w *Fsnotify) copySubscribers() []Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Subscriber(nil), w.subscribers...)
}

func (w *Fsnotify) broadcastEvent(e interface{}) {
	event, ok := e.(Event)
	if !ok {
		return
	}
	for _, s := range w.copySubscribers() {
		s.Event(event)
	}
}

// filterOp reduces the types to only those defined in this package.
//
// fsnotify supports multi-events via bit masks and also chmod events, both of which
// are effectively filtered.
func (w *Fsnotify) filterOp(op fsnotify.Op) Op {
	if op&fsnotify.Remove == fsnotify.Remove {
		return Remove
	}
	if op&fsnotify.Rename == fsnotify.Rename {
		return Rename
	}
	if op&fsnotify.Create == fsnotify.Create {
		return Create
	}
	if op&fsnotify.Write == fsnotify.Write {
		return Write
	}
	return 0
}

func (w *Fsnotify) Debounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounceInterval = d
}

var _ Watcher = (*Fsnotify)(nil)
