// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package watcher_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeactual/dcwatch/internal/cage/os/file/watcher"
	testkit_time "github.com/codeactual/dcwatch/internal/cage/testkit/time"
)

type FsnotifySuite struct {
	WatcherSuite
}

func (s *FsnotifySuite) SetupTest() {
	s.WatcherSuite.SetupTest()
	s.w = new(watcher.Fsnotify)
}

func (s *FsnotifySuite) TestCloseUnstarted() {
	t := s.T()

	w := new(watcher.Fsnotify)
	require.NoError(t, w.Close())
	require.Error(t, w.RemovePath(s.dir))
}

func (s *FsnotifySuite) TestWriteDebouncedByClock() {
	t := s.T()

	// fake clock/timer to avoid actual intervals during debounce
	timer := testkit_time.NewDebounceTimer()

	name := filepath.Join(s.dir, "clocked")
	require.NoError(t, ioutil.WriteFile(name, []byte("x"), 0600))

	s.w = &watcher.Fsnotify{Clock: timer.Clock}
	s.w.Debounce(time.Hour)
	s.watchDir()

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte("y"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s.sub.RequireQuiet(t)

	timer.Expire()

	e := s.sub.Next(t)
	require.Exactly(t, watcher.Write, e.Op)
	require.Exactly(t, name, e.Path)
}
