// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeactual/dcwatch/internal/activity"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

type recorder struct {
	mu     sync.Mutex
	events []dcwatch.Event
	closed int
}

func (r *recorder) sink() dcwatch.Sink {
	return r
}

func (r *recorder) add(e dcwatch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []dcwatch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dcwatch.Event{}, r.events...)
}

func (r *recorder) OnNewFile(p string)      { r.add(dcwatch.Event{Op: dcwatch.NewFile, Path: p}) }
func (r *recorder) OnDeletedFile(p string)  { r.add(dcwatch.Event{Op: dcwatch.DeletedFile, Path: p}) }
func (r *recorder) OnNewDirectory(p string) { r.add(dcwatch.Event{Op: dcwatch.NewDirectory, Path: p}) }
func (r *recorder) OnDeletedDirectory(p string) {
	r.add(dcwatch.Event{Op: dcwatch.DeletedDirectory, Path: p})
}
func (r *recorder) OnMovedFile(from, to string) {
	r.add(dcwatch.Event{Op: dcwatch.MovedFile, Path: from, To: to})
}
func (r *recorder) OnMovedDirectory(from, to string) {
	r.add(dcwatch.Event{Op: dcwatch.MovedDirectory, Path: from, To: to})
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func TestTemplateData(t *testing.T) {
	cases := []struct {
		event    dcwatch.Event
		expected activity.TemplateData
	}{
		{
			event:    dcwatch.Event{Op: dcwatch.NewFile, Path: "/data/run1/a.zip"},
			expected: activity.TemplateData{Op: "NewFile", Path: "/data/run1/a.zip", Dir: "/data/run1", Name: "a.zip"},
		},
		{
			event:    dcwatch.Event{Op: dcwatch.NewDirectory, Path: "/data/run1/"},
			expected: activity.TemplateData{Op: "NewDirectory", Path: "/data/run1/", Dir: "/data", Name: "run1"},
		},
		{
			event: dcwatch.Event{Op: dcwatch.MovedFile, Path: "/data/a.tmp", To: "/data/out/a.zip"},
			expected: activity.TemplateData{
				Op: "MovedFile", Path: "/data/a.tmp", To: "/data/out/a.zip", Dir: "/data/out", Name: "a.zip",
			},
		},
		{
			event:    dcwatch.Event{Op: dcwatch.DeletedFile, Path: "/a"},
			expected: activity.TemplateData{Op: "DeletedFile", Path: "/a", Dir: "/", Name: "a"},
		},
	}

	for _, c := range cases {
		require.Exactly(t, c.expected, activity.NewTemplateData(c.event), c.event.Path)
	}
}

func TestTemplateDataEnv(t *testing.T) {
	d := activity.NewTemplateData(dcwatch.Event{Op: dcwatch.MovedFile, Path: "/x/a", To: "/y/b"})

	require.ElementsMatch(
		t,
		[]string{
			"DCWATCH_OP=MovedFile",
			"DCWATCH_PATH=/x/a",
			"DCWATCH_TO=/y/b",
			"DCWATCH_DIR=/y",
			"DCWATCH_NAME=b",
		},
		d.Env(),
	)

	require.Exactly(t, "/y/b", d.Getenv("DCWATCH_TO"))
	require.Exactly(t, "", d.Getenv("DCWATCH_NOT_A_FIELD"))
}
