// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeactual/dcwatch/internal/activity"
	"github.com/codeactual/dcwatch/internal/cage/time/mocks"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	p := activity.NewPrint(&buf, nil)

	for _, e := range []dcwatch.Event{
		{Op: dcwatch.NewFile, Path: "/a/f"},
		{Op: dcwatch.DeletedFile, Path: "/a/f"},
		{Op: dcwatch.MovedFile, Path: "/a/f", To: "/a/g"},
		{Op: dcwatch.NewDirectory, Path: "/a/d/"},
		{Op: dcwatch.DeletedDirectory, Path: "/a/d/"},
		{Op: dcwatch.MovedDirectory, Path: "/a/d/", To: "/b/d/"},
	} {
		dcwatch.Deliver(p, e)
	}
	require.NoError(t, p.Close())

	require.Exactly(
		t,
		"NEW FILE /a/f\n"+
			"DELETED FILE /a/f\n"+
			"FILE MOVED FROM /a/f TO /a/g\n"+
			"NEW DIRECTORY /a/d/\n"+
			"DELETED DIRECTORY /a/d/\n"+
			"DIRECTORY MOVED FROM /a/d/ TO /b/d/\n",
		buf.String(),
	)
}

func TestPrintDatetime(t *testing.T) {
	clock := new(mocks.Clock)
	clock.On("Now").Return(time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC))

	var buf bytes.Buffer
	p := activity.NewPrint(&buf, clock)
	p.OnNewFile("/100%/f")

	require.Exactly(t, "20200304-050607 NEW FILE /100%/f\n", buf.String())
	clock.AssertExpectations(t)
}
