// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcache_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/codeactual/dcwatch/internal/cage/testkit"
	"github.com/codeactual/dcwatch/internal/dcache"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

func TestParseNotification(t *testing.T) {
	n, err := dcache.ParseNotification([]byte(`{"subscription":"https://h/sub/1","event":{"name":"a.txt","mask":["IN_CLOSE_WRITE"]}}`))
	require.NoError(t, err)
	require.Exactly(t, dcwatch.RawNotification{
		Watch:   "https://h/sub/1",
		Mask:    dcwatch.Mask{dcwatch.ClosedAfterWrite},
		Name:    "a.txt",
		HasName: true,
	}, n)

	n, err = dcache.ParseNotification([]byte(`{"subscription":"https://h/sub/1","event":{"mask":["IN_MOVED_TO","IN_ISDIR"],"cookie":17}}`))
	require.NoError(t, err)
	require.False(t, n.HasName)
	require.NotNil(t, n.Cookie)
	require.Exactly(t, 17, *n.Cookie)
	require.Exactly(t, dcwatch.Mask{dcwatch.MovedTo, dcwatch.IsDirectory}, n.Mask)

	n, err = dcache.ParseNotification([]byte(`{"subscription":"s","event":{"name":"","mask":[]}}`))
	require.NoError(t, err)
	require.True(t, n.HasName, spew.Sdump(n))

	_, err = dcache.ParseNotification([]byte(`{"event":{}}`))
	require.True(t, errors.Is(err, dcwatch.ErrMalformedNotification))

	_, err = dcache.ParseNotification([]byte(`not json`))
	require.True(t, errors.Is(err, dcwatch.ErrMalformedNotification))
}

func TestStreamSkipsOtherEvents(t *testing.T) {
	input := strings.Join([]string{
		"event: SYSTEM",
		"data: {}",
		"",
		"event: inotify",
		"data: garbage",
		"",
		"event: inotify",
		`data: {"subscription":"s1","event":{"name":"x","mask":["IN_DELETE"]}}`,
		"",
		"",
	}, "\n")

	s := dcache.NewStream(testkit.NewZapLogger(), strings.NewReader(input))

	n, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Exactly(t, dcwatch.WatchID("s1"), n.Watch)
	require.Exactly(t, "x", n.Name)

	_, err = s.Next(context.Background())
	require.Exactly(t, io.EOF, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStreamCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dcache.NewStream(nil, strings.NewReader("data: x\n\n")).Next(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}
