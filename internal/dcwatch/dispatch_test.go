// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch_test

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/codeactual/dcwatch/internal/cage/testkit"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

type DispatchSuite struct {
	suite.Suite

	ns   *fakeNamespace
	sink *recordingSink
	d    *dcwatch.Dispatcher
}

func TestDispatchSuite(t *testing.T) {
	suite.Run(t, new(DispatchSuite))
}

func (s *DispatchSuite) SetupTest() {
	s.ns = newFakeNamespace("/data")
	s.sink = &recordingSink{}
	s.d = dcwatch.NewDispatcher(testkit.NewZapLogger(), s.ns, s.sink, dcwatch.Options{})
	require.NoError(s.T(), s.d.Install(context.Background(), []string{"/data"}))
}

func (s *DispatchSuite) TestStreamError() {
	t := s.T()

	err := s.d.Run(context.Background(), &sliceSource{
		notifications: []dcwatch.RawNotification{named(s.ns.id("/data"), "a", dcwatch.ClosedAfterWrite)},
		err:           io.ErrUnexpectedEOF,
	})
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.False(t, errors.Is(err, dcwatch.ErrStreamClosed))
	require.Len(t, s.sink.events, 1)
}

func (s *DispatchSuite) TestCanceled() {
	t := s.T()

	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSource{
		notifications: []dcwatch.RawNotification{
			named(s.ns.id("/data"), "a", dcwatch.ClosedAfterWrite),
			named(s.ns.id("/data"), "b", dcwatch.ClosedAfterWrite),
		},
	}
	src.onNext = func(n int) {
		if n == 0 {
			cancel()
		}
	}

	err := s.d.Run(ctx, src)
	require.True(t, errors.Is(err, context.Canceled))
	require.Exactly(t, []dcwatch.Event{{Op: dcwatch.NewFile, Path: "/data/a"}}, s.sink.events)
	require.Exactly(t, uint64(1), s.d.Count())
}

func (s *DispatchSuite) TestActivityPanicDoesNotStopLoop() {
	t := s.T()

	s.sink.panic = true
	err := s.d.Run(context.Background(), &sliceSource{notifications: []dcwatch.RawNotification{
		named(s.ns.id("/data"), "a", dcwatch.ClosedAfterWrite),
		named(s.ns.id("/data"), "b", dcwatch.ClosedAfterWrite),
	}})
	require.True(t, errors.Is(err, dcwatch.ErrStreamClosed))
	require.Exactly(t, uint64(2), s.d.Count())
}

func (s *DispatchSuite) TestCloseOnce() {
	t := s.T()

	require.NoError(t, s.d.Close())
	require.NoError(t, s.d.Close())
	require.Exactly(t, 1, s.sink.closed)
}

func (s *DispatchSuite) TestNoWatches() {
	t := s.T()

	d := dcwatch.NewDispatcher(testkit.NewZapLogger(), s.ns, nil, dcwatch.Options{Recursive: true})
	err := d.Install(context.Background(), []string{"/missing"})
	require.True(t, errors.Is(err, dcwatch.ErrNoWatches))
	require.NoError(t, d.Close())
}
