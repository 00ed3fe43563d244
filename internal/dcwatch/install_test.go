// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/codeactual/dcwatch/internal/cage/testkit"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

type InstallSuite struct {
	suite.Suite

	ns      *fakeNamespace
	metrics *dcwatch.Metrics
}

func TestInstallSuite(t *testing.T) {
	suite.Run(t, new(InstallSuite))
}

func (s *InstallSuite) SetupTest() {
	t := s.T()

	s.ns = newFakeNamespace("/a", "/a/b", "/c", "/data", "/data/sub", "/data/sub/deep", "/data/z")

	var err error
	s.metrics, err = dcwatch.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
}

func (s *InstallSuite) newInstaller(recursive bool) *dcwatch.Installer {
	return &dcwatch.Installer{
		Subscriber: s.ns,
		Table:      dcwatch.NewWatchTable(),
		Recursive:  recursive,
		Log:        testkit.NewZapLogger(),
		Metrics:    s.metrics,
	}
}

func (s *InstallSuite) TestNonRecursiveDedupe() {
	t := s.T()
	i := s.newInstaller(false)

	accepted, err := i.Install(context.Background(), []string{"/a", "/a/b", "/c"})
	require.NoError(t, err)
	require.Exactly(t, []string{"/a", "/c"}, accepted)
	require.Exactly(t, []string{"/a", "/c"}, s.ns.installCalls)
	require.Exactly(t, 2, i.Table.Len())
	require.Exactly(t, float64(2), testutil.ToFloat64(s.metrics.Watches))
}

func (s *InstallSuite) TestRecursiveParentsFirst() {
	t := s.T()
	i := s.newInstaller(true)

	accepted, err := i.Install(context.Background(), []string{"/data/"})
	require.NoError(t, err)
	require.Exactly(t, []string{"/data"}, accepted)
	require.Exactly(t, []string{"/data", "/data/sub", "/data/sub/deep", "/data/z"}, s.ns.installCalls)
	require.Empty(t, i.Failures)

	var paths []string
	for _, e := range i.Table.Entries() {
		paths = append(paths, e.Path)
	}
	require.Exactly(t, []string{"/data", "/data/sub", "/data/sub/deep", "/data/z"}, paths)
}

func (s *InstallSuite) TestRecursiveRejectedSkipsSubtree() {
	t := s.T()
	s.ns.rejectInstall["/data/sub"] = true
	i := s.newInstaller(true)

	_, err := i.Install(context.Background(), []string{"/data"})
	require.NoError(t, err)
	require.Exactly(t, []string{"/data", "/data/sub", "/data/z"}, s.ns.installCalls)
	require.Exactly(t, 2, i.Table.Len())

	require.Len(t, i.Failures, 1)
	require.Exactly(t, dcwatch.OpInstall, i.Failures[0].Op)
	require.Exactly(t, "/data/sub", i.Failures[0].Path)
	require.True(t, dcwatch.IsRejected(i.Failures[0].Err))
	require.Exactly(t, float64(1), testutil.ToFloat64(s.metrics.InstallFails.WithLabelValues(dcwatch.OpInstall, "rejected")))
}

func (s *InstallSuite) TestRecursiveListFailureKeepsWatch() {
	t := s.T()
	s.ns.failList["/data/sub"] = true
	i := s.newInstaller(true)

	_, err := i.Install(context.Background(), []string{"/data"})
	require.NoError(t, err)
	require.Exactly(t, []string{"/data", "/data/sub", "/data/z"}, s.ns.installCalls)

	_, found := i.Table.Lookup("/data/sub")
	require.True(t, found)

	require.Len(t, i.Failures, 1)
	require.Exactly(t, dcwatch.OpList, i.Failures[0].Op)
	require.True(t, dcwatch.IsTransport(i.Failures[0].Err))
	require.Exactly(t, float64(1), testutil.ToFloat64(s.metrics.InstallFails.WithLabelValues(dcwatch.OpList, "transport")))
}

func (s *InstallSuite) TestNoWatches() {
	t := s.T()
	s.ns.rejectInstall["/a"] = true
	i := s.newInstaller(false)

	_, err := i.Install(context.Background(), []string{"/a", "/missing"})
	require.True(t, errors.Is(err, dcwatch.ErrNoWatches))
	require.True(t, i.Table.IsEmpty())
	require.Len(t, i.Failures, 2)
}

func (s *InstallSuite) TestInstallSingleSkipsWatchedPath() {
	t := s.T()
	i := s.newInstaller(false)

	require.NoError(t, i.InstallSingle(context.Background(), "/c"))
	require.NoError(t, i.InstallSingle(context.Background(), "/c/"))
	require.Exactly(t, []string{"/c"}, s.ns.installCalls)
}

func (s *InstallSuite) TestRecursiveCanceled() {
	t := s.T()
	i := s.newInstaller(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := i.Install(ctx, []string{"/data"})
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, s.ns.installCalls)
}
