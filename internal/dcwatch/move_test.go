// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

type MoveSuite struct {
	suite.Suite

	moves *dcwatch.MoveCorrelator
}

func TestMoveSuite(t *testing.T) {
	suite.Run(t, new(MoveSuite))
}

func (s *MoveSuite) SetupTest() {
	s.moves = dcwatch.NewMoveCorrelator(0)
}

func (s *MoveSuite) TestDefaultTimeout() {
	require.Exactly(s.T(), uint64(dcwatch.DefaultMoveTimeout), s.moves.Timeout)
}

func (s *MoveSuite) TestPairInEitherOrder() {
	t := s.T()

	require.False(t, s.moves.Observe(7, "/a/x", dcwatch.MovedFrom, false, 1).Paired)
	require.Exactly(t, dcwatch.MoveResult{Paired: true, From: "/a/x", To: "/b/x"}, s.moves.Observe(7, "/b/x", dcwatch.MovedTo, false, 2))
	require.Exactly(t, 0, s.moves.Len())

	require.False(t, s.moves.Observe(8, "/b/y", dcwatch.MovedTo, false, 3).Paired)
	require.Exactly(t, dcwatch.MoveResult{Paired: true, From: "/a/y", To: "/b/y"}, s.moves.Observe(8, "/a/y", dcwatch.MovedFrom, false, 4))
	require.Exactly(t, 0, s.moves.Len())
}

func (s *MoveSuite) TestSameDirectionReplaces() {
	t := s.T()

	s.moves.Observe(1, "/a/first", dcwatch.MovedFrom, false, 1)
	require.False(t, s.moves.Observe(1, "/a/second", dcwatch.MovedFrom, false, 2).Paired)
	require.Exactly(t, 1, s.moves.Len())

	expired := s.moves.ExpireUpTo(100)
	require.Len(t, expired, 1)
	require.Exactly(t, "/a/second", expired[0].Path)
	require.Exactly(t, uint64(7), expired[0].ExpiresAt)
}

func (s *MoveSuite) TestExpireUpTo() {
	t := s.T()

	s.moves.Observe(3, "/a/three", dcwatch.MovedFrom, false, 2)
	s.moves.Observe(2, "/a/two/", dcwatch.MovedTo, true, 1)
	s.moves.Observe(1, "/a/one", dcwatch.MovedFrom, false, 2)

	require.Empty(t, s.moves.ExpireUpTo(5))

	expired := s.moves.ExpireUpTo(7)
	require.Exactly(t, []dcwatch.PendingMove{
		{Cookie: 2, Path: "/a/two/", Half: dcwatch.MovedTo, IsDir: true, ExpiresAt: 6},
		{Cookie: 1, Path: "/a/one", Half: dcwatch.MovedFrom, ExpiresAt: 7},
		{Cookie: 3, Path: "/a/three", Half: dcwatch.MovedFrom, ExpiresAt: 7},
	}, expired)
	require.Exactly(t, 0, s.moves.Len())
	require.Empty(t, s.moves.ExpireUpTo(100))
}

func (s *MoveSuite) TestDemote() {
	t := s.T()

	require.Exactly(t, dcwatch.Event{Op: dcwatch.DeletedFile, Path: "/f"}, dcwatch.PendingMove{Path: "/f", Half: dcwatch.MovedFrom}.Demote())
	require.Exactly(t, dcwatch.Event{Op: dcwatch.NewFile, Path: "/f"}, dcwatch.PendingMove{Path: "/f", Half: dcwatch.MovedTo}.Demote())
	require.Exactly(t, dcwatch.Event{Op: dcwatch.DeletedDirectory, Path: "/d/"}, dcwatch.PendingMove{Path: "/d/", Half: dcwatch.MovedFrom, IsDir: true}.Demote())
	require.Exactly(t, dcwatch.Event{Op: dcwatch.NewDirectory, Path: "/d/"}, dcwatch.PendingMove{Path: "/d/", Half: dcwatch.MovedTo, IsDir: true}.Demote())
}
