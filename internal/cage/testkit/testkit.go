// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package testkit provides test fixtures shared by all packages.
package testkit

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// LogEnvKey enables test logging to stdout when set to "1".
const LogEnvKey = "cage_testkit_log"

// NewZapLogger writes to stdout if enabled via environment variable cage_testkit_log=1,
// or writes to nothing if disabled.
func NewZapLogger() *zap.Logger {
	if os.Getenv(LogEnvKey) == "1" {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return l
	}
	return zap.NewNop()
}

// TempDir creates a directory which is removed when the test ends.
//
// The path has symlinks resolved so it matches paths reported by filesystem watchers.
func TempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "dcwatch-test-")
	require.NoError(t, err)

	dir, err = filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
