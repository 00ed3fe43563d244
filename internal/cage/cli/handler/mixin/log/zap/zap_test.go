// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package zap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	log_zap "github.com/codeactual/dcwatch/internal/cage/cli/handler/mixin/log/zap"
)

func TestNewLogger(t *testing.T) {
	l, err := log_zap.NewLogger("warn", log_zap.FormatJSON)
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))

	l, err = log_zap.NewLogger("debug", log_zap.FormatConsole)
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLoggerInvalid(t *testing.T) {
	_, err := log_zap.NewLogger("loud", log_zap.FormatJSON)
	require.Error(t, err)

	_, err = log_zap.NewLogger("info", "xml")
	require.Error(t, err)
}

func TestMixinPreRun(t *testing.T) {
	m := &log_zap.Mixin{Level: "error", Format: log_zap.FormatJSON}
	require.NoError(t, m.PreRun(context.Background(), nil))
	require.True(t, m.Core().Enabled(zapcore.ErrorLevel))
	require.False(t, m.Core().Enabled(zapcore.WarnLevel))
}
