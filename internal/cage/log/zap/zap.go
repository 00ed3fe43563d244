// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package zap provides field conventions shared by all loggers.
package zap

import (
	std_zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TagKey is the field which holds the component tags of a log line, e.g. ["install"].
const TagKey = "cageLogTag"

// Tag returns a field which identifies the component(s) which wrote the log line.
func Tag(tags ...string) zapcore.Field {
	return std_zap.Strings(TagKey, append([]string{}, tags...))
}

// OrNop returns l, or a no-op logger if l is nil.
func OrNop(l *std_zap.Logger) *std_zap.Logger {
	if l == nil {
		return std_zap.NewNop()
	}
	return l
}
