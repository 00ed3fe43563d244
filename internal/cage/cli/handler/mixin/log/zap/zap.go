// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package zap provides a mixin which configures a zap logger from flags.
package zap

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	std_zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codeactual/dcwatch/internal/cage/cli/handler"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Mixin embeds the configured logger. It is a no-op logger until PreRun.
type Mixin struct {
	*std_zap.Logger

	Level  string
	Format string
}

func (m *Mixin) Name() string {
	return "log/zap"
}

func (m *Mixin) BindCobraFlags(cmd *cobra.Command) []string {
	m.Logger = std_zap.NewNop()
	cmd.Flags().StringVarP(&m.Level, "log-level", "", "info", "debug, info, warn, or error")
	cmd.Flags().StringVarP(&m.Format, "log-format", "", FormatConsole, "console or json")
	return []string{"log-level", "log-format"}
}

func (m *Mixin) PreRun(ctx context.Context, args []string) error {
	l, err := NewLogger(m.Level, m.Format)
	if err != nil {
		return errors.WithStack(err)
	}
	m.Logger = l
	return nil
}

// NewLogger returns a stderr logger.
func NewLogger(level, format string) (*std_zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level [%s]", level)
	}

	var cfg std_zap.Config
	switch format {
	case FormatConsole:
		cfg = std_zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case FormatJSON:
		cfg = std_zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, errors.Errorf("invalid log format [%s]", format)
	}
	cfg.Level = std_zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return l, nil
}

var _ handler.Mixin = (*Mixin)(nil)
