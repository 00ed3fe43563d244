// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cobra adapts handler.Session based sub-commands to spf13/cobra.
package cobra

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/codeactual/dcwatch/internal/cage/cli/handler"
)

// Init defines the command, its environment variable prefix, etc.
type Init struct {
	Cmd *cobra.Command

	// EnvPrefix, e.g. "APP", allows environment variables like APP_LOG_LEVEL to provide
	// values for flags like --log-level that were not set on the command line.
	EnvPrefix string

	Mixins []handler.Mixin
}

// Handler is implemented by each sub-command.
type Handler interface {
	handler.Session

	// Init defines the command.
	Init() Init

	// BindFlags registers the command's own flags and returns their names.
	BindFlags(cmd *cobra.Command) []string

	// Run performs the command logic.
	Run(ctx context.Context, input handler.Input)
}

// NewHandler returns a cobra command which runs the Handler after flag parsing, environment
// variable fallback, and mixin setup.
func NewHandler(h Handler) *cobra.Command {
	hInit := h.Init()
	cmd := hInit.Cmd

	v := viper.New()
	if hInit.EnvPrefix != "" {
		v.SetEnvPrefix(hInit.EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}

	names := h.BindFlags(cmd)
	for _, m := range hInit.Mixins {
		names = append(names, m.BindCobraFlags(cmd)...)
	}

	cmd.Run = func(cmd *cobra.Command, args []string) {
		h.Start()
		ctx := h.Context()

		h.ExitOnErr(bindViper(v, cmd.Flags(), names), "failed to read flags", 1)

		for _, m := range hInit.Mixins {
			h.ExitOnErr(m.PreRun(ctx, args), "failed to init ["+m.Name()+"]", 1)
		}

		h.Run(ctx, handler.Input{Args: args, Viper: v})
	}

	return cmd
}

// bindViper exposes each flag under its viper key, and applies environment variable
// values to flags which were not set on the command line.
func bindViper(v *viper.Viper, flags *pflag.FlagSet, names []string) error {
	for _, name := range names {
		f := flags.Lookup(name)
		if f == nil {
			return errors.Errorf("flag [%s] was not registered", name)
		}

		key := ViperKey(name)
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind flag [%s]", name)
		}

		if f.Changed || !v.IsSet(key) {
			continue
		}

		envVal := v.GetString(key)
		if envVal == f.DefValue {
			continue
		}
		if err := flags.Set(name, envVal); err != nil {
			return errors.Wrapf(err, "failed to set flag [%s] from environment value [%s]", name, envVal)
		}
	}
	return nil
}

// ViperKey returns the viper key of a flag name, e.g. "move_timeout" for "move-timeout".
func ViperKey(flagName string) string {
	return strings.Replace(flagName, "-", "_", -1)
}
