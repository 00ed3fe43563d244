// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package app holds the wiring shared by the dcwatch commands: config loading, the
// notification backend, the activity, and the metrics server.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// EnvPrefix is the prefix of environment variables, e.g. DCWATCH_ENDPOINT.
const EnvPrefix = "DCWATCH"

// envOnlyKeys are config keys without a flag. They are read from the config file or
// from environment variables like DCWATCH_EXEC_NEW_FILE.
var envOnlyKeys = []string{
	"password",
	"exec.new_file",
	"exec.deleted_file",
	"exec.moved_file",
	"exec.new_directory",
	"exec.deleted_directory",
	"exec.moved_directory",
	"exec.async",
	"exec.limit",
	"exec.timeout",
	"unarchive.cmd",
	"unarchive.include",
	"unarchive.limit",
}

// BindConfigFlags registers the flags which override config file values.
func BindConfigFlags(cmd *cobra.Command) []string {
	f := cmd.Flags()
	f.StringP("source", "s", dcwatch.SourceDcache, "notification source: dcache or local")
	f.StringP("endpoint", "e", "", "dCache events endpoint (default "+dcwatch.DefaultEndpoint+")")
	f.String("namespace-endpoint", "", "dCache namespace endpoint (default derived from --endpoint)")
	f.StringP("user", "u", "", "dCache user name (default current user)")
	f.String("ca-cert", "", "PEM bundle of additional trusted certificate authorities")
	f.Bool("insecure", false, "skip server certificate verification")
	f.Float64("requests-per-second", 0, "throttle subscription and listing requests, 0 is unlimited")
	f.BoolP("recursive", "r", false, "watch whole subtrees")
	f.Uint64("move-timeout", dcwatch.DefaultMoveTimeout, "notifications a move half waits for its counterpart")
	f.StringP("activity", "a", dcwatch.ActivityPrint, "reaction to events: print, exec, unarchive, or none")
	f.String("metrics-addr", "", "host:port which serves /metrics")
	return []string{
		"source", "endpoint", "namespace-endpoint", "user", "ca-cert", "insecure",
		"requests-per-second", "recursive", "move-timeout", "activity", "metrics-addr",
	}
}

// LoadConfig merges the optional config file, environment variables, and the flags
// already bound to v. Non-empty roots replace the config file's.
func LoadConfig(v *viper.Viper, configPath string, roots []string) (dcwatch.Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return dcwatch.Config{}, errors.Wrapf(err, "failed to read config file [%s]", configPath)
		}
	}

	for _, k := range envOnlyKeys {
		if err := v.BindEnv(k, EnvName(k)); err != nil {
			return dcwatch.Config{}, errors.Wrapf(err, "failed to bind environment variable of [%s]", k)
		}
	}

	if len(roots) > 0 {
		v.Set("roots", roots)
	}

	cfg, err := dcwatch.ReadConfig(v)
	if err != nil {
		return dcwatch.Config{}, errors.WithStack(err)
	}
	return cfg, nil
}

// EnvName returns the environment variable of a config key, e.g. DCWATCH_EXEC_NEW_FILE
// for "exec.new_file".
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// PromptPassword asks for the dCache password on the terminal if none was configured.
func PromptPassword(cfg *dcwatch.Config, in *os.File, out io.Writer) error {
	if cfg.Source != dcwatch.SourceDcache || cfg.Password != "" {
		return nil
	}

	fd := int(in.Fd())
	if !terminal.IsTerminal(fd) {
		return errors.New("password is required: set it in the config file or DCWATCH_PASSWORD")
	}

	fmt.Fprintf(out, "Password for %s: ", cfg.User)
	b, err := terminal.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}

	cfg.Password = string(b)
	return nil
}
