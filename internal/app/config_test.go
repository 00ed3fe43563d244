// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package app_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/codeactual/dcwatch/internal/app"
	handler_cobra "github.com/codeactual/dcwatch/internal/cage/cli/handler/cobra"
	"github.com/codeactual/dcwatch/internal/cage/testkit"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

type ConfigSuite struct {
	suite.Suite

	dir string
}

func (s *ConfigSuite) SetupTest() {
	s.dir = testkit.TempDir(s.T())
}

func (s *ConfigSuite) writeConfig(content string) string {
	name := filepath.Join(s.dir, "config.yaml")
	require.NoError(s.T(), ioutil.WriteFile(name, []byte(content), 0600))
	return name
}

func (s *ConfigSuite) TestFileEnvAndRoots() {
	t := s.T()

	name := s.writeConfig(`
source: local
recursive: true
activity: exec
exec:
  new_file: "echo {{.Path}}"
roots:
  - /from/config
`)

	require.NoError(t, os.Setenv("DCWATCH_EXEC_TIMEOUT", "1m"))
	defer os.Unsetenv("DCWATCH_EXEC_TIMEOUT")

	cfg, err := app.LoadConfig(viper.New(), name, []string{s.dir})
	require.NoError(t, err)

	require.Exactly(t, dcwatch.SourceLocal, cfg.Source)
	require.True(t, cfg.Recursive)
	require.Exactly(t, []string{s.dir}, cfg.Roots)
	require.Exactly(t, "echo {{.Path}}", cfg.Exec.NewFile)
	require.Exactly(t, time.Minute, cfg.Exec.GetTimeout())
	require.Exactly(t, uint64(dcwatch.DefaultMoveTimeout), cfg.MoveTimeout)
}

func (s *ConfigSuite) TestFlags() {
	t := s.T()

	cmd := &cobra.Command{Use: "test"}
	names := app.BindConfigFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--source", "local", "--move-timeout", "9", "-r"}))

	v := viper.New()
	for _, n := range names {
		require.NoError(t, v.BindPFlag(handler_cobra.ViperKey(n), cmd.Flags().Lookup(n)))
	}

	cfg, err := app.LoadConfig(v, "", []string{s.dir})
	require.NoError(t, err)
	require.Exactly(t, uint64(9), cfg.MoveTimeout)
	require.True(t, cfg.Recursive)
	require.Exactly(t, dcwatch.ActivityPrint, cfg.Activity)
}

func (s *ConfigSuite) TestMissingFile() {
	_, err := app.LoadConfig(viper.New(), filepath.Join(s.dir, "nope.yaml"), []string{s.dir})
	require.Error(s.T(), err)
}

func (s *ConfigSuite) TestNoRoots() {
	name := s.writeConfig("source: local\n")
	_, err := app.LoadConfig(viper.New(), name, nil)
	require.Error(s.T(), err)
}

func (s *ConfigSuite) TestPromptPasswordNotNeeded() {
	t := s.T()

	cfg := dcwatch.Config{Source: dcwatch.SourceLocal}
	require.NoError(t, app.PromptPassword(&cfg, os.Stdin, ioutil.Discard))

	cfg = dcwatch.Config{Source: dcwatch.SourceDcache, Password: "secret"}
	require.NoError(t, app.PromptPassword(&cfg, os.Stdin, ioutil.Discard))
	require.Exactly(t, "secret", cfg.Password)
}

func (s *ConfigSuite) TestPromptPasswordWithoutTerminal() {
	t := s.T()

	f, err := ioutil.TempFile(s.dir, "stdin")
	require.NoError(t, err)
	defer f.Close()

	cfg := dcwatch.Config{Source: dcwatch.SourceDcache, User: "alice"}
	require.Error(t, app.PromptPassword(&cfg, f, ioutil.Discard))
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func TestEnvName(t *testing.T) {
	require.Exactly(t, "DCWATCH_EXEC_NEW_FILE", app.EnvName("exec.new_file"))
	require.Exactly(t, "DCWATCH_MOVE_TIMEOUT", app.EnvName("move-timeout"))
}
