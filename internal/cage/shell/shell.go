// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package shell

import (
	"os"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// Parse returns a slice of argument slices, one argument slice per pipeline process/stage.
//
// Variables are expanded from the current environment.
func Parse(s string) (args [][]string, err error) {
	return ParseEnv(s, os.Getenv)
}

// ParseEnv is Parse with a custom variable lookup, e.g. to expand variables which will
// only exist in the environment of the command being built.
func ParseEnv(s string, getenv func(string) string) (args [][]string, err error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	parser.Getenv = getenv

	args = [][]string{} // simplify test expectations, e.g. no nil slices expected

	// Use recommended approach https://github.com/mattn/go-shellwords/issues/4#issuecomment-275275660
	// to support "|".
	for {
		parsed, err := parser.Parse(s)
		if err != nil {
			return [][]string{}, errors.Wrapf(err, "failed to parse [%s]", s)
		}

		if len(parsed) == 0 {
			break
		}

		args = append(args, parsed)

		if parser.Position == -1 {
			break
		}

		if s[parser.Position] != '|' {
			return [][]string{}, errors.Errorf("failed to parse [%s]: only '|' is supported between commands, found [%c]", s, s[parser.Position])
		}
		parser.Position++
		s = s[parser.Position:]
	}

	return args, nil
}
