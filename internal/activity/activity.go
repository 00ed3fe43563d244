// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package activity provides dcwatch.Sink implementations which react to events:
// printing them, running commands, and extracting new archives.
package activity

import (
	"os"
	"path"
	"strings"

	"github.com/fatih/structs"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// EnvPrefix is prepended to the upper-cased TemplateData field names to form the
// environment variables of executed commands, e.g. DCWATCH_PATH.
const EnvPrefix = "DCWATCH_"

// TemplateData holds the values available to command templates, e.g. "{{.Path}}".
type TemplateData struct {
	// Op is the event kind, e.g. "NewFile".
	Op string

	// Path is the affected path, or the origin of a move.
	Path string

	// To is the destination of a move.
	To string

	// Dir is the parent directory of the event's subject: To for moves and Path otherwise.
	Dir string

	// Name is the base name of the event's subject.
	Name string
}

// NewTemplateData returns the template values of an event.
func NewTemplateData(e dcwatch.Event) TemplateData {
	subject := e.Path
	if e.Op.IsMove() {
		subject = e.To
	}
	subject = dcwatch.NormalizePath(subject)

	return TemplateData{
		Op:   e.Op.String(),
		Path: e.Path,
		To:   e.To,
		Dir:  path.Dir(subject),
		Name: path.Base(subject),
	}
}

// Env returns one "DCWATCH_<FIELD>=<value>" pair per field.
func (d TemplateData) Env() (env []string) {
	for _, f := range structs.New(d).Fields() {
		env = append(env, EnvPrefix+strings.ToUpper(f.Name())+"="+f.Value().(string))
	}
	return env
}

// Getenv looks up a variable in Env and then in the current environment.
func (d TemplateData) Getenv(key string) string {
	if strings.HasPrefix(key, EnvPrefix) {
		for _, f := range structs.New(d).Fields() {
			if EnvPrefix+strings.ToUpper(f.Name()) == key {
				return f.Value().(string)
			}
		}
	}
	return os.Getenv(key)
}
