// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package template

import (
	"bytes"
	std_template "text/template"

	"github.com/pkg/errors"
)

// Parse compiles a template which fails on references to missing keys instead of
// expanding them to "<no value>".
func Parse(name, text string) (*std_template.Template, error) {
	t, err := std_template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template [%s]", text)
	}
	return t, nil
}

// ExecuteBuffered parses and executes the template in one step.
func ExecuteBuffered(text string, data interface{}) (*bytes.Buffer, error) {
	t, err := Parse("", text)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Execute(t, data)
}

// Execute returns the template output.
func Execute(t *std_template.Template, data interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "failed to execute template [%s]", t.Name())
	}
	return &buf, nil
}
