// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package template_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	cage_template "github.com/codeactual/dcwatch/internal/cage/text/template"
)

func TestExecuteBuffered(t *testing.T) {
	buf, err := cage_template.ExecuteBuffered("cp {{.Path}} {{.Dir}}", map[string]string{"Path": "/a/b", "Dir": "/a"})
	require.NoError(t, err)
	require.Exactly(t, "cp /a/b /a", buf.String())

	_, err = cage_template.ExecuteBuffered("{{.Missing}}", map[string]string{})
	require.Error(t, err)

	_, err = cage_template.ExecuteBuffered("{{.Path", nil)
	require.Error(t, err)
}
