// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dcwatch contains sub-packages which provide the CLI commands, the internal API (internal/dcwatch,
// internal/dcache, internal/localfs, internal/activity) which supports the CLI, and the internal
// "standard library" (internal/cage, internal/third_party) shared with other CodeActual tools.
package dcwatch

// expand godoc content for the base import path
import (
	_ "github.com/codeactual/dcwatch/cmd/dcwatch/plan"
	_ "github.com/codeactual/dcwatch/cmd/dcwatch/root"
	_ "github.com/codeactual/dcwatch/internal/dcwatch"
)
