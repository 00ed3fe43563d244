// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"strings"

	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
)

// Separator is the remote namespace path separator.
const Separator = "/"

// NormalizePath strips the trailing separator unless the path is the root.
//
// Repeated trailing separators are all stripped so that normalizing is idempotent.
func NormalizePath(p string) string {
	if p == Separator || !strings.HasSuffix(p, Separator) {
		return p
	}
	if trimmed := strings.TrimRight(p, Separator); trimmed != "" {
		return trimmed
	}
	return Separator
}

// IsDescendant returns true if child is strictly below parent.
//
// Both paths are expected to be normalized.
func IsDescendant(child, parent string) bool {
	if child == parent {
		return false
	}
	if parent == Separator {
		return strings.HasPrefix(child, Separator)
	}
	return strings.HasPrefix(child, parent+Separator)
}

// JoinPath appends a listing/notification entry name to a watched directory path.
func JoinPath(dir, name string) string {
	if dir == Separator {
		return Separator + name
	}
	return dir + Separator + name
}

// DedupePaths normalizes the input paths and removes every path covered by another one.
//
// Input order is preserved except that an ancestor which replaces already-accepted
// descendants is appended after the survivors. Discards are logged and are not errors.
func DedupePaths(log *zap.Logger, paths []string) (accepted []string) {
	log = cage_zap.OrNop(log)

	for _, raw := range paths {
		candidate := NormalizePath(raw)

		var covered bool
		for _, a := range accepted {
			if a == candidate || IsDescendant(candidate, a) {
				log.Info(
					"ignoring path already covered by another root",
					cage_zap.Tag("dedupe"),
					zap.String("path", candidate),
					zap.String("root", a),
				)
				covered = true
				break
			}
		}
		if covered {
			continue
		}

		kept := accepted[:0:0]
		for _, a := range accepted {
			if IsDescendant(a, candidate) {
				log.Info(
					"ignoring path covered by a later root",
					cage_zap.Tag("dedupe"),
					zap.String("path", a),
					zap.String("root", candidate),
				)
				continue
			}
			kept = append(kept, a)
		}
		accepted = append(kept, candidate)
	}

	return accepted
}
