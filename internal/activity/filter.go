// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity

import (
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"

	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// Filter passes events which match its patterns and kinds to another Sink.
type Filter struct {
	// Next receives matching events.
	Next dcwatch.Sink

	// Ops selects event kinds. Empty selects all.
	Ops map[dcwatch.Op]bool

	// Include holds doublestar patterns. Empty matches all paths.
	Include []string

	// Exclude holds doublestar patterns which invalidate an Include match.
	Exclude []string
}

// NewFilter validates the patterns.
func NewFilter(next dcwatch.Sink, include, exclude []string, ops ...dcwatch.Op) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if p == "" {
			return nil, errors.New("empty pattern")
		}
		// a pattern matched against itself visits every component, exposing syntax errors
		if _, err := doublestar.Match(p, p); err != nil {
			return nil, errors.Wrapf(err, "invalid pattern [%s]", p)
		}
	}

	f := &Filter{Next: next, Include: include, Exclude: exclude, Ops: map[dcwatch.Op]bool{}}
	for _, op := range ops {
		f.Ops[op] = true
	}
	return f, nil
}

// Match returns true if the event should pass.
//
// Either side of a move may match. Directory paths are matched without their trailing separator.
func (f *Filter) Match(e dcwatch.Event) bool {
	if len(f.Ops) > 0 && !f.Ops[e.Op] {
		return false
	}

	if f.matchPath(e.Path) {
		return true
	}
	return e.Op.IsMove() && f.matchPath(e.To)
}

func (f *Filter) matchPath(p string) bool {
	if p != dcwatch.Separator {
		p = strings.TrimSuffix(p, dcwatch.Separator)
	}

	if len(f.Include) > 0 && !matchAny(f.Include, p) {
		return false
	}
	return !matchAny(f.Exclude, p)
}

func (f *Filter) OnNewFile(p string)      { f.handle(dcwatch.Event{Op: dcwatch.NewFile, Path: p}) }
func (f *Filter) OnDeletedFile(p string)  { f.handle(dcwatch.Event{Op: dcwatch.DeletedFile, Path: p}) }
func (f *Filter) OnNewDirectory(p string) { f.handle(dcwatch.Event{Op: dcwatch.NewDirectory, Path: p}) }
func (f *Filter) OnDeletedDirectory(p string) {
	f.handle(dcwatch.Event{Op: dcwatch.DeletedDirectory, Path: p})
}
func (f *Filter) OnMovedFile(from, to string) {
	f.handle(dcwatch.Event{Op: dcwatch.MovedFile, Path: from, To: to})
}
func (f *Filter) OnMovedDirectory(from, to string) {
	f.handle(dcwatch.Event{Op: dcwatch.MovedDirectory, Path: from, To: to})
}

// Close closes Next.
func (f *Filter) Close() error {
	return errors.WithStack(f.Next.Close())
}

func (f *Filter) handle(e dcwatch.Event) {
	if f.Match(e) {
		dcwatch.Deliver(f.Next, e)
	}
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		// patterns were validated by NewFilter
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

var _ dcwatch.Sink = (*Filter)(nil)
