// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package activity

import (
	"fmt"
	"io"
	"sync"

	cage_time "github.com/codeactual/dcwatch/internal/cage/time"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// Print writes one line per event.
type Print struct {
	// Clock, if set, prefixes each line with cage_time.Datetime.
	Clock cage_time.Clock

	mu sync.Mutex
	w  io.Writer
}

// NewPrint returns an instance which writes to w.
func NewPrint(w io.Writer, clock cage_time.Clock) *Print {
	return &Print{w: w, Clock: clock}
}

func (p *Print) OnNewFile(path string)      { p.printf("NEW FILE %s", path) }
func (p *Print) OnDeletedFile(path string)  { p.printf("DELETED FILE %s", path) }
func (p *Print) OnNewDirectory(path string) { p.printf("NEW DIRECTORY %s", path) }
func (p *Print) OnDeletedDirectory(path string) {
	p.printf("DELETED DIRECTORY %s", path)
}
func (p *Print) OnMovedFile(from, to string) { p.printf("FILE MOVED FROM %s TO %s", from, to) }
func (p *Print) OnMovedDirectory(from, to string) {
	p.printf("DIRECTORY MOVED FROM %s TO %s", from, to)
}

func (p *Print) Close() error { return nil }

func (p *Print) printf(format string, a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Clock != nil {
		format = cage_time.Datetime(p.Clock) + " " + format
	}
	fmt.Fprintf(p.w, format+"\n", a...)
}

var _ dcwatch.Sink = (*Print)(nil)
