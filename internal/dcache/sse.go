// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcache

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultEventType is the type of messages without an "event" field.
const DefaultEventType = "message"

// Message is one dispatched text/event-stream message.
type Message struct {
	ID    string
	Event string

	// Data holds the joined "data" lines, separated by newlines.
	Data string

	// Retry is the reconnection time in milliseconds, or zero if absent.
	Retry int
}

// Decoder reads text/event-stream messages.
type Decoder struct {
	r *bufio.Reader

	// lastID persists across messages.
	lastID string
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next message which carries data.
//
// Comments, unknown fields, and blank-data messages are skipped. A partial message at
// the end of input is discarded and io.EOF returned.
func (d *Decoder) Decode() (Message, error) {
	var (
		msg     Message
		data    []string
		hasData bool
	)

	for {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return Message{}, io.EOF
			}
			return Message{}, errors.Wrap(err, "failed to read event stream")
		}
		atEOF := err == io.EOF

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if atEOF {
				return Message{}, io.EOF
			}
			if !hasData {
				msg = Message{}
				continue
			}
			msg.ID = d.lastID
			msg.Data = strings.Join(data, "\n")
			if msg.Event == "" {
				msg.Event = DefaultEventType
			}
			return msg, nil
		}

		if !strings.HasPrefix(line, ":") {
			field, value := line, ""
			if i := strings.IndexByte(line, ':'); i >= 0 {
				field, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
			}

			switch field {
			case "event":
				msg.Event = value
			case "data":
				data = append(data, value)
				hasData = true
			case "id":
				if !strings.ContainsRune(value, 0) {
					d.lastID = value
				}
			case "retry":
				if n, convErr := strconv.Atoi(value); convErr == nil {
					msg.Retry = n
				}
			}
		}

		if atEOF {
			return Message{}, io.EOF
		}
	}
}
