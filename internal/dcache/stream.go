// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcache

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	cage_zap "github.com/codeactual/dcwatch/internal/cage/log/zap"
	"github.com/codeactual/dcwatch/internal/dcwatch"
)

// EventTypeInotify is the SSE event type of inotify notifications.
const EventTypeInotify = "inotify"

// inotifyData is the JSON payload of an inotify message.
type inotifyData struct {
	Subscription string `json:"subscription"`
	Event        struct {
		Name   *string  `json:"name"`
		Mask   []string `json:"mask"`
		Cookie *int     `json:"cookie"`
	} `json:"event"`
}

// Stream converts a channel's event stream into raw notifications.
type Stream struct {
	body io.ReadCloser
	dec  *Decoder
	log  *zap.Logger

	closeOnce sync.Once
}

func newStream(log *zap.Logger, body io.ReadCloser) *Stream {
	return &Stream{body: body, dec: NewDecoder(body), log: log}
}

// NewStream returns a Stream which decodes r. It is exported for replaying captured streams.
func NewStream(log *zap.Logger, r io.Reader) *Stream {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = ioutil.NopCloser(r)
	}
	log = cage_zap.OrNop(log)
	return newStream(log, rc)
}

// Next returns the next inotify notification.
//
// Messages of other types, and inotify messages which cannot be decoded, are logged
// and skipped. io.EOF is returned when the server ends the stream.
func (s *Stream) Next(ctx context.Context) (dcwatch.RawNotification, error) {
	for {
		if err := ctx.Err(); err != nil {
			return dcwatch.RawNotification{}, err
		}

		msg, err := s.dec.Decode()
		if err != nil {
			if err == io.EOF {
				return dcwatch.RawNotification{}, io.EOF
			}
			return dcwatch.RawNotification{}, errors.WithStack(err)
		}

		if msg.Event != EventTypeInotify {
			s.log.Debug(
				"skipped event",
				cage_zap.Tag("dcache"),
				zap.String("type", msg.Event),
				zap.String("id", msg.ID),
				zap.String("data", msg.Data),
			)
			continue
		}

		n, err := ParseNotification([]byte(msg.Data))
		if err != nil {
			s.log.Warn(
				"skipped undecodable notification",
				cage_zap.Tag("dcache"),
				zap.Error(err),
				zap.String("id", msg.ID),
				zap.String("data", msg.Data),
			)
			continue
		}

		return n, nil
	}
}

// Close ends the connection. It unblocks a pending Next.
func (s *Stream) Close() (err error) {
	s.closeOnce.Do(func() {
		err = errors.Wrap(s.body.Close(), "failed to close event stream")
	})
	return err
}

// ParseNotification decodes the JSON payload of one inotify message.
func ParseNotification(data []byte) (dcwatch.RawNotification, error) {
	var d inotifyData
	if err := json.Unmarshal(data, &d); err != nil {
		return dcwatch.RawNotification{}, errors.Wrapf(dcwatch.ErrMalformedNotification, "invalid JSON: %s", err)
	}
	if d.Subscription == "" {
		return dcwatch.RawNotification{}, errors.Wrap(dcwatch.ErrMalformedNotification, "no subscription")
	}

	n := dcwatch.RawNotification{
		Watch:  dcwatch.WatchID(d.Subscription),
		Mask:   dcwatch.ParseMask(d.Event.Mask),
		Cookie: d.Event.Cookie,
	}
	if d.Event.Name != nil {
		n.Name = *d.Event.Name
		n.HasName = true
	}
	return n, nil
}

var _ dcwatch.Source = (*Stream)(nil)
