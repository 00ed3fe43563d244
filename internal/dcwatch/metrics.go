// Copyright (C) 2020 The dcwatch Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dcwatch

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Notifications prometheus.Counter
	Events        *prometheus.CounterVec
	Watches       prometheus.Gauge
	MovesPaired   prometheus.Counter
	MovesExpired  prometheus.Counter
	InstallFails  *prometheus.CounterVec
	UnknownWatch  prometheus.Counter
}

// NewMetrics creates the collectors and registers them.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "notifications_total",
			Help:      "Raw notifications consumed from the stream.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "events_total",
			Help:      "Semantic events delivered to the activity.",
		}, []string{"op"}),
		Watches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dcwatch",
			Name:      "watches",
			Help:      "Currently installed watches.",
		}),
		MovesPaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "moves_paired_total",
			Help:      "Move halves paired into a move event.",
		}),
		MovesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "moves_expired_total",
			Help:      "Move halves demoted to a create or delete event.",
		}),
		InstallFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "install_failures_total",
			Help:      "Failed subscription or listing requests.",
		}, []string{"op", "kind"}),
		UnknownWatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dcwatch",
			Name:      "unknown_watch_total",
			Help:      "Notifications dropped because their watch was not installed.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Notifications, m.Events, m.Watches, m.MovesPaired, m.MovesExpired, m.InstallFails, m.UnknownWatch} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}

	return m, nil
}

func (m *Metrics) notification() {
	if m != nil {
		m.Notifications.Inc()
	}
}

func (m *Metrics) event(op Op) {
	if m != nil {
		m.Events.WithLabelValues(op.String()).Inc()
	}
}

func (m *Metrics) watches(n int) {
	if m != nil {
		m.Watches.Set(float64(n))
	}
}

func (m *Metrics) movePaired() {
	if m != nil {
		m.MovesPaired.Inc()
	}
}

func (m *Metrics) moveExpired() {
	if m != nil {
		m.MovesExpired.Inc()
	}
}

func (m *Metrics) installFailed(op string, err error) {
	if m == nil {
		return
	}
	kind := "other"
	if IsRejected(err) {
		kind = "rejected"
	} else if IsTransport(err) {
		kind = "transport"
	}
	m.InstallFails.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) unknownWatch() {
	if m != nil {
		m.UnknownWatch.Inc()
	}
}
