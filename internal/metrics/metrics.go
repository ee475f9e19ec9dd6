// SPDX-License-Identifier: AGPL-3.0-or-later
// evse-slac - SLAC/HomePlug Green PHY matching for EVSE controllers
// Copyright (C) 2026 The evse-slac Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes the Prometheus counters and gauges this module
// emits during SLAC matching.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge/histogram this module records.
type Metrics struct {
	SessionsMatched   prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	SoundsAggregated  prometheus.Counter
	SoundLoopDuration prometheus.Histogram
	LinkProbeFailures prometheus.Counter
	ActiveSessions    prometheus.Gauge
	TelemetryDropped  prometheus.Counter
}

// New builds and registers the metric set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slac_sessions_matched_total",
			Help: "Number of SLAC matching runs that reached the Matched state.",
		}),
		SessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slac_sessions_failed_total",
			Help: "Number of SLAC matching runs that did not reach Matched, by reason.",
		}, []string{"reason"}),
		SoundsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slac_sounds_aggregated_total",
			Help: "Number of sounds aggregated (ATTEN_PROFILE.IND frames summed into the attenuation average).",
		}),
		SoundLoopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slac_sound_loop_duration_seconds",
			Help:    "Wall-clock duration of the sounding loop.",
			Buckets: prometheus.DefBuckets,
		}),
		LinkProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slac_link_probe_failures_total",
			Help: "Number of LINK_STATUS probes that failed or timed out.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slac_active_sessions",
			Help: "Number of interfaces currently in the Matched state.",
		}),
		TelemetryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slac_telemetry_events_dropped_total",
			Help: "Number of telemetry events dropped because the publish channel was full.",
		}),
	}
	reg.MustRegister(
		m.SessionsMatched,
		m.SessionsFailed,
		m.SoundsAggregated,
		m.SoundLoopDuration,
		m.LinkProbeFailures,
		m.ActiveSessions,
		m.TelemetryDropped,
	)
	return m
}
