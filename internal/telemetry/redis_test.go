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

package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/opencharge/evse-slac/internal/metrics"
)

// newTestRedisSink builds a redisSink with its background loop not started,
// so Publish's full-buffer drop path can be exercised deterministically.
func newTestRedisSink(t *testing.T, m *metrics.Metrics, bufSize int) *redisSink {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	return &redisSink{
		client:  client,
		metrics: m,
		buf:     make(chan Event, bufSize),
		done:    make(chan struct{}),
	}
}

func TestRedisSinkPublishDoesNotBlockWhenBufferHasRoom(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := newTestRedisSink(t, m, 1)

	err := s.Publish(context.Background(), Event{Counter: 1, Type: EventMatched, Iface: "eth0"})
	require.NoError(t, err)
	require.Equal(t, float64(0), testutil.ToFloat64(m.TelemetryDropped))
}

func TestRedisSinkPublishDropsWhenBufferFullAndCountsMetric(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := newTestRedisSink(t, m, 1)

	require.NoError(t, s.Publish(context.Background(), Event{Counter: 1, Iface: "eth0"}))
	// Buffer already holds one event and nothing is draining it: this one
	// must be dropped rather than block the caller.
	require.NoError(t, s.Publish(context.Background(), Event{Counter: 2, Iface: "eth0"}))

	require.Equal(t, float64(1), testutil.ToFloat64(m.TelemetryDropped))
}

func TestRedisSinkCloseIsIdempotent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := newTestRedisSink(t, m, 4)
	go s.loop()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
