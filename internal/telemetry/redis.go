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
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/metrics"
)

// Topic is the Redis pub/sub channel every event is published on.
const Topic = "slac:events"

// redisSink buffers events on a channel and publishes them from a single
// background goroutine, so a slow or unreachable Redis never blocks the
// matching loop. A full buffer drops the event and counts it instead of
// applying backpressure.
type redisSink struct {
	client  *redis.Client
	metrics *metrics.Metrics
	buf     chan Event
	done    chan struct{}
	once    sync.Once
}

// NewRedis dials addr (lazily — go-redis connects on first use) and starts
// the background publish loop. When tracingEnabled is set the client's
// commands are instrumented so publishes show up as spans alongside the
// matcher's own tracing.
func NewRedis(addr, password string, m *metrics.Metrics, tracingEnabled bool) Sink {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			klog.Warningf("telemetry: instrument redis tracing: %v", err)
		}
	}
	s := &redisSink{
		client:  client,
		metrics: m,
		buf:     make(chan Event, 256),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *redisSink) loop() {
	ctx := context.Background()
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.buf:
			payload, err := json.Marshal(evt)
			if err != nil {
				klog.Warningf("telemetry: marshal event: %v", err)
				continue
			}
			if err := s.client.Publish(ctx, Topic, payload).Err(); err != nil {
				klog.V(2).Infof("telemetry: publish failed, dropping: %v", err)
			}
		}
	}
}

// Publish enqueues evt for background delivery. If the buffer is full the
// event is dropped and counted rather than blocking the caller.
func (s *redisSink) Publish(_ context.Context, evt Event) error {
	select {
	case s.buf <- evt:
		return nil
	default:
		if s.metrics != nil {
			s.metrics.TelemetryDropped.Inc()
		}
		return nil
	}
}

func (s *redisSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.client.Close()
	})
	return err
}
