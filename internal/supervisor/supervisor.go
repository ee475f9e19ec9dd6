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

// Package supervisor owns the outer retry loop: one matching task per
// interface, a concurrent registry of running sessions, and restart on
// link loss.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/metrics"
	"github.com/opencharge/evse-slac/internal/slac/keyprovision"
	"github.com/opencharge/evse-slac/internal/slac/linkprobe"
	"github.com/opencharge/evse-slac/internal/slac/matcher"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/telemetry"
)

// entry is one registered interface's running state.
type entry struct {
	session *session.Session
	adapter netio.Adapter
	cancel  context.CancelFunc
	done    chan struct{}
}

// Supervisor runs and restarts one matching loop per registered interface.
type Supervisor struct {
	Opener    netio.Opener
	EVSEID    string
	PLCMAC    func(iface string) (string, error)
	Telemetry telemetry.Sink
	Metrics   *metrics.Metrics

	// InitTimeout bounds each matching round's wait for SLAC_PARM.REQ; zero
	// means matcher.Matcher's own default.
	InitTimeout time.Duration

	registry *xsync.Map[string, *entry]
}

// New constructs a Supervisor. plcMACFor resolves each interface's local
// PLC modem MAC (fixed per deployment, read from config).
func New(opener netio.Opener, evseID string, plcMACFor func(iface string) (string, error), m *metrics.Metrics, sink telemetry.Sink) *Supervisor {
	return &Supervisor{
		Opener:    opener,
		EVSEID:    evseID,
		PLCMAC:    plcMACFor,
		Metrics:   m,
		Telemetry: sink,
		registry:  xsync.NewMap[string, *entry](),
	}
}

// Register starts the matching/link-probe loop for iface. Calling Register
// twice on the same interface is a no-op on the second call.
func (s *Supervisor) Register(parent context.Context, iface string) error {
	if _, ok := s.registry.Load(iface); ok {
		return nil
	}

	evseMAC, err := s.Opener.HardwareAddr(iface)
	if err != nil {
		return fmt.Errorf("supervisor: resolve hardware addr for %q: %w", iface, err)
	}
	plcMACStr, err := s.PLCMAC(iface)
	if err != nil {
		return fmt.Errorf("supervisor: resolve plc mac for %q: %w", iface, err)
	}
	plcMAC, err := net.ParseMAC(plcMACStr)
	if err != nil {
		return fmt.Errorf("supervisor: parse plc mac for %q: %w", iface, err)
	}

	adapter, err := s.Opener.Open(iface)
	if err != nil {
		return fmt.Errorf("supervisor: open adapter for %q: %w", iface, err)
	}

	sess := session.New(evseMAC, plcMAC, s.EVSEID)
	ctx, cancel := context.WithCancel(parent)
	e := &entry{session: sess, adapter: adapter, cancel: cancel, done: make(chan struct{})}
	s.registry.Store(iface, e)

	go s.run(ctx, iface, e)
	return nil
}

// run is the outer retry loop for one interface: match, probe link while
// matched, rekey and restart on link loss, repeat until ctx is cancelled.
func (s *Supervisor) run(ctx context.Context, iface string, e *entry) {
	defer close(e.done)
	defer func() {
		if err := e.adapter.Close(); err != nil {
			klog.Warningf("supervisor[%s]: close adapter: %v", iface, err)
		}
	}()

	for ctx.Err() == nil {
		if e.session.NMK == ([16]byte{}) {
			if err := keyprovision.SetKey(ctx, e.adapter, e.session); err != nil {
				klog.Warningf("supervisor[%s]: initial key provisioning: %v", iface, err)
			}
			if ctx.Err() != nil {
				return
			}
		}

		m := &matcher.Matcher{Iface: iface, Adapter: e.adapter, Session: e.session, Telemetry: s.Telemetry, Metrics: s.Metrics, InitTimeout: s.InitTimeout}
		if err := m.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			klog.V(2).Infof("supervisor[%s]: matching round ended: %v", iface, err)
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ActiveSessions.Inc()
		}
		probeErr := linkprobe.Probe(ctx, e.adapter, e.session, s.Metrics, s.Telemetry)
		if s.Metrics != nil {
			s.Metrics.ActiveSessions.Dec()
		}
		if ctx.Err() != nil {
			e.session.Reset()
			return
		}
		if probeErr != nil {
			s.leaveLogicalNetwork(ctx, iface, e)
		}
	}
}

func (s *Supervisor) leaveLogicalNetwork(ctx context.Context, iface string, e *entry) {
	if err := keyprovision.SetKey(ctx, e.adapter, e.session); err != nil {
		klog.Warningf("supervisor[%s]: leave_logical_network rekey: %v", iface, err)
	}
	e.session.Reset()
}

// Restart cancels and re-registers iface, forcing a fresh matching round.
// Models external triggers this module does not itself observe (pilot
// signal drop, a newly connected EV).
func (s *Supervisor) Restart(parent context.Context, iface string) error {
	s.Stop(iface)
	return s.Register(parent, iface)
}

// Stop cancels iface's running loop, waits for it to exit (closing the
// adapter exactly once), and removes it from the registry.
func (s *Supervisor) Stop(iface string) {
	e, ok := s.registry.LoadAndDelete(iface)
	if !ok {
		return
	}
	e.cancel()
	<-e.done
}

// Len returns the number of interfaces currently registered.
func (s *Supervisor) Len() int {
	return s.registry.Size()
}
