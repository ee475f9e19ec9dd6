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

// Package linkprobe periodically checks that the local PLC modem still has
// an active powerline link after a matching round completes.
package linkprobe

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/metrics"
	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
	"github.com/opencharge/evse-slac/internal/telemetry"
)

// Probe sends LINK_STATUS.REQ to the local PLC MAC every
// slacconst.LinkProbeInterval and reports when it stops getting a valid
// LINK_STATUS.CNF back. It returns when ctx is cancelled (link remained up
// for the whole run) or when a probe fails (link down).
func Probe(ctx context.Context, adapter netio.Adapter, sess *session.Session, m *metrics.Metrics, sink telemetry.Sink) error {
	ticker := time.NewTicker(slacconst.LinkProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := once(ctx, adapter, sess); err != nil {
				klog.Warningf("linkprobe: link down: %v", err)
				if m != nil {
					m.LinkProbeFailures.Inc()
				}
				if sink != nil {
					_ = sink.Publish(ctx, telemetry.Event{
						Counter: telemetry.NextCounter(),
						Type:    telemetry.EventLinkProbe,
						Detail:  "down",
					})
				}
				return slac.ErrIO
			}
		}
	}
}

func once(ctx context.Context, adapter netio.Adapter, sess *session.Session) error {
	req := frames.LinkStatusReq{}
	out := frames.BuildNoFragFrame(sess.EVSEPLCMAC, sess.EVSEMAC, slacconst.VendorLinkStatus|slacconst.MMTypeREQ, req.Encode())

	readCtx, cancel := context.WithTimeout(ctx, slacconst.LinkProbeInterval)
	defer cancel()
	resp, err := adapter.SendRecvEth(readCtx, out, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderNoFrg+slacconst.LinkStatusCnfLen)
	if err != nil {
		return slac.ErrTimeout
	}
	_, hp, off, err := frames.ParseNoFragHeader(resp)
	if err != nil {
		return err
	}
	if hp.MMType != slacconst.VendorLinkStatus|slacconst.MMTypeCNF {
		return slac.ErrProtocolMismatch
	}
	_, err = frames.DecodeLinkStatusCnf(resp[off:])
	return err
}
