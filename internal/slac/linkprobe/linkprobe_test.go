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

package linkprobe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

func testSessionForProbe(t *testing.T) *session.Session {
	t.Helper()
	evseMAC, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	plcMAC, err := net.ParseMAC("11:22:33:44:55:66")
	require.NoError(t, err)
	return session.New(evseMAC, plcMAC, "EVSE-1")
}

func TestProbeReturnsNilWhenContextCancelledBeforeFirstTick(t *testing.T) {
	adapter := netio.NewFakeAdapter()
	sess := testSessionForProbe(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Probe(ctx, adapter, sess, nil, nil)
	require.NoError(t, err)
}

func TestProbeReturnsErrIOWhenLinkStatusTimesOut(t *testing.T) {
	adapter := netio.NewFakeAdapter()
	sess := testSessionForProbe(t)

	// No LINK_STATUS.CNF is ever queued, so the first probe tick times out
	// and Probe must report the link as down.
	err := Probe(context.Background(), adapter, sess, nil, nil)
	require.ErrorIs(t, err, slac.ErrIO)
}

func TestProbeSucceedsOnValidLinkStatusCnf(t *testing.T) {
	adapter := netio.NewFakeAdapter()
	sess := testSessionForProbe(t)

	payload := []byte{
		byte(slacconst.VendorMMECode >> 16),
		byte(slacconst.VendorMMECode >> 8),
		byte(slacconst.VendorMMECode & 0xFF),
	}
	frame := frames.BuildNoFragFrame(sess.EVSEMAC, sess.EVSEPLCMAC, slacconst.VendorLinkStatus|slacconst.MMTypeCNF, payload)
	adapter.Push(frame)

	ctx, cancel := context.WithTimeout(context.Background(), slacconst.LinkProbeInterval+500*time.Millisecond)
	defer cancel()

	err := Probe(ctx, adapter, sess, nil, nil)
	require.NoError(t, err)
}
