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

package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencharge/evse-slac/internal/slac/netio"
)

func staticPLCMAC(_ string) (string, error) {
	return "11:22:33:44:55:66", nil
}

func TestRegisterStopLeavesNoRegistryEntryAndClosesOnce(t *testing.T) {
	opener := netio.NewFakeOpener()
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	opener.HWAddrs["eth0"] = evseMAC
	adapter := netio.NewFakeAdapter()
	opener.Adapters["eth0"] = adapter

	s := New(opener, "EVSE-0001", staticPLCMAC, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Register(ctx, "eth0"))
	require.Equal(t, 1, s.Len())

	s.Stop("eth0")
	require.Equal(t, 0, s.Len())
	require.Equal(t, 1, adapter.ClosedCount)
}

func TestRegisterTwiceIsNoop(t *testing.T) {
	opener := netio.NewFakeOpener()
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	opener.HWAddrs["eth0"] = evseMAC
	opener.Adapters["eth0"] = netio.NewFakeAdapter()

	s := New(opener, "EVSE-0001", staticPLCMAC, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Register(ctx, "eth0"))
	require.NoError(t, s.Register(ctx, "eth0"))
	require.Equal(t, 1, s.Len())
	require.Len(t, opener.OpenCalls, 1)

	s.Stop("eth0")
}

func TestStopOnUnregisteredInterfaceIsNoop(t *testing.T) {
	opener := netio.NewFakeOpener()
	s := New(opener, "EVSE-0001", staticPLCMAC, nil, nil)
	require.NotPanics(t, func() { s.Stop("nonexistent") })
}

func TestCancelParentContextStopsLoop(t *testing.T) {
	opener := netio.NewFakeOpener()
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	opener.HWAddrs["eth0"] = evseMAC
	adapter := netio.NewFakeAdapter()
	opener.Adapters["eth0"] = adapter

	s := New(opener, "EVSE-0001", staticPLCMAC, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Register(ctx, "eth0"))
	cancel()

	require.Eventually(t, func() bool {
		return adapter.ClosedCount == 1
	}, time.Second, 10*time.Millisecond)
}
