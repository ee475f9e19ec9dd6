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

package keyprovision

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

func TestDeriveNIDBitPattern(t *testing.T) {
	var nmk [16]byte
	for i := range nmk {
		nmk[i] = byte(i)
	}
	nid := DeriveNID(nmk)
	require.Equal(t, byte(0), nid[6]&0b11000000, "top two bits of byte 6 must be cleared")
}

func TestGenerateNMKUniqueness(t *testing.T) {
	a, err := GenerateNMK()
	require.NoError(t, err)
	b, err := GenerateNMK()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSetKeySuccess(t *testing.T) {
	adapter := netio.NewFakeAdapter()
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	plcMAC, _ := net.ParseMAC("11:22:33:44:55:66")
	sess := session.New(evseMAC, plcMAC, "EVSE-1")

	cnf := frames.SetKeyCnf{Result: 0x00}
	adapter.Push(encodeSetKeyCnf(cnf))

	// SetKey's real settle wait is slacconst.KeySettleTime (10s); cancel
	// well before that so the test stays fast while still exercising the
	// exchange-then-commit path that precedes the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := SetKey(ctx, adapter, sess)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotEqual(t, [16]byte{}, sess.NMK, "key must commit before the settle wait begins")
	require.Len(t, adapter.Sent, 1)
}

func TestSetKeyFailureKeepsPreviousKey(t *testing.T) {
	adapter := netio.NewFakeAdapter()
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	plcMAC, _ := net.ParseMAC("11:22:33:44:55:66")
	sess := session.New(evseMAC, plcMAC, "EVSE-1")
	prevNMK := [16]byte{1, 2, 3}
	sess.SetKey(prevNMK, [7]byte{4, 5, 6})

	cnf := frames.SetKeyCnf{Result: 0xFF}
	adapter.Push(encodeSetKeyCnf(cnf))

	err := SetKey(context.Background(), adapter, sess)
	require.Error(t, err)
	require.Equal(t, prevNMK, sess.NMK)
}

func encodeSetKeyCnf(c frames.SetKeyCnf) []byte {
	payload := make([]byte, slacconst.SetKeyCnfLen)
	payload[0] = c.Result
	evseMAC, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	plcMAC, _ := net.ParseMAC("11:22:33:44:55:66")
	return frames.BuildFrame(evseMAC, plcMAC, slacconst.CMSetKey|slacconst.MMTypeCNF, payload)
}
