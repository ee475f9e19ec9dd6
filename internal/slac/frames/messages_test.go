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

package frames

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func TestEthernetHeaderRoundTrip(t *testing.T) {
	h := EthernetHeader{
		DstMAC:    mustMAC(t, "aa:bb:cc:dd:ee:ff"),
		SrcMAC:    mustMAC(t, "11:22:33:44:55:66"),
		EtherType: slacconst.EtherTypeHPAV,
	}
	b := h.Encode()
	require.Len(t, b, slacconst.EthernetHeaderLen)

	got, err := DecodeEthernetHeader(b)
	require.NoError(t, err)
	require.Equal(t, h.DstMAC.String(), got.DstMAC.String())
	require.Equal(t, h.SrcMAC.String(), got.SrcMAC.String())
	require.Equal(t, h.EtherType, got.EtherType)
}

func TestDecodeEthernetHeaderShort(t *testing.T) {
	_, err := DecodeEthernetHeader(make([]byte, 4))
	require.ErrorIs(t, err, slac.ErrMalformedFrame)
}

func TestBuildFramePadsToMinimum(t *testing.T) {
	dst := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	src := mustMAC(t, "11:22:33:44:55:66")
	frame := BuildFrame(dst, src, slacconst.CMSlacParm|slacconst.MMTypeREQ, []byte{0x00, 0x00, 1, 2, 3, 4, 5, 6, 7, 8})
	require.Len(t, frame, slacconst.MinEthernetFrame)

	eth, hp, off, err := ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, dst.String(), eth.DstMAC.String())
	require.Equal(t, slacconst.CMSlacParm|slacconst.MMTypeREQ, hp.MMType)
	require.Equal(t, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen, off)
}

func TestSlacParmReqRoundTrip(t *testing.T) {
	req := SlacParmReq{ApplicationType: 0, SecurityType: 0, RunID: RunID{1, 2, 3, 4, 5, 6, 7, 8}}
	frame := BuildFrame(broadcastMACForTest(), mustMAC(t, "11:22:33:44:55:66"), slacconst.CMSlacParm|slacconst.MMTypeREQ, encodeParmReq(req))

	_, hp, off, err := ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, slacconst.CMSlacParm|slacconst.MMTypeREQ, hp.MMType)

	got, err := DecodeSlacParmReq(frame[off:])
	require.NoError(t, err)
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("slac_parm.req round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSlacParmCnfEncodeLength(t *testing.T) {
	cnf := SlacParmCnf{
		MSoundTarget:    BroadcastMAC,
		NumSounds:       slacconst.NumSounds,
		TimeOut:         slacconst.AdvertisedTimeOut,
		RespType:        slacconst.RespType,
		ForwardingSTA:   mustMAC(t, "11:22:33:44:55:66"),
		ApplicationType: 0,
		SecurityType:    0,
		RunID:           RunID{1, 2, 3, 4, 5, 6, 7, 8},
	}
	b := cnf.Encode()
	require.Len(t, b, slacconst.SlacParmCnfLen)
	require.Equal(t, byte(slacconst.NumSounds), b[6])
	require.Equal(t, byte(slacconst.RespType), b[8])
}

func TestAttenProfileIndDecodeVariableLength(t *testing.T) {
	pev := mustMAC(t, "11:22:33:44:55:66")
	payload := make([]byte, 8+58)
	copy(payload[0:6], pev)
	payload[6] = 58
	for i := 0; i < 58; i++ {
		payload[8+i] = byte(i)
	}
	ind, err := DecodeAttenProfileInd(payload)
	require.NoError(t, err)
	require.Equal(t, byte(58), ind.NumGroups)
	require.Len(t, ind.AAG, 58)
	require.Equal(t, byte(0), ind.AAG[0])
	require.Equal(t, byte(57), ind.AAG[57])
}

func TestAttenProfileIndRejectsOversizedGroupCount(t *testing.T) {
	payload := make([]byte, 8)
	payload[6] = slacconst.SoundGroups + 1
	_, err := DecodeAttenProfileInd(payload)
	require.ErrorIs(t, err, slac.ErrMalformedFrame)
}

func TestAttenCharIndEncodeLength(t *testing.T) {
	ind := AttenCharInd{
		ApplicationType: 0,
		SecurityType:    0,
		SourceAddress:   mustMAC(t, "11:22:33:44:55:66"),
		RunID:           RunID{1, 2, 3, 4, 5, 6, 7, 8},
		NumSounds:       10,
		NumGroups:       58,
	}
	b := ind.Encode()
	require.Len(t, b, slacconst.AttenCharIndLen)
}

func TestSlacMatchCnfEncodeLength(t *testing.T) {
	cnf := SlacMatchCnf{
		ApplicationType: 0,
		SecurityType:    0,
		MVFLength:       slacconst.MVFLengthCnf,
		PEVMAC:          mustMAC(t, "11:22:33:44:55:66"),
		EVSEMAC:         mustMAC(t, "aa:bb:cc:dd:ee:ff"),
		RunID:           RunID{1, 2, 3, 4, 5, 6, 7, 8},
		NID:             [7]byte{1, 2, 3, 4, 5, 6, 0},
		NMK:             [16]byte{1},
	}
	b := cnf.Encode()
	require.Len(t, b, slacconst.SlacMatchCnfLen)
	require.Equal(t, byte(slacconst.MVFLengthCnf>>8), b[2])
	require.Equal(t, byte(slacconst.MVFLengthCnf), b[3])
}

func TestDecodeSetKeyCnfShort(t *testing.T) {
	_, err := DecodeSetKeyCnf(make([]byte, 2))
	require.ErrorIs(t, err, slac.ErrMalformedFrame)
}

func TestLinkStatusVendorOUI(t *testing.T) {
	req := LinkStatusReq{}
	b := req.Encode()
	require.Len(t, b, slacconst.LinkStatusReqLen)

	cnf, err := DecodeLinkStatusCnf(b)
	require.NoError(t, err)
	require.Equal(t, LinkStatusCnf{}, cnf)
}

func TestDecodeLinkStatusCnfWrongOUI(t *testing.T) {
	_, err := DecodeLinkStatusCnf([]byte{0, 0, 0})
	require.ErrorIs(t, err, slac.ErrProtocolMismatch)
}

// Helpers local to this test file, to avoid depending on the matcher
// package's frame-assembly helpers from a lower-level package's tests.

func broadcastMACForTest() net.HardwareAddr {
	return BroadcastMAC
}

func encodeParmReq(r SlacParmReq) []byte {
	b := make([]byte, slacconst.SlacParmReqLen)
	b[0] = r.ApplicationType
	b[1] = r.SecurityType
	copy(b[2:10], r.RunID[:])
	return b
}
