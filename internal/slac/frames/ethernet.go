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

// Package frames implements the wire codecs for the Ethernet, HomePlug AV
// and SLAC layers: manual byte-level Encode/Decode methods, no reflection,
// mirroring the fixed-offset packing used by the rest of this module's
// protocol layer.
package frames

import (
	"net"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// EthernetHeader is the 14-byte Ethernet II header every HomePlug AV
// management message rides on.
type EthernetHeader struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType uint16
}

// Encode writes the header in wire order: dst(6) src(6) ethertype(2).
func (h EthernetHeader) Encode() []byte {
	b := make([]byte, slacconst.EthernetHeaderLen)
	copy(b[0:6], padMAC(h.DstMAC))
	copy(b[6:12], padMAC(h.SrcMAC))
	b[12] = byte(h.EtherType >> 8)
	b[13] = byte(h.EtherType)
	return b
}

// DecodeEthernetHeader reads the first 14 bytes of data. Trailing bytes
// (the HomePlug header and payload) are left for the caller.
func DecodeEthernetHeader(data []byte) (EthernetHeader, error) {
	if len(data) < slacconst.EthernetHeaderLen {
		return EthernetHeader{}, slac.ErrMalformedFrame
	}
	h := EthernetHeader{
		DstMAC:    net.HardwareAddr(append([]byte(nil), data[0:6]...)),
		SrcMAC:    net.HardwareAddr(append([]byte(nil), data[6:12]...)),
		EtherType: uint16(data[12])<<8 | uint16(data[13]),
	}
	return h, nil
}

func padMAC(mac net.HardwareAddr) []byte {
	b := make([]byte, 6)
	copy(b, mac)
	return b
}

// BroadcastMAC is the all-ones Ethernet destination, the address the EV
// sends its first CM_SLAC_PARM.REQ to. The matcher sends it as the
// M-SOUND target in CM_SLAC_PARM.CNF.
var BroadcastMAC = net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
