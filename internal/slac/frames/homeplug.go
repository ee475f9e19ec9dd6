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

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// HomePlugHeader is the 5-byte HomePlug AV management-message header:
// version, type, and a fragmentation pair this module never fragments.
type HomePlugHeader struct {
	MMV    byte
	MMType slacconst.MMType
	FMI    byte // fragmentation info: always 0 (not fragmented, first/last)
	FMSN   byte // fragmentation sequence number: always 0
}

// Encode writes the 5-byte header with MMType little-endian, matching the
// byte order HomePlug AV management messages use on the wire.
func (h HomePlugHeader) Encode() []byte {
	b := make([]byte, slacconst.HomePlugHeaderLen)
	b[0] = h.MMV
	b[1] = byte(h.MMType)
	b[2] = byte(h.MMType >> 8)
	b[3] = h.FMI
	b[4] = h.FMSN
	return b
}

// EncodeNoFrag writes the 3-byte variant (MMV + MMType only) used by the
// vendor LINK_STATUS frames, which carry no fragmentation fields.
func (h HomePlugHeader) EncodeNoFrag() []byte {
	b := make([]byte, slacconst.HomePlugHeaderNoFrg)
	b[0] = h.MMV
	b[1] = byte(h.MMType)
	b[2] = byte(h.MMType >> 8)
	return b
}

// DecodeHomePlugHeader reads a 5-byte header starting at offset.
func DecodeHomePlugHeader(data []byte, offset int) (HomePlugHeader, error) {
	if len(data) < offset+slacconst.HomePlugHeaderLen {
		return HomePlugHeader{}, slac.ErrMalformedFrame
	}
	b := data[offset:]
	return HomePlugHeader{
		MMV:    b[0],
		MMType: slacconst.MMType(b[1]) | slacconst.MMType(b[2])<<8,
		FMI:    b[3],
		FMSN:   b[4],
	}, nil
}

// DecodeHomePlugHeaderNoFrag reads the 3-byte variant starting at offset.
func DecodeHomePlugHeaderNoFrag(data []byte, offset int) (HomePlugHeader, error) {
	if len(data) < offset+slacconst.HomePlugHeaderNoFrg {
		return HomePlugHeader{}, slac.ErrMalformedFrame
	}
	b := data[offset:]
	return HomePlugHeader{
		MMV:    b[0],
		MMType: slacconst.MMType(b[1]) | slacconst.MMType(b[2])<<8,
	}, nil
}

// BuildFrame assembles a full Ethernet frame carrying a HomePlug AV
// management message: 14-byte Ethernet header, 5-byte HomePlug header,
// then payload. The result is zero-padded to the minimum Ethernet frame
// size when shorter.
func BuildFrame(dst, src net.HardwareAddr, mmType slacconst.MMType, payload []byte) []byte {
	eth := EthernetHeader{DstMAC: dst, SrcMAC: src, EtherType: slacconst.EtherTypeHPAV}
	hp := HomePlugHeader{MMV: slacconst.HomePlugMMV, MMType: mmType}
	out := append(eth.Encode(), hp.Encode()...)
	out = append(out, payload...)
	return padFrame(out)
}

// BuildNoFragFrame is BuildFrame using the 3-byte HomePlug header variant,
// for the vendor LINK_STATUS messages.
func BuildNoFragFrame(dst, src net.HardwareAddr, mmType slacconst.MMType, payload []byte) []byte {
	eth := EthernetHeader{DstMAC: dst, SrcMAC: src, EtherType: slacconst.EtherTypeHPAV}
	hp := HomePlugHeader{MMV: slacconst.HomePlugMMV, MMType: mmType}
	out := append(eth.Encode(), hp.EncodeNoFrag()...)
	out = append(out, payload...)
	return padFrame(out)
}

func padFrame(b []byte) []byte {
	if len(b) >= slacconst.MinEthernetFrame {
		return b
	}
	padded := make([]byte, slacconst.MinEthernetFrame)
	copy(padded, b)
	return padded
}

// ParseHeader decodes the Ethernet and HomePlug headers from a received
// frame and returns them along with the byte offset its payload starts at.
func ParseHeader(data []byte) (eth EthernetHeader, hp HomePlugHeader, payloadOffset int, err error) {
	eth, err = DecodeEthernetHeader(data)
	if err != nil {
		return EthernetHeader{}, HomePlugHeader{}, 0, err
	}
	hp, err = DecodeHomePlugHeader(data, slacconst.EthernetHeaderLen)
	if err != nil {
		return EthernetHeader{}, HomePlugHeader{}, 0, err
	}
	return eth, hp, slacconst.EthernetHeaderLen + slacconst.HomePlugHeaderLen, nil
}

// ParseNoFragHeader is ParseHeader for the 3-byte HomePlug header variant.
func ParseNoFragHeader(data []byte) (eth EthernetHeader, hp HomePlugHeader, payloadOffset int, err error) {
	eth, err = DecodeEthernetHeader(data)
	if err != nil {
		return EthernetHeader{}, HomePlugHeader{}, 0, err
	}
	hp, err = DecodeHomePlugHeaderNoFrag(data, slacconst.EthernetHeaderLen)
	if err != nil {
		return EthernetHeader{}, HomePlugHeader{}, 0, err
	}
	return eth, hp, slacconst.EthernetHeaderLen + slacconst.HomePlugHeaderNoFrg, nil
}
