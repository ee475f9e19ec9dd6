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

// RunID is the 8-byte value that correlates one matching round's frames.
type RunID [8]byte

// Identifier is a 17-byte PEV/EVSE identifier field, zero-padded.
type Identifier [17]byte

func putMAC(b []byte, mac net.HardwareAddr) {
	copy(b, padMAC(mac))
}

func getMAC(b []byte) net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), b[:6]...))
}

// SetKeyReq is CM_SET_KEY.REQ: push a new NMK/NID pair to the HomePlug PLC
// modem so it starts using it for the AVLN.
type SetKeyReq struct {
	KeyType   byte
	MyNonce   uint32
	YourNonce uint32
	PID       byte
	PRN       uint16
	PMN       byte
	CCoCap    byte
	NID       [7]byte
	NewEKS    byte
	NewKey    [16]byte // NMK
}

// Encode packs the request into its fixed 74-byte payload.
func (m SetKeyReq) Encode() []byte {
	b := make([]byte, slacconst.SetKeyReqLen)
	b[0] = m.KeyType
	b[1] = byte(m.MyNonce >> 24)
	b[2] = byte(m.MyNonce >> 16)
	b[3] = byte(m.MyNonce >> 8)
	b[4] = byte(m.MyNonce)
	b[5] = byte(m.YourNonce >> 24)
	b[6] = byte(m.YourNonce >> 16)
	b[7] = byte(m.YourNonce >> 8)
	b[8] = byte(m.YourNonce)
	b[9] = m.PID
	b[10] = byte(m.PRN >> 8)
	b[11] = byte(m.PRN)
	b[12] = m.PMN
	b[13] = m.CCoCap
	copy(b[14:21], m.NID[:])
	b[21] = m.NewEKS
	copy(b[22:38], m.NewKey[:])
	return b
}

// SetKeyCnf is CM_SET_KEY.CNF, the modem's acknowledgement.
type SetKeyCnf struct {
	Result    byte
	MyNonce   uint32
	YourNonce uint32
	PID       byte
	PRN       uint16
	PMN       byte
	CCoCap    byte
}

// DecodeSetKeyCnf parses a CM_SET_KEY.CNF payload.
func DecodeSetKeyCnf(b []byte) (SetKeyCnf, error) {
	if len(b) < slacconst.SetKeyCnfLen {
		return SetKeyCnf{}, slac.ErrMalformedFrame
	}
	return SetKeyCnf{
		Result:    b[0],
		MyNonce:   uint32(b[1])<<24 | uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4]),
		YourNonce: uint32(b[5])<<24 | uint32(b[6])<<16 | uint32(b[7])<<8 | uint32(b[8]),
		PID:       b[9],
		PRN:       uint16(b[10])<<8 | uint16(b[11]),
		PMN:       b[12],
		CCoCap:    b[13],
	}, nil
}

// SlacParmReq is CM_SLAC_PARM.REQ, the EV's opening bid for a matching round.
type SlacParmReq struct {
	ApplicationType byte
	SecurityType    byte
	RunID           RunID
}

// DecodeSlacParmReq parses a CM_SLAC_PARM.REQ payload.
func DecodeSlacParmReq(b []byte) (SlacParmReq, error) {
	if len(b) < slacconst.SlacParmReqLen {
		return SlacParmReq{}, slac.ErrMalformedFrame
	}
	var m SlacParmReq
	m.ApplicationType = b[0]
	m.SecurityType = b[1]
	copy(m.RunID[:], b[2:10])
	return m, nil
}

// SlacParmCnf is CM_SLAC_PARM.CNF, the EVSE's reply describing the sounding
// procedure it wants to run.
type SlacParmCnf struct {
	MSoundTarget    net.HardwareAddr
	NumSounds       byte
	TimeOut         byte
	RespType        byte
	ForwardingSTA   net.HardwareAddr
	ApplicationType byte
	SecurityType    byte
	RunID           RunID
}

// Encode packs the confirm into its 25-byte payload.
func (m SlacParmCnf) Encode() []byte {
	b := make([]byte, slacconst.SlacParmCnfLen)
	putMAC(b[0:6], m.MSoundTarget)
	b[6] = m.NumSounds
	b[7] = m.TimeOut
	b[8] = m.RespType
	putMAC(b[9:15], m.ForwardingSTA)
	b[15] = m.ApplicationType
	b[16] = m.SecurityType
	copy(b[17:25], m.RunID[:])
	return b
}

// StartAttenCharInd is CM_START_ATTEN_CHAR.IND, the EVSE's instruction to
// begin the sounding sequence.
type StartAttenCharInd struct {
	ApplicationType byte
	SecurityType    byte
	NumSounds       byte
	TimeOut         byte
	RespType        byte
	ForwardingSTA   net.HardwareAddr
	RunID           RunID
}

// Encode packs the indication into its 19-byte payload.
func (m StartAttenCharInd) Encode() []byte {
	b := make([]byte, slacconst.StartAttenCharLen)
	b[0] = m.ApplicationType
	b[1] = m.SecurityType
	b[2] = m.NumSounds
	b[3] = m.TimeOut
	b[4] = m.RespType
	putMAC(b[5:11], m.ForwardingSTA)
	copy(b[11:19], m.RunID[:])
	return b
}

// DecodeStartAttenCharInd parses a CM_START_ATTEN_CHAR.IND payload.
func DecodeStartAttenCharInd(b []byte) (StartAttenCharInd, error) {
	if len(b) < slacconst.StartAttenCharLen {
		return StartAttenCharInd{}, slac.ErrMalformedFrame
	}
	var m StartAttenCharInd
	m.ApplicationType = b[0]
	m.SecurityType = b[1]
	m.NumSounds = b[2]
	m.TimeOut = b[3]
	m.RespType = b[4]
	m.ForwardingSTA = getMAC(b[5:11])
	copy(m.RunID[:], b[11:19])
	return m, nil
}

// MNBCSoundInd is CM_MNBC_SOUND.IND, one sounding pulse from the EV.
type MNBCSoundInd struct {
	ApplicationType byte
	SecurityType    byte
	SenderID        Identifier
	Cnt             byte
	RunID           RunID
	Rsvd            [8]byte
	RND             [16]byte
}

// DecodeMNBCSoundInd parses a CM_MNBC_SOUND.IND payload.
func DecodeMNBCSoundInd(b []byte) (MNBCSoundInd, error) {
	if len(b) < slacconst.MNBCSoundLen {
		return MNBCSoundInd{}, slac.ErrMalformedFrame
	}
	var m MNBCSoundInd
	m.ApplicationType = b[0]
	m.SecurityType = b[1]
	copy(m.SenderID[:], b[2:19])
	m.Cnt = b[19]
	copy(m.RunID[:], b[20:28])
	copy(m.Rsvd[:], b[28:36])
	copy(m.RND[:], b[36:52])
	return m, nil
}

// AttenProfileInd is CM_ATTEN_PROFILE.IND, the per-sound attenuation
// profile reported against each AVLN group.
type AttenProfileInd struct {
	PEVMAC    net.HardwareAddr
	NumGroups byte
	AAG       []byte // len == NumGroups, <= slacconst.SoundGroups
}

// DecodeAttenProfileInd parses a CM_ATTEN_PROFILE.IND payload. Its wire
// length depends on NumGroups, so only the 8-byte fixed prefix is
// required; AAG is sliced to whatever remains.
func DecodeAttenProfileInd(b []byte) (AttenProfileInd, error) {
	const prefixLen = 8 // pev_mac(6) + num_groups(1) + rsvd(1)
	if len(b) < prefixLen {
		return AttenProfileInd{}, slac.ErrMalformedFrame
	}
	m := AttenProfileInd{
		PEVMAC:    getMAC(b[0:6]),
		NumGroups: b[6],
	}
	// b[7] is reserved.
	n := int(m.NumGroups)
	if n > slacconst.SoundGroups {
		return AttenProfileInd{}, slac.ErrMalformedFrame
	}
	if len(b) < prefixLen+n {
		return AttenProfileInd{}, slac.ErrMalformedFrame
	}
	m.AAG = append([]byte(nil), b[prefixLen:prefixLen+n]...)
	return m, nil
}

// AttenCharInd is CM_ATTEN_CHAR.IND, the EVSE's aggregated attenuation
// characterization sent back to the EV.
type AttenCharInd struct {
	ApplicationType byte
	SecurityType    byte
	SourceAddress   net.HardwareAddr
	RunID           RunID
	SourceID        Identifier
	RespID          Identifier
	NumSounds       byte
	NumGroups       byte
	AAG             [slacconst.SoundGroups]byte
}

// Encode packs the indication into its 110-byte payload.
func (m AttenCharInd) Encode() []byte {
	b := make([]byte, slacconst.AttenCharIndLen)
	b[0] = m.ApplicationType
	b[1] = m.SecurityType
	putMAC(b[2:8], m.SourceAddress)
	copy(b[8:16], m.RunID[:])
	copy(b[16:33], m.SourceID[:])
	copy(b[33:50], m.RespID[:])
	b[50] = m.NumSounds
	b[51] = m.NumGroups
	copy(b[52:110], m.AAG[:])
	return b
}

// AttenCharRsp is CM_ATTEN_CHAR.RSP, the EV's acknowledgement of the
// characterization.
type AttenCharRsp struct {
	ApplicationType byte
	SecurityType    byte
	SourceAddress   net.HardwareAddr
	RunID           RunID
	SourceID        Identifier
	RespID          Identifier
	Result          byte
}

// DecodeAttenCharRsp parses a CM_ATTEN_CHAR.RSP payload.
func DecodeAttenCharRsp(b []byte) (AttenCharRsp, error) {
	if len(b) < slacconst.AttenCharRspLen {
		return AttenCharRsp{}, slac.ErrMalformedFrame
	}
	var m AttenCharRsp
	m.ApplicationType = b[0]
	m.SecurityType = b[1]
	m.SourceAddress = getMAC(b[2:8])
	copy(m.RunID[:], b[8:16])
	copy(m.SourceID[:], b[16:33])
	copy(m.RespID[:], b[33:50])
	m.Result = b[50]
	return m, nil
}

// SlacMatchReq is CM_SLAC_MATCH.REQ, the EV naming who it wants to join.
type SlacMatchReq struct {
	ApplicationType byte
	SecurityType    byte
	MVFLength       uint16
	PEVID           Identifier
	PEVMAC          net.HardwareAddr
	EVSEID          Identifier
	EVSEMAC         net.HardwareAddr
	RunID           RunID
	Rsvd            [8]byte
}

// DecodeSlacMatchReq parses a CM_SLAC_MATCH.REQ payload.
func DecodeSlacMatchReq(b []byte) (SlacMatchReq, error) {
	if len(b) < slacconst.SlacMatchReqLen {
		return SlacMatchReq{}, slac.ErrMalformedFrame
	}
	var m SlacMatchReq
	m.ApplicationType = b[0]
	m.SecurityType = b[1]
	m.MVFLength = uint16(b[2])<<8 | uint16(b[3])
	copy(m.PEVID[:], b[4:21])
	m.PEVMAC = getMAC(b[21:27])
	copy(m.EVSEID[:], b[27:44])
	m.EVSEMAC = getMAC(b[44:50])
	copy(m.RunID[:], b[50:58])
	copy(m.Rsvd[:], b[58:66])
	return m, nil
}

// SlacMatchCnf is CM_SLAC_MATCH.CNF, the EVSE's grant carrying the NMK/NID
// the EV must now join with.
type SlacMatchCnf struct {
	ApplicationType byte
	SecurityType    byte
	MVFLength       uint16
	PEVID           Identifier
	PEVMAC          net.HardwareAddr
	EVSEID          Identifier
	EVSEMAC         net.HardwareAddr
	RunID           RunID
	Rsvd1           [8]byte
	NID             [7]byte
	Rsvd2           byte
	NMK             [16]byte
}

// Encode packs the confirm into its 90-byte payload.
func (m SlacMatchCnf) Encode() []byte {
	b := make([]byte, slacconst.SlacMatchCnfLen)
	b[0] = m.ApplicationType
	b[1] = m.SecurityType
	b[2] = byte(m.MVFLength >> 8)
	b[3] = byte(m.MVFLength)
	copy(b[4:21], m.PEVID[:])
	putMAC(b[21:27], m.PEVMAC)
	copy(b[27:44], m.EVSEID[:])
	putMAC(b[44:50], m.EVSEMAC)
	copy(b[50:58], m.RunID[:])
	copy(b[58:66], m.Rsvd1[:])
	copy(b[66:73], m.NID[:])
	b[73] = m.Rsvd2
	copy(b[74:90], m.NMK[:])
	return b
}

// LinkStatusReq is the vendor LINK_STATUS.REQ keepalive probe.
type LinkStatusReq struct{}

// Encode packs the 3-byte vendor OUI payload.
func (LinkStatusReq) Encode() []byte {
	return encodeVendorOUI()
}

// LinkStatusCnf is the vendor LINK_STATUS.CNF keepalive reply.
type LinkStatusCnf struct{}

// DecodeLinkStatusCnf validates the vendor OUI payload of a LINK_STATUS.CNF.
func DecodeLinkStatusCnf(b []byte) (LinkStatusCnf, error) {
	if len(b) < slacconst.LinkStatusCnfLen {
		return LinkStatusCnf{}, slac.ErrMalformedFrame
	}
	oui := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	if oui != slacconst.VendorMMECode {
		return LinkStatusCnf{}, slac.ErrProtocolMismatch
	}
	return LinkStatusCnf{}, nil
}

func encodeVendorOUI() []byte {
	b := make([]byte, 3)
	b[0] = byte(slacconst.VendorMMECode >> 16)
	b[1] = byte(slacconst.VendorMMECode >> 8)
	b[2] = byte(slacconst.VendorMMECode & 0xFF)
	return b
}
