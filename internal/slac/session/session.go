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

// Package session holds the per-interface SLAC matching record: identifiers,
// counters, and the accumulated attenuation groups for one matching run.
package session

import (
	"context"
	"net"

	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// UnsetExpectedSounds is the sentinel num_expected_sounds holds until
// START_ATTEN_CHAR.IND is processed; the sound loop treats it as unbounded.
const UnsetExpectedSounds = -1

// Session is the mutable matching-run record for one network interface.
// Exactly one goroutine (the matcher's) touches a given Session; the
// supervisor only ever reads it through the registry's snapshot accessor.
type Session struct {
	State state

	NMK [16]byte
	NID [7]byte

	EVSEMAC    net.HardwareAddr
	EVSEPLCMAC net.HardwareAddr
	PEVMAC     net.HardwareAddr

	ForwardingSTA net.HardwareAddr
	RunID         frames.RunID

	ApplicationType byte
	SecurityType    byte

	EVSEID frames.Identifier
	PEVID  frames.Identifier

	NumExpectedSounds int
	NumTotalSounds    int
	NumGroups         byte
	AAG               [slacconst.SoundGroups]uint32

	TimeOutMS int

	// Cancel holds a cancel function for this session's matching task. The
	// session never calls it on itself. The supervisor does not set it: it
	// keeps each interface's cancel function in its own registry entry.
	Cancel context.CancelFunc
}

type state = slacconst.State

// New constructs a fresh Unmatched session for one interface.
func New(evseMAC, evsePLCMAC net.HardwareAddr, evseID string) *Session {
	s := &Session{
		State:             slacconst.StateUnmatched,
		EVSEMAC:           evseMAC,
		EVSEPLCMAC:        evsePLCMAC,
		NumExpectedSounds: UnsetExpectedSounds,
	}
	copy(s.EVSEID[:], evseID)
	return s
}

// Reset clears run-scoped fields back to their defaults: counters, learned
// MACs, run_id, the attenuation accumulator, and the learned sound count.
// nmk, nid, evse_mac, evse_plc_mac and evse_id are untouched — only
// SetKey rotates those.
func (s *Session) Reset() {
	s.State = slacconst.StateUnmatched
	s.PEVMAC = nil
	s.ForwardingSTA = nil
	s.RunID = frames.RunID{}
	s.PEVID = frames.Identifier{}
	s.NumExpectedSounds = UnsetExpectedSounds
	s.NumTotalSounds = 0
	s.NumGroups = 0
	s.AAG = [slacconst.SoundGroups]uint32{}
	s.TimeOutMS = 0
}

// SetKey commits a newly provisioned NMK/NID pair, leaving every other
// field untouched.
func (s *Session) SetKey(nmk [16]byte, nid [7]byte) {
	s.NMK = nmk
	s.NID = nid
}
