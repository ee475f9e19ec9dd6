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

// Package keyprovision generates fresh NMK/NID pairs and pushes them into
// the local HomePlug PLC modem via CM_SET_KEY.REQ/CNF.
package keyprovision

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"time"

	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// nidHashRounds is the number of SHA-256 rounds the HomePlug NID-from-NMK
// derivation iterates before truncating.
const nidHashRounds = 5

// GenerateNMK returns 16 cryptographically random bytes for a new Network
// Membership Key.
func GenerateNMK() ([16]byte, error) {
	var nmk [16]byte
	if _, err := rand.Read(nmk[:]); err != nil {
		return nmk, err
	}
	return nmk, nil
}

// DeriveNID applies the HomePlug NID-from-NMK procedure: iterate a
// PBKDF1-like SHA-256 hash over nmk for nidHashRounds rounds, truncate to
// 7 bytes, then clear the top two bits of the last byte (the security-level
// field, which this module always advertises as 0).
func DeriveNID(nmk [16]byte) [7]byte {
	digest := nmk[:]
	for i := 0; i < nidHashRounds; i++ {
		sum := sha256.Sum256(digest)
		digest = sum[:]
	}
	var nid [7]byte
	copy(nid[:], digest[:7])
	nid[6] &^= 0b11000000
	return nid
}

// SetKey generates a fresh NMK/NID, pushes it to the local PLC modem over
// adapter, and on success commits it into sess and waits
// slacconst.KeySettleTime for the modem to join the new AVLN before
// returning. Failure is non-fatal: the previous key remains authoritative
// and the error is returned only for logging, never propagated as a
// matching-loop abort. Every caller that rotates the key — initial
// provisioning, leave_logical_network, and the daily rekey — goes through
// this one function, so the settle wait is never skipped.
func SetKey(ctx context.Context, adapter netio.Adapter, sess *session.Session) error {
	nmk, err := GenerateNMK()
	if err != nil {
		klog.Errorf("keyprovision: generate nmk: %v", err)
		return slac.ErrKeyProvisioningFailed
	}
	nid := DeriveNID(nmk)

	req := frames.SetKeyReq{
		KeyType: 0x01,
		PID:     0x04,
		NewEKS:  0x01,
		NID:     nid,
		NewKey:  nmk,
	}
	frame := framesBuild(sess, req)

	resp, err := adapter.SendRecvEth(ctx, frame, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen+slacconst.SetKeyCnfLen)
	if err != nil {
		klog.Errorf("keyprovision: set_key exchange: %v", err)
		return slac.ErrKeyProvisioningFailed
	}

	_, _, payloadOffset, err := frames.ParseHeader(resp)
	if err != nil {
		klog.Errorf("keyprovision: parse set_key.cnf: %v", err)
		return slac.ErrKeyProvisioningFailed
	}
	cnf, err := frames.DecodeSetKeyCnf(resp[payloadOffset:])
	if err != nil {
		klog.Errorf("keyprovision: decode set_key.cnf: %v", err)
		return slac.ErrKeyProvisioningFailed
	}
	if cnf.Result == 0xFF {
		klog.Warningf("keyprovision: set_key.cnf reported failure, keeping previous key")
		return slac.ErrKeyProvisioningFailed
	}

	sess.SetKey(nmk, nid)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(slacconst.KeySettleTime):
	}
	return nil
}

func framesBuild(sess *session.Session, req frames.SetKeyReq) []byte {
	return frames.BuildFrame(sess.EVSEPLCMAC, sess.EVSEMAC, slacconst.CMSetKey|slacconst.MMTypeREQ, req.Encode())
}
