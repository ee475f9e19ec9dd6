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

// Package aggregator implements the sounding loop: it receives the
// interleaved MNBC_SOUND.IND / ATTEN_PROFILE.IND frames the EV emits
// during one matching round and reduces them to a per-group average
// attenuation.
package aggregator

import (
	"bytes"
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// Result is the outcome of one sounding loop: how many sounds were
// aggregated and the averaged attenuation per group.
type Result struct {
	NumTotalSounds int
	NumGroups      byte
	AAG            [slacconst.SoundGroups]uint32
}

// Run drives the sounding loop for up to window, alternating the expected
// frame type between MNBC_SOUND.IND and ATTEN_PROFILE.IND. A per-frame read
// that times out while window time remains is treated as a missed frame,
// not a loop abort. The loop ends on window expiry, on ctx cancellation, or
// once sess.NumExpectedSounds sounds have been aggregated (when it is set).
func Run(ctx context.Context, adapter netio.Adapter, sess *session.Session, window time.Duration) (Result, error) {
	deadline := time.Now().Add(window)
	expected := slacconst.CMMNBCSound | slacconst.MMTypeIND

	var sums [slacconst.SoundGroups]int64
	var counts [slacconst.SoundGroups]int
	var numGroups byte
	numTotalSounds := 0

	for time.Now().Before(deadline) {
		if sess.NumExpectedSounds != session.UnsetExpectedSounds && numTotalSounds >= sess.NumExpectedSounds {
			break
		}

		remaining := time.Until(deadline)
		backstop := slacconst.SoundFrameBackstop
		if remaining < backstop {
			backstop = remaining
		}
		readCtx, cancel := context.WithTimeout(ctx, backstop)
		frame, err := adapter.ReadEth(readCtx, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			// Missed frame: window may still have time left, keep looping
			// with the same expectation.
			continue
		}

		eth, hp, payloadOffset, err := frames.ParseHeader(frame)
		if err != nil || eth.EtherType != slacconst.EtherTypeHPAV || hp.MMV != slacconst.HomePlugMMV {
			continue
		}
		payload := frame[payloadOffset:]

		switch hp.MMType {
		case slacconst.CMMNBCSound | slacconst.MMTypeIND:
			if expected != hp.MMType {
				klog.V(4).Infof("aggregator: out-of-order mnbc_sound.ind, keeping expectation")
			}
			ind, err := frames.DecodeMNBCSoundInd(payload)
			if err != nil || !bytes.Equal(ind.RunID[:], sess.RunID[:]) {
				continue
			}
			expected = slacconst.CMAttenProfile | slacconst.MMTypeIND

		case slacconst.CMAttenProfile | slacconst.MMTypeIND:
			if expected != hp.MMType {
				klog.V(4).Infof("aggregator: out-of-order atten_profile.ind, keeping expectation")
			}
			ind, err := frames.DecodeAttenProfileInd(payload)
			if err != nil {
				continue
			}
			if sess.PEVMAC != nil && ind.PEVMAC.String() != sess.PEVMAC.String() {
				continue
			}
			if numGroups == 0 {
				numGroups = ind.NumGroups
			}
			for i := 0; i < len(ind.AAG) && i < slacconst.SoundGroups; i++ {
				sums[i] += int64(ind.AAG[i])
				counts[i]++
			}
			numTotalSounds++
			expected = slacconst.CMMNBCSound | slacconst.MMTypeIND

		default:
			// Unrelated MME during the sounding window: ignore and keep
			// the previous expectation.
			continue
		}
	}

	var res Result
	res.NumTotalSounds = numTotalSounds
	res.NumGroups = numGroups
	for i := 0; i < slacconst.SoundGroups; i++ {
		res.AAG[i] = bankersAverage(sums[i], counts[i])
	}

	sess.NumTotalSounds = numTotalSounds
	sess.NumGroups = numGroups
	sess.AAG = res.AAG

	if numTotalSounds == 0 {
		return res, slac.ErrTimeout
	}
	return res, nil
}

// bankersAverage divides sum by n with round-half-to-even, the same tie
// rule Python's statistics module (and this module's origin) uses for
// attenuation averaging. Returns 0 for n == 0.
func bankersAverage(sum int64, n int) uint32 {
	if n == 0 {
		return 0
	}
	q := sum / int64(n)
	r := sum % int64(n)
	twice := r * 2
	switch {
	case twice < int64(n):
		// round down, nothing to do
	case twice > int64(n):
		q++
	default:
		// exact tie: round to even
		if q%2 != 0 {
			q++
		}
	}
	return uint32(q)
}
