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

// Package slac holds the error taxonomy shared by every SLAC sub-package
// (frames, session, aggregator, keyprovision, matcher, linkprobe).
package slac

import "errors"

// Sentinel errors matching the EVSE SLAC error taxonomy. Matching-state-
// machine steps compare against these with errors.Is; callers outside the
// sounding loop treat any of the first three as "reset to Unmatched".
var (
	// ErrTimeout means an expected frame did not arrive within its window.
	ErrTimeout = errors.New("slac: timeout waiting for frame")

	// ErrMalformedFrame means a frame failed to parse or was shorter than
	// its declared wire layout.
	ErrMalformedFrame = errors.New("slac: malformed frame")

	// ErrProtocolMismatch means a field violated an expectation (wrong
	// run_id, wrong resp_type, wrong mm_type). ISO 15118-3 mostly says to
	// ignore these; inside the sounding loop that means "drop and
	// continue", outside it means "reset to Unmatched".
	ErrProtocolMismatch = errors.New("slac: protocol mismatch")

	// ErrIO means the socket adapter failed to send or receive. Unlike the
	// other sentinels, this one propagates to the caller instead of being
	// absorbed into a state reset.
	ErrIO = errors.New("slac: socket I/O error")

	// ErrKeyProvisioningFailed means CM_SET_KEY.CNF did not arrive or
	// indicated failure. Non-fatal: the previous NMK/NID remain in effect.
	ErrKeyProvisioningFailed = errors.New("slac: key provisioning failed")
)
