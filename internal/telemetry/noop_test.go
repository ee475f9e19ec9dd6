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

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopSinkNeverBlocksOrErrors(t *testing.T) {
	sink := NewNoop()
	for i := 0; i < 10; i++ {
		err := sink.Publish(context.Background(), Event{Counter: NextCounter(), Type: EventMatched, Iface: "eth0"})
		require.NoError(t, err)
	}
	require.NoError(t, sink.Close())
}

func TestNextCounterMonotonic(t *testing.T) {
	a := NextCounter()
	b := NextCounter()
	require.Greater(t, b, a)
}
