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

// Package netio defines the raw-socket collaborator interface the matching
// state machine sends and receives frames through, plus two implementations:
// a Linux AF_PACKET adapter (linux.go) and an in-memory fake for tests
// (fake.go).
package netio

import (
	"context"
	"net"
)

// Adapter sends and receives raw Ethernet frames on one interface.
type Adapter interface {
	Close() error
	SendEth(frame []byte) (int, error)
	ReadEth(ctx context.Context, minSize int) ([]byte, error)
	SendRecvEth(ctx context.Context, frame []byte, minSize int) ([]byte, error)
}

// Opener creates Adapters bound to a named interface and resolves that
// interface's hardware address.
type Opener interface {
	Open(iface string) (Adapter, error)
	HardwareAddr(iface string) (net.HardwareAddr, error)
}
