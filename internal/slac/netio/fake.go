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

package netio

import (
	"context"
	"net"
	"sync"

	"github.com/opencharge/evse-slac/internal/slac"
)

// FakeAdapter is an in-memory Adapter double for tests: Sent records every
// frame SendEth was given, Inbox is read by ReadEth/SendRecvEth.
type FakeAdapter struct {
	mu     sync.Mutex
	Sent   [][]byte
	Inbox  chan []byte
	closed bool

	// ClosedCount lets registry tests assert Close was called exactly once.
	ClosedCount int
}

// NewFakeAdapter returns a FakeAdapter with a reasonably sized inbox so
// tests can queue several frames before the matcher reads them.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{Inbox: make(chan []byte, 32)}
}

// Push queues a frame for the next ReadEth/SendRecvEth call to return.
func (f *FakeAdapter) Push(frame []byte) {
	f.Inbox <- frame
}

func (f *FakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.ClosedCount++
	return nil
}

func (f *FakeAdapter) SendEth(frame []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, slac.ErrIO
	}
	cp := append([]byte(nil), frame...)
	f.Sent = append(f.Sent, cp)
	return len(frame), nil
}

func (f *FakeAdapter) ReadEth(ctx context.Context, minSize int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, slac.ErrTimeout
	case frame, ok := <-f.Inbox:
		if !ok {
			return nil, slac.ErrIO
		}
		if len(frame) < minSize {
			return nil, slac.ErrMalformedFrame
		}
		return frame, nil
	}
}

func (f *FakeAdapter) SendRecvEth(ctx context.Context, frame []byte, minSize int) ([]byte, error) {
	if _, err := f.SendEth(frame); err != nil {
		return nil, err
	}
	return f.ReadEth(ctx, minSize)
}

// FakeOpener hands out a fixed FakeAdapter and MAC per interface name,
// set up by the test before the component under test calls Open.
type FakeOpener struct {
	mu        sync.Mutex
	Adapters  map[string]*FakeAdapter
	HWAddrs   map[string]net.HardwareAddr
	OpenCalls []string
}

// NewFakeOpener returns an empty FakeOpener; populate Adapters/HWAddrs
// before use.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{
		Adapters: make(map[string]*FakeAdapter),
		HWAddrs:  make(map[string]net.HardwareAddr),
	}
}

func (o *FakeOpener) Open(iface string) (Adapter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.OpenCalls = append(o.OpenCalls, iface)
	a, ok := o.Adapters[iface]
	if !ok {
		a = NewFakeAdapter()
		o.Adapters[iface] = a
	}
	return a, nil
}

func (o *FakeOpener) HardwareAddr(iface string) (net.HardwareAddr, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.HWAddrs[iface], nil
}
