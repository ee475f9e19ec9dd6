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

//go:build linux

package netio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// linuxOpener opens AF_PACKET/SOCK_RAW sockets bound to an interface and
// the HomePlug AV EtherType.
type linuxOpener struct{}

// NewLinuxOpener returns the reference Opener for this module: a raw
// AF_PACKET socket, no libpcap/cgo involved.
func NewLinuxOpener() Opener { return linuxOpener{} }

func (linuxOpener) Open(iface string) (Adapter, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("netio: resolve interface %q: %w", iface, err)
	}
	proto := htons(slacconst.EtherTypeHPAV)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return nil, fmt.Errorf("netio: open raw socket on %q: %w", iface, err)
	}
	addr := unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netio: bind to %q: %w", iface, err)
	}
	return &linuxAdapter{fd: fd, ifindex: ifi.Index}, nil
}

func (linuxOpener) HardwareAddr(iface string) (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("netio: resolve interface %q: %w", iface, err)
	}
	return ifi.HardwareAddr, nil
}

// linuxAdapter is one bound AF_PACKET socket. Not safe for concurrent use
// from more than one goroutine, matching the single-goroutine-per-session
// ownership the matcher assumes.
type linuxAdapter struct {
	fd      int
	ifindex int
}

func (a *linuxAdapter) Close() error {
	return unix.Close(a.fd)
}

func (a *linuxAdapter) SendEth(frame []byte) (int, error) {
	if len(frame) < 6 {
		return 0, slac.ErrMalformedFrame
	}
	addr := unix.SockaddrLinklayer{
		Ifindex: a.ifindex,
		Halen:   6,
	}
	copy(addr.Addr[:6], frame[0:6])
	if err := unix.Sendto(a.fd, frame, 0, &addr); err != nil {
		return 0, fmt.Errorf("%w: sendto: %v", slac.ErrIO, err)
	}
	return len(frame), nil
}

// ReadEth blocks until a frame arrives, the context is cancelled, or its
// deadline (translated to SO_RCVTIMEO so the blocking recvfrom itself
// doesn't wedge the socket forever) expires.
func (a *linuxAdapter) ReadEth(ctx context.Context, minSize int) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		remaining := time.Until(dl)
		if remaining < 0 {
			remaining = 0
		}
		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		_ = unix.SetsockoptTimeval(a.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	}

	type result struct {
		buf []byte
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		buf := make([]byte, 2048)
		n, _, err := unix.Recvfrom(a.fd, buf, 0)
		switch {
		case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK):
			resultCh <- result{nil, slac.ErrTimeout}
		case err != nil:
			resultCh <- result{nil, fmt.Errorf("%w: recvfrom: %v", slac.ErrIO, err)}
		default:
			resultCh <- result{buf[:n], nil}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, slac.ErrTimeout
	case r := <-resultCh:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.buf) < minSize {
			return nil, slac.ErrMalformedFrame
		}
		return r.buf, nil
	}
}

func (a *linuxAdapter) SendRecvEth(ctx context.Context, frame []byte, minSize int) ([]byte, error) {
	if _, err := a.SendEth(frame); err != nil {
		return nil, err
	}
	return a.ReadEth(ctx, minSize)
}

// htons converts a uint16 from host to network byte order, needed because
// AF_PACKET's protocol field is expected in network order regardless of
// host endianness.
func htons(v uint16) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return binary.LittleEndian.Uint16(b)
}
