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

// Package matcher orchestrates the SLAC handshake: PARM -> START_ATTEN ->
// sounding -> ATTEN_CHAR -> MATCH, enforcing the per-step timeouts and
// field validation ISO 15118-3 requires of the EVSE side.
package matcher

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/metrics"
	"github.com/opencharge/evse-slac/internal/slac"
	"github.com/opencharge/evse-slac/internal/slac/aggregator"
	"github.com/opencharge/evse-slac/internal/slac/frames"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/slac/session"
	"github.com/opencharge/evse-slac/internal/slacconst"
	"github.com/opencharge/evse-slac/internal/telemetry"
	"github.com/opencharge/evse-slac/internal/tracing"
)

// Matcher runs one matching round to completion against a single
// interface's adapter and session.
type Matcher struct {
	Iface     string
	Adapter   netio.Adapter
	Session   *session.Session
	Telemetry telemetry.Sink
	Metrics   *metrics.Metrics

	// InitTimeout bounds the initial wait for SLAC_PARM.REQ. Zero means
	// slacconst.InitTimeoutDefault.
	InitTimeout time.Duration

	seen map[slacconst.MMType]uint64
}

func (m *Matcher) initTimeout() time.Duration {
	if m.InitTimeout <= 0 {
		return slacconst.InitTimeoutDefault
	}
	return m.InitTimeout
}

// Run drives the session through PARM, START_ATTEN_CHAR, sounding,
// ATTEN_CHAR and MATCH. On any validation failure or timeout it resets the
// session to Unmatched and returns the triggering error; ErrIO propagates
// unwrapped-reset since the socket itself may be unusable.
func (m *Matcher) Run(ctx context.Context) (err error) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "matcher.Run",
		trace.WithAttributes(attribute.String("iface", m.Iface)))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	m.seen = make(map[slacconst.MMType]uint64)

	if err := m.waitParm(ctx); err != nil {
		return m.fail(err)
	}
	if err := m.waitStartAttenChar(ctx); err != nil {
		return m.fail(err)
	}

	soundCtx, cancel := context.WithTimeout(ctx, slacconst.AttenResultsWindow)
	_, err = aggregator.Run(soundCtx, m.Adapter, m.Session, slacconst.AttenResultsWindow)
	cancel()
	if m.Metrics != nil {
		m.Metrics.SoundsAggregated.Add(float64(m.Session.NumTotalSounds))
	}
	if err != nil && m.Session.NumTotalSounds == 0 {
		return m.fail(err)
	}

	if err := m.sendAttenChar(ctx); err != nil {
		return m.fail(err)
	}
	if err := m.waitMatch(ctx); err != nil {
		return m.fail(err)
	}

	m.Session.State = slacconst.StateMatched
	if m.Metrics != nil {
		m.Metrics.SessionsMatched.Inc()
	}
	m.emit(ctx, telemetry.EventMatched, "")
	return nil
}

func (m *Matcher) fail(err error) error {
	reason := "unknown"
	switch {
	case errors.Is(err, slac.ErrTimeout):
		reason = "timeout"
	case errors.Is(err, slac.ErrMalformedFrame):
		reason = "malformed_frame"
	case errors.Is(err, slac.ErrProtocolMismatch):
		reason = "protocol_mismatch"
	case errors.Is(err, slac.ErrIO):
		reason = "io"
	}
	if m.Metrics != nil {
		m.Metrics.SessionsFailed.WithLabelValues(reason).Inc()
	}
	if !errors.Is(err, slac.ErrIO) {
		m.Session.Reset()
	}
	return err
}

func (m *Matcher) waitParm(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, m.initTimeout())
	defer cancel()
	frame, err := m.Adapter.ReadEth(readCtx, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen+slacconst.SlacParmReqLen)
	if err != nil {
		return slac.ErrTimeout
	}
	eth, hp, off, err := frames.ParseHeader(frame)
	if err != nil {
		return slac.ErrMalformedFrame
	}
	if hp.MMType != slacconst.CMSlacParm|slacconst.MMTypeREQ {
		return slac.ErrProtocolMismatch
	}
	req, err := frames.DecodeSlacParmReq(frame[off:])
	if err != nil {
		return slac.ErrMalformedFrame
	}
	if m.duplicate(hp.MMType, req) {
		klog.V(4).Infof("matcher[%s]: duplicate slac_parm.req ignored", m.Iface)
		return nil
	}

	m.Session.RunID = req.RunID
	m.Session.ApplicationType = req.ApplicationType
	m.Session.SecurityType = req.SecurityType
	m.Session.PEVMAC = eth.SrcMAC
	m.Session.ForwardingSTA = eth.SrcMAC
	m.Session.State = slacconst.StateMatching
	m.emit(ctx, telemetry.EventStateChange, "matching")

	cnf := frames.SlacParmCnf{
		MSoundTarget:    frames.BroadcastMAC,
		NumSounds:       slacconst.NumSounds,
		TimeOut:         slacconst.AdvertisedTimeOut,
		RespType:        slacconst.RespType,
		ForwardingSTA:   m.Session.ForwardingSTA,
		ApplicationType: m.Session.ApplicationType,
		SecurityType:    m.Session.SecurityType,
		RunID:           m.Session.RunID,
	}
	out := frames.BuildFrame(m.Session.PEVMAC, m.Session.EVSEMAC, slacconst.CMSlacParm|slacconst.MMTypeCNF, cnf.Encode())
	if _, err := m.Adapter.SendEth(out); err != nil {
		return fmt.Errorf("%w: send slac_parm.cnf: %v", slac.ErrIO, err)
	}
	return nil
}

func (m *Matcher) waitStartAttenChar(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, slacconst.MatchSequenceTT)
	defer cancel()
	for {
		frame, err := m.Adapter.ReadEth(readCtx, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen+slacconst.StartAttenCharLen)
		if err != nil {
			return slac.ErrTimeout
		}
		_, hp, off, err := frames.ParseHeader(frame)
		if err != nil || hp.MMType != slacconst.CMStartAttenChar|slacconst.MMTypeIND {
			continue
		}
		ind, err := frames.DecodeStartAttenCharInd(frame[off:])
		if err != nil {
			continue
		}
		if !bytes.Equal(ind.RunID[:], m.Session.RunID[:]) {
			continue
		}
		if m.duplicate(hp.MMType, ind) {
			klog.V(4).Infof("matcher[%s]: duplicate start_atten_char.ind ignored", m.Iface)
			continue
		}
		m.Session.NumExpectedSounds = int(ind.NumSounds)
		m.emit(ctx, telemetry.EventStartAttenChar, "")
		return nil
	}
}

func (m *Matcher) sendAttenChar(ctx context.Context) error {
	ind := frames.AttenCharInd{
		ApplicationType: m.Session.ApplicationType,
		SecurityType:    m.Session.SecurityType,
		SourceAddress:   m.Session.EVSEMAC,
		RunID:           m.Session.RunID,
		NumSounds:       byte(m.Session.NumTotalSounds),
		NumGroups:       m.Session.NumGroups,
	}
	for i := 0; i < slacconst.SoundGroups; i++ {
		ind.AAG[i] = byte(m.Session.AAG[i])
	}
	out := frames.BuildFrame(m.Session.PEVMAC, m.Session.EVSEMAC, slacconst.CMAttenChar|slacconst.MMTypeIND, ind.Encode())

	readCtx, cancel := context.WithTimeout(ctx, slacconst.AttenCharRspTimeout)
	defer cancel()
	resp, err := m.Adapter.SendRecvEth(readCtx, out, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen+slacconst.AttenCharRspLen)
	if err != nil {
		return slac.ErrTimeout
	}
	_, hp, off, err := frames.ParseHeader(resp)
	if err != nil || hp.MMType != slacconst.CMAttenChar|slacconst.MMTypeRSP {
		return slac.ErrProtocolMismatch
	}
	rsp, err := frames.DecodeAttenCharRsp(resp[off:])
	if err != nil || !bytes.Equal(rsp.RunID[:], m.Session.RunID[:]) {
		return slac.ErrProtocolMismatch
	}
	return nil
}

func (m *Matcher) waitMatch(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, slacconst.MatchResponseTT)
	defer cancel()
	for {
		frame, err := m.Adapter.ReadEth(readCtx, slacconst.EthernetHeaderLen+slacconst.HomePlugHeaderLen+slacconst.SlacMatchReqLen)
		if err != nil {
			return slac.ErrTimeout
		}
		_, hp, off, err := frames.ParseHeader(frame)
		if err != nil || hp.MMType != slacconst.CMSlacMatch|slacconst.MMTypeREQ {
			continue
		}
		req, err := frames.DecodeSlacMatchReq(frame[off:])
		if err != nil {
			continue
		}
		if !bytes.Equal(req.RunID[:], m.Session.RunID[:]) {
			return slac.ErrProtocolMismatch
		}
		if m.duplicate(hp.MMType, req) {
			klog.V(4).Infof("matcher[%s]: duplicate slac_match.req ignored", m.Iface)
			continue
		}
		m.Session.PEVID = req.PEVID

		cnf := frames.SlacMatchCnf{
			ApplicationType: m.Session.ApplicationType,
			SecurityType:    m.Session.SecurityType,
			MVFLength:       slacconst.MVFLengthCnf,
			PEVID:           req.PEVID,
			PEVMAC:          req.PEVMAC,
			EVSEID:          m.Session.EVSEID,
			EVSEMAC:         m.Session.EVSEMAC,
			RunID:           m.Session.RunID,
			NID:             m.Session.NID,
			NMK:             m.Session.NMK,
		}
		out := frames.BuildFrame(m.Session.PEVMAC, m.Session.EVSEMAC, slacconst.CMSlacMatch|slacconst.MMTypeCNF, cnf.Encode())
		if _, err := m.Adapter.SendEth(out); err != nil {
			return fmt.Errorf("%w: send slac_match.cnf: %v", slac.ErrIO, err)
		}
		return nil
	}
}

// duplicate reports whether msg is an exact structural repeat of the last
// message matcher processed with the same mmType, and records msg as the
// new baseline. Used to make the handling of the EV's well-known repeated
// sends idempotent without adding protocol state.
func (m *Matcher) duplicate(mmType slacconst.MMType, msg interface{}) bool {
	h, err := hashstructure.Hash(msg, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	prev, ok := m.seen[mmType]
	m.seen[mmType] = h
	return ok && prev == h
}

func (m *Matcher) emit(ctx context.Context, evtType telemetry.EventType, detail string) {
	if m.Telemetry == nil {
		return
	}
	_ = m.Telemetry.Publish(ctx, telemetry.Event{
		Counter: telemetry.NextCounter(),
		Type:    evtType,
		Iface:   m.Iface,
		RunID:   hex.EncodeToString(m.Session.RunID[:]),
		Detail:  detail,
	})
}
