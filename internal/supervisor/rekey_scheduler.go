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

package supervisor

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/slac/keyprovision"
	"github.com/opencharge/evse-slac/internal/slacconst"
)

// rekeyBudget bounds one interface's SetKey exchange plus its mandatory
// settle wait; 5s of slack above slacconst.KeySettleTime for the REQ/CNF
// round trip itself.
const rekeyBudget = slacconst.KeySettleTime + 5*time.Second

// RekeyScheduler rotates every registered interface's NMK/NID on a daily
// cron schedule, independent of the reactive rekey leave_logical_network
// triggers on link loss. Rotating on a fixed cadence bounds how long any one
// NMK stays in service even on an interface whose link never drops.
type RekeyScheduler struct {
	sup       *Supervisor
	scheduler gocron.Scheduler
}

// NewRekeyScheduler builds a scheduler bound to sup; call Start to begin
// running the daily rekey job.
func NewRekeyScheduler(sup *Supervisor) (*RekeyScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &RekeyScheduler{sup: sup, scheduler: scheduler}, nil
}

// Start schedules the daily rekey job at 03:00 local time and starts the
// underlying gocron scheduler.
func (r *RekeyScheduler) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() { r.rekeyAll(ctx) }),
		gocron.WithName("daily-nmk-rotation"),
	)
	if err != nil {
		return err
	}
	r.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting up to gocron's default stop
// timeout (10 seconds) for the in-flight job (if any) to finish.
func (r *RekeyScheduler) Stop() error {
	return r.scheduler.Shutdown()
}

func (r *RekeyScheduler) rekeyAll(ctx context.Context) {
	r.sup.registry.Range(func(iface string, e *entry) bool {
		klog.Infof("rekey_scheduler: rotating nmk/nid for %s", iface)
		rekeyCtx, cancel := context.WithTimeout(ctx, rekeyBudget)
		if err := keyprovision.SetKey(rekeyCtx, e.adapter, e.session); err != nil {
			klog.Warningf("rekey_scheduler: rotate %s: %v", iface, err)
		}
		cancel()
		return true
	})
}
