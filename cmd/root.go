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

// Package cmd wires configuration, logging, metrics, and the supervisor
// into a runnable daemon.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"k8s.io/klog/v2"

	"github.com/opencharge/evse-slac/internal/config"
	"github.com/opencharge/evse-slac/internal/metrics"
	"github.com/opencharge/evse-slac/internal/slac/netio"
	"github.com/opencharge/evse-slac/internal/supervisor"
	"github.com/opencharge/evse-slac/internal/telemetry"
	"github.com/opencharge/evse-slac/internal/tracing"
)

// NewCommand builds the evse-slac root cobra command.
func NewCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:     "evse-slac",
		Short:   "EVSE-side SLAC matching daemon",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		RunE:    runRoot,
	}
	return root
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
	klog.SetOutput(os.Stderr)

	shutdownTracing := tracing.Init(cmd.Context(), cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			klog.Warningf("tracing: shutdown: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.MetricsPort != 0 {
		go serveMetrics(cfg.MetricsPort, registry)
	}

	var sink telemetry.Sink
	if cfg.RedisAddr != "" {
		sink = telemetry.NewRedis(cfg.RedisAddr, cfg.RedisPassword, m, cfg.OTLPEndpoint != "")
	} else {
		sink = telemetry.NewNoop()
	}
	defer sink.Close()

	opener := netio.NewLinuxOpener()
	sup := supervisor.New(opener, cfg.EVSEID, func(string) (string, error) {
		return cfg.EVSEPLCMAC, nil
	}, m, sink)
	sup.InitTimeout = cfg.InitTimeout

	ctx, cancel := context.WithCancel(cmd.Context())
	if err := sup.Register(ctx, cfg.Iface); err != nil {
		cancel()
		return fmt.Errorf("register %q: %w", cfg.Iface, err)
	}

	rekeySched, err := supervisor.NewRekeyScheduler(sup)
	if err != nil {
		cancel()
		return fmt.Errorf("build rekey scheduler: %w", err)
	}
	if err := rekeySched.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start rekey scheduler: %w", err)
	}

	stop := func(_ os.Signal) {
		cancel()
		sup.Stop(cfg.Iface)
		if err := rekeySched.Stop(); err != nil {
			klog.Warningf("rekey scheduler: shutdown: %v", err)
		}
		os.Exit(0)
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	return nil
}

func serveMetrics(port int, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	klog.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		klog.Errorf("metrics server: %v", err)
	}
}
