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

// Package config loads the environment-variable configuration for the EVSE
// SLAC daemon as a process-wide singleton.
package config

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"
)

// Config is the daemon's resolved configuration.
type Config struct {
	Iface         string
	EVSEID        string
	EVSEPLCMAC    string
	InitTimeout   time.Duration
	RedisAddr     string
	RedisPassword string
	MetricsPort   int
	OTLPEndpoint  string
	Debug         bool
}

var currentConfig atomic.Value //nolint:gochecknoglobals
var isInit atomic.Bool         //nolint:gochecknoglobals

func loadConfig() Config {
	cfg := Config{
		Iface:         os.Getenv("SLAC_IFACE"),
		EVSEID:        os.Getenv("SLAC_EVSE_ID"),
		EVSEPLCMAC:    os.Getenv("SLAC_EVSE_PLC_MAC"),
		RedisAddr:     os.Getenv("SLAC_REDIS_ADDR"),
		RedisPassword: os.Getenv("SLAC_REDIS_PASSWORD"),
		OTLPEndpoint:  os.Getenv("SLAC_OTLP_ENDPOINT"),
		Debug:         os.Getenv("SLAC_DEBUG") != "",
	}

	if cfg.Iface == "" {
		klog.Errorf("SLAC_IFACE not set, this daemon has nothing to listen on")
	}
	if cfg.EVSEID == "" {
		cfg.EVSEID = "EVSE-DEFAULT-ID"
		klog.Warningf("SLAC_EVSE_ID not set, using INSECURE default %q", cfg.EVSEID)
	}
	if len(cfg.EVSEID) > 17 {
		cfg.EVSEID = cfg.EVSEID[:17]
	}

	initMs := envInt("SLAC_INIT_TIMEOUT_MS", 50)
	cfg.InitTimeout = time.Duration(initMs) * time.Millisecond
	cfg.MetricsPort = envInt("SLAC_METRICS_PORT", 0)

	if cfg.Debug {
		klog.Warningf("debug mode enabled, this should not be used in production")
		klog.Infof("config: %+v", cfg)
	}

	return cfg
}

// GetConfig loads the configuration from the environment on first call and
// returns the same value on every later call in the process.
func GetConfig() *Config {
	if !isInit.Swap(true) {
		currentConfig.Store(loadConfig())
	}
	cfg, _ := currentConfig.Load().(Config)
	return &cfg
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		klog.Warningf("config: %s=%q is not an integer, using default %d", name, v, def)
		return def
	}
	return n
}
