/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of OTRVHUB project.
 *
 * OTRVHUB is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package metrics exposes the node state to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/status"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "otrvhub"

// Metrics holds the collectors. A nil *Metrics ignores all updates.
type Metrics struct {
	reg *prometheus.Registry

	targetC     prometheus.Gauge
	frostC      prometheus.Gauge
	warmC       prometheus.Gauge
	roomTempC   prometheus.Gauge
	valvePC     prometheus.Gauge
	setbackC    prometheus.Gauge
	occupancyPC prometheus.Gauge
	boilerOn    prometheus.Gauge
	callers     prometheus.Gauge
	overruns    prometheus.Gauge
	mode        *prometheus.GaugeVec
	callsHeard  *prometheus.CounterVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func New() *Metrics {
	m := &Metrics{
		reg:         prometheus.NewRegistry(),
		targetC:     gauge("target_celsius", "Current target temperature."),
		frostC:      gauge("frost_celsius", "Frost protection temperature."),
		warmC:       gauge("warm_celsius", "Warm mode temperature."),
		roomTempC:   gauge("room_temperature_celsius", "Last valid room temperature."),
		valvePC:     gauge("valve_percent_open", "Valve opening."),
		setbackC:    gauge("setback_celsius", "Setback below the warm target."),
		occupancyPC: gauge("occupancy_percent", "Occupancy confidence."),
		boilerOn:    gauge("boiler_on", "1 while the boiler is driven on."),
		callers:     gauge("callers", "Nodes heard calling for heat recently."),
		overruns:    gauge("overruns", "Persisted count of overrunning ticks."),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "1 for the active mode.",
		}, []string{"mode"}),
		callsHeard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_for_heat_total",
			Help:      "Calls for heat by threshold decision.",
		}, []string{"accepted"}),
	}
	m.reg.MustRegister(
		m.targetC, m.frostC, m.warmC, m.roomTempC, m.valvePC, m.setbackC,
		m.occupancyPC, m.boilerOn, m.callers, m.overruns, m.mode, m.callsHeard,
	)
	return m
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Observe copies a status report into the gauges.
func (m *Metrics) Observe(r status.Report) {
	if m == nil {
		return
	}
	m.targetC.Set(float64(r.TargetC))
	m.frostC.Set(float64(r.FrostC))
	m.warmC.Set(float64(r.WarmC))
	if r.TempValid {
		m.roomTempC.Set(float64(r.TempC16) / 16)
	}
	m.valvePC.Set(float64(r.ValvePC))
	setback := 0.0
	if r.Mode == "W" && r.WarmC > r.TargetC {
		setback = float64(r.WarmC - r.TargetC)
	}
	m.setbackC.Set(setback)
	m.occupancyPC.Set(float64(r.OccupancyPC))
	m.boilerOn.Set(b2f(r.BoilerOn))
	m.callers.Set(float64(len(r.Callers)))
	m.overruns.Set(float64(r.Overruns))
	for _, mode := range []string{"F", "W", "B"} {
		m.mode.WithLabelValues(mode).Set(b2f(r.Mode == mode))
	}
}

// CallForHeat counts one call for heat decision.
func (m *Metrics) CallForHeat(_ uint16, accepted bool) {
	if m == nil {
		return
	}
	label := "false"
	if accepted {
		label = "true"
	}
	m.callsHeard.WithLabelValues(label).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.L().Infof("Serving metrics on %v", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "metrics listener %v", addr)
	}
	return nil
}
