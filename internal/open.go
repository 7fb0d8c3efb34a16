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

package internal

import (
	"context"

	"github.com/antst/otrvhub/internal/boiler"
	"github.com/antst/otrvhub/internal/broker"
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/db"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/metrics"
	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/sensor"

	"github.com/pkg/errors"
)

// Open builds a node on the real collaborators described by cfg: the settings database,
// the (optionally embedded) MQTT broker, the MQTT-fed sensors, the boiler output and the
// metrics endpoint.
func Open(ctx context.Context, cfg *config.Config) (*NodeController, error) {
	var closers []func() error
	fail := func(err error) (*NodeController, error) {
		closeAll(closers)
		return nil, err
	}

	store, err := db.OpenDatabase(cfg.DBFile)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, store.Close)

	if addr := cfg.MQTTConfig.EmbeddedBroker; addr != "" {
		b, err := broker.Start(addr)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, b.Close)
	}

	client, err := safe_mqtt.Connect(ctx, cfg.MQTTConfig.URL, safe_mqtt.ClientID(cfg.MQTTConfig.ClientPrefix))
	if err != nil {
		return fail(errors.WithMessage(err, "mqtt"))
	}
	closers = append(closers, func() error { client.Close(); return nil })

	d := Deps{Store: store, MQTT: client, Metrics: metrics.New()}
	attachSensors(&d, cfg.Sensors, client)

	if d.Output, err = boiler.NewOutput(cfg.Boiler, client); err != nil {
		return fail(err)
	}

	c, err := NewNodeController(cfg, d)
	if err != nil {
		_ = d.Output.Close()
		return fail(err)
	}
	c.closers = closers

	if addr := cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := d.Metrics.Serve(ctx, addr); err != nil {
				logger.L().Error(err)
			}
		}()
	}
	return c, nil
}

// attachSensors creates and subscribes the configured sensors. Unconfigured sensors
// stay nil in d.
func attachSensors(d *Deps, cfg *config.SensorsConfig, client safe_mqtt.MqttClient) {
	if cfg.Temperature != nil {
		s := sensor.NewMQTTTemperature(cfg.Temperature)
		s.Subscribe(client)
		d.Temperature = s
	}
	if cfg.AmbientLight != nil {
		s := sensor.NewMQTTAmbientLight(cfg.AmbientLight, cfg.DarkLevel)
		s.Subscribe(client)
		d.AmbientLight = s
	}
	if cfg.Humidity != nil {
		s := sensor.NewMQTTHumidity(cfg.Humidity)
		s.Subscribe(client)
		d.Humidity = s
	}
	if cfg.Supply != nil {
		s := sensor.NewMQTTSupply(cfg.Supply, cfg.SupplyLowV)
		s.Subscribe(client)
		d.Supply = s
	}
	if cfg.Occupancy != nil {
		s := sensor.NewMQTTMotion(cfg.Occupancy)
		s.Subscribe(client)
		d.Motion = s
	}
}

func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.L().Error(err)
		}
	}
}
