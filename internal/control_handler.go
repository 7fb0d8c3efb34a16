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
	"strconv"
	"strings"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/schedule"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// controlTopics are subscribed under the control topic.
var controlTopics = []string{
	"mode",
	"frost",
	"warm",
	"min_boiler_on",
	"min_valve_pc",
	"schedule/+",
	"setback_lockout",
	"log_level",
	"ui",
}

func (c *NodeController) controlUpdateHandler(client mqtt.Client, message mqtt.Message) {
	parts := strings.Split(message.Topic(), "/")
	topic := parts[len(parts)-1]
	payload := strings.TrimSpace(string(message.Payload()))
	c.log.Infof("Got MQTT control request: %v : %v", message.Topic(), payload)
	if len(parts) >= 2 && parts[len(parts)-2] == "schedule" {
		if err := c.setSchedule(topic, payload); err != nil {
			c.log.Error(err)
		}
		return
	}
	var err error
	switch topic {
	case "mode":
		err = c.setMode(payload)
	case "frost":
		var v uint8
		if v, err = parseUint8(payload); err == nil {
			err = c.targets.SetFrost(v)
		}
	case "warm":
		var v uint8
		if v, err = parseUint8(payload); err == nil {
			err = c.targets.SetWarm(v)
		}
	case "min_boiler_on":
		var v uint8
		if v, err = parseUint8(payload); err == nil {
			err = c.arbiter.SetMinOnMinutes(v)
		}
	case "min_valve_pc":
		var v uint8
		if v, err = parseUint8(payload); err == nil {
			err = c.minValve.Set(v)
		}
	case "setback_lockout":
		var v uint8
		if v, err = parseUint8(payload); err == nil {
			err = c.lockout.Set(v)
		}
	case "log_level":
		var level zapcore.Level
		if err = level.Set(payload); err != nil {
			c.log.Errorf("Wrong log level `%v`", payload)
			return
		}
		logger.SetLogLevel(level)
		c.log.Infof("Updated loglevel to `%v`", logger.Level().String())
	case "ui":
		c.uiNudge.Store(true)
	}
	if err != nil {
		c.log.Errorf("Control %v: %v", topic, err)
	}
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), errors.Wrapf(err, "parse %q", s)
}

// setMode switches between frost, warm and bake. A mode change counts as a manual
// interaction.
func (c *NodeController) setMode(val string) error {
	switch strings.ToLower(val) {
	case "frost", "off":
		c.mode.SetWarm(false)
	case "warm", "on":
		c.mode.SetWarm(true)
	case "bake":
		c.mode.StartBake(c.cfg.Targets.BakeMinutes)
	default:
		return errors.Errorf("unknown mode %q", val)
	}
	c.uiNudge.Store(true)
	return nil
}

// setSchedule accepts "HH:MM", "HH:MM HH:MM" or "clear" for entry n.
func (c *NodeController) setSchedule(n, val string) error {
	idx, err := strconv.Atoi(n)
	if err != nil {
		return errors.Wrapf(err, "schedule entry %q", n)
	}
	if strings.EqualFold(val, "clear") || val == "" {
		return c.sched.Clear(idx)
	}
	fields := strings.Fields(val)
	if len(fields) > 2 {
		return errors.Errorf("schedule entry %d: bad value %q", idx, val)
	}
	on, err := config.ParseMinuteOfDay(fields[0])
	if err != nil {
		return err
	}
	off := schedule.Unset
	if len(fields) == 2 {
		if off, err = config.ParseMinuteOfDay(fields[1]); err != nil {
			return err
		}
	}
	if err := c.sched.SetEntry(idx, on, off); err != nil {
		return err
	}
	c.log.Infof("Schedule entry %d set to %v-%v", idx, schedule.FormatMinute(on), schedule.FormatMinute(off))
	return nil
}
