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
	"time"

	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/schedule"
	"github.com/antst/otrvhub/internal/status"
)

// Status reports the node state as of the last control pass.
func (c *NodeController) Status(now time.Time) status.Report {
	ts := c.Last()
	m := uint16(now.Hour()*60 + now.Minute())
	r := status.Report{
		Mode:           string(c.mode.Mode().Char()),
		ValvePC:        c.valve.PercentOpen(),
		MinuteOfDay:    m,
		TargetC:        ts.TargetC,
		FrostC:         c.targets.Frost(),
		WarmC:          c.targets.Warm(),
		Setback:        ts.Level.String(),
		EcoBias:        c.targets.HasEcoBias(),
		ScheduleActive: c.sched.IsOnNow(m),
		BoilerOn:       c.arbiter.IsOn(),
		Overruns:       c.loop.Overruns(),
	}
	if c.temp != nil {
		r.TempC16, r.TempValid = c.temp.C16()
	}
	for i := 0; i < schedule.Entries; i++ {
		if e, err := c.sched.Entry(i); err == nil && e.IsSet() {
			r.Schedules = append(r.Schedules, status.NewScheduleEntry(e))
		}
	}
	if c.hasOccupancySensing() {
		r.OccupancyPC = c.occ.Percent()
		r.LikelyOccupied = c.occ.IsLikelyOccupied()
		r.VacancyH = c.occ.VacancyHours()
	}
	if c.arbiter.IsHub() {
		r.BoilerMinOnM = c.arbiter.MinOnMinutes()
		r.Callers = c.callers.List()
	}
	if c.minValve.IsOverridden() {
		r.MinValvePC = c.minValve.Get()
	}
	return r
}

func (c *NodeController) publishStatus(ctx context.Context, r status.Report) {
	if c.mqtt == nil || ctx.Err() != nil {
		return
	}
	data, err := r.JSON()
	if err != nil {
		c.log.Error(err)
		return
	}
	topic := c.cfg.MQTTConfig.ControlTopic + "/status"
	safe_mqtt.Publish(c.mqtt, topic, true, data)
	safe_mqtt.Publish(c.mqtt, topic+"/line", true, r.Line())
}
