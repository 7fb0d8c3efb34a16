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
	"encoding/json"

	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/scheduler"
	"github.com/antst/otrvhub/internal/stats"
)

// statsTask takes one early sub-sample in the middle of the hour and a final one that
// commits the hour near its end.
func (c *NodeController) statsTask(_ context.Context, t scheduler.Tick) {
	hour := int(t.Hour())
	switch t.StatsPhase {
	case scheduler.PreSample:
		if c.preSampledH == hour {
			return
		}
		c.preSampledH = hour
		c.sampleAll()
	case scheduler.FullSample:
		if c.committedH == hour {
			return
		}
		c.committedH = hour
		c.sampleAll()
		if err := c.stats.CommitHour(uint8(hour)); err != nil {
			c.log.Errorf("Stats commit for hour %d: %v", hour, err)
		}
		c.recalibrateLight()
		c.log.Debugf("Stats committed for hour %d", hour)
	}
}

func (c *NodeController) sampleAll() {
	if c.temp != nil {
		if c16, ok := c.temp.C16(); ok {
			c.stats.SampleTempC16(c16)
		}
	}
	if c.light != nil {
		if lvl, ok := c.light.Level(); ok {
			c.stats.Sample(stats.AmbientLight, lvl)
		}
	}
	if c.hasOccupancySensing() {
		c.stats.Sample(stats.Occupancy, c.occ.Percent())
	}
	if c.humidity != nil {
		if pc, ok := c.humidity.Percent(); ok {
			c.stats.Sample(stats.Humidity, pc)
		}
	}
	c.stats.SampleWarmMode(c.mode.InWarm())
}

// recalibrateLight adapts the dark threshold to the light range seen over the day.
func (c *NodeController) recalibrateLight() {
	if c.light == nil {
		return
	}
	last := stats.Series{Metric: stats.AmbientLight}
	smoothed := stats.Series{Metric: stats.AmbientLight, Smoothed: true}
	lmin, ok1 := c.stats.MinByHour(last)
	smin, ok2 := c.stats.MinByHour(smoothed)
	lmax, _ := c.stats.MaxByHour(last)
	smax, _ := c.stats.MaxByHour(smoothed)
	if !ok1 || !ok2 {
		return
	}
	c.light.Recalibrate(min(lmin, smin), max(lmax, smax))
}

type hourStats struct {
	Hour      int    `json:"hour"`
	TempC16   *int   `json:"temp_c16,omitempty"`
	Light     *uint8 `json:"light,omitempty"`
	Occupancy *uint8 `json:"occupancy,omitempty"`
	Humidity  *uint8 `json:"humidity,omitempty"`
	WarmDays  int    `json:"warm_days"`
}

func (c *NodeController) hourStats(hour uint8) hourStats {
	hs := hourStats{Hour: int(hour), WarmDays: c.stats.WarmHistory(hour).WarmDays()}
	if v, ok := c.stats.Last(stats.Temperature, hour); ok {
		if c16, ok := stats.ExpandTempC16(v); ok {
			hs.TempC16 = &c16
		}
	}
	if v, ok := c.stats.Last(stats.AmbientLight, hour); ok {
		hs.Light = &v
	}
	if v, ok := c.stats.Last(stats.Occupancy, hour); ok {
		hs.Occupancy = &v
	}
	if v, ok := c.stats.Last(stats.Humidity, hour); ok {
		hs.Humidity = &v
	}
	return hs
}

// statsTXTask publishes the last committed hour once.
func (c *NodeController) statsTXTask(_ context.Context, _ scheduler.Tick) {
	if c.mqtt == nil || c.committedH < 0 || c.sentH == c.committedH {
		return
	}
	data, err := json.Marshal(c.hourStats(uint8(c.committedH)))
	if err != nil {
		c.log.Error(err)
		return
	}
	if safe_mqtt.Publish(c.mqtt, c.cfg.Stats.Topic, false, data) {
		c.sentH = c.committedH
	}
}
