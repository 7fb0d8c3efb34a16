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

package status

import (
	"encoding/json"
	"testing"

	"github.com/antst/otrvhub/internal/boiler"
	"github.com/antst/otrvhub/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLine(t *testing.T) {
	r := Report{
		Mode:           "W",
		ValvePC:        18,
		TempC16:        19*16 + 5,
		TempValid:      true,
		MinuteOfDay:    12*60 + 30,
		TargetC:        16,
		FrostC:         6,
		WarmC:          18,
		EcoBias:        true,
		Schedules:      []ScheduleEntry{NewScheduleEntry(schedule.Entry{On: 7*60 + 30, Off: 9 * 60})},
		OccupancyPC:    80,
		LikelyOccupied: true,
		BoilerMinOnM:   5,
		MinValvePC:     15,
	}
	assert.Equal(t, "=W18%@19C5;T12 30 W07 30 F09 00;S16 6 18 e;O80;C5;M15", r.Line())

	r.TempValid = false
	r.LikelyOccupied = false
	r.VacancyH = 3
	r.BoilerOn = true
	r.ScheduleActive = true
	r.EcoBias = false
	r.Overruns = 2
	r.Schedules = []ScheduleEntry{NewScheduleEntry(schedule.Entry{On: 60, Off: schedule.Unset})}
	assert.Equal(t, "=W18%@--C;T12 30 W01 00 F-- -- *;S16 6 18 c;V3;C5+;M15;R2", r.Line())
}

func TestMinimalLine(t *testing.T) {
	r := Report{Mode: "F", TempC16: 6*16 + 15, TempValid: true, TargetC: 6, FrostC: 6, WarmC: 18}
	assert.Equal(t, "=F0%@6CF;T00 00;S6 6 18 c", r.Line())
}

func TestJSON(t *testing.T) {
	r := Report{
		Mode:      "B",
		Schedules: []ScheduleEntry{NewScheduleEntry(schedule.Entry{On: 7 * 60, Off: schedule.Unset})},
		Callers:   []boiler.Caller{{ID: 3, PercentOpen: 40}},
	}
	data, err := r.JSON()
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "B", m["mode"])
	assert.Equal(t, []interface{}{map[string]interface{}{"on": "07:00", "off": "--:--"}}, m["schedules"])
	assert.Equal(t, []interface{}{map[string]interface{}{"id": float64(3), "pc": float64(40)}}, m["callers"])
	assert.NotContains(t, m, "boiler_min_on_m")
}
