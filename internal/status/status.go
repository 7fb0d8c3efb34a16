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

// Package status renders the node status record as a compact line and as JSON.
package status

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antst/otrvhub/internal/boiler"
	"github.com/antst/otrvhub/internal/schedule"
)

type ScheduleEntry struct {
	On  uint16 `json:"-"`
	Off uint16 `json:"-"`

	OnText  string `json:"on"`
	OffText string `json:"off"`
}

// Report is the status of the node at one minute.
type Report struct {
	Mode      string `json:"mode"`
	ValvePC   uint8  `json:"valve_pc"`
	TempC16   int    `json:"temp_c16"`
	TempValid bool   `json:"temp_valid"`
	// MinuteOfDay is local time.
	MinuteOfDay uint16 `json:"minute_of_day"`

	TargetC uint8  `json:"target_c"`
	FrostC  uint8  `json:"frost_c"`
	WarmC   uint8  `json:"warm_c"`
	Setback string `json:"setback"`
	EcoBias bool   `json:"eco_bias"`

	Schedules      []ScheduleEntry `json:"schedules,omitempty"`
	ScheduleActive bool            `json:"schedule_active"`

	OccupancyPC    uint8 `json:"occupancy_pc"`
	LikelyOccupied bool  `json:"likely_occupied"`
	VacancyH       uint8 `json:"vacancy_h"`

	// BoilerMinOnM is non-zero only in hub mode.
	BoilerMinOnM uint8           `json:"boiler_min_on_m,omitempty"`
	BoilerOn     bool            `json:"boiler_on"`
	Callers      []boiler.Caller `json:"callers,omitempty"`
	// MinValvePC is non-zero only when overridden.
	MinValvePC uint8 `json:"min_valve_pc,omitempty"`
	Overruns   uint8 `json:"overruns,omitempty"`
}

// NewScheduleEntry converts a stored schedule entry.
func NewScheduleEntry(e schedule.Entry) ScheduleEntry {
	return ScheduleEntry{On: e.On, Off: e.Off, OnText: schedule.FormatMinute(e.On), OffText: schedule.FormatMinute(e.Off)}
}

func hhmm(m uint16) string {
	if m >= schedule.MinutesPerDay {
		return "-- --"
	}
	return fmt.Sprintf("%02d %02d", m/60, m%60)
}

// Line renders r as e.g. `=W18%@19C5;T12 30 W07 30 F09 00;S16 6 18 e;O80;C5;M15`.
func (r Report) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=%s%d%%", r.Mode, r.ValvePC)
	if r.TempValid {
		fmt.Fprintf(&b, "@%dC%X", r.TempC16>>4, r.TempC16&0xF)
	} else {
		b.WriteString("@--C")
	}

	b.WriteString(";T")
	b.WriteString(hhmm(r.MinuteOfDay))
	for _, s := range r.Schedules {
		fmt.Fprintf(&b, " W%s F%s", hhmm(s.On), hhmm(s.Off))
	}
	if r.ScheduleActive {
		b.WriteString(" *")
	}

	bias := "c"
	if r.EcoBias {
		bias = "e"
	}
	fmt.Fprintf(&b, ";S%d %d %d %s", r.TargetC, r.FrostC, r.WarmC, bias)

	if r.LikelyOccupied {
		fmt.Fprintf(&b, ";O%d", r.OccupancyPC)
	} else if r.VacancyH > 0 {
		fmt.Fprintf(&b, ";V%d", r.VacancyH)
	}
	if r.BoilerMinOnM != 0 {
		fmt.Fprintf(&b, ";C%d", r.BoilerMinOnM)
		if r.BoilerOn {
			b.WriteString("+")
		}
	}
	if r.MinValvePC != 0 {
		fmt.Fprintf(&b, ";M%d", r.MinValvePC)
	}
	if r.Overruns != 0 {
		fmt.Fprintf(&b, ";R%d", r.Overruns)
	}
	return b.String()
}

func (r Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}
