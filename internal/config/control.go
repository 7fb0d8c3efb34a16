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

package config

// TargetsConfig holds the temperature targets and the user temperature scale, all in whole C.
type TargetsConfig struct {
	FrostC uint8 `yaml:"frost_c"`
	WarmC  uint8 `yaml:"warm_c"`
	MinC   uint8 `yaml:"min_c"`
	MaxC   uint8 `yaml:"max_c"`

	// ScaleMinC..ScaleMaxC is the range covered by the temperature dial.
	ScaleMinC uint8 `yaml:"scale_min_c"`
	ScaleMaxC uint8 `yaml:"scale_max_c"`
	// EcoMaxC is the highest warm target still considered an eco temperature.
	EcoMaxC uint8 `yaml:"eco_max_c"`
	// ComfortMinC is the lowest warm target considered a comfort temperature.
	ComfortMinC uint8 `yaml:"comfort_min_c"`

	BakeUpliftC uint8 `yaml:"bake_uplift_c"`
	BakeMinutes uint8 `yaml:"bake_minutes"`
}

func NewTargetsConfig() *TargetsConfig {
	cfg := &TargetsConfig{}
	cfg.FillDefaults()
	return cfg
}

func (t *TargetsConfig) FillDefaults() {
	if t.MinC == 0 {
		t.MinC = 5
	}
	if t.MaxC == 0 {
		t.MaxC = 95
	}
	if t.FrostC == 0 {
		t.FrostC = 6
	}
	if t.WarmC == 0 {
		t.WarmC = 18
	}
	if t.ScaleMinC == 0 {
		t.ScaleMinC = 16
	}
	if t.ScaleMaxC == 0 {
		t.ScaleMaxC = 22
	}
	if t.EcoMaxC == 0 {
		t.EcoMaxC = t.ScaleMinC + 1
	}
	if t.ComfortMinC == 0 {
		t.ComfortMinC = t.ScaleMaxC - 1
	}
	if t.BakeUpliftC == 0 {
		t.BakeUpliftC = 5
	}
	if t.BakeMinutes == 0 {
		t.BakeMinutes = 30
	}
}

// ScaleMidC is the midpoint of the dial; warm targets at or below it are eco biased.
func (t *TargetsConfig) ScaleMidC() uint8 {
	return uint8((uint16(t.ScaleMinC) + uint16(t.ScaleMaxC)) / 2)
}

// SetbackConfig holds the setback sizes and the thresholds of the setback decision.
type SetbackConfig struct {
	DefaultC uint8 `yaml:"default_c"`
	EcoC     uint8 `yaml:"eco_c"`
	FullC    uint8 `yaml:"full_c"`

	// Pre-warm offsets below warm applied in frost mode ahead of a schedule.
	PreWarmC    uint8 `yaml:"pre_warm_c"`
	PreWarmEcoC uint8 `yaml:"pre_warm_eco_c"`

	// DarkForHoursMinutes is the dark duration treated as night.
	DarkForHoursMinutes uint8 `yaml:"dark_for_hours_minutes"`
	// FullSetbackHours is both the dark duration (hours) and vacancy (hours) that allow full setback.
	FullSetbackHours uint8 `yaml:"full_setback_hours"`

	// Thresholds on the number of hours historically less occupied than this/next hour.
	OccupiedSoonHours    uint8 `yaml:"occupied_soon_hours"`
	OccupiedSoonHoursEco uint8 `yaml:"occupied_soon_hours_eco"`
	LitOccupiedHours     uint8 `yaml:"lit_occupied_hours"`

	// Lights-off durations (minutes) after which setback starts.
	LightsOffMinutes    uint8 `yaml:"lights_off_minutes"`
	LightsOffMinutesEco uint8 `yaml:"lights_off_minutes_eco"`
}

func NewSetbackConfig() *SetbackConfig {
	cfg := &SetbackConfig{}
	cfg.FillDefaults()
	return cfg
}

func (s *SetbackConfig) FillDefaults() {
	if s.DefaultC == 0 {
		s.DefaultC = 1
	}
	if s.EcoC == 0 {
		s.EcoC = 3
	}
	if s.FullC == 0 {
		s.FullC = 4
	}
	if s.PreWarmC == 0 {
		s.PreWarmC = s.DefaultC
	}
	if s.PreWarmEcoC == 0 {
		s.PreWarmEcoC = s.EcoC
	}
	if s.DarkForHoursMinutes == 0 {
		s.DarkForHoursMinutes = 245
	}
	if s.FullSetbackHours == 0 {
		s.FullSetbackHours = 2
	}
	if s.OccupiedSoonHours == 0 {
		s.OccupiedSoonHours = 12
	}
	if s.OccupiedSoonHoursEco == 0 {
		s.OccupiedSoonHoursEco = 15
	}
	if s.LitOccupiedHours == 0 {
		s.LitOccupiedHours = 4
	}
	if s.LightsOffMinutes == 0 {
		s.LightsOffMinutes = 20
	}
	if s.LightsOffMinutesEco == 0 {
		s.LightsOffMinutesEco = 10
	}
}

// ValveConfig holds the valve opening thresholds in percent.
type ValveConfig struct {
	MinReallyOpenPC   uint8  `yaml:"min_really_open_pc"`
	SaferOpenPC       uint8  `yaml:"safer_open_pc"`
	ModeratelyOpenPC  uint8  `yaml:"moderately_open_pc"`
	SlewPCPerMinute   uint8  `yaml:"slew_pc_per_minute"`
	ProportionalBandC uint8  `yaml:"proportional_band_c"`
	TargetTopic       string `yaml:"target_topic,omitempty"`
}

func NewValveConfig() *ValveConfig {
	cfg := &ValveConfig{}
	cfg.FillDefaults()
	return cfg
}

func (v *ValveConfig) FillDefaults() {
	if v.MinReallyOpenPC == 0 {
		v.MinReallyOpenPC = 10
	}
	if v.SaferOpenPC == 0 {
		v.SaferOpenPC = 25
	}
	if v.ModeratelyOpenPC == 0 {
		v.ModeratelyOpenPC = 35
	}
	if v.SlewPCPerMinute == 0 {
		v.SlewPCPerMinute = 20
	}
	if v.ProportionalBandC == 0 {
		v.ProportionalBandC = 1
	}
}
