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

import (
	"fmt"
	"time"
)

type StatsConfig struct {
	// SmoothShift is k in the smoothing filter: new = (old*(2^k-1) + value) / 2^k.
	SmoothShift uint8  `yaml:"smooth_shift"`
	Topic       string `yaml:"topic"`
}

func NewStatsConfig() *StatsConfig {
	return &StatsConfig{SmoothShift: 3}
}

func (s *StatsConfig) FillDefaults(controlTopic string) {
	if s.SmoothShift == 0 || s.SmoothShift > 7 {
		s.SmoothShift = 3
	}
	if s.Topic == "" {
		s.Topic = controlTopic + "/stats"
	}
}

type OccupancyConfig struct {
	TimeoutMinutes      uint8 `yaml:"timeout_minutes"`
	LongVacantHours     uint8 `yaml:"long_vacant_hours"`
	LongLongVacantHours uint8 `yaml:"long_long_vacant_hours"`
}

func NewOccupancyConfig() *OccupancyConfig {
	cfg := &OccupancyConfig{}
	cfg.FillDefaults()
	return cfg
}

func (o *OccupancyConfig) FillDefaults() {
	if o.TimeoutMinutes == 0 {
		o.TimeoutMinutes = 25
	}
	if o.LongVacantHours == 0 {
		o.LongVacantHours = 24
	}
	if o.LongLongVacantHours == 0 {
		o.LongLongVacantHours = 72
	}
}

// ScheduleEntryConfig seeds one schedule slot; times are "HH:MM".
type ScheduleEntryConfig struct {
	On  string `yaml:"on"`
	Off string `yaml:"off,omitempty"`
}

type ScheduleConfig struct {
	PreWarmMinutes   uint16                `yaml:"pre_warm_minutes"`
	DefaultOnMinutes uint16                `yaml:"default_on_minutes"`
	Entries          []ScheduleEntryConfig `yaml:"entries,omitempty"`
}

func NewScheduleConfig() *ScheduleConfig {
	cfg := &ScheduleConfig{}
	cfg.FillDefaults()
	return cfg
}

func (s *ScheduleConfig) FillDefaults() {
	if s.PreWarmMinutes == 0 {
		s.PreWarmMinutes = 60
	}
	if s.DefaultOnMinutes == 0 {
		s.DefaultOnMinutes = 60
	}
}

// ParseMinuteOfDay converts "HH:MM" to minutes since midnight.
func ParseMinuteOfDay(s string) (uint16, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("bad time of day `%v`: %w", s, err)
	}
	return uint16(t.Hour()*60 + t.Minute()), nil
}

type SchedulerConfig struct {
	// DeadlineFraction of each one second tick available to dispatched tasks.
	DeadlineFraction float64       `yaml:"deadline_fraction"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RandomiseStart   *bool         `yaml:"randomise_start,omitempty"`
}

func NewSchedulerConfig() *SchedulerConfig {
	cfg := &SchedulerConfig{}
	cfg.FillDefaults()
	return cfg
}

func (s *SchedulerConfig) FillDefaults() {
	if s.DeadlineFraction == 0 {
		s.DeadlineFraction = 0.8
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 100 * time.Millisecond
	}
	if s.RandomiseStart == nil {
		s.RandomiseStart = GetPTR(true)
	}
}
