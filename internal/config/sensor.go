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

// SensorConfig describes one MQTT-fed sensor. The published value is scaled and offset
// before use: value = raw*scale + offset.
type SensorConfig struct {
	Name      string   `yaml:"name,omitempty"`
	Topic     string   `yaml:"topic"`
	JSONEntry *string  `yaml:"json_entry,omitempty"`
	Offset    *float64 `yaml:"offset"`
	Scale     *float64 `yaml:"scale"`
}

func (s *SensorConfig) FillDefaults() {
	if s.Offset == nil {
		s.Offset = GetPTR(0.0)
	}
	if s.Scale == nil {
		s.Scale = GetPTR(1.0)
	}
}

func NewSensorConfig(topic string) *SensorConfig {
	cfg := &SensorConfig{Topic: topic}
	cfg.FillDefaults()
	return cfg
}

// SensorsConfig lists the optional sensors of the node. A nil entry means the node has no
// such sensor and the control loop runs without it.
type SensorsConfig struct {
	Temperature  *SensorConfig `yaml:"temperature,omitempty"`
	AmbientLight *SensorConfig `yaml:"ambient_light,omitempty"`
	Humidity     *SensorConfig `yaml:"humidity,omitempty"`
	Supply       *SensorConfig `yaml:"supply,omitempty"`
	Occupancy    *SensorConfig `yaml:"occupancy,omitempty"`

	// SupplyLowV is the supply voltage below which the battery is reported low.
	SupplyLowV float64 `yaml:"supply_low_v"`
	// DarkLevel is the initial ambient light level (0..254) at or below which the room is dark.
	DarkLevel uint8 `yaml:"dark_level"`
}

func (s *SensorsConfig) FillDefaults() {
	for _, c := range []*SensorConfig{s.Temperature, s.AmbientLight, s.Humidity, s.Supply, s.Occupancy} {
		if c != nil {
			c.FillDefaults()
		}
	}
	if s.SupplyLowV == 0 {
		s.SupplyLowV = 2.6
	}
	if s.DarkLevel == 0 {
		s.DarkLevel = 16
	}
}
