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

import "time"

const (
	BoilerOutputNone = "none"
	BoilerOutputMQTT = "mqtt"
	BoilerOutputGPIO = "gpio"
)

type BoilerConfig struct {
	// Output selects the actuator driven by the hub: none, mqtt or gpio.
	Output        string `yaml:"output"`
	CHEnableTopic string `yaml:"ch_enable_topic"`
	GPIOChip      string `yaml:"gpio_chip"`
	GPIOLine      int    `yaml:"gpio_line"`
	GPIOActiveLow bool   `yaml:"gpio_active_low"`

	// MinOnMinutes enables hub mode when non-zero. It only seeds the persisted value.
	MinOnMinutes *uint8 `yaml:"min_on_minutes,omitempty"`
	// MinOffMinutes defaults to the minimum on time.
	MinOffMinutes *uint8 `yaml:"min_off_minutes,omitempty"`

	CallForHeatTopic string        `yaml:"call_for_heat_topic"`
	CallerTTL        time.Duration `yaml:"caller_ttl"`
}

func NewBoilerConfig() *BoilerConfig {
	return &BoilerConfig{
		Output:    BoilerOutputNone,
		GPIOChip:  "gpiochip0",
		CallerTTL: 10 * time.Minute,
	}
}

func (b *BoilerConfig) FillDefaults(controlTopic string) {
	if b.Output == "" {
		b.Output = BoilerOutputNone
	}
	if b.CHEnableTopic == "" {
		b.CHEnableTopic = controlTopic + "/boiler/ch_enable"
	}
	if b.GPIOChip == "" {
		b.GPIOChip = "gpiochip0"
	}
	if b.CallForHeatTopic == "" {
		b.CallForHeatTopic = controlTopic + "/cfh"
	}
	if b.CallerTTL <= 0 {
		b.CallerTTL = 10 * time.Minute
	}
}
