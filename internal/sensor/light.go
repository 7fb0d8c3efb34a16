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

package sensor

import (
	"math"
	"sync"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
)

// minCalibrationSpan is the smallest daily light range worth recalibrating from.
const minCalibrationSpan = 8

// MQTTAmbientLight turns a light reading, scaled to 0..254, into darkness tracking.
type MQTTAmbientLight struct {
	*Value

	lock          sync.Mutex
	level         uint8
	levelValid    bool
	darkThreshold uint8
	darkMinutes   uint8
	onLightsOn    func()
}

func NewMQTTAmbientLight(cfg *config.SensorConfig, darkLevel uint8) *MQTTAmbientLight {
	return &MQTTAmbientLight{Value: NewValue("ambient_light", cfg), darkThreshold: darkLevel}
}

// OnLightsOn registers fn, called from Read when the room goes from dark to lit.
func (a *MQTTAmbientLight) OnLightsOn(fn func()) {
	a.lock.Lock()
	a.onLightsOn = fn
	a.lock.Unlock()
}

func (a *MQTTAmbientLight) Read() {
	a.Value.Read()
	f, ok := a.inRange(0, math.Inf(1))
	if f > 254 {
		f = 254
	}

	a.lock.Lock()
	wasDark := a.levelValid && a.level <= a.darkThreshold
	a.level, a.levelValid = uint8(f), ok
	var lightsOn func()
	switch {
	case !ok:
		a.darkMinutes = 0
	case a.level <= a.darkThreshold:
		if a.darkMinutes < 0xFF {
			a.darkMinutes++
		}
	default:
		if wasDark {
			lightsOn = a.onLightsOn
		}
		a.darkMinutes = 0
	}
	a.lock.Unlock()

	if lightsOn != nil {
		lightsOn()
	}
}

func (a *MQTTAmbientLight) Level() (uint8, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.level, a.levelValid
}

func (a *MQTTAmbientLight) DarkMinutes() uint8 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.darkMinutes
}

func (a *MQTTAmbientLight) IsRoomDark() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.levelValid && a.level <= a.darkThreshold
}

func (a *MQTTAmbientLight) Recalibrate(min, max uint8) {
	if max <= min || max-min < minCalibrationSpan {
		return
	}
	t := min + (max-min)/4
	a.lock.Lock()
	changed := t != a.darkThreshold
	a.darkThreshold = t
	a.lock.Unlock()
	if changed {
		logger.L().Debugf("Ambient light dark threshold now %d (range %d..%d)", t, min, max)
	}
}

func (a *MQTTAmbientLight) DarkThreshold() uint8 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.darkThreshold
}
