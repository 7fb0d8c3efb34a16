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

package valve

import (
	"strconv"
	"sync"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/safe_mqtt"

	"go.uber.org/zap"
)

// Modelled is a proportional valve driven from the room temperature error. The opening
// moves by at most the configured slew per minute. When a client and target topic are
// set, every new opening is published retained for the real actuator.
type Modelled struct {
	cfg     config.ValveConfig
	minOpen *MinReallyOpen
	client  safe_mqtt.MqttClient
	log     *zap.SugaredLogger

	lock          sync.Mutex
	pc            uint8
	recalibrating bool
	published     int
}

func NewModelled(cfg *config.ValveConfig, minOpen *MinReallyOpen, client safe_mqtt.MqttClient) *Modelled {
	return &Modelled{
		cfg:       *cfg,
		minOpen:   minOpen,
		client:    client,
		log:       logger.Named("valve"),
		published: -1,
	}
}

func (v *Modelled) PercentOpen() uint8 {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.pc
}

func (v *Modelled) IsRecalibrating() bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.recalibrating
}

func (v *Modelled) IsReallyOpen() bool {
	min := v.minOpen.Get()
	v.lock.Lock()
	defer v.lock.Unlock()
	return !v.recalibrating && v.pc >= min
}

// Resync closes the valve and spends the next minute recalibrating.
func (v *Modelled) Resync() {
	v.lock.Lock()
	v.recalibrating = true
	v.pc = 0
	v.lock.Unlock()
	v.log.Info("Valve resync requested")
	v.publish(0)
}

// demand maps the temperature error to 0..100. The valve aims at the top of the target
// degree, so it stays open for as long as the room is at or below target in whole C.
func (v *Modelled) demand(targetC uint8, roomC16 int) uint8 {
	err := int(targetC)*16 + 15 - roomC16
	band := int(v.cfg.ProportionalBandC) * 16
	switch {
	case err <= 0:
		return 0
	case err >= band:
		return 100
	}
	return uint8(err * 100 / band)
}

func (v *Modelled) SetTarget(targetC uint8, roomC16 int, roomValid bool) {
	v.lock.Lock()
	if v.recalibrating {
		v.recalibrating = false
		v.lock.Unlock()
		return
	}
	if !roomValid {
		v.lock.Unlock()
		return
	}
	want := v.demand(targetC, roomC16)
	slew := v.cfg.SlewPCPerMinute
	switch {
	case want > v.pc && want-v.pc > slew:
		v.pc += slew
	case want < v.pc && v.pc-want > slew:
		v.pc -= slew
	default:
		v.pc = want
	}
	pc := v.pc
	v.lock.Unlock()

	v.log.Debugf("Valve target %dC room %d/16C: want %d%% now %d%%", targetC, roomC16, want, pc)
	v.publish(pc)
}

func (v *Modelled) publish(pc uint8) {
	if v.client == nil || v.cfg.TargetTopic == "" {
		return
	}
	v.lock.Lock()
	if v.published == int(pc) {
		v.lock.Unlock()
		return
	}
	v.published = int(pc)
	v.lock.Unlock()
	safe_mqtt.Publish(v.client, v.cfg.TargetTopic, true, strconv.Itoa(int(pc)))
}
