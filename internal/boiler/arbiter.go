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

// Package boiler turns local and remote calls for heat into a stable boiler on/off
// decision with minimum on and off times, and drives the boiler output.
package boiler

import (
	"sync"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/nvstore"
	"github.com/antst/otrvhub/internal/state"
	"github.com/antst/otrvhub/internal/valve"

	"go.uber.org/zap"
)

const (
	// LocalID is the caller ID of this node's own valve.
	LocalID uint16 = 0xFFFF
	// TicksPerMinute is the number of Tick calls per minute.
	TicksPerMinute = 60

	cycleMask = 0x3f
	// Within each 64 minute cycle the first minutes pause easy calls and the following
	// ones encourage them.
	pauseMinutes     = 15
	encourageMinutes = 31
)

type Arbiter struct {
	nv        nvstore.Store
	minValve  *valve.MinReallyOpen
	valveCfg  config.ValveConfig
	minOffCfg *uint8
	out       Output
	callers   *Callers
	minutes   func() uint8
	log       *zap.SugaredLogger

	mailbox state.CallForHeat
	// observe, if set, sees every threshold decision on a call for heat.
	observe func(id uint16, accepted bool)

	lock       sync.Mutex
	countdown  uint16
	quietM     uint8
	lastCaller uint16
	lastOut    bool
}

// NewArbiter builds the arbiter. minutes returns the scheduler minute counter. A configured
// minimum on time is written to the store only when none is persisted yet.
func NewArbiter(nv nvstore.Store, minValve *valve.MinReallyOpen, vcfg *config.ValveConfig, bcfg *config.BoilerConfig,
	out Output, callers *Callers, minutes func() uint8) *Arbiter {
	a := &Arbiter{
		nv:        nv,
		minValve:  minValve,
		valveCfg:  *vcfg,
		minOffCfg: bcfg.MinOffMinutes,
		out:       out,
		callers:   callers,
		minutes:   minutes,
		log:       logger.Named("boiler"),
		quietM:    0xFF,
	}
	if bcfg.MinOnMinutes != nil && a.MinOnMinutes() == 0 {
		if err := a.SetMinOnMinutes(*bcfg.MinOnMinutes); err != nil {
			a.log.Errorf("Cannot seed boiler minimum on time: %v", err)
		}
	}
	return a
}

// MinOnMinutes is the persisted minimum on time; zero means the node is not a hub.
func (a *Arbiter) MinOnMinutes() uint8 {
	return nvstore.GetInverted(a.nv, nvstore.AddrMinBoilerOnMinutesInv)
}

func (a *Arbiter) SetMinOnMinutes(m uint8) error {
	return nvstore.UpdateInverted(a.nv, nvstore.AddrMinBoilerOnMinutesInv, m)
}

func (a *Arbiter) IsHub() bool {
	return a.MinOnMinutes() != 0
}

func (a *Arbiter) minOffMinutes() uint8 {
	if a.minOffCfg != nil {
		return *a.minOffCfg
	}
	return a.MinOnMinutes()
}

// Threshold is the valve opening a call for heat needs to be accepted.
func (a *Arbiter) Threshold(boilerOn bool) uint8 {
	minvro := max(a.valveCfg.SaferOpenPC, a.minValve.Get())
	window := a.minutes() & cycleMask
	pause := window < pauseMinutes
	encourage := !pause && window < encourageMinutes
	if !pause && (encourage || boilerOn) {
		return minvro
	}
	return max(minvro, a.valveCfg.ModeratelyOpenPC-1)
}

// OnCallForHeat records a call from node id whose valve is pc percent open. It may
// arrive any number of times per minute; it reports whether the call passed the threshold.
func (a *Arbiter) OnCallForHeat(id uint16, pc uint8) bool {
	if pc == 0 {
		return false
	}
	if a.callers != nil {
		a.callers.Heard(id, pc)
	}
	th := a.Threshold(a.IsOn())
	accepted := pc >= th
	if a.observe != nil {
		a.observe(id, accepted)
	}
	if !accepted {
		a.log.Debugf("Call for heat from %04x at %d%% below threshold %d%%", id, pc, th)
		return false
	}
	a.mailbox.Offer(id)
	return true
}

// Observe registers fn to be told about each call for heat decision.
func (a *Arbiter) Observe(fn func(id uint16, accepted bool)) {
	a.observe = fn
}

// Tick advances the arbiter by one tick and drives the output. minuteBoundary is true
// on the first tick of each minute. Outside hub mode nothing is tracked, pending calls
// are discarded and the output is off.
func (a *Arbiter) Tick(hub, minuteBoundary bool) bool {
	id, heard := a.mailbox.Take()
	if !hub {
		a.lock.Lock()
		a.countdown = 0
		changed := a.lastOut
		a.lastOut = false
		a.lock.Unlock()
		a.drive(false, changed)
		return false
	}
	minOn := a.MinOnMinutes()
	// quietM saturates at 255, so a 255 minute minimum off time must still be passable.
	minOff := min(254, a.minOffMinutes())

	a.lock.Lock()
	if heard {
		if a.countdown == 0 && a.quietM <= minOff {
			a.log.Debugf("Call for heat from %04x ignored, boiler off for only %d min", id, a.quietM)
		} else if minOn != 0 {
			if a.countdown == 0 {
				a.log.Infof("Boiler on, call for heat from %04x", id)
			}
			a.countdown = uint16(minOn) * TicksPerMinute
			a.quietM = 0
			a.lastCaller = id
		}
	}

	if a.countdown != 0 {
		a.countdown--
		if a.countdown == 0 {
			a.log.Info("Boiler off")
		}
	} else if minuteBoundary && a.quietM < 0xFF {
		a.quietM++
	}
	on := a.countdown != 0
	changed := on != a.lastOut
	a.lastOut = on
	a.lock.Unlock()

	a.drive(on, changed)
	return on
}

func (a *Arbiter) drive(on, changed bool) {
	if err := a.out.Set(on); err != nil {
		a.log.Errorf("Cannot drive boiler output: %v", err)
	} else if changed {
		a.log.Debugf("Boiler output %v", on)
	}
}

func (a *Arbiter) IsOn() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.countdown != 0
}

// QuietMinutes is the time since the boiler was last on, saturating at 255.
func (a *Arbiter) QuietMinutes() uint8 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.quietM
}

func (a *Arbiter) CountdownTicks() uint16 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.countdown
}

func (a *Arbiter) LastCaller() uint16 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.lastCaller
}

func (a *Arbiter) Callers() *Callers {
	return a.callers
}

// Close switches the output off and releases it.
func (a *Arbiter) Close() error {
	if err := a.out.Set(false); err != nil {
		a.log.Errorf("Cannot switch boiler off: %v", err)
	}
	return a.out.Close()
}
