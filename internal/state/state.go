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

// Package state holds the small flags and counters shared between the control loop and
// the MQTT receive callbacks. Each cell is safe for concurrent use; single fields are
// atomics and composite values sit behind one mutex-guarded accessor.
package state

import (
	"sync"
	"sync/atomic"
)

type Mode uint8

const (
	Frost Mode = iota
	Warm
	// Bake is a timed sub-state of Warm.
	Bake
)

func (m Mode) String() string {
	switch m {
	case Frost:
		return "frost"
	case Warm:
		return "warm"
	case Bake:
		return "bake"
	}
	return "unknown"
}

// Char is the single letter used in status reports.
func (m Mode) Char() byte {
	switch m {
	case Warm:
		return 'W'
	case Bake:
		return 'B'
	}
	return 'F'
}

// ModeState is the current operating mode plus the bake countdown in minutes.
//
// The two fields are independent atomics: a reader racing a mode change may see the old
// warm flag with the new countdown for one read, never a torn value of either field.
type ModeState struct {
	warm           atomic.Bool
	bakeCountdownM atomic.Uint32
}

func (s *ModeState) Mode() Mode {
	if !s.warm.Load() {
		return Frost
	}
	if s.bakeCountdownM.Load() > 0 {
		return Bake
	}
	return Warm
}

func (s *ModeState) InWarm() bool { return s.warm.Load() }
func (s *ModeState) InBake() bool { return s.warm.Load() && s.bakeCountdownM.Load() > 0 }

// SetWarm switches between warm and frost; leaving warm cancels bake.
func (s *ModeState) SetWarm(warm bool) {
	if !warm {
		s.bakeCountdownM.Store(0)
	}
	s.warm.Store(warm)
}

// StartBake enters warm mode with the bake uplift for the given minutes.
func (s *ModeState) StartBake(minutes uint8) {
	s.bakeCountdownM.Store(uint32(minutes))
	s.warm.Store(true)
}

func (s *ModeState) CancelBake() {
	s.bakeCountdownM.Store(0)
}

func (s *ModeState) BakeMinutesLeft() uint8 {
	return uint8(s.bakeCountdownM.Load())
}

// TickBake counts the bake timer down by one minute.
func (s *ModeState) TickBake() {
	for {
		v := s.bakeCountdownM.Load()
		if v == 0 || s.bakeCountdownM.CompareAndSwap(v, v-1) {
			return
		}
	}
}

const (
	UITimeoutMinutes    = 31
	uiVeryRecentMinutes = UITimeoutMinutes - 2
)

// UIState counts down the minutes since the last manual interaction.
type UIState struct {
	timeoutM atomic.Uint32
}

func (u *UIState) MarkUsed() {
	u.timeoutM.Store(UITimeoutMinutes)
}

// Recent is true within UITimeoutMinutes of the last use.
func (u *UIState) Recent() bool {
	return u.timeoutM.Load() != 0
}

// VeryRecent is true within the first couple of minutes after use.
func (u *UIState) VeryRecent() bool {
	return u.timeoutM.Load() >= uiVeryRecentMinutes
}

// Tick is called once per minute.
func (u *UIState) Tick() {
	for {
		v := u.timeoutM.Load()
		if v == 0 || u.timeoutM.CompareAndSwap(v, v-1) {
			return
		}
	}
}

// CallForHeat is the mailbox between remote call-for-heat reception and the boiler arbiter.
// A newer call overwrites an unconsumed one.
type CallForHeat struct {
	mu      sync.Mutex
	id      uint16
	pending bool
}

func (c *CallForHeat) Offer(id uint16) {
	c.mu.Lock()
	c.id = id
	c.pending = true
	c.mu.Unlock()
}

// Take reads and clears the mailbox in one step.
func (c *CallForHeat) Take() (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.id, c.pending
	c.id, c.pending = 0, false
	return id, ok
}
