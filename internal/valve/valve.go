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

// Package valve models the radiator valve the node controls and the valve opening
// settings shared with the boiler hub.
package valve

import (
	"sync"

	"github.com/antst/otrvhub/internal/nvstore"
)

// Driver is the valve seen by the control loop.
type Driver interface {
	PercentOpen() uint8
	// IsReallyOpen reports an opening large enough to pass useful heat.
	IsReallyOpen() bool
	IsRecalibrating() bool
	// Resync forces the valve to re-establish its position, e.g. after a timing overrun.
	Resync()
	// SetTarget is called once per minute with the room target and the room temperature.
	SetTarget(targetC uint8, roomC16 int, roomValid bool)
}

// MinReallyOpen is the persisted minimum percentage at which the valve counts as open.
type MinReallyOpen struct {
	nv  nvstore.Store
	def uint8

	lock   sync.Mutex
	cached uint8
}

func NewMinReallyOpen(nv nvstore.Store, def uint8) *MinReallyOpen {
	return &MinReallyOpen{nv: nv, def: def}
}

func (m *MinReallyOpen) Get() uint8 {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.cached == 0 {
		m.cached = m.def
		if v := m.nv.Get(nvstore.AddrMinValvePCReallyOpen); v >= 1 && v <= 100 {
			m.cached = v
		}
	}
	return m.cached
}

// Set stores an override; 0, anything above 100 or the default erase it.
func (m *MinReallyOpen) Set(pc uint8) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.cached = 0
	if pc == 0 || pc > 100 || pc == m.def {
		return m.nv.Erase(nvstore.AddrMinValvePCReallyOpen)
	}
	return m.nv.Update(nvstore.AddrMinValvePCReallyOpen, pc)
}

// IsOverridden reports whether a non-default value is in force.
func (m *MinReallyOpen) IsOverridden() bool {
	return m.Get() != m.def
}
